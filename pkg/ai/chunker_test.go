package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestRequestWithChunkingSmallPayloadPassesThrough(t *testing.T) {
	var gotPrompt string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	})

	out, err := RequestWithChunking(context.Background(), c, "analyze: "+DataPlaceholder, "small payload", 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("got %q, want ok", out)
	}
	if gotPrompt != "analyze: small payload" {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if strings.Contains(gotPrompt, "Processing chunk") {
		t.Error("single request must not carry a chunk notice")
	}
}

func TestRequestWithChunkingSplitsJSONListElementWise(t *testing.T) {
	// 20 elements, each ~20 chars serialized: total well above maxChars.
	var elements []string
	for i := 0; i < 20; i++ {
		elements = append(elements, fmt.Sprintf("element-%02d-padding", i))
	}
	data, _ := json.Marshal(elements)

	var prompts []string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)

		// Echo back the chunk's elements as a JSON list.
		start := strings.Index(prompt, "[")
		end := strings.LastIndex(prompt, "]")
		return prompt[start : end+1], nil
	})

	out, err := RequestWithChunking(context.Background(), c, DataPlaceholder, string(data), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prompts) < 2 {
		t.Fatalf("expected multiple chunk requests, got %d", len(prompts))
	}

	for i, p := range prompts {
		notice := fmt.Sprintf("(Processing chunk %d of %d)", i+1, len(prompts))
		if !strings.Contains(p, notice) {
			t.Errorf("prompt %d missing notice %q", i, notice)
		}
	}

	// The merge must reassemble the original list in order.
	var merged []string
	if err := json.Unmarshal([]byte(out), &merged); err != nil {
		t.Fatalf("merged output not a JSON list: %v\n%s", err, out)
	}
	if len(merged) != len(elements) {
		t.Fatalf("merged %d elements, want %d", len(merged), len(elements))
	}
	for i := range elements {
		if merged[i] != elements[i] {
			t.Errorf("element %d = %q, want %q", i, merged[i], elements[i])
		}
	}
}

func TestRequestWithChunkingNonListFallsBackToCharWindows(t *testing.T) {
	data := strings.Repeat("x", 250)

	var calls int
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		return "part", nil
	})

	out, err := RequestWithChunking(context.Background(), c, DataPlaceholder, data, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("got %d requests, want 3", calls)
	}
	// Non-list responses are newline-joined.
	if out != "part\npart\npart" {
		t.Errorf("merged = %q", out)
	}
}

func TestRequestWithChunkingChunkErrorAborts(t *testing.T) {
	boom := errors.New("upstream down")
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		return "", boom
	})

	_, err := RequestWithChunking(context.Background(), c, DataPlaceholder, strings.Repeat("y", 200), 50)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}
}
