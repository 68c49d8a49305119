package discovery

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestSeedURLsParsesListAndTruncates(t *testing.T) {
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		if !strings.Contains(prompt, "Topic: rust compilers") {
			t.Errorf("prompt missing topic: %q", prompt)
		}
		return `["https://a.com", "https://b.com", "https://c.com"]`, nil
	})

	d := New(c, 2)
	got := d.SeedURLs(context.Background(), "rust compilers")
	want := []string{"https://a.com", "https://b.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SeedURLs = %v, want %v", got, want)
	}
}

func TestSeedURLsToleratesSingleQuotedList(t *testing.T) {
	c := completerFunc(func(_ context.Context, _ string) (string, error) {
		return `['https://a.com']`, nil
	})

	got := New(c, 5).SeedURLs(context.Background(), "anything")
	if len(got) != 1 || got[0] != "https://a.com" {
		t.Errorf("SeedURLs = %v", got)
	}
}

func TestSeedURLsUpstreamErrorYieldsNil(t *testing.T) {
	c := completerFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("rate limited")
	})

	if got := New(c, 5).SeedURLs(context.Background(), "anything"); got != nil {
		t.Errorf("SeedURLs = %v, want nil", got)
	}
}
