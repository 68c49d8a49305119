package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DataPlaceholder marks where the serialized payload goes in a prompt
// template passed to RequestWithChunking.
const DataPlaceholder = "{DATA}"

// RequestWithChunking issues a prompt whose payload may exceed the
// upstream input limit. Small payloads go out as a single request. Large
// list-shaped payloads are split into roughly equal sub-lists, one request
// per chunk with a chunk notice appended; non-list payloads fall back to
// raw character windows. List-shaped chunk responses are merged back into
// one serialized list, anything else is joined with newlines.
func RequestWithChunking(ctx context.Context, c Completer, promptTemplate, data string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 15000
	}

	if len(data) <= maxChars {
		return c.Complete(ctx, strings.ReplaceAll(promptTemplate, DataPlaceholder, data))
	}

	chunks := splitData(data, maxChars)

	results := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := strings.ReplaceAll(promptTemplate, DataPlaceholder, chunk)
		if len(chunks) > 1 {
			prompt += fmt.Sprintf("\n(Processing chunk %d of %d)", i+1, len(chunks))
		}

		result, err := c.Complete(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		results = append(results, result)
	}

	return mergeChunkResults(results), nil
}

// splitData breaks data into chunks of at most maxChars. JSON arrays are
// split element-wise so no element is cut in half.
func splitData(data string, maxChars int) []string {
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(data), &elements); err == nil && len(elements) > 0 {
		chunkCount := len(data)/maxChars + 1
		perChunk := len(elements) / chunkCount
		if perChunk < 1 {
			perChunk = 1
		}

		var chunks []string
		for i := 0; i < len(elements); i += perChunk {
			end := i + perChunk
			if end > len(elements) {
				end = len(elements)
			}
			encoded, err := json.Marshal(elements[i:end])
			if err != nil {
				break
			}
			chunks = append(chunks, string(encoded))
		}
		if len(chunks) > 0 {
			return chunks
		}
	}

	// Not list-shaped: plain character windows.
	var chunks []string
	for i := 0; i < len(data); i += maxChars {
		end := i + maxChars
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

// mergeChunkResults concatenates list responses in order; if any chunk
// response is not a list, all raw texts are joined with newlines instead.
func mergeChunkResults(results []string) string {
	if len(results) == 1 {
		return results[0]
	}

	var merged []json.RawMessage
	for _, result := range results {
		var parsed []json.RawMessage
		if err := json.Unmarshal([]byte(StripFences(result)), &parsed); err != nil {
			return strings.Join(results, "\n")
		}
		merged = append(merged, parsed...)
	}

	if len(merged) == 0 {
		return strings.Join(results, "\n")
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return strings.Join(results, "\n")
	}
	return string(encoded)
}
