package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s,\])"']+`)

// StripFences removes a markdown code-fence wrapper from a model response.
// Responses without fences pass through unchanged.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	// Drop the optional language tag on the opening fence.
	if idx := strings.IndexAny(s, "\n"); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isFenceTag(first) {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// ParseURLList extracts URLs from a model response that was asked for a
// literal list. It tries a structured parse first (JSON, then the
// single-quoted list shape models often emit) and falls back to scanning
// the raw text for URL patterns. Never fails: unusable input yields nil.
func ParseURLList(raw string) []string {
	raw = StripFences(raw)
	if raw == "" {
		return nil
	}

	if urls := parseStringList(raw); urls != nil {
		return urls
	}
	// Models frequently emit ['a', 'b'] rather than valid JSON.
	if urls := parseStringList(strings.ReplaceAll(raw, "'", `"`)); urls != nil {
		return urls
	}

	return urlPattern.FindAllString(raw, -1)
}

func parseStringList(raw string) []string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	var urls []string
	for _, u := range list {
		u = strings.TrimSpace(u)
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ExtractJSONObject finds the first JSON object in a model response that
// satisfies want. The response may be a bare object, fenced, or several
// fenced blocks concatenated; each candidate block is tried in order.
func ExtractJSONObject(raw string, want func(map[string]any) bool) (map[string]any, bool) {
	raw = strings.ReplaceAll(raw, "```json", "```")

	for _, block := range strings.Split(raw, "```") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(block), &obj); err != nil {
			continue
		}
		if want == nil || want(obj) {
			return obj, true
		}
	}
	return nil, false
}
