// Package relevance narrows harvested links down to article URLs worth
// deep-scraping. The model does the first pass; a deterministic local
// scorer provides a correctness floor independent of model behavior.
package relevance

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/neuraletter/neuraletter/pkg/ai"
)

const filterPrompt = "You are a relevance filter for link extraction. Given a topic and a JSON array of sections (fields 'text' and 'url'), " +
	"return only the URLs whose associated text aligns with the topic.\n" +
	"Rules:\n" +
	"1) Judge relevance using anchor text and its surrounding section text; ignore nav/ads/footer/legal content.\n" +
	"2) Output exactly a JSON list of URL strings; no explanations or extra text.\n" +
	"3) Use only URLs from the provided JSON; deduplicate; prefer https; preserve first-seen order.\n" +
	"4) If nothing matches, return an empty list [].\n" +
	"Topic: %s\n" +
	"JSON: " + ai.DataPlaceholder

var (
	reNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)
	// Path segments that mark listing, auth or account pages.
	blacklist = []string{"/tag/", "/category/", "/topics/", "login", "signup", "account"}
)

// Filter selects relevant article URLs for a topic.
type Filter struct {
	ai       ai.Completer
	maxChars int
	maxURLs  int
}

// New creates a relevance filter. maxChars bounds the serialized payload
// per AI request; maxURLs caps the final result.
func New(completer ai.Completer, maxChars, maxURLs int) *Filter {
	if maxChars <= 0 {
		maxChars = 15000
	}
	if maxURLs <= 0 {
		maxURLs = 10
	}
	return &Filter{ai: completer, maxChars: maxChars, maxURLs: maxURLs}
}

// RelevantURLs asks the model to pick topic-relevant URLs out of the
// harvested sections, then re-ranks them with the local scorer.
func (f *Filter) RelevantURLs(ctx context.Context, topicDescription, harvestedJSON string) ([]string, error) {
	prompt := fmt.Sprintf(filterPrompt, topicDescription)
	raw, err := ai.RequestWithChunking(ctx, f.ai, prompt, harvestedJSON, f.maxChars)
	if err != nil {
		return nil, fmt.Errorf("relevance filter: %w", err)
	}

	return PostFilter(ai.ParseURLList(raw), topicDescription, f.maxURLs), nil
}

// PostFilter heuristically ranks and filters article URLs to better match
// the topic. Deterministic and idempotent for a given input.
//
// Scoring: +1 https, +2 path depth >= 3 segments, +2 per topic keyword
// found in the URL, +2 for a year-like date in the path, -2 for
// blacklisted segments. Positive scorers are kept sorted by score then
// first-seen order; if none score positive the original order survives.
// The result is truncated to maxURLs.
func PostFilter(urls []string, topicDescription string, maxURLs int) []string {
	if len(urls) == 0 {
		return nil
	}
	if maxURLs <= 0 {
		maxURLs = 10
	}

	seen := make(map[string]bool)
	var unique []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
	}

	keywords := topicKeywords(topicDescription)

	type scored struct {
		score int
		idx   int
		url   string
	}

	ranked := make([]scored, 0, len(unique))
	for idx, u := range unique {
		urlLower := strings.ToLower(u)
		score := 0

		if strings.HasPrefix(urlLower, "https://") {
			score++
		}

		path := pathOf(urlLower)
		if countSegments(path) >= 3 {
			score += 2
		}
		if hasDigit(path) && (strings.Contains(path, "/20") || strings.Contains(path, "-20")) {
			score += 2
		}

		for _, kw := range keywords {
			if strings.Contains(urlLower, kw) {
				score += 2
			}
		}

		for _, bad := range blacklist {
			if strings.Contains(urlLower, bad) {
				score -= 2
				break
			}
		}

		ranked = append(ranked, scored{score: score, idx: idx, url: u})
	}

	var positive []scored
	for _, s := range ranked {
		if s.score > 0 {
			positive = append(positive, s)
		}
	}

	var ordered []string
	if len(positive) > 0 {
		sort.SliceStable(positive, func(i, j int) bool {
			if positive[i].score != positive[j].score {
				return positive[i].score > positive[j].score
			}
			return positive[i].idx < positive[j].idx
		})
		for _, s := range positive {
			ordered = append(ordered, s.url)
		}
	} else {
		ordered = unique
	}

	if len(ordered) > maxURLs {
		ordered = ordered[:maxURLs]
	}
	return ordered
}

// topicKeywords splits the topic on non-alphanumeric runs and keeps
// words of at least 4 characters.
func topicKeywords(topicDescription string) []string {
	var keywords []string
	for _, w := range reNonAlnum.Split(strings.ToLower(topicDescription), -1) {
		if len(w) >= 4 {
			keywords = append(keywords, w)
		}
	}
	return keywords
}

// pathOf returns everything after the host portion of a URL.
func pathOf(u string) string {
	rest := u
	if idx := strings.Index(rest, "//"); idx >= 0 {
		rest = rest[idx+2:]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}

func countSegments(path string) int {
	count := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			count++
		}
	}
	return count
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
