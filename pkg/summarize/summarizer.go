// Package summarize converts a scraped article into a structured record
// via the text-generation service. Model output is treated as untrusted:
// parsing is lenient and failures surface as MalformedError rather than
// silently wrong data.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/neuraletter/neuraletter/pkg/ai"
	"github.com/neuraletter/neuraletter/pkg/harvest"
)

const summaryPrompt = "You are an article summarization assistant. Analyze the provided JSON and return ONLY a JSON object (no prose, no code blocks).\n" +
	"Expected output shape: {\"title\": string|null, \"author\": string|null, \"date\": string|null, \"summary\": string, \"key_points\": [string], \"lead_image\": string|null, \"relevant\": boolean}.\n" +
	"I will also provide a topic; the summary you provide must align with that topic.\n" +
	"Requirements:\n" +
	"1) Keep summary concise but comprehensive (3-6 sentences).\n" +
	"2) key_points should be 3-7 short bullet-like strings covering the main takeaways.\n" +
	"3) lead_image: if the JSON includes an image URL near the top of the article, return that URL; otherwise null.\n" +
	"4) If any field is unknown, set it to null.\n" +
	"5) Ignore navigation, ads, footer, or sidebar content.\n" +
	"6) Set \"relevant\" to false if the article carries no information related to the topic.\n" +
	"7) Output must be valid JSON, no extra text or code fences.\n" +
	"Topic: %s\n" +
	"Article JSON: " + ai.DataPlaceholder

// boilerplatePatterns are "no usable information" phrasings models emit
// instead of setting relevant=false.
var boilerplatePatterns = []string{
	"does not contain usable information",
	"no substantive data",
	"no relevant content",
}

// StructuredArticle is the model's structured view of one article.
type StructuredArticle struct {
	Title     *string  `json:"title"`
	Author    *string  `json:"author"`
	Date      *string  `json:"date"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	LeadImage *string  `json:"lead_image"`
	Relevant  *bool    `json:"relevant"`
}

// Usable reports whether the article should be persisted. An article is
// dropped when the model flagged it irrelevant or its summary is known
// "nothing here" boilerplate; an absent relevant flag counts as relevant.
func (a *StructuredArticle) Usable() bool {
	if a.Relevant != nil && !*a.Relevant {
		return false
	}
	lowered := strings.ToLower(strings.TrimSpace(a.Summary))
	for _, pattern := range boilerplatePatterns {
		if strings.Contains(lowered, pattern) {
			return false
		}
	}
	return true
}

// MalformedError reports a model response that failed structured parsing.
// Raw keeps the original text for diagnosis.
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("malformed summarizer response: %q", raw)
}

// Summarizer produces structured article records.
type Summarizer struct {
	ai              ai.Completer
	articleMaxChars int
	chunkMaxChars   int
}

// New creates a summarizer. articleMaxChars bounds how much article text
// is sent upstream; chunkMaxChars bounds a single request payload.
func New(completer ai.Completer, articleMaxChars, chunkMaxChars int) *Summarizer {
	if articleMaxChars <= 0 {
		articleMaxChars = 8000
	}
	if chunkMaxChars <= 0 {
		chunkMaxChars = 15000
	}
	return &Summarizer{ai: completer, articleMaxChars: articleMaxChars, chunkMaxChars: chunkMaxChars}
}

// Summarize shrinks the page to the article budget, requests a structured
// summary and parses the response. A response that cannot be parsed
// returns *MalformedError.
func (s *Summarizer) Summarize(ctx context.Context, topicDescription string, page harvest.PageResult) (*StructuredArticle, error) {
	trimmed := harvest.PageResult{
		URL:      page.URL,
		Sections: ShrinkSections(page.Sections, s.articleMaxChars),
	}

	articleJSON, err := json.Marshal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("encode article: %w", err)
	}

	prompt := fmt.Sprintf(summaryPrompt, topicDescription)
	raw, err := ai.RequestWithChunking(ctx, s.ai, prompt, string(articleJSON), s.chunkMaxChars)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", page.URL, err)
	}

	return ParseArticle(raw)
}

// ParseArticle leniently parses a model response into a StructuredArticle:
// fences are stripped, and when the response holds several JSON blocks the
// first one shaped like an article wins.
func ParseArticle(raw string) (*StructuredArticle, error) {
	candidate := ai.StripFences(raw)

	var article StructuredArticle
	if err := json.Unmarshal([]byte(candidate), &article); err == nil {
		return &article, nil
	}

	obj, ok := ai.ExtractJSONObject(raw, func(m map[string]any) bool {
		_, hasSummary := m["summary"]
		return hasSummary
	})
	if !ok {
		return nil, &MalformedError{Raw: raw}
	}

	encoded, err := json.Marshal(obj)
	if err != nil {
		return nil, &MalformedError{Raw: raw}
	}
	if err := json.Unmarshal(encoded, &article); err != nil {
		return nil, &MalformedError{Raw: raw}
	}
	return &article, nil
}

// ShrinkSections keeps whole sections in original order until the
// character budget is exhausted, truncating the section that crosses the
// boundary. Links and images of included sections are preserved.
func ShrinkSections(sections []harvest.Section, budget int) []harvest.Section {
	if budget <= 0 || len(sections) == 0 {
		return sections
	}

	remaining := budget
	var trimmed []harvest.Section

	for _, section := range sections {
		if remaining <= 0 {
			break
		}

		text := strings.TrimSpace(section.Text)
		if text == "" {
			continue
		}
		if len(text) > remaining {
			text = text[:remaining]
		}

		trimmed = append(trimmed, harvest.Section{
			Text:   text,
			Links:  section.Links,
			Images: section.Images,
		})
		remaining -= len(text)
	}

	if len(trimmed) == 0 {
		return sections
	}
	return trimmed
}

// ParseDateMillis converts a date string from the model into epoch
// milliseconds, or nil when it cannot be parsed.
func ParseDateMillis(dateStr string) *int64 {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil
	}
	t, err := dateparse.ParseAny(dateStr)
	if err != nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
