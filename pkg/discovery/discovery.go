// Package discovery asks the text-generation service for seed URLs to
// start a crawl from. It is a best-effort oracle: any upstream or parse
// failure yields an empty result, never an error.
package discovery

import (
	"context"
	"fmt"
	"os"

	"github.com/neuraletter/neuraletter/pkg/ai"
)

const seedPrompt = "You are a web research assistant. Given a topic, return exactly %d working, reputable base URLs that are the BEST starting points to discover recent, in-depth articles about that topic.\n" +
	"Rules:\n" +
	"1. Output must be a JSON list of those URLs, no other text, just a list like [\"url1\", \"url2\", ...].\n" +
	"2. Choose pages that list or aggregate news/articles SPECIFICALLY about the topic (e.g., a dedicated topic or search page), not generic homepages.\n" +
	"3. Prefer diverse domains; avoid more than one URL from the same site.\n" +
	"4. Only include real, accessible sites (no broken links, parked domains, or login-only pages).\n" +
	"5. Prioritize authoritative news sites, official sources, and well-known publications over blogs or low-quality sites.\n" +
	"6. Avoid social networks, YouTube, and generic front pages unless they are clearly focused on the topic.\n" +
	"7. No extra text, explanations, or trailing punctuation.\n" +
	"Topic: %s"

// Discoverer produces seed URLs for a topic.
type Discoverer struct {
	ai    ai.Completer
	count int
}

// New creates a discoverer that asks for count seed URLs per topic.
func New(completer ai.Completer, count int) *Discoverer {
	if count <= 0 {
		count = 5
	}
	return &Discoverer{ai: completer, count: count}
}

// SeedURLs returns starting-point URLs for the topic. Returned URLs are
// not guaranteed reachable.
func (d *Discoverer) SeedURLs(ctx context.Context, topicDescription string) []string {
	raw, err := d.ai.Complete(ctx, fmt.Sprintf(seedPrompt, d.count, topicDescription))
	if err != nil {
		fmt.Fprintf(os.Stderr, "  seed url discovery error: %v\n", err)
		return nil
	}

	urls := ai.ParseURLList(raw)
	if len(urls) > d.count {
		urls = urls[:d.count]
	}
	return urls
}
