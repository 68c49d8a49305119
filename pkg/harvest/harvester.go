// Package harvest fetches pages and extracts their readable structure:
// deduplicated text sections with the links and images embedded in each.
// Every URL in a batch fails or succeeds independently.
package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// Link is an outbound anchor found inside a section.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Image is an embedded image found inside a section.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// Section is one non-trivial text block of a page.
type Section struct {
	Text   string  `json:"text"`
	Links  []Link  `json:"links"`
	Images []Image `json:"images"`
}

// PageResult is the outcome for a single URL. A failed fetch carries an
// Error marker and no sections instead of aborting the batch.
type PageResult struct {
	URL      string    `json:"url"`
	Sections []Section `json:"sections,omitempty"`
	Error    string    `json:"error,omitempty"`
}

const maxBodyBytes = 10 << 20

// Harvester fetches batches of URLs.
type Harvester struct {
	retries   int
	timeout   time.Duration
	userAgent string
}

// New creates a harvester. Zero values fall back to 3 retries, a 60s
// page-load timeout and a default user agent.
func New(retries int, timeout time.Duration, userAgent string) *Harvester {
	if retries <= 0 {
		retries = 3
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if userAgent == "" {
		userAgent = "neuraletter/1.0"
	}
	return &Harvester{retries: retries, timeout: timeout, userAgent: userAgent}
}

// session holds the per-batch fetching state: one HTTP client and a
// robots.txt cache keyed by host. Closed when the batch finishes.
type session struct {
	client    *http.Client
	userAgent string
	robots    map[string]*robotstxt.Group
}

func (h *Harvester) newSession() *session {
	return &session{
		client:    &http.Client{Timeout: h.timeout},
		userAgent: h.userAgent,
		robots:    make(map[string]*robotstxt.Group),
	}
}

func (s *session) close() {
	s.client.CloseIdleConnections()
}

// Harvest fetches every URL with bounded retries. It never returns an
// error; the result slice always has one entry per input URL.
func (h *Harvester) Harvest(ctx context.Context, urls []string) []PageResult {
	sess := h.newSession()
	defer sess.close()

	results := make([]PageResult, 0, len(urls))
	for _, pageURL := range urls {
		results = append(results, h.harvestOne(ctx, sess, pageURL))
	}
	return results
}

func (h *Harvester) harvestOne(ctx context.Context, sess *session, pageURL string) PageResult {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return PageResult{URL: pageURL, Error: "invalid url"}
	}

	if !sess.allowed(ctx, parsed) {
		return PageResult{URL: pageURL, Error: "blocked by robots.txt"}
	}

	var lastErr error
	for attempt := 1; attempt <= h.retries; attempt++ {
		sections, err := sess.fetch(ctx, pageURL)
		if err == nil {
			return PageResult{URL: pageURL, Sections: sections}
		}
		lastErr = err
		fmt.Fprintf(os.Stderr, "  harvest %s attempt %d/%d: %v\n", pageURL, attempt, h.retries, err)
		if ctx.Err() != nil {
			break
		}
	}
	return PageResult{URL: pageURL, Error: lastErr.Error()}
}

// allowed consults the host's robots.txt, fetched once per batch. Hosts
// whose robots.txt cannot be fetched or parsed are treated as allowing.
func (s *session) allowed(ctx context.Context, u *url.URL) bool {
	group, ok := s.robots[u.Host]
	if !ok {
		group = s.fetchRobots(ctx, u)
		s.robots[u.Host] = group
	}
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (s *session) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data.FindGroup(s.userAgent)
}

// fetch loads one page and extracts its sections. Feed responses
// (RSS/Atom) are parsed as feeds; everything else goes through the HTML
// extractor.
func (s *session) fetch(ctx context.Context, pageURL string) ([]Section, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	base := resp.Request.URL

	if looksLikeFeed(resp.Header.Get("Content-Type"), body) {
		return extractFeedSections(body)
	}
	return extractHTMLSections(body, base)
}

func looksLikeFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		return true
	}
	head := strings.TrimSpace(string(body[:min(len(body), 256)]))
	return strings.HasPrefix(head, "<?xml") || strings.HasPrefix(head, "<rss") || strings.HasPrefix(head, "<feed")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
