// Package search wraps the SERP web-search API consumed by the
// enrichment pipeline.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Locale carries the localization parameters sent with every query.
type Locale struct {
	Location     string
	GoogleDomain string
	Language     string
	Country      string
}

// Client queries the SERP API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	engine     string
	locale     Locale
}

// NewClient creates a new SERP search client.
func NewClient(apiKey, baseURL, engine string, locale Locale) *Client {
	if baseURL == "" {
		baseURL = "https://serpapi.com"
	}
	if engine == "" {
		engine = "google"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		engine:     engine,
		locale:     locale,
	}
}

// Search runs one query and returns the decoded result document.
// An empty document means the upstream had nothing for the query.
func (c *Client) Search(ctx context.Context, query string) (map[string]any, error) {
	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	if c.locale.Location != "" {
		params.Set("location", c.locale.Location)
	}
	if c.locale.GoogleDomain != "" {
		params.Set("google_domain", c.locale.GoogleDomain)
	}
	if c.locale.Language != "" {
		params.Set("hl", c.locale.Language)
	}
	if c.locale.Country != "" {
		params.Set("gl", c.locale.Country)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call search api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api status %d", resp.StatusCode)
	}

	var results map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return results, nil
}
