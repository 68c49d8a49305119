package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/harvest"
	"github.com/neuraletter/neuraletter/pkg/summarize"
)

// Crawl runs the crawl pipeline for a topic: seed URL discovery, a first
// harvest to gather links, AI relevance filtering, a second harvest of
// the chosen articles, and per-article summarization. A single article
// failing drops only that article.
func (s *Service) Crawl(ctx context.Context, topic *store.Topic) *Result {
	result := &Result{Status: StatusSkipped, TopicID: topic.ID, UpdatesCreated: []store.Update{}}

	if topic.Description == nil || *topic.Description == "" {
		return result
	}
	description := *topic.Description

	if !s.tryLock(topic.ID) {
		return result.fail(StatusAlreadyRunning, "a run for this topic is already active")
	}
	defer s.unlock(topic.ID)

	fmt.Fprintf(os.Stderr, "crawl: starting for topic %s\n", topic.ID)

	// Step 1: seed URLs from the model.
	seeds := s.deps.Discoverer.SeedURLs(ctx, description)
	if len(seeds) == 0 {
		return result.fail(StatusFailed, "no seed URLs returned from AI")
	}
	result.Steps = append(result.Steps, Step{Step: 1, Name: "discover seed urls", Status: "completed", Count: len(seeds)})

	// Step 2: harvest the seed pages to collect candidate links.
	seedPages := s.deps.Harvester.Harvest(ctx, seeds)
	validSeeds := withoutErrors(seedPages)
	if len(validSeeds) == 0 {
		return result.fail(StatusFailed, "failed to scrape any seed URLs")
	}
	result.Steps = append(result.Steps, Step{Step: 2, Name: "harvest seed pages", Status: "completed", Count: len(validSeeds)})

	// Step 3: ask the model which links are worth deep-scraping.
	harvestedJSON, err := json.Marshal(validSeeds)
	if err != nil {
		return result.fail(StatusFailed, fmt.Sprintf("encode harvested pages: %v", err))
	}
	relevantURLs, err := s.deps.Filter.RelevantURLs(ctx, description, string(harvestedJSON))
	if err != nil {
		return result.fail(StatusFailed, fmt.Sprintf("relevance filter: %v", err))
	}
	if len(relevantURLs) == 0 {
		return result.fail(StatusFailed, "no relevant article URLs found")
	}
	result.Steps = append(result.Steps, Step{Step: 3, Name: "filter relevant urls", Status: "completed", Count: len(relevantURLs)})

	// Step 4: harvest the chosen articles.
	articlePages := s.deps.Harvester.Harvest(ctx, relevantURLs)
	var articles []harvest.PageResult
	for _, page := range articlePages {
		if page.Error == "" && len(page.Sections) > 0 {
			articles = append(articles, page)
		}
	}
	if len(articles) == 0 {
		return result.fail(StatusFailed, "failed to scrape any article content")
	}
	result.Steps = append(result.Steps, Step{Step: 4, Name: "harvest articles", Status: "completed", Count: len(articles)})

	// Step 5: summarize each article; one batch id for the whole run.
	batchID := uuid.NewString()
	var updates []store.Update
	for i, page := range articles {
		fmt.Fprintf(os.Stderr, "crawl: summarizing article %d/%d: %.120s\n", i+1, len(articles), page.URL)

		article, err := s.deps.Summarizer.Summarize(ctx, description, page)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("article %s: %v", page.URL, err))
			continue
		}
		if !article.Usable() {
			fmt.Fprintf(os.Stderr, "crawl: article flagged not relevant, skipping\n")
			continue
		}

		updates = append(updates, updateFromArticle(topic.ID, batchID, page.URL, article))
	}

	if len(updates) == 0 {
		return result.fail(StatusFailed, "no updates were created")
	}

	if err := s.deps.Store.CreateUpdates(ctx, updates); err != nil {
		return result.fail(StatusDBError, fmt.Sprintf("persist updates: %v", err))
	}
	result.UpdatesCreated = updates
	result.Steps = append(result.Steps, Step{Step: 5, Name: "summarize and save", Status: "completed", Count: len(updates)})

	s.notifyOwner(ctx, topic, updates, result)

	fmt.Fprintf(os.Stderr, "crawl: completed with %d updates\n", len(updates))
	result.Status = StatusCompleted
	return result
}

func withoutErrors(pages []harvest.PageResult) []harvest.PageResult {
	var valid []harvest.PageResult
	for _, page := range pages {
		if page.Error == "" {
			valid = append(valid, page)
		}
	}
	return valid
}

func updateFromArticle(topicID, batchID, pageURL string, article *summarize.StructuredArticle) store.Update {
	title := "Untitled"
	if article.Title != nil && *article.Title != "" {
		title = *article.Title
	}

	summary := article.Summary

	keyPoints := article.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	encoded, _ := json.Marshal(keyPoints)
	keyPointsJSON := string(encoded)

	var date *int64
	if article.Date != nil {
		date = summarize.ParseDateMillis(*article.Date)
	}

	return store.Update{
		ID:        uuid.NewString(),
		TopicID:   topicID,
		BatchID:   batchID,
		Title:     &title,
		Author:    article.Author,
		Summary:   &summary,
		SourceURL: &pageURL,
		Date:      date,
		KeyPoints: &keyPointsJSON,
		ImageLink: article.LeadImage,
	}
}
