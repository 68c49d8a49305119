// Package enrich runs collection pipelines for a topic: the preferred
// search+extraction enrichment and the older crawl pipeline. Every step
// converts its failures into a structured result status; no error escapes
// to the caller.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/ai"
	"github.com/neuraletter/neuraletter/pkg/harvest"
	"github.com/neuraletter/neuraletter/pkg/notify"
	"github.com/neuraletter/neuraletter/pkg/summarize"
)

// Run statuses.
const (
	StatusCompleted          = "completed"
	StatusSkipped            = "skipped"
	StatusAlreadyRunning     = "already_running"
	StatusNoResults          = "no_results"
	StatusMissingAgent       = "missing_agent"
	StatusEmptyAgentResponse = "empty_agent_response"
	StatusParseError         = "parse_error"
	StatusNoPoints           = "no_points"
	StatusDBError            = "db_error"
	StatusNoUpdates          = "no_updates"
	StatusFailed             = "failed"
)

// Searcher is the external web-search contract.
type Searcher interface {
	Search(ctx context.Context, query string) (map[string]any, error)
}

// AgentAPI is the slice of the text-generation service used for agent
// conversations.
type AgentAPI interface {
	CreateAgent(ctx context.Context, spec ai.AgentSpec) (string, error)
	StartConversation(ctx context.Context, agentHandle, input string) (*ai.ConversationReply, error)
}

// SeedDiscoverer produces crawl starting points for a topic.
type SeedDiscoverer interface {
	SeedURLs(ctx context.Context, topicDescription string) []string
}

// PageHarvester fetches batches of URLs.
type PageHarvester interface {
	Harvest(ctx context.Context, urls []string) []harvest.PageResult
}

// URLFilter narrows harvested links to relevant article URLs.
type URLFilter interface {
	RelevantURLs(ctx context.Context, topicDescription, harvestedJSON string) ([]string, error)
}

// ArticleSummarizer converts a scraped page to a structured record.
type ArticleSummarizer interface {
	Summarize(ctx context.Context, topicDescription string, page harvest.PageResult) (*summarize.StructuredArticle, error)
}

// Step records one completed pipeline stage for diagnostics.
type Step struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
}

// Result is the outcome of one collection run.
type Result struct {
	Status         string         `json:"status"`
	TopicID        string         `json:"topic_id"`
	UpdatesCreated []store.Update `json:"updates_created"`
	Errors         []string       `json:"errors,omitempty"`
	Steps          []Step         `json:"steps,omitempty"`
}

func (r *Result) fail(status string, errs ...string) *Result {
	r.Status = status
	r.Errors = append(r.Errors, errs...)
	return r
}

// Deps wires a Service.
type Deps struct {
	Store           store.Store
	Search          Searcher
	Agents          AgentAPI
	Notifier        notify.Notifier
	Discoverer      SeedDiscoverer
	Harvester       PageHarvester
	Filter          URLFilter
	Summarizer      ArticleSummarizer
	ExtractionModel string
}

// Service orchestrates collection runs.
type Service struct {
	deps Deps

	mu      sync.Mutex
	running map[string]bool
}

// NewService creates a collection service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps, running: make(map[string]bool)}
}

// tryLock takes the advisory per-topic run lock. A second trigger for a
// topic whose run is still active is rejected, not queued.
func (s *Service) tryLock(topicID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[topicID] {
		return false
	}
	s.running[topicID] = true
	return true
}

func (s *Service) unlock(topicID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, topicID)
}

type extractionDoc struct {
	DetailedPoints []json.RawMessage `json:"detailed_points"`
}

type detailedPoint struct {
	Title     *string `json:"title"`
	Summary   *string `json:"summary"`
	SourceURL *string `json:"source_url"`
}

// Enrich runs the search+extraction pipeline for a topic: one search
// query, one structured-extraction agent turn, one transactional batch of
// update rows, one digest email.
func (s *Service) Enrich(ctx context.Context, topic *store.Topic) *Result {
	result := &Result{Status: StatusSkipped, TopicID: topic.ID, UpdatesCreated: []store.Update{}}

	if topic.Description == nil || *topic.Description == "" {
		return result
	}

	if !s.tryLock(topic.ID) {
		return result.fail(StatusAlreadyRunning, "a run for this topic is already active")
	}
	defer s.unlock(topic.ID)

	searchResults, err := s.deps.Search.Search(ctx, *topic.Description)
	if err != nil {
		return result.fail(StatusNoResults, fmt.Sprintf("search failed: %v", err))
	}
	if len(searchResults) == 0 {
		return result.fail(StatusNoResults, "search returned no results")
	}

	agentRow, err := s.deps.Store.GetAgent(ctx, ExtractionAgentID)
	if err != nil {
		return result.fail(StatusMissingAgent, fmt.Sprintf("load extraction agent: %v", err))
	}
	if agentRow == nil {
		return result.fail(StatusMissingAgent, "extraction agent not provisioned; run gen-agent first")
	}

	agentInput, err := json.Marshal(map[string]any{
		"topic_description": *topic.Description,
		"search_results":    searchResults,
	})
	if err != nil {
		return result.fail(StatusEmptyAgentResponse, fmt.Sprintf("encode agent input: %v", err))
	}

	content, err := s.startExtraction(ctx, agentRow, string(agentInput))
	if err != nil {
		return result.fail(StatusEmptyAgentResponse, fmt.Sprintf("agent conversation: %v", err))
	}
	if content == "" {
		return result.fail(StatusEmptyAgentResponse, "extraction agent returned empty response")
	}

	var doc extractionDoc
	if err := json.Unmarshal([]byte(ai.StripFences(content)), &doc); err != nil {
		fmt.Fprintf(os.Stderr, "  extraction parse error: %v\n  raw: %.500s\n", err, content)
		return result.fail(StatusParseError, fmt.Sprintf("parse extraction response: %v", err))
	}
	if len(doc.DetailedPoints) == 0 {
		return result.fail(StatusNoPoints, "extraction response has no detailed_points array")
	}

	batchID := uuid.NewString()
	var updates []store.Update
	for _, raw := range doc.DetailedPoints {
		var point detailedPoint
		if err := json.Unmarshal(raw, &point); err != nil {
			// Non-object entries are skipped, not fatal.
			continue
		}
		updates = append(updates, store.Update{
			ID:        uuid.NewString(),
			TopicID:   topic.ID,
			BatchID:   batchID,
			Title:     point.Title,
			Summary:   point.Summary,
			SourceURL: point.SourceURL,
		})
	}

	if len(updates) == 0 {
		result.Status = StatusNoUpdates
		return result
	}

	if err := s.deps.Store.CreateUpdates(ctx, updates); err != nil {
		return result.fail(StatusDBError, fmt.Sprintf("persist updates: %v", err))
	}
	result.UpdatesCreated = updates

	s.notifyOwner(ctx, topic, updates, result)

	result.Status = StatusCompleted
	return result
}

// startExtraction runs one conversation turn with the extraction agent.
// A stale handle (the upstream forgot the agent) triggers one recreate
// and one retry; the transient error never reaches the caller.
func (s *Service) startExtraction(ctx context.Context, agentRow *store.Agent, input string) (string, error) {
	reply, err := s.deps.Agents.StartConversation(ctx, agentRow.AgentHandle, input)
	if errors.Is(err, ai.ErrAgentNotFound) {
		fmt.Fprintf(os.Stderr, "  extraction agent handle stale, recreating\n")
		refreshed, provisionErr := s.ProvisionExtractionAgent(ctx)
		if provisionErr != nil {
			return "", fmt.Errorf("recreate extraction agent: %w", provisionErr)
		}
		reply, err = s.deps.Agents.StartConversation(ctx, refreshed.AgentHandle, input)
	}
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// notifyOwner emails the digest to the topic owner. Failures are logged
// and recorded but never change the run status: content is already saved.
func (s *Service) notifyOwner(ctx context.Context, topic *store.Topic, updates []store.Update, result *Result) {
	if s.deps.Notifier == nil {
		return
	}

	user, err := s.deps.Store.GetUser(ctx, topic.UserID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  lookup topic owner: %v\n", err)
		result.Errors = append(result.Errors, fmt.Sprintf("lookup topic owner: %v", err))
		return
	}
	if user == nil || user.Email == "" {
		fmt.Fprintf(os.Stderr, "  no user/email for topic %s; skipping digest\n", topic.ID)
		return
	}

	if err := s.deps.Notifier.SendDigest(ctx, user.Email, topicTitle(topic), updates); err != nil {
		fmt.Fprintf(os.Stderr, "  digest email failed: %v\n", err)
		result.Errors = append(result.Errors, fmt.Sprintf("digest email: %v", err))
	}
}

func topicTitle(topic *store.Topic) string {
	if topic.Title != nil && *topic.Title != "" {
		return *topic.Title
	}
	if topic.Description != nil && *topic.Description != "" {
		return *topic.Description
	}
	return "your topic"
}
