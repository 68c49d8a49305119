package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAgentNotFound reports a stale agent handle: the upstream no longer
// knows the agent we stored. Callers recreate the agent and retry once.
var ErrAgentNotFound = errors.New("agent not found")

// Completer is the single-turn text-generation contract used by the
// pipeline stages.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client talks to a Mistral-style text-generation API: stateless chat
// completions plus the stateful agents/conversations surface.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewClient creates a new API client.
func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.mistral.ai"
	}
	if model == "" {
		model = "mistral-large-2512"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
	}
}

// Complete sends one user prompt and returns the raw assistant text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/v1/chat/completions", payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

// AgentSpec describes an agent to create upstream.
type AgentSpec struct {
	Model        string
	Name         string
	Description  string
	Instructions string
	Temperature  float64
	TopP         float64
}

// CreateAgent registers an agent upstream and returns its handle.
func (c *Client) CreateAgent(ctx context.Context, spec AgentSpec) (string, error) {
	payload := map[string]any{
		"model":        spec.Model,
		"name":         spec.Name,
		"description":  spec.Description,
		"instructions": spec.Instructions,
		"completion_args": map[string]any{
			"temperature": spec.Temperature,
			"top_p":       spec.TopP,
		},
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/agents", payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("create agent: no id returned")
	}
	return result.ID, nil
}

// ConversationReply is one turn of an agent conversation.
type ConversationReply struct {
	ConversationID string
	Content        string
}

type conversationResponse struct {
	ConversationID string `json:"conversation_id"`
	Outputs        []struct {
		Content string `json:"content"`
	} `json:"outputs"`
}

// StartConversation opens a conversation with an agent and returns the
// first reply. A 404 from upstream surfaces as ErrAgentNotFound.
func (c *Client) StartConversation(ctx context.Context, agentHandle, input string) (*ConversationReply, error) {
	payload := map[string]any{
		"agent_id": agentHandle,
		"inputs":   input,
	}

	var result conversationResponse
	if err := c.post(ctx, "/v1/conversations", payload, &result); err != nil {
		return nil, err
	}
	return replyFrom(&result), nil
}

// ContinueConversation appends one turn to an existing conversation.
func (c *Client) ContinueConversation(ctx context.Context, conversationID, input string) (*ConversationReply, error) {
	payload := map[string]any{
		"inputs": input,
	}

	var result conversationResponse
	if err := c.post(ctx, "/v1/conversations/"+conversationID, payload, &result); err != nil {
		return nil, err
	}
	if result.ConversationID == "" {
		result.ConversationID = conversationID
	}
	return replyFrom(&result), nil
}

func replyFrom(r *conversationResponse) *ConversationReply {
	reply := &ConversationReply{ConversationID: r.ConversationID}
	if len(r.Outputs) > 0 {
		reply.Content = r.Outputs[0].Content
	}
	return reply
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrAgentNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s status %d: %v", path, resp.StatusCode, errResp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
