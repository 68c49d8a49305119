package enrich

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/neuraletter/neuraletter/internal/store"
	"github.com/neuraletter/neuraletter/pkg/ai"
)

// ExtractionAgentID is the well-known row id of the structured-extraction
// agent. The id is fixed so the pipeline can look the agent up without a
// label join.
const ExtractionAgentID = "ePscUwZlIHIdsfsgerseg235vdaYTVMM"

// ExtractionAgentModel is the model label stored on the extraction agent
// row; distinct from the base model name so it cannot clash with a
// conversational agent using the same model.
const ExtractionAgentModel = "serp-topic-update-agent"

func extractionAgentSpec(model string) ai.AgentSpec {
	return ai.AgentSpec{
		Model:       model,
		Name:        "Topic Search Results Agent",
		Description: "Agent that reads web search results for a topic and extracts detailed, structured points.",
		Instructions: "You are an assistant that receives two inputs: (1) a short textual description of a topic, " +
			"and (2) web search results about that topic (for example, raw JSON returned by a Google Search API). " +
			"Your job is to carefully read the search results and extract detailed, relevant points about the topic.\n" +
			"Return ONLY a single JSON object with EXACTLY this structure: {" +
			"'topic': '<short topic title>', " +
			"'description': '<short restatement of the topic in your own words>', " +
			"'detailed_points': [" +
			"  { 'title': '<point title>', 'summary': '<2-4 sentence explanation>', 'source_url': '<url or null>' }," +
			"  ..." +
			"]} .\n" +
			"Rules:\n" +
			"1. 'detailed_points' MUST be a JSON array where each element is an object with keys: 'title', 'summary', 'source_url'.\n" +
			"2. Use ONLY information supported by the search results. Do NOT invent facts or sources.\n" +
			"3. Ignore results that are clearly off-topic or low quality.\n" +
			"4. All output MUST be valid JSON. No markdown, no comments, no multiple JSON objects, and no prose outside the JSON object.",
		Temperature: 0.4,
		TopP:        0.95,
	}
}

func conversationAgentSpec(model string) ai.AgentSpec {
	return ai.AgentSpec{
		Model:       model,
		Name:        "Chat Summarizer Agent",
		Description: "A simple agent that distills a guided chat into a topic description.",
		Instructions: "You are a chat summarizer agent. Your task is to take the 1st user message, then ask questions to clarify the user's need " +
			"and based on the conversation generate a summary of the discussion so far. " +
			"Instructions to be strictly followed: " +
			"1. CRITICAL: Ask ONLY ONE question per response. Never ask multiple questions at once. " +
			"2. When asking a question, return ONLY a single JSON object like {'question': 'your question here'}. " +
			"When providing the final summary, return ONLY a single JSON object like {'summary': 'your summary here'}. " +
			"Return ONLY valid JSON. No prose. No markdown. No multiple JSON objects. " +
			"3. The user will ask for updates on some topic. Ask relevant questions ONE AT A TIME to get more context about the user's topic. " +
			"4. Do NOT ask questions about the method or delivery format the user would want to receive updates. " +
			"5. Build the conversation naturally by asking follow-up questions based on the user's previous responses. " +
			"6. Ask at least 3-5 questions total before providing the final summary. " +
			"7. Questions should ONLY gather more context about the topic the user wants updates on. Nothing else. " +
			"8. Once you have enough information, provide a concise summary that captures all key points discussed. " +
			"The summary should only include the topic's description; give the summary directly. " +
			"9. REMEMBER: ONE question at a time. Never generate multiple question objects in a single response.",
		Temperature: 0.8,
		TopP:        0.98,
	}
}

// ProvisionExtractionAgent creates (or refreshes) the upstream extraction
// agent and upserts its durable row under the fixed id.
func (s *Service) ProvisionExtractionAgent(ctx context.Context) (*store.Agent, error) {
	handle, err := s.deps.Agents.CreateAgent(ctx, extractionAgentSpec(s.deps.ExtractionModel))
	if err != nil {
		return nil, fmt.Errorf("create extraction agent: %w", err)
	}

	row := &store.Agent{
		ID:          ExtractionAgentID,
		AgentHandle: handle,
		Model:       ExtractionAgentModel,
	}
	if err := s.deps.Store.UpsertAgent(ctx, row); err != nil {
		return nil, fmt.Errorf("save extraction agent: %w", err)
	}
	return row, nil
}

// EnsureConversationAgent returns the conversational agent row for a
// model label, creating agent and row lazily on first use. At most one
// row exists per label.
func (s *Service) EnsureConversationAgent(ctx context.Context, model string) (*store.Agent, error) {
	existing, err := s.deps.Store.GetAgentByModel(ctx, model)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	handle, err := s.deps.Agents.CreateAgent(ctx, conversationAgentSpec(model))
	if err != nil {
		return nil, fmt.Errorf("create conversation agent: %w", err)
	}

	row := &store.Agent{
		ID:          uuid.NewString(),
		AgentHandle: handle,
		Model:       model,
	}
	if err := s.deps.Store.UpsertAgent(ctx, row); err != nil {
		return nil, fmt.Errorf("save conversation agent: %w", err)
	}
	return row, nil
}
