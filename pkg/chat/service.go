// Package chat answers one-off questions with a Gemini agent that can call the
// advanced web search.
package chat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/research-crew/pkg/config"
)

const appName = "research-crew"

const instruction = "You are a helpful research assistant. ALWAYS use the advanced_search tool before answering, " +
	"and answer only from what it returns. Cite every fact inline as [Source: <url>]. " +
	"If the search returns nothing useful, say so instead of guessing."

type Service struct {
	Agent  agent.Agent
	Logger *slog.Logger
}

// StreamEvent represents a single event in the answer stream
type StreamEvent struct {
	Type    string      `json:"type"` // "content", "tool_call", "tool_result", "error", "done"
	Payload interface{} `json:"payload"`
}

func NewService(ctx context.Context, cfg *config.Config, searcher Searcher) (*Service, error) {
	if cfg.GoogleApiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}

	modelClient, err := gemini.NewModel(ctx, cfg.ChatModel, &genai.ClientConfig{
		APIKey: cfg.GoogleApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	assistant, err := llmagent.New(llmagent.Config{
		Name:        "research_assistant",
		Model:       modelClient,
		Description: "A research assistant with access to an advanced web search.",
		Instruction: instruction,
		Toolsets: []tool.Toolset{
			NewSearchToolset(searcher),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &Service{Agent: assistant, Logger: slog.Default()}, nil
}

// Ask runs the agent on question in a fresh session and streams its events.
func (s *Service) Ask(ctx context.Context, question string) (iter.Seq2[StreamEvent, error], error) {
	sessionSvc := session.InMemoryService()
	userID := "user"
	sessionID := uuid.NewString()

	if _, err := sessionSvc.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          s.Agent,
		SessionService: sessionSvc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: question}},
	}

	return func(yield func(StreamEvent, error) bool) {
		s.Logger.Info("Starting agent run", "session_id", sessionID)
		runCfg := agent.RunConfig{
			StreamingMode: agent.StreamingModeSSE,
		}

		for event, err := range r.Run(ctx, userID, sessionID, userContent, runCfg) {
			if err != nil {
				s.Logger.Error("Agent runner error", "error", err)
				yield(StreamEvent{Type: "error", Payload: err.Error()}, err)
				return
			}
			if event.LLMResponse.Content == nil {
				continue
			}
			for _, part := range event.LLMResponse.Content.Parts {
				if part.Text != "" {
					if !yield(StreamEvent{Type: "content", Payload: part.Text}, nil) {
						return
					}
				}
				if part.FunctionCall != nil {
					s.Logger.Info("Agent tool call", "tool", part.FunctionCall.Name)
					if !yield(StreamEvent{Type: "tool_call", Payload: part.FunctionCall}, nil) {
						return
					}
				}
				if part.FunctionResponse != nil {
					s.Logger.Info("Agent tool result", "tool", part.FunctionResponse.Name)
					if !yield(StreamEvent{Type: "tool_result", Payload: part.FunctionResponse}, nil) {
						return
					}
				}
			}
		}

		s.Logger.Info("Agent run completed", "session_id", sessionID)
		yield(StreamEvent{Type: "done", Payload: "done"}, nil)
	}, nil
}
