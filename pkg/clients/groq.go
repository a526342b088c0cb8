package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikeboe/research-crew/pkg/config"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// LLMCompleter adapts a langchaingo model to Completer.
type LLMCompleter struct {
	LLM      llms.Model
	Provider string
}

// NewLLMCompleter creates an OpenAI-compatible client for Groq or OpenAI.
func NewLLMCompleter(cfg *config.Config) (*LLMCompleter, error) {
	apiKey := cfg.CompletionApiKey()
	if apiKey == "" {
		return nil, fmt.Errorf("%w: no API key for provider %s", ErrUpstreamUnavailable, cfg.CompletionProvider)
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(cfg.AgentModel),
	}

	baseURL := cfg.CompletionBaseURL
	if baseURL == "" && cfg.CompletionProvider == config.ProviderGroq {
		baseURL = GroqBaseURL
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init %s LLM: %w", cfg.CompletionProvider, err)
	}

	return &LLMCompleter{LLM: llm, Provider: cfg.CompletionProvider}, nil
}

// Generate sends a single-prompt completion.
func (c *LLMCompleter) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var callOpts []llms.CallOption
	if opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(opts.Model))
	}
	callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.LLM, prompt, callOpts...)
	if err != nil {
		return "", classify(c.Provider, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w: empty completion", c.Provider, ErrUpstreamUnavailable)
	}
	return text, nil
}
