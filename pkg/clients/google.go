package clients

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiCompleter calls the Gemini API directly through genai.
type GeminiCompleter struct {
	Client *genai.Client
}

func NewGeminiCompleter(ctx context.Context, apiKey string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", ErrUpstreamUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiCompleter{Client: client}, nil
}

func (g *GeminiCompleter) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	temperature := float32(opts.Temperature)
	genCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := g.Client.Models.GenerateContent(ctx, opts.Model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}, genCfg)
	if err != nil {
		return "", classify("gemini", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("gemini: %w: empty completion", ErrUpstreamUnavailable)
	}
	return sb.String(), nil
}
