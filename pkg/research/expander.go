package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/retry"
)

const expandPrompt = `You are an expert at rewriting a user's query into %d distinct, high-quality search queries
that will get the best possible results from a web search engine (Tavily).

Original Query: %s

Return ONLY a newline-separated list of the %d new queries. Do not add any preamble.`

// QueryExpander rewrites one query into several search queries.
type QueryExpander interface {
	Expand(ctx context.Context, query string, fanOut int) ([]string, error)
}

// Expander asks a completion backend for alternative search queries.
type Expander struct {
	Completer clients.Completer
	Options   clients.Options
	// Retry is applied around the completion call. Only rate limits are retried.
	Retry  retry.Linear
	Logger *slog.Logger
}

func NewExpander(completer clients.Completer, opts clients.Options, policy retry.Linear) *Expander {
	if policy.Retryable == nil {
		policy.Retryable = clients.IsRateLimited
	}
	if policy.Service == "" {
		policy.Service = "expander"
	}
	return &Expander{
		Completer: completer,
		Options:   opts,
		Retry:     policy,
		Logger:    slog.Default(),
	}
}

// Expand returns at most fanOut non-blank queries, possibly fewer.
func (e *Expander) Expand(ctx context.Context, query string, fanOut int) ([]string, error) {
	if fanOut <= 0 {
		fanOut = 2
	}
	prompt := fmt.Sprintf(expandPrompt, fanOut, strings.TrimSpace(query), fanOut)

	var raw string
	err := e.Retry.Do(ctx, func(ctx context.Context) error {
		out, err := e.Completer.Generate(ctx, prompt, e.Options)
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query expansion failed: %w", err)
	}

	queries := splitLines(raw, fanOut)
	logging.FromContext(ctx, e.Logger).Info("Generated queries", "query", query, "queries", queries)
	return queries, nil
}
