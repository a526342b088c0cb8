package clients

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mikeboe/research-crew/pkg/config"
	"github.com/mikeboe/research-crew/pkg/metrics"
)

var (
	// ErrUpstreamUnavailable covers network, auth and other backend failures.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrRateLimited means the backend signalled quota exhaustion; waiting helps.
	ErrRateLimited = errors.New("rate limited")
)

// Options are the sampling parameters of one completion request.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer is the prompt-in/text-out contract of a language-model backend.
type Completer interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string, opts Options) (string, error)

func (f CompleterFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// statusTooMany matches a 429 status code, not any "429" digit run.
var statusTooMany = regexp.MustCompile(`(?i)\b(?:status|code|http|error)\b\D{0,4}\b429\b`)

var rateLimitMarkers = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"quota",
	"resource_exhausted",
}

// IsRateLimited reports whether err is, or looks like, a rate-limit signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if statusTooMany.MatchString(msg) {
		return true
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classify wraps a raw backend error into one of the package error kinds.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsRateLimited(err) {
		return fmt.Errorf("%s: %w: %w", provider, ErrRateLimited, err)
	}
	return fmt.Errorf("%s: %w: %w", provider, ErrUpstreamUnavailable, err)
}

// Outcome maps an error to a metrics outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case IsRateLimited(err):
		return metrics.OutcomeRateLimited
	default:
		return metrics.OutcomeError
	}
}

// New builds the completion backend selected by cfg.CompletionProvider.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.CompletionProvider {
	case config.ProviderGroq, config.ProviderOpenAI:
		return NewLLMCompleter(cfg)
	case config.ProviderGemini:
		return NewGeminiCompleter(ctx, cfg.GoogleApiKey)
	default:
		return nil, fmt.Errorf("invalid completion provider: %s", cfg.CompletionProvider)
	}
}
