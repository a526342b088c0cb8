// Package retry wraps calls to external services with pacing, per-call
// timeouts and bounded retries.
//
// Two policies are provided. Governor applies exponential backoff to every
// failure of a service call. Linear is a call-site policy that only retries
// errors its predicate accepts (rate limits) and waits n*Unit after the n-th
// failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/metrics"
)

// Config configures a Governor.
type Config struct {
	// Service labels logs and metrics ("completion", "search", "rerank").
	Service string
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Timeout bounds a single attempt. Zero disables it.
	Timeout time.Duration
	// Pacing is the minimum spacing between consecutive calls. Zero disables it.
	Pacing          time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Classify maps an error to a metrics outcome. Optional.
	Classify func(error) string
}

// Governor serializes pacing and retries for one external service. It is safe
// for concurrent use.
type Governor struct {
	cfg     Config
	limiter *rate.Limiter
	Logger  *slog.Logger
}

// NewGovernor creates a Governor, filling zero intervals with defaults.
func NewGovernor(cfg Config) *Governor {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	return &Governor{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		Logger:  slog.Default(),
	}
}

// Do runs op until it succeeds, returns a permanent error, the context ends,
// or MaxRetries is exhausted. The last error is returned. A nil Governor runs
// op once.
func (g *Governor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if g == nil {
		return op(ctx)
	}
	attempt := 0
	operation := func() error {
		attempt++
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		callCtx := ctx
		if g.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()
		}

		err := op(callCtx)
		g.observe(err)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s call timed out after %v: %w", g.cfg.Service, g.cfg.Timeout, err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.InitialInterval
	b.MaxInterval = g.cfg.MaxInterval
	b.MaxElapsedTime = 0

	notify := func(err error, wait time.Duration) {
		metrics.Retries.WithLabelValues(g.cfg.Service, "exponential").Inc()
		logging.FromContext(ctx, g.Logger).Warn("Retrying external call",
			"service", g.cfg.Service, "attempt", attempt+1, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.cfg.MaxRetries)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}

func (g *Governor) observe(err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		if g.cfg.Classify != nil {
			outcome = g.cfg.Classify(err)
		}
	}
	metrics.ExternalCalls.WithLabelValues(g.cfg.Service, outcome).Inc()
}
