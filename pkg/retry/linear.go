package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/metrics"
)

// linearBackOff waits Unit, 2*Unit, 3*Unit, ...
type linearBackOff struct {
	unit time.Duration
	n    int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.unit
}

func (l *linearBackOff) Reset() { l.n = 0 }

// Linear retries only the errors Retryable accepts, with linearly increasing waits.
type Linear struct {
	Service string
	// Attempts is the total number of tries, including the first one.
	Attempts  int
	Unit      time.Duration
	Retryable func(error) bool
	Logger    *slog.Logger
}

// Do runs op. A non-retryable error is returned immediately; a retryable one
// is returned once Attempts tries have been used.
func (l Linear) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := l.Attempts
	if attempts < 1 {
		attempts = 1
	}
	logger := logging.FromContext(ctx, l.Logger)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if l.Retryable == nil || !l.Retryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		metrics.Retries.WithLabelValues(l.Service, "linear").Inc()
		logger.Warn("Rate limit hit, backing off",
			"service", l.Service, "wait", wait, "retry", attempt, "max", attempts-1, "error", err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{unit: l.Unit}, uint64(attempts-1)), ctx)
	return backoff.RetryNotify(operation, policy, notify)
}
