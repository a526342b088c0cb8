package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRateLimited = errors.New("rate_limit_exceeded")
	errBoom        = errors.New("boom")
)

func isRateLimited(err error) bool { return errors.Is(err, errRateLimited) }

func fastGovernor(maxRetries int) *Governor {
	return NewGovernor(Config{
		Service:         "test",
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func TestGovernorRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := fastGovernor(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGovernorExhaustsRetries(t *testing.T) {
	calls := 0
	err := fastGovernor(2).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls, "first attempt plus two retries")
}

func TestGovernorPermanentErrorStops(t *testing.T) {
	calls := 0
	err := fastGovernor(5).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return backoff.Permanent(errBoom)
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestGovernorPerCallTimeout(t *testing.T) {
	g := NewGovernor(Config{
		Service:         "test",
		MaxRetries:      1,
		Timeout:         10 * time.Millisecond,
		InitialInterval: time.Millisecond,
	})

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 2, calls)
}

func TestGovernorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := fastGovernor(5).Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestGovernorPacing(t *testing.T) {
	g := NewGovernor(Config{Service: "test", Pacing: 20 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Do(context.Background(), func(ctx context.Context) error { return nil }))
	}

	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestLinearRetriesRateLimits(t *testing.T) {
	unit := 10 * time.Millisecond
	policy := Linear{Service: "test", Attempts: 3, Unit: unit, Retryable: isRateLimited}

	calls := 0
	start := time.Now()
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return errRateLimited
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 3*unit, "waits of 1 and 2 units")
}

func TestLinearDoesNotRetryOtherErrors(t *testing.T) {
	policy := Linear{Service: "test", Attempts: 3, Unit: time.Second, Retryable: isRateLimited}

	calls := 0
	start := time.Now()
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLinearReraisesAfterLastAttempt(t *testing.T) {
	policy := Linear{Service: "test", Attempts: 3, Unit: time.Millisecond, Retryable: isRateLimited}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errRateLimited
	})

	require.ErrorIs(t, err, errRateLimited)
	assert.Equal(t, 3, calls)
}

func TestLinearBackOffSequence(t *testing.T) {
	b := &linearBackOff{unit: 2 * time.Second}
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 6*time.Second, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 2*time.Second, b.NextBackOff())
}
