package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/retry"
)

func TestExpandParsesQueries(t *testing.T) {
	tests := []struct {
		name     string
		response string
		fanOut   int
		expected []string
	}{
		{"plain lines", "first query\nsecond query", 2, []string{"first query", "second query"}},
		{"blank lines dropped", "\n  first query  \n\n   \nsecond query\n", 2, []string{"first query", "second query"}},
		{"list markers stripped", "1. first query\n2) second query", 2, []string{"first query", "second query"}},
		{"bullets and quotes", "- \"first query\"\n* second query", 2, []string{"first query", "second query"}},
		{"capped at fan-out", "a\nb\nc\nd", 2, []string{"a", "b"}},
		{"fewer than asked", "only one", 3, []string{"only one"}},
		{"nothing usable", " \n-\n ", 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &recordingCompleter{respond: func(string) (string, error) { return tt.response, nil }}
			e := NewExpander(c, clients.Options{}, retry.Linear{Attempts: 1})

			queries, err := e.Expand(context.Background(), "original", tt.fanOut)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, queries)
			for _, q := range queries {
				assert.NotEmpty(t, strings.TrimSpace(q))
			}
		})
	}
}

func TestExpandPrompt(t *testing.T) {
	c := &recordingCompleter{respond: func(string) (string, error) { return "x", nil }}
	opts := clients.Options{Model: "llama-3.3-70b-versatile", Temperature: 0}
	e := NewExpander(c, opts, retry.Linear{Attempts: 1})

	_, err := e.Expand(context.Background(), "Tesla vs Rivian", 2)

	require.NoError(t, err)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "Original Query: Tesla vs Rivian")
	assert.Contains(t, c.prompts[0], "newline-separated list of the 2 new queries")
	assert.Equal(t, opts, c.opts[0])
}

func TestExpandRetriesRateLimitsLinearly(t *testing.T) {
	unit := 20 * time.Millisecond
	calls := 0
	c := &recordingCompleter{respond: func(string) (string, error) {
		calls++
		if calls <= 2 {
			return "", fmt.Errorf("groq: %w: rate_limit_exceeded", clients.ErrRateLimited)
		}
		return "a\nb", nil
	}}
	e := NewExpander(c, clients.Options{}, retry.Linear{Attempts: 3, Unit: unit})

	start := time.Now()
	queries, err := e.Expand(context.Background(), "q", 2)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, queries)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, elapsed, 3*unit)
}

func TestExpandDoesNotRetryOtherErrors(t *testing.T) {
	boom := fmt.Errorf("groq: %w: invalid api key", clients.ErrUpstreamUnavailable)
	c := &recordingCompleter{respond: func(string) (string, error) { return "", boom }}
	e := NewExpander(c, clients.Options{}, retry.Linear{Attempts: 3, Unit: time.Second})

	start := time.Now()
	_, err := e.Expand(context.Background(), "q", 2)

	require.Error(t, err)
	assert.True(t, errors.Is(err, clients.ErrUpstreamUnavailable))
	assert.Equal(t, 1, c.calls())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestExpandGivesUpAfterLastAttempt(t *testing.T) {
	c := &recordingCompleter{respond: func(string) (string, error) {
		return "", fmt.Errorf("groq: %w", clients.ErrRateLimited)
	}}
	e := NewExpander(c, clients.Options{}, retry.Linear{Attempts: 3, Unit: time.Millisecond})

	_, err := e.Expand(context.Background(), "q", 2)

	assert.ErrorIs(t, err, clients.ErrRateLimited)
	assert.Equal(t, 3, c.calls())
}
