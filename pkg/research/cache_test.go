package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTool struct {
	calls int
	err   error
}

func (c *countingTool) Name() string        { return "counter" }
func (c *countingTool) Description() string { return "counts calls" }

func (c *countingTool) Call(ctx context.Context, input string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return "out:" + input, nil
}

func TestCachedToolMemoizesByInput(t *testing.T) {
	inner := &countingTool{}
	c := NewCachedTool(inner)

	first, err := c.Call(context.Background(), "q")
	require.NoError(t, err)
	second, err := c.Call(context.Background(), "q")
	require.NoError(t, err)
	_, err = c.Call(context.Background(), "other")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "counter", c.Name())
	assert.Equal(t, []ToolCall{
		{Tool: "counter", Input: "q", Output: "out:q"},
		{Tool: "counter", Input: "q", Output: "out:q", Cached: true},
		{Tool: "counter", Input: "other", Output: "out:other"},
	}, c.Calls())
}

func TestCachedToolDoesNotCacheErrors(t *testing.T) {
	inner := &countingTool{err: errors.New("boom")}
	c := NewCachedTool(inner)

	_, err := c.Call(context.Background(), "q")
	require.Error(t, err)
	_, err = c.Call(context.Background(), "q")
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls)
	calls := c.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "boom", calls[0].Error)
	assert.False(t, calls[1].Cached)
}

func TestCachedToolScopedToInstance(t *testing.T) {
	inner := &countingTool{}

	_, _ = NewCachedTool(inner).Call(context.Background(), "q")
	_, _ = NewCachedTool(inner).Call(context.Background(), "q")

	assert.Equal(t, 2, inner.calls)
}
