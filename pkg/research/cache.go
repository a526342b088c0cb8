package research

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/tools"
)

// ToolCall is one recorded invocation of a tool.
type ToolCall struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output"`
	Cached bool   `json:"cached"`
	Error  string `json:"error,omitempty"`
}

// CachedTool memoizes a tool by exact input text. A CachedTool is meant to
// live for a single run; errors are not cached.
type CachedTool struct {
	Tool tools.Tool

	mu    sync.Mutex
	cache map[string]string
	calls []ToolCall
}

var _ tools.Tool = (*CachedTool)(nil)

func NewCachedTool(t tools.Tool) *CachedTool {
	return &CachedTool{Tool: t, cache: make(map[string]string)}
}

func (c *CachedTool) Name() string        { return c.Tool.Name() }
func (c *CachedTool) Description() string { return c.Tool.Description() }

func (c *CachedTool) Call(ctx context.Context, input string) (string, error) {
	c.mu.Lock()
	if out, ok := c.cache[input]; ok {
		c.calls = append(c.calls, ToolCall{Tool: c.Name(), Input: input, Output: out, Cached: true})
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	out, err := c.Tool.Call(ctx, input)

	c.mu.Lock()
	defer c.mu.Unlock()
	call := ToolCall{Tool: c.Name(), Input: input, Output: out}
	if err != nil {
		call.Error = err.Error()
	} else {
		c.cache[input] = out
	}
	c.calls = append(c.calls, call)
	return out, err
}

// Calls returns every recorded call in order.
func (c *CachedTool) Calls() []ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ToolCall(nil), c.calls...)
}
