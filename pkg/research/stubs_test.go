package research

import (
	"context"
	"strings"
	"sync"

	"github.com/mikeboe/research-crew/pkg/clients"
)

// recordingCompleter answers prompts with respond and records them.
type recordingCompleter struct {
	mu      sync.Mutex
	respond func(prompt string) (string, error)
	prompts []string
	opts    []clients.Options
}

func (c *recordingCompleter) Generate(ctx context.Context, prompt string, opts clients.Options) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.opts = append(c.opts, opts)
	c.mu.Unlock()
	return c.respond(prompt)
}

func (c *recordingCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// identityExpander returns the query itself as the only expansion.
type identityExpander struct{}

func (identityExpander) Expand(ctx context.Context, query string, fanOut int) ([]string, error) {
	return []string{query}, nil
}

// fixedExpander always returns the same expansions.
type fixedExpander struct {
	queries []string
	err     error
}

func (f fixedExpander) Expand(ctx context.Context, query string, fanOut int) ([]string, error) {
	return f.queries, f.err
}

// stubRetriever serves documents per query and records every call.
type stubRetriever struct {
	mu    sync.Mutex
	docs  map[string][]Document
	fail  map[string]error
	calls []string
}

func (r *stubRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	r.mu.Lock()
	r.calls = append(r.calls, query)
	r.mu.Unlock()
	if err := r.fail[query]; err != nil {
		return nil, err
	}
	docs := r.docs[query]
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// stubReranker passes documents through, or orders them by score when set.
type stubReranker struct {
	score   func(query string, d Document) float64
	err     error
	calls   int
	queries []string
	pools   [][]Document
}

func (r *stubReranker) Rerank(ctx context.Context, query string, docs []Document, topM int) ([]Document, error) {
	r.calls++
	r.queries = append(r.queries, query)
	r.pools = append(r.pools, docs)
	if r.err != nil {
		return nil, r.err
	}
	out := append([]Document(nil), docs...)
	if r.score != nil {
		// stable insertion sort, highest score first
		for i := 1; i < len(out); i++ {
			for j := i; j > 0 && r.score(query, out[j]) > r.score(query, out[j-1]); j-- {
				out[j], out[j-1] = out[j-1], out[j]
			}
		}
	}
	if len(out) > topM {
		out = out[:topM]
	}
	return out, nil
}

func exactMatchScore(query string, d Document) float64 {
	if strings.Contains(d.Content, query) {
		return 1
	}
	return 0
}

func doc(content, source string) Document {
	return Document{Content: content, Source: source, Metadata: map[string]string{"source": source}}
}
