package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-crew/pkg/clients"
)

func TestTavilySearch(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"query":"go","results":[
			{"title":"Go","url":"https://go.dev","content":"The Go language","score":0.9},
			{"title":"Extra","url":"https://example.com","content":"extra","score":0.1}]}`))
	}))
	defer srv.Close()

	c, err := NewTavilyClient("tvly-test", srv.URL+"/")
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "go", 1)
	require.NoError(t, err)

	assert.Equal(t, "go", got.Query)
	assert.Equal(t, 1, got.MaxResults)
	require.Len(t, results, 1)
	assert.Equal(t, "https://go.dev", results[0].URL)
	assert.Equal(t, "The Go language", results[0].Content)
}

func TestTavilyErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		_, err := NewTavilyClient("", "")
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c, _ := NewTavilyClient("k", srv.URL)
		_, err := c.Search(context.Background(), "q", 1)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
		assert.ErrorIs(t, err, clients.ErrRateLimited)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, _ := NewTavilyClient("k", srv.URL)
		_, err := c.Search(context.Background(), "q", 1)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
		assert.NotErrorIs(t, err, clients.ErrRateLimited)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("bad json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer srv.Close()

		c, _ := NewTavilyClient("k", srv.URL)
		_, err := c.Search(context.Background(), "q", 1)
		assert.ErrorIs(t, err, ErrSearchUnavailable)
	})
}

func TestCohereRerank(t *testing.T) {
	var got cohereRerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer co-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"x","results":[
			{"index":2,"relevance_score":0.98},
			{"index":7,"relevance_score":0.5},
			{"index":0,"relevance_score":0.12}]}`))
	}))
	defer srv.Close()

	c, err := NewCohereClient("co-test", srv.URL, "")
	require.NoError(t, err)

	results, err := c.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "rerank-english-v3.0", got.Model)
	assert.Equal(t, 2, got.TopN)
	assert.Equal(t, []string{"a", "b", "c"}, got.Documents)
	assert.Equal(t, []RerankResult{
		{Index: 2, RelevanceScore: 0.98},
		{Index: 0, RelevanceScore: 0.12},
	}, results)
}

func TestCohereRerankEmptySkipsCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c, _ := NewCohereClient("k", srv.URL, "")
	results, err := c.Rerank(context.Background(), "q", nil, 1)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}
