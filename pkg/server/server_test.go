package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/research"
)

// fakeSearchTool returns one fixed result for any query.
type fakeSearchTool struct{}

func (fakeSearchTool) Name() string        { return research.SearchToolName }
func (fakeSearchTool) Description() string { return "fake" }
func (fakeSearchTool) Call(ctx context.Context, input string) (string, error) {
	return `[{"content":"finding for ` + input + `","source":"https://example.com"}]`, nil
}

type stubSearcher struct {
	results []research.SearchResult
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	return s.results, s.err
}

func newTestService(planErr error) *Service {
	completer := clients.CompleterFunc(func(ctx context.Context, prompt string, opts clients.Options) (string, error) {
		if strings.Contains(prompt, "Chief Research Strategist") {
			return "tesla deliveries", planErr
		}
		return "# Report\n\nTesla leads [Source: https://example.com]", nil
	})
	engine := research.NewEngine(completer, research.DefaultRoles(clients.Options{}, fakeSearchTool{}))
	engine.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	s := NewService(engine, &stubSearcher{results: []research.SearchResult{{Content: "c", Source: "s"}}})
	s.LogHandler = nil
	return s
}

func newTestRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(s, nil).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestResearchJobLifecycle(t *testing.T) {
	s := newTestService(nil)
	r := newTestRouter(s)

	w := do(r, http.MethodPost, "/api/research", `{"goal":"Tesla vs Rivian"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var created Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Tesla vs Rivian", created.Goal)
	assert.Len(t, created.Stages, 3)

	s.Wait()

	w = do(r, http.MethodGet, "/api/research/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var job Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, JobCompleted, job.Status)
	assert.Contains(t, job.Report, "# Report")
	assert.Equal(t, []string{"tesla deliveries"}, job.Queries)
	for _, st := range job.Stages {
		assert.Equal(t, research.StatusCompleted, st.Status)
	}

	w = do(r, http.MethodGet, "/api/research/"+created.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	require.NotEmpty(t, logs)
	assert.Equal(t, 1, logs[0].ID)
	assert.Equal(t, created.ID.String(), logs[0].Metadata["job_id"])

	w = do(r, http.MethodGet, "/api/research/"+created.ID.String()+"/report.html", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1")
	assert.Contains(t, w.Body.String(), "Tesla leads")

	w = do(r, http.MethodGet, "/api/research", "")
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)
}

func TestResearchJobFailure(t *testing.T) {
	s := newTestService(errors.New("invalid api key"))
	r := newTestRouter(s)

	w := do(r, http.MethodPost, "/api/research", `{"goal":"g"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	s.Wait()

	job, err := s.GetJob(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, job.Status)
	assert.Contains(t, job.Error, "invalid api key")
	assert.Empty(t, job.Report)
	assert.Equal(t, research.StatusFailed, job.Stages[0].Status)
	assert.Equal(t, research.StatusNotStarted, job.Stages[2].Status)

	w = do(r, http.MethodGet, "/api/research/"+created.ID.String()+"/report.html", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestResearchRequestErrors(t *testing.T) {
	r := newTestRouter(newTestService(nil))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"empty goal", http.MethodPost, "/api/research", `{"goal":"  "}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/research", `{`, http.StatusBadRequest},
		{"bad uuid", http.MethodGet, "/api/research/nope", "", http.StatusBadRequest},
		{"unknown job", http.MethodGet, "/api/research/" + uuid.NewString(), "", http.StatusNotFound},
		{"unknown job logs", http.MethodGet, "/api/research/" + uuid.NewString() + "/logs", "", http.StatusNotFound},
		{"empty query", http.MethodPost, "/api/search", `{"query":""}`, http.StatusBadRequest},
		{"ask disabled", http.MethodPost, "/api/ask", `{"question":"q"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestSearchEndpoint(t *testing.T) {
	r := newTestRouter(newTestService(nil))

	w := do(r, http.MethodPost, "/api/search", `{"query":"ev market"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Results []research.SearchResult `json:"results"`
		Count   int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "s", body.Results[0].Source)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(newTestService(nil))

	w := do(r, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMCPHandleSearch(t *testing.T) {
	s := newTestService(nil)
	m := NewMCPServer(s)

	_, out, err := m.handleSearch(context.Background(), nil, SearchInput{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)

	s.Searcher = &stubSearcher{}
	_, out, err = m.handleSearch(context.Background(), nil, SearchInput{Query: "q"})
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Zero(t, out.Count)

	s.Searcher = &stubSearcher{err: errors.New("search failed")}
	_, _, err = m.handleSearch(context.Background(), nil, SearchInput{Query: "q"})
	assert.ErrorContains(t, err, "search failed")
}

func TestMCPHandleResearch(t *testing.T) {
	m := NewMCPServer(newTestService(nil))

	_, out, err := m.handleResearch(context.Background(), nil, ResearchInput{Goal: "Tesla vs Rivian"})
	require.NoError(t, err)
	assert.Contains(t, out.Report, "# Report")
	assert.Equal(t, []string{"tesla deliveries"}, out.Queries)

	_, _, err = m.handleResearch(context.Background(), nil, ResearchInput{Goal: ""})
	assert.ErrorIs(t, err, ErrInvalidGoal)
}
