package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/tools"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/metrics"
	"github.com/mikeboe/research-crew/pkg/splitter"
)

// StageStatus is the lifecycle of one stage within a run.
type StageStatus string

const (
	StatusNotStarted StageStatus = "not_started"
	StatusRunning    StageStatus = "running"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
)

// StageState is a snapshot of one stage.
type StageState struct {
	Name     string      `json:"name"`
	Role     string      `json:"role"`
	Status   StageStatus `json:"status"`
	Output   string      `json:"output,omitempty"`
	Error    string      `json:"error,omitempty"`
	Started  time.Time   `json:"started,omitempty"`
	Finished time.Time   `json:"finished,omitempty"`
}

// StageError is returned when a stage fails. Later stages did not run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// RunResult holds everything a run produced. Report is only set when every
// stage completed.
type RunResult struct {
	Goal         string         `json:"goal"`
	Report       string         `json:"report"`
	Stages       []StageState   `json:"stages"`
	Queries      []string       `json:"queries"`
	PlanFallback bool           `json:"plan_fallback"`
	ToolCalls    []ToolCall     `json:"tool_calls"`
	Searches     []SearchReport `json:"searches"`
}

// Stage returns the state of the named stage.
func (r *RunResult) Stage(name string) (StageState, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageState{}, false
}

// Engine runs the stages of a research crew in order, threading each stage's
// output into the stage that depends on it.
type Engine struct {
	Completer     clients.Completer
	Roles         map[string]Role
	Stages        []Stage
	Excerpter     *splitter.Excerpter
	Logger        *slog.Logger
	OnStageUpdate func(state StageState)
}

func NewEngine(completer clients.Completer, roles map[string]Role) *Engine {
	return &Engine{
		Completer: completer,
		Roles:     roles,
		Stages:    DefaultStages(),
		Logger:    slog.Default(),
	}
}

// RunResearch runs the crew and returns the final report.
func (e *Engine) RunResearch(ctx context.Context, goal string) (string, error) {
	res, err := e.Run(ctx, goal)
	if err != nil {
		return "", err
	}
	return res.Report, nil
}

// run carries the per-run state.
type run struct {
	goal    string
	result  *RunResult
	outputs map[string]string

	// per-run tool caches, keyed by role and tool name
	tools     map[string]*CachedTool
	toolOrder []string
	mu        sync.Mutex
}

// Run executes every stage. The first failure stops the run and is returned
// as a *StageError together with the partial result.
func (e *Engine) Run(ctx context.Context, goal string) (*RunResult, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, errors.New("research goal must not be empty")
	}
	if err := validateStages(e.Stages); err != nil {
		return nil, fmt.Errorf("invalid stage graph: %w", err)
	}

	r := &run{
		goal:    goal,
		result:  &RunResult{Goal: goal, Stages: make([]StageState, len(e.Stages))},
		outputs: make(map[string]string, len(e.Stages)),
		tools:   make(map[string]*CachedTool),
	}
	for i, st := range e.Stages {
		r.result.Stages[i] = StageState{Name: st.Name, Role: st.Role, Status: StatusNotStarted}
	}

	ctx = logging.WithLogger(ctx, e.Logger)
	ctx = WithReportSink(ctx, func(rep SearchReport) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.result.Searches = append(r.result.Searches, rep)
	})

	e.Logger.Info("Starting research crew", "goal", goal, "stages", len(e.Stages))

	for i, st := range e.Stages {
		state := &r.result.Stages[i]
		if st.DependsOn != "" {
			if _, ok := r.outputs[st.DependsOn]; !ok {
				return r.result, &StageError{Stage: st.Name, Err: fmt.Errorf("dependency %s has not completed", st.DependsOn)}
			}
		}

		state.Status = StatusRunning
		state.Started = time.Now()
		e.notify(*state)
		e.Logger.Info("Stage started", "stage", st.Name, "role", st.Role)

		output, err := e.runStage(ctx, r, st)
		state.Finished = time.Now()
		elapsed := state.Finished.Sub(state.Started)

		if err != nil {
			state.Status = StatusFailed
			state.Error = err.Error()
			metrics.StageDuration.WithLabelValues(st.Name, string(StatusFailed)).Observe(elapsed.Seconds())
			e.notify(*state)
			e.Logger.Error("Stage failed", "stage", st.Name, "duration", elapsed, "error", err)
			r.result.ToolCalls = r.toolCalls()
			return r.result, &StageError{Stage: st.Name, Err: err}
		}

		state.Status = StatusCompleted
		state.Output = output
		r.outputs[st.Name] = output
		metrics.StageDuration.WithLabelValues(st.Name, string(StatusCompleted)).Observe(elapsed.Seconds())
		e.notify(*state)
		e.Logger.Info("Stage completed", "stage", st.Name, "duration", elapsed, "output_length", len(output))
	}

	last := e.Stages[len(e.Stages)-1].Name
	r.result.Report = r.outputs[last]
	r.result.ToolCalls = r.toolCalls()
	e.Logger.Info("Research crew finished", "report_length", len(r.result.Report))
	return r.result, nil
}

func (e *Engine) notify(state StageState) {
	if e.OnStageUpdate != nil {
		e.OnStageUpdate(state)
	}
}

func (e *Engine) runStage(ctx context.Context, r *run, st Stage) (string, error) {
	role, ok := e.Roles[st.Role]
	if !ok {
		return "", fmt.Errorf("no role %q configured", st.Role)
	}
	upstream := r.outputs[st.DependsOn]

	if st.Name == StageResearch {
		return e.research(ctx, r, role, upstream)
	}

	prompt := role.SystemPrompt() + "\n\n" + st.Prompt(r.goal, upstream)
	return e.Completer.Generate(ctx, prompt, role.Options)
}

// research runs the search tool once per planned query and collates the
// results into the findings blob. It makes no completion call of its own.
func (e *Engine) research(ctx context.Context, r *run, role Role, plan string) (string, error) {
	parsed := ParsePlan(plan, r.goal)
	if parsed.Fallback {
		e.Logger.Warn("Could not read queries from plan, researching the goal directly", "error", parsed.Err)
	}
	r.result.Queries = parsed.Queries
	r.result.PlanFallback = parsed.Fallback

	search, err := r.tool(role, SearchToolName)
	if err != nil {
		return "", err
	}

	sections := make([]string, 0, len(parsed.Queries))
	for _, q := range parsed.Queries {
		e.Logger.Info("Researching query", "query", q)
		out, err := search.Call(ctx, q)
		if err != nil {
			return "", fmt.Errorf("search for %q: %w", q, err)
		}

		var results []SearchResult
		if err := json.Unmarshal([]byte(out), &results); err != nil {
			return "", fmt.Errorf("failed to decode search results for %q: %w", q, err)
		}
		sections = append(sections, e.formatSection(q, results))
	}
	return strings.Join(sections, "\n\n"), nil
}

func (e *Engine) formatSection(query string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString("Query: ")
	b.WriteString(query)
	if len(results) == 0 {
		b.WriteString("\nNo results found.")
		return b.String()
	}
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(FormatResult(e.Excerpter.Excerpt(res.Content), res.Source))
	}
	return b.String()
}

// FormatResult tags content with its source.
func FormatResult(content, source string) string {
	return fmt.Sprintf("%s (Source: %s)", strings.TrimSpace(content), source)
}

// tool returns the named tool of role, wrapped in a per-run cache when the
// role has caching enabled.
func (r *run) tool(role Role, name string) (tools.Tool, error) {
	t, ok := role.Tool(name)
	if !ok {
		return nil, fmt.Errorf("role %s has no %q tool", role.Key, name)
	}
	if !role.CacheEnabled {
		return t, nil
	}
	key := role.Key + "/" + name
	if cached, ok := r.tools[key]; ok {
		return cached, nil
	}
	cached := NewCachedTool(t)
	r.tools[key] = cached
	r.toolOrder = append(r.toolOrder, key)
	return cached, nil
}

func (r *run) toolCalls() []ToolCall {
	var calls []ToolCall
	for _, key := range r.toolOrder {
		calls = append(calls, r.tools[key].Calls()...)
	}
	return calls
}
