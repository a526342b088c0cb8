package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mikeboe/research-crew/pkg/chat"
	"github.com/mikeboe/research-crew/pkg/research"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidGoal = errors.New("goal must not be empty")
	ErrEmptyQuery  = errors.New("query must not be empty")
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Service runs research jobs in the background and keeps them in memory for
// the lifetime of the process.
type Service struct {
	Engine   *research.Engine
	Searcher chat.Searcher
	// LogHandler receives a copy of every job log record. Optional.
	LogHandler slog.Handler

	mu    sync.RWMutex
	jobs  map[uuid.UUID]*jobRecord
	order []uuid.UUID
	wg    sync.WaitGroup
}

type jobRecord struct {
	job  Job
	logs []LogEntry
}

func NewService(engine *research.Engine, searcher chat.Searcher) *Service {
	return &Service{
		Engine:     engine,
		Searcher:   searcher,
		LogHandler: slog.Default().Handler(),
		jobs:       make(map[uuid.UUID]*jobRecord),
	}
}

type Job struct {
	ID           uuid.UUID               `json:"id"`
	Goal         string                  `json:"goal"`
	Status       string                  `json:"status"`
	Report       string                  `json:"report,omitempty"`
	Error        string                  `json:"error,omitempty"`
	Stages       []research.StageState   `json:"stages"`
	Queries      []string                `json:"queries,omitempty"`
	PlanFallback bool                    `json:"plan_fallback"`
	Searches     []research.SearchReport `json:"searches,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

type CreateJobRequest struct {
	Goal string `json:"goal"`
}

type LogEntry struct {
	ID        int                    `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata"`
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		return nil, ErrInvalidGoal
	}

	now := time.Now()
	job := Job{
		ID:        uuid.New(),
		Goal:      goal,
		Status:    JobPending,
		Stages:    make([]research.StageState, 0, len(s.Engine.Stages)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, st := range s.Engine.Stages {
		job.Stages = append(job.Stages, research.StageState{Name: st.Name, Role: st.Role, Status: research.StatusNotStarted})
	}

	s.mu.Lock()
	s.jobs[job.ID] = &jobRecord{job: job}
	s.order = append(s.order, job.ID)
	s.mu.Unlock()

	// Start background worker
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, goal)
	}()

	snapshot := cloneJob(job)
	return &snapshot, nil
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	job := cloneJob(rec.job)
	return &job, nil
}

// ListJobs returns the most recent jobs first.
func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0 && len(jobs) < 50; i-- {
		jobs = append(jobs, cloneJob(s.jobs[s.order[i]].job))
	}
	return jobs, nil
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return append([]LogEntry(nil), rec.logs...), nil
}

// Search runs one advanced search outside of any job.
func (s *Service) Search(ctx context.Context, query string) ([]research.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return s.Searcher.Search(ctx, query)
}

// RunResearch runs the crew synchronously, without creating a job.
func (s *Service) RunResearch(ctx context.Context, goal string) (*research.RunResult, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, ErrInvalidGoal
	}
	return s.Engine.Run(ctx, goal)
}

func (s *Service) appendLog(jobID uuid.UUID, entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[jobID]
	if !ok {
		return
	}
	entry.ID = len(rec.logs) + 1
	rec.logs = append(rec.logs, entry)
}

func (s *Service) update(jobID uuid.UUID, fn func(job *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.jobs[jobID]; ok {
		fn(&rec.job)
		rec.job.UpdatedAt = time.Now()
	}
}

func (s *Service) runWorker(jobID uuid.UUID, goal string) {
	ctx := context.Background()

	s.update(jobID, func(job *Job) { job.Status = JobRunning })

	// Configure engine with job logger
	jobLogger := slog.New(NewJobLogHandler(s, jobID, s.LogHandler)).With("job_id", jobID.String())

	engine := *s.Engine
	engine.Logger = jobLogger
	engine.OnStageUpdate = func(state research.StageState) {
		s.update(jobID, func(job *Job) {
			for i := range job.Stages {
				if job.Stages[i].Name == state.Name {
					job.Stages[i] = state
					return
				}
			}
			job.Stages = append(job.Stages, state)
		})
	}

	res, err := engine.Run(ctx, goal)
	s.update(jobID, func(job *Job) {
		if res != nil {
			job.Stages = res.Stages
			job.Queries = res.Queries
			job.PlanFallback = res.PlanFallback
			job.Searches = res.Searches
		}
		if err != nil {
			job.Status = JobFailed
			job.Error = err.Error()
			return
		}
		job.Status = JobCompleted
		job.Report = res.Report
	})

	if err != nil {
		jobLogger.Error("Research failed", "error", err)
		return
	}
	jobLogger.Info("Research completed", "report_length", len(res.Report))
}

func cloneJob(j Job) Job {
	j.Stages = append([]research.StageState(nil), j.Stages...)
	j.Queries = append([]string(nil), j.Queries...)
	j.Searches = append([]research.SearchReport(nil), j.Searches...)
	return j
}
