package research

import (
	"context"
	"fmt"

	"github.com/mikeboe/research-crew/pkg/clients"
	"github.com/mikeboe/research-crew/pkg/config"
	"github.com/mikeboe/research-crew/pkg/research/tools"
	"github.com/mikeboe/research-crew/pkg/retry"
	"github.com/mikeboe/research-crew/pkg/splitter"
)

// Governors builds one governor per external service from cfg.
func Governors(cfg *config.Config) (completion, search, rerank *retry.Governor) {
	completion = retry.NewGovernor(retry.Config{
		Service:    "completion",
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.RequestTimeout,
		Pacing:     cfg.PacingDelay,
		Classify:   clients.Outcome,
	})
	search = retry.NewGovernor(retry.Config{
		Service:    "search",
		MaxRetries: cfg.SearchMaxRetries,
		Timeout:    cfg.SearchTimeout,
		Pacing:     cfg.SearchPacingDelay,
		Classify:   clients.Outcome,
	})
	rerank = retry.NewGovernor(retry.Config{
		Service:    "rerank",
		MaxRetries: cfg.SearchMaxRetries,
		Timeout:    cfg.SearchTimeout,
		Classify:   clients.Outcome,
	})
	return completion, search, rerank
}

// NewPipelineFromConfig wires the advanced search against the configured
// search and rerank services. completer should already be governed.
func NewPipelineFromConfig(cfg *config.Config, completer clients.Completer, searchGov, rerankGov *retry.Governor) (*Pipeline, error) {
	tavily, err := tools.NewTavilyClient(cfg.TavilyApiKey, cfg.TavilyBaseURL)
	if err != nil {
		return nil, err
	}
	cohere, err := tools.NewCohereClient(cfg.CohereApiKey, cfg.CohereBaseURL, cfg.RerankModel)
	if err != nil {
		return nil, err
	}

	expander := NewExpander(completer, clients.Options{
		Model:       cfg.ExpanderModel,
		Temperature: cfg.ExpanderTemperature,
		MaxTokens:   cfg.AgentMaxTokens,
	}, retry.Linear{
		Service:  "expander",
		Attempts: cfg.ExpanderRetries,
		Unit:     cfg.ExpanderBackoffUnit,
	})

	p := NewPipeline(expander, NewWebRetriever(tavily, searchGov), NewServiceReranker(cohere, rerankGov))
	p.FanOut = cfg.ExpansionFanOut
	p.K = cfg.SearchK
	p.TopM = cfg.RerankTopM
	p.Workers = cfg.SearchWorkers
	return p, nil
}

// New builds the engine and the search pipeline its researcher uses.
func New(ctx context.Context, cfg *config.Config) (*Engine, *Pipeline, error) {
	backend, err := clients.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init completion backend: %w", err)
	}
	completionGov, searchGov, rerankGov := Governors(cfg)
	completer := clients.NewGovernedCompleter(backend, completionGov)

	pipeline, err := NewPipelineFromConfig(cfg, completer, searchGov, rerankGov)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init search pipeline: %w", err)
	}

	overrides, err := config.LoadRoles(cfg.RolesFile)
	if err != nil {
		return nil, nil, err
	}
	roles, err := ApplyRoleOverrides(DefaultRoles(clients.Options{
		Model:       cfg.AgentModel,
		Temperature: cfg.AgentTemperature,
		MaxTokens:   cfg.AgentMaxTokens,
	}, pipeline), overrides)
	if err != nil {
		return nil, nil, err
	}

	engine := NewEngine(completer, roles)
	engine.Excerpter = splitter.NewExcerpter(cfg.MaxExcerptChars)
	return engine, pipeline, nil
}
