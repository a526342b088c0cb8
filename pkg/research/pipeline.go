package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/research-crew/pkg/logging"
	"github.com/mikeboe/research-crew/pkg/metrics"
)

// SearchToolName is the name the search tool is registered under.
const SearchToolName = "Advanced Web Search"

// SearchReport describes one advanced search call.
type SearchReport struct {
	Query     string   `json:"query"`
	Expanded  []string `json:"expanded"`
	Attempted int      `json:"attempted"`
	Failed    int      `json:"failed"`
	Retrieved int      `json:"retrieved"`
	Returned  int      `json:"returned"`
	// PartialFailure is set when at least one sub-query retrieval failed.
	PartialFailure bool `json:"partial_failure"`
	// AllFailed distinguishes "every retrieval failed" from "nothing found".
	AllFailed bool `json:"all_failed"`
}

// Pipeline expands a query, retrieves documents for every expansion, and
// reranks the pooled documents against the original query.
type Pipeline struct {
	Expander  QueryExpander
	Retriever Retriever
	Reranker  Reranker
	FanOut    int
	K         int
	TopM      int
	// Workers > 1 retrieves sub-queries concurrently. Pool order is unchanged.
	Workers  int
	Logger   *slog.Logger
	OnReport func(SearchReport)
}

func NewPipeline(expander QueryExpander, retriever Retriever, reranker Reranker) *Pipeline {
	return &Pipeline{
		Expander:  expander,
		Retriever: retriever,
		Reranker:  reranker,
		FanOut:    2,
		K:         1,
		TopM:      1,
		Workers:   1,
		Logger:    slog.Default(),
	}
}

// Search returns at most TopM results ranked against originalQuery.
func (p *Pipeline) Search(ctx context.Context, originalQuery string) ([]SearchResult, error) {
	results, _, err := p.SearchWithReport(ctx, originalQuery)
	return results, err
}

func (p *Pipeline) SearchWithReport(ctx context.Context, originalQuery string) ([]SearchResult, SearchReport, error) {
	report := SearchReport{Query: originalQuery}
	logger := logging.FromContext(ctx, p.Logger)

	queries, err := p.Expander.Expand(ctx, originalQuery, p.FanOut)
	if err != nil {
		return nil, report, err
	}
	if len(queries) == 0 {
		logger.Warn("Expansion returned no queries, searching with the original", "query", originalQuery)
		queries = []string{strings.TrimSpace(originalQuery)}
	}
	report.Expanded = queries

	pool, failed := p.retrieveAll(ctx, queries)
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	report.Attempted = len(queries)
	report.Failed = failed
	report.Retrieved = len(pool)
	report.PartialFailure = failed > 0
	report.AllFailed = failed == len(queries)
	metrics.SearchDocuments.WithLabelValues("retrieved").Observe(float64(len(pool)))

	if report.AllFailed {
		logger.Warn("All sub-query retrievals failed", "query", originalQuery, "attempted", report.Attempted)
	}
	logger.Info("Total docs retrieved", "query", originalQuery, "count", len(pool))

	var ranked []Document
	if len(pool) > 0 {
		ranked, err = p.Reranker.Rerank(ctx, originalQuery, pool, p.TopM)
		if err != nil {
			return nil, report, err
		}
	}

	// The pool keeps duplicates; the result set does not.
	results := make([]SearchResult, 0, len(ranked))
	seen := make(map[SearchResult]struct{}, len(ranked))
	for _, d := range ranked {
		if p.TopM > 0 && len(results) == p.TopM {
			break
		}
		res := SearchResult{Content: d.Content, Source: d.Source}
		if _, dup := seen[res]; dup {
			continue
		}
		seen[res] = struct{}{}
		results = append(results, res)
	}
	report.Returned = len(results)
	metrics.SearchDocuments.WithLabelValues("reranked").Observe(float64(len(results)))

	if p.OnReport != nil {
		p.OnReport(report)
	}
	reportTo(ctx, report)
	return results, report, nil
}

// retrieveAll pools documents in sub-query order. Failed sub-queries are
// logged and skipped.
func (p *Pipeline) retrieveAll(ctx context.Context, queries []string) ([]Document, int) {
	perQuery := make([][]Document, len(queries))
	failures := make([]bool, len(queries))

	logger := logging.FromContext(ctx, p.Logger)
	retrieve := func(ctx context.Context, i int) {
		logger.Info("Searching", "query", queries[i])
		docs, err := p.Retriever.Retrieve(ctx, queries[i], p.K)
		if err != nil {
			logger.Warn("Sub-query retrieval failed, skipping", "query", queries[i], "error", err)
			failures[i] = true
			return
		}
		perQuery[i] = docs
	}

	if p.Workers <= 1 {
		for i := range queries {
			if ctx.Err() != nil {
				break
			}
			retrieve(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.Workers)
		for i := range queries {
			g.Go(func() error {
				retrieve(gctx, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	var pool []Document
	failed := 0
	for i := range queries {
		if failures[i] {
			failed++
			continue
		}
		pool = append(pool, perQuery[i]...)
	}
	return pool, failed
}

// Name, Description and Call make the pipeline usable as a langchaingo tool.
func (p *Pipeline) Name() string { return SearchToolName }

func (p *Pipeline) Description() string {
	return "Performs an advanced, multi-step search and re-ranking to get the most relevant, " +
		"high-quality information. Input should be a string (the research query)."
}

// Call returns the results as a JSON array of {content, source}.
func (p *Pipeline) Call(ctx context.Context, input string) (string, error) {
	results, err := p.Search(ctx, input)
	if err != nil {
		return "", err
	}
	if results == nil {
		results = []SearchResult{}
	}
	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode search results: %w", err)
	}
	return string(out), nil
}

type reportSinkKey struct{}

// WithReportSink returns a context under which every advanced search reports
// to sink. Used to collect reports for a single run.
func WithReportSink(ctx context.Context, sink func(SearchReport)) context.Context {
	return context.WithValue(ctx, reportSinkKey{}, sink)
}

func reportTo(ctx context.Context, rep SearchReport) {
	if sink, ok := ctx.Value(reportSinkKey{}).(func(SearchReport)); ok && sink != nil {
		sink(rep)
	}
}
