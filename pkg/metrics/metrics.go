// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExternalCalls counts attempts against completion/search/rerank backends.
	ExternalCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_crew_external_calls_total",
			Help: "External service call attempts by service and outcome",
		},
		[]string{"service", "outcome"},
	)

	// Retries counts waits scheduled by a retry policy.
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_crew_retries_total",
			Help: "Retries by service and policy (exponential, linear)",
		},
		[]string{"service", "policy"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_crew_stage_duration_seconds",
			Help:    "Duration of crew stages",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"stage", "status"},
	)

	// SearchDocuments observes pool sizes of the advanced search pipeline.
	SearchDocuments = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_crew_search_documents",
			Help:    "Documents per advanced search, before (retrieved) and after (reranked) reranking",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
		[]string{"phase"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)
