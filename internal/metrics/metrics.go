// Package metrics exposes Prometheus instrumentation for the submission pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodflow_submissions_total",
			Help: "Total number of mood submissions by final status",
		},
		[]string{"status"}, // "completed", "degraded", "rejected", "canceled"
	)

	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "moodflow_submission_duration_seconds",
			Help:    "End-to-end duration of a mood submission",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodflow_llm_requests_total",
			Help: "Language-model completions by purpose and outcome",
		},
		[]string{"purpose", "outcome"}, // purpose: "analysis", "summary"
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodflow_llm_request_duration_seconds",
			Help:    "Duration of language-model completions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"purpose"},
	)

	RecommendationFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodflow_recommendation_fetches_total",
			Help: "Recommendation API fetches by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	RecommendationItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moodflow_recommendation_items",
			Help:    "Number of items returned per recommendation fetch",
			Buckets: []float64{0, 1, 2, 3, 4},
		},
		[]string{"category"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodflow_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
