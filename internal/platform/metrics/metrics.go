package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SessionsStarted    prometheus.Counter
	SessionsCompleted  prometheus.Counter
	SessionsAbandoned  prometheus.Counter
	Evaluations        prometheus.Counter
	ReviewCasesQueued  prometheus.Counter
	ReviewDecisions    prometheus.Counter
	PersistFailures    prometheus.Counter
	EvaluationDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_sessions_started_total",
			Help: "Total number of conversation sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_sessions_completed_total",
			Help: "Total number of conversation sessions reaching the complete phase",
		}),
		SessionsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_sessions_abandoned_total",
			Help: "Total number of conversation sessions abandoned",
		}),
		Evaluations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_evaluations_total",
			Help: "Total number of scheme eligibility evaluations",
		}),
		ReviewCasesQueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_review_cases_queued_total",
			Help: "Total number of cases routed to human review",
		}),
		ReviewDecisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_review_decisions_total",
			Help: "Total number of review decisions recorded",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sevasetu_session_persist_failures_total",
			Help: "Total number of session persistence attempts that exhausted retries",
		}),
		EvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sevasetu_evaluation_duration_seconds",
			Help:    "Wall time of one full eligibility pass over the active schemes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
