package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Audit write results.
const (
	AuditWritten = "written"
	AuditFailed  = "failed"
	AuditDropped = "dropped"
)

var (
	// SearchesTotal counts gateway searches by outcome.
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		},
		[]string{"outcome"},
	)

	// EngineDuration observes engine call latency by backend.
	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Search engine request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	// AuditWritesTotal counts audit records by sink and result.
	AuditWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Total number of audit records by sink and result",
		},
		[]string{"sink", "result"},
	)
)

func init() {
	prometheus.MustRegister(SearchesTotal, EngineDuration, AuditWritesTotal)
}
