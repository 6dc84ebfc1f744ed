package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts retrievals by the strategy that answered them.
	// Labels: strategy (vector, keyword)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of retrievals by answering strategy",
		},
		[]string{"strategy"},
	)

	// DegradationsTotal counts vector searches that failed over to keyword search.
	DegradationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "retrieval",
			Name:      "degradations_total",
			Help:      "Total number of vector search failures answered by keyword search",
		},
	)

	// Duration tracks end-to-end retrieval latency.
	Duration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "triaged",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Duration of retrieval in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
