package vectorindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RebuildsTotal counts index builds.
	// Labels: result (success, failure)
	RebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "index",
			Name:      "rebuilds_total",
			Help:      "Total number of vector index builds by result",
		},
		[]string{"result"},
	)

	// Chunks is the number of chunks in the served index.
	Chunks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "triaged",
			Subsystem: "index",
			Name:      "chunks",
			Help:      "Number of chunks in the current vector index",
		},
	)

	// QueryCacheTotal counts query embedding cache lookups.
	// Labels: result (hit, miss)
	QueryCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "index",
			Name:      "query_cache_total",
			Help:      "Query embedding cache lookups by result",
		},
		[]string{"result"},
	)
)
