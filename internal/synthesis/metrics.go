package synthesis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GenerationsTotal counts synthesis calls.
// Labels: outcome (ok, timeout, failure)
var GenerationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "triaged",
		Subsystem: "synthesis",
		Name:      "generations_total",
		Help:      "Total number of response syntheses by generation outcome",
	},
	[]string{"outcome"},
)
