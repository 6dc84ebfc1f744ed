package triage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts answered consultations by severity and outcome
	// (ok or degraded).
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "triage",
			Name:      "turns_total",
			Help:      "Total consultation turns by severity and outcome",
		},
		[]string{"severity", "outcome"},
	)

	// ConsultLogFailuresTotal counts turns whose consultation log write failed.
	ConsultLogFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "triaged",
			Subsystem: "triage",
			Name:      "consultlog_failures_total",
			Help:      "Total consultation log write failures",
		},
	)
)
