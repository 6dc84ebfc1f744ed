package http

import (
	"github.com/fyrsmithlabs/triaged/internal/telemetry"
	"github.com/fyrsmithlabs/triaged/internal/triage"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response body for GET /ready.
type ReadyResponse struct {
	Status       string `json:"status"`
	Documents    int    `json:"documents,omitempty"`
	VectorSearch bool   `json:"vector_search"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status     string             `json:"status"` // "ok" or "degraded"
	Version    string             `json:"version,omitempty"`
	Statistics triage.Statistics  `json:"statistics"`
	Index      triage.IndexStatus `json:"index"`
	Telemetry  *TelemetryStatus   `json:"telemetry,omitempty"`
}

// TelemetryStatus reports exporter state.
type TelemetryStatus struct {
	Enabled      bool `json:"enabled"`
	LogsExported bool `json:"logs_exported"`
	telemetry.HealthStatus
}

// ScrubRequest is the request body for POST /api/v1/scrub.
type ScrubRequest struct {
	Content string `json:"content"`
}

// ScrubResponse is the response body for POST /api/v1/scrub.
type ScrubResponse struct {
	Content       string   `json:"content"`
	FindingsCount int      `json:"findings_count"`
	Rules         []string `json:"rules,omitempty"`
}
