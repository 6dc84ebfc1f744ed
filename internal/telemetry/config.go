package telemetry

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported OTLP protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"`
	Insecure       bool           `koanf:"insecure"` // plaintext; only allowed for local endpoints
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Logs           LogsConfig     `koanf:"logs"`
	// ShutdownTimeout bounds the final flush when the caller sets no deadline.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SamplingConfig controls trace sampling.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// LogsConfig controls log export through the zap bridge. Logs are only
// exported over gRPC.
type LogsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// NewDefaultConfig returns defaults. Telemetry is off until a collector is
// configured.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		Insecure:       true,
		ServiceName:    "triaged",
		ServiceVersion: "dev",
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks configuration for errors. A disabled config is always
// valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required when telemetry is enabled"))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required when telemetry is enabled"))
	}
	switch c.Protocol {
	case "", ProtocolGRPC, ProtocolHTTP:
	default:
		errs = append(errs, fmt.Errorf("protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol))
	}
	if c.Insecure && c.Endpoint != "" && !c.isLocalEndpoint() {
		errs = append(errs, errors.New("insecure connections to remote endpoints are not allowed; set insecure=false or use a local endpoint"))
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		errs = append(errs, fmt.Errorf("sampling.rate must be between 0 and 1, got %g", c.Sampling.Rate))
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		errs = append(errs, errors.New("metrics.export_interval must be positive when metrics are enabled"))
	}
	if c.Logs.Enabled && c.Protocol == ProtocolHTTP {
		errs = append(errs, fmt.Errorf("logs export requires protocol %s", ProtocolGRPC))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// isLocalEndpoint reports whether the endpoint host is loopback.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)

	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]"); idx != -1 {
			host = host[1:idx]
		}
	} else if strings.Count(host, ":") == 1 {
		host = host[:strings.LastIndex(host, ":")]
	}

	return host == "localhost" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.")
}

// stripScheme removes http:// or https:// from an endpoint. The OTLP
// exporters expect host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
