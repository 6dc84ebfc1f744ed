// Package telemetry wires the OpenTelemetry SDK for triaged.
//
// Components create tracers and meters from the otel globals at package
// level. New installs SDK providers exporting over OTLP (gRPC or
// HTTP/protobuf) as the global providers, so those package-level tracers
// start recording without further wiring. When telemetry is disabled the
// globals stay no-op.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, &cfg.Telemetry, logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.WithoutCancel(ctx))
//
// # Configuration
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc          # or http/protobuf
//	  insecure: true          # local endpoints only
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: 15s
//	  shutdown_timeout: 5s
//
// Exporter failures never fail the caller: the instance reports itself
// degraded and the globals keep whatever provider could be built.
//
// # Testing
//
// NewTestTelemetry records spans and metrics in memory. GlobalTestTelemetry
// returns a shared instance installed as the otel globals:
//
//	tt := telemetry.GlobalTestTelemetry()
//	... exercise code ...
//	tt.AssertSpanExists(t, "Service.Chat")
package telemetry
