// Package telemetry wires OpenTelemetry tracing and metrics for docspace.
//
// Traces and metrics are exported over OTLP (gRPC or HTTP/protobuf) to a
// collector. Telemetry is off by default:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sampling_rate: 1.0
//
// Usage:
//
//	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("github.com/fyrsmithlabs/docspace/internal/workspace")
//
// Tests use NewTestTelemetry, which records spans in memory.
package telemetry
