package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// TestTelemetry keeps spans and metrics in memory. Pass its Tracer and Meter
// to workspace.Options to assert on Coordinator spans and counters.
type TestTelemetry struct {
	*Telemetry

	recorder *tracetest.SpanRecorder
	reader   *sdkmetric.ManualReader
}

func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	recorder := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	return &TestTelemetry{
		Telemetry: &Telemetry{
			config:         cfg,
			logger:         zap.NewNop(),
			tracerProvider: trace.NewTracerProvider(trace.WithSpanProcessor(recorder)),
			meterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		},
		recorder: recorder,
		reader:   reader,
	}
}

// Spans returns ended spans in end order.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.recorder.Ended()
}

// SpanByName returns the first ended span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	for _, s := range t.recorder.Ended() {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		var names []string
		for _, s := range t.recorder.Ended() {
			names = append(names, s.Name())
		}
		tb.Errorf("span %q not recorded; have %v", name, names)
	}
}

// AssertSpanAttribute compares against the attribute's Go value (string,
// int64, float64 or bool).
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, spanName, key string, want any) {
	tb.Helper()
	span := t.SpanByName(spanName)
	if span == nil {
		tb.Errorf("span %q not recorded", spanName)
		return
	}
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			if got := kv.Value.AsInterface(); got != want {
				tb.Errorf("span %q attribute %s = %v, want %v", spanName, key, got, want)
			}
			return
		}
	}
	tb.Errorf("span %q has no attribute %s", spanName, key)
}

// Counter collects now and sums the int64 counter called name over the data
// points carrying every attr, e.g.
// Counter(ctx, "docspace.workspace.best_effort_failures_total", attribute.String("store", "vector")).
func (t *TestTelemetry) Counter(ctx context.Context, name string, attrs ...attribute.KeyValue) (int64, error) {
	var rm metricdata.ResourceMetrics
	if err := t.reader.Collect(ctx, &rm); err != nil {
		return 0, err
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if m.Name != name || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if hasAll(dp.Attributes, attrs) {
					total += dp.Value
				}
			}
		}
	}
	return total, nil
}

func hasAll(set attribute.Set, attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}
