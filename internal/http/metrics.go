package http

import (
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const httpInstrumentationName = "github.com/fyrsmithlabs/docspace/internal/http"

// HTTPMetrics records request metrics twice: as OTel instruments exported
// over OTLP and as Prometheus collectors served on /metrics.
type HTTPMetrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	requestsTotal  metric.Int64Counter
	requestDur     metric.Float64Histogram
	responseSize   metric.Int64Histogram
	activeRequests metric.Int64UpDownCounter

	promRequests *prometheus.CounterVec
	promDuration *prometheus.HistogramVec
	promInflight prometheus.Gauge
}

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

// NewHTTPMetrics creates a new HTTPMetrics instance and registers its
// Prometheus collectors with reg.
func NewHTTPMetrics(logger *zap.Logger, reg prometheus.Registerer) (*HTTPMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &HTTPMetrics{
		meter:  otel.Meter(httpInstrumentationName),
		logger: logger,
	}
	m.init()
	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) init() {
	var err error

	m.requestsTotal, err = m.meter.Int64Counter(
		"docspace.http.requests_total",
		metric.WithDescription("Total HTTP requests labeled by method, endpoint route and status code."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create requests counter", zap.Error(err))
	}

	m.requestDur, err = m.meter.Float64Histogram(
		"docspace.http.request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds, labeled by method, endpoint and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.responseSize, err = m.meter.Int64Histogram(
		"docspace.http.response_size_bytes",
		metric.WithDescription("HTTP response body size in bytes."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(100, 500, 1000, 5000, 10000, 50000, 100000, 500000),
	)
	if err != nil {
		m.logger.Warn("failed to create response size histogram", zap.Error(err))
	}

	m.activeRequests, err = m.meter.Int64UpDownCounter(
		"docspace.http.active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		m.logger.Warn("failed to create active requests gauge", zap.Error(err))
	}

	m.promRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docspace_http_requests_total",
			Help: "Total HTTP requests by method, endpoint route and status code",
		},
		[]string{"method", "endpoint", "status"},
	)
	m.promDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docspace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: durationBuckets,
		},
		[]string{"method", "endpoint"},
	)
	m.promInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "docspace_http_active_requests",
		Help: "Number of currently active HTTP requests",
	})
}

func (m *HTTPMetrics) register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range []prometheus.Collector{m.promRequests, m.promDuration, m.promInflight} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("registering http collector: %w", err)
		}
	}
	return nil
}

// MetricsMiddleware returns an Echo middleware that records HTTP metrics.
//
// Handler errors are rendered here so the recorded status is the one the
// client receives.
func (m *HTTPMetrics) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := req.Context()

			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, 1)
			}
			m.promInflight.Inc()

			if err := next(c); err != nil {
				c.Error(err)
			}

			duration := time.Since(start)
			status := c.Response().Status
			endpoint := normalizePath(c.Path())

			attrs := metric.WithAttributes(
				attribute.String("method", req.Method),
				attribute.String("endpoint", endpoint),
				attribute.Int("status", status),
			)
			if m.requestsTotal != nil {
				m.requestsTotal.Add(ctx, 1, attrs)
			}
			if m.requestDur != nil {
				m.requestDur.Record(ctx, duration.Seconds(), attrs)
			}
			if m.responseSize != nil {
				m.responseSize.Record(ctx, c.Response().Size, attrs)
			}
			if m.activeRequests != nil {
				m.activeRequests.Add(ctx, -1)
			}

			m.promRequests.WithLabelValues(req.Method, endpoint, strconv.Itoa(status)).Inc()
			m.promDuration.WithLabelValues(req.Method, endpoint).Observe(duration.Seconds())
			m.promInflight.Dec()

			return nil
		}
	}
}

// normalizePath returns the route pattern for labels. echo reports the
// registered pattern ("/api/v1/workspaces/:id"), so IDs never become label
// values. Requests that matched no route are grouped together.
func normalizePath(path string) string {
	if path == "" || path == "/*" {
		return "unmatched"
	}
	return path
}
