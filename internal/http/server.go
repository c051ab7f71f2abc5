// Package http provides the REST API for docspace.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/logging"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Server provides HTTP endpoints for docspace.
type Server struct {
	echo     *echo.Echo
	coord    Coordinator
	logger   *logging.Logger
	config   *Config
	metrics  *HTTPMetrics
	registry *prometheus.Registry
	checks   map[string]HealthCheck
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes caps multipart upload bodies. Default 32 MiB.
	MaxUploadBytes int64

	// Version is reported by /api/v1/status.
	Version string

	// RecordEmbedFailure sets the document status to error when an embed
	// triggered by a request fails.
	RecordEmbedFailure bool

	// Checks are run by /health, keyed by dependency name.
	Checks map[string]HealthCheck

	// Registry receives the Prometheus collectors served on /metrics.
	// A private registry is created when nil.
	Registry *prometheus.Registry
}

const defaultMaxUploadBytes = 32 << 20

// requestIDPattern matches IDs accepted into the logging context.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewServer creates a new HTTP server.
func NewServer(coord Coordinator, logger *logging.Logger, cfg *Config) (*Server, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	metrics, err := NewHTTPMetrics(logger.Underlying(), registry)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(newWorkspaceCollector(coord, logger)); err != nil {
		return nil, fmt.Errorf("registering workspace collector: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			if !requestIDPattern.MatchString(id) {
				return
			}
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metrics.MetricsMiddleware())

	s := &Server{
		echo:     e,
		coord:    coord,
		logger:   logger.Named("http"),
		config:   cfg,
		metrics:  metrics,
		registry: registry,
		checks:   cfg.Checks,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)

	ws := v1.Group("/workspaces")
	ws.POST("", s.handleCreateWorkspace)
	ws.GET("", s.handleListWorkspaces)
	ws.GET("/:id", s.handleGetWorkspace)
	ws.PATCH("/:id", s.handleUpdateWorkspace)
	ws.DELETE("/:id", s.handleDeleteWorkspace)
	ws.POST("/:id/vector/retry", s.handleRetryVector)
	ws.POST("/:id/recount", s.handleRecount)
	ws.POST("/:id/search", s.handleSearch)

	ws.POST("/:id/documents", s.handleCreateDocument)
	ws.POST("/:id/documents/upload", s.handleUploadDocument)
	ws.GET("/:id/documents", s.handleListDocuments)
	ws.GET("/:id/documents/:docId", s.handleGetDocument)
	ws.GET("/:id/documents/:docId/file", s.handleDownloadDocument)
	ws.DELETE("/:id/documents/:docId", s.handleDeleteDocument)
	ws.POST("/:id/documents/:docId/embed", s.handleEmbedDocument)
	ws.PUT("/:id/documents/:docId/content", s.handleUpdateContent)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleHealth runs the configured checks. Any failing check degrades the
// response to 503.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if len(s.checks) == 0 {
		return c.JSON(http.StatusOK, resp)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp.Services = make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Services[name] = err.Error()
			continue
		}
		resp.Services[name] = "ok"
	}
	if resp.Status != "ok" {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c echo.Context) error {
	counts, err := countWorkspaces(c.Request().Context(), s.coord)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{
		Status:  "ok",
		Version: s.config.Version,
		Counts:  counts,
	})
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
