package workspace

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/blobstore"
	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docspace/internal/workspace"

// Embedder is the part of the embedding service the Coordinator needs.
// Vectors are produced by the vector store, which holds the full embedder.
type Embedder interface {
	// Model names the embedding model, recorded on embedded documents.
	Model() string
	// Dimension is the vector size used for new collections.
	Dimension() int
}

// Deps are the collaborators of a Coordinator. All are required.
type Deps struct {
	Meta     metastore.Store
	Vectors  vectorstore.Store
	Blobs    blobstore.Store
	Embedder Embedder
}

// Options tunes a Coordinator. Zero values select the defaults.
type Options struct {
	Logger *logging.Logger

	VectorDeletePolicy VectorDeletePolicy

	// EmbedOnCreate makes CreateAndEmbedDocument and UploadDocument embed
	// immediately.
	EmbedOnCreate bool

	// BlobDeleteConcurrency bounds the parallel blob deletes of a workspace
	// delete. Default 8.
	BlobDeleteConcurrency int

	// CounterRetries bounds compare-and-swap attempts. Default 5.
	CounterRetries int

	Tracer trace.Tracer
	Meter  metric.Meter

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		VectorDeletePolicy:    VectorDeleteBestEffort,
		EmbedOnCreate:         true,
		BlobDeleteConcurrency: 8,
		CounterRetries:        5,
	}
}

// Coordinator sequences workspace and document operations across the stores.
// It is safe for concurrent use.
type Coordinator struct {
	meta     metastore.Store
	vectors  vectorstore.Store
	blobs    blobstore.Store
	embedder Embedder

	opts   Options
	logger *logging.Logger
	tracer trace.Tracer

	operations      metric.Int64Counter
	bestEffortFails metric.Int64Counter
}

// New creates a Coordinator.
func New(deps Deps, opts Options) (*Coordinator, error) {
	if deps.Meta == nil {
		return nil, errors.New("metadata store is required")
	}
	if deps.Vectors == nil {
		return nil, errors.New("vector store is required")
	}
	if deps.Blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("embedder is required")
	}

	if opts.VectorDeletePolicy == "" {
		opts.VectorDeletePolicy = VectorDeleteBestEffort
	}
	if !opts.VectorDeletePolicy.Valid() {
		return nil, invalid("vector_delete_policy", string(opts.VectorDeletePolicy))
	}
	if opts.BlobDeleteConcurrency <= 0 {
		opts.BlobDeleteConcurrency = 8
	}
	if opts.CounterRetries <= 0 {
		opts.CounterRetries = 5
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(instrumentationName)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(instrumentationName)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewID
	}

	c := &Coordinator{
		meta:     deps.Meta,
		vectors:  deps.Vectors,
		blobs:    deps.Blobs,
		embedder: deps.Embedder,
		opts:     opts,
		logger:   opts.Logger.Named("workspace"),
		tracer:   opts.Tracer,
	}
	c.initMetrics()
	return c, nil
}

func (c *Coordinator) initMetrics() {
	var err error

	c.operations, err = c.opts.Meter.Int64Counter(
		"docspace.workspace.operations_total",
		metric.WithDescription("Coordinator operations by operation and result."),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		c.logger.Warn(context.Background(), "failed to create operations counter", zap.Error(err))
	}

	c.bestEffortFails, err = c.opts.Meter.Int64Counter(
		"docspace.workspace.best_effort_failures_total",
		metric.WithDescription("Vector and blob failures that did not fail the enclosing operation."),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		c.logger.Warn(context.Background(), "failed to create best-effort failure counter", zap.Error(err))
	}
}

func (c *Coordinator) now() time.Time {
	return c.opts.Now().UTC()
}

// start opens a span for a public operation. The returned func ends it and
// records the outcome; call it with the operation's final error.
func (c *Coordinator) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "workspace."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if c.operations != nil {
			c.operations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", op),
				attribute.String("result", result),
			))
		}
		span.End()
	}
}

// bestEffortFailed logs and counts a failure that does not abort the caller.
func (c *Coordinator) bestEffortFailed(ctx context.Context, store, op string, err error, fields ...zap.Field) {
	if c.bestEffortFails != nil {
		c.bestEffortFails.Add(ctx, 1, metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("operation", op),
		))
	}
	trace.SpanFromContext(ctx).AddEvent("best_effort_failure", trace.WithAttributes(
		attribute.String("store", store),
		attribute.String("operation", op),
		attribute.String("error", err.Error()),
	))
	fields = append(fields, zap.String("store", store), zap.String("operation", op), zap.Error(err))
	c.logger.Warn(ctx, "best-effort "+store+" "+op+" failed", fields...)
}
