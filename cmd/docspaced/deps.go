package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/blobstore"
	"github.com/fyrsmithlabs/docspace/internal/config"
	"github.com/fyrsmithlabs/docspace/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

// healthCheckKey is looked up by the metadata health check; absence is healthy.
const healthCheckKey = "health.check"

// dependencies holds the stores behind the Coordinator and whatever must be
// released with them.
type dependencies struct {
	meta     metastore.Store
	vectors  vectorstore.Store
	blobs    blobstore.Store
	embedder embeddings.Provider

	natsConn   *nats.Conn
	natsServer *metastore.EmbeddedServer
	logger     *logging.Logger
}

// newLogger maps the file/env logging settings onto logging.Config.
// When telemetry is enabled, logs are also bridged to the global OTel
// LoggerProvider.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := loggingConfig(cfg)
	if err != nil {
		return nil, err
	}
	if logCfg.OTEL {
		return logging.NewLogger(logCfg, global.GetLoggerProvider())
	}
	return logging.NewLogger(logCfg, nil)
}

// loggingConfig maps the "logging" section onto logging.Config. Logs go to
// the OTel pipeline whenever telemetry is enabled.
func loggingConfig(cfg *config.Config) (*logging.Config, error) {
	lc := cfg.Logging
	logCfg := logging.NewDefaultConfig()
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = level
	if lc.Format != "" {
		logCfg.Format = lc.Format
	}
	logCfg.Caller = lc.Caller
	for k, v := range lc.Fields {
		logCfg.Fields[k] = v
	}
	logCfg.Sampling = logging.SamplingConfig{
		Enabled:    lc.Sampling.Enabled,
		Tick:       lc.Sampling.Tick.Duration(),
		Initial:    lc.Sampling.Initial,
		Thereafter: lc.Sampling.Thereafter,
	}
	logCfg.Redaction = logging.RedactionConfig{
		Enabled:  lc.Redaction.Enabled,
		Fields:   lc.Redaction.Fields,
		Patterns: lc.Redaction.Patterns,
	}
	logCfg.OTEL = cfg.Telemetry.Enabled
	return logCfg, nil
}

// openDependencies opens every store. On error, whatever was already opened
// is closed.
func openDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *dependencies, err error) {
	d := &dependencies{logger: logger}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if err := d.openMetadata(ctx, cfg.Metadata); err != nil {
		return nil, err
	}
	logger.Info(ctx, "metadata store ready", zap.String("backend", cfg.Metadata.Backend))

	if err := d.openEmbedder(cfg); err != nil {
		return nil, err
	}
	logger.Info(ctx, "embedding provider ready",
		zap.String("provider", cfg.Embeddings.Provider),
		zap.String("model", d.embedder.Model()),
		zap.Int("dimension", d.embedder.Dimension()))

	d.vectors, err = vectorstore.NewStore(&cfg.VectorStore, d.embedder, logger.Underlying())
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	logger.Info(ctx, "vector store ready", zap.String("provider", cfg.VectorStore.Provider))

	d.blobs, err = openBlobs(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "blob store ready", zap.String("backend", cfg.Blob.Backend))

	return d, nil
}

// openMetadata selects the metadata backend. The jetstream backend either
// dials an external server or runs one in-process.
func (d *dependencies) openMetadata(ctx context.Context, cfg config.MetadataConfig) error {
	switch cfg.Backend {
	case "memory":
		d.meta = metastore.NewMemoryStore()
		return nil

	case "sqlite":
		path, err := config.ExpandPath(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		store, err := metastore.NewSQLiteStore(path)
		if err != nil {
			return fmt.Errorf("opening sqlite metadata store: %w", err)
		}
		d.meta = store
		return nil

	case "redis":
		store, err := metastore.NewRedisStore(ctx, metastore.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password.Value(),
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
		if err != nil {
			return fmt.Errorf("opening redis metadata store: %w", err)
		}
		d.meta = store
		return nil

	case "jetstream":
		url := cfg.JetStream.URL
		if cfg.JetStream.Embedded {
			storeDir, err := config.ExpandPath(cfg.JetStream.StoreDir)
			if err != nil {
				return err
			}
			srv, err := metastore.NewEmbeddedServer(metastore.ServerOptions{
				Port:     -1,
				StoreDir: storeDir,
			}, d.logger.Underlying())
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("starting embedded nats: %w", err)
			}
			d.natsServer = srv
			url = srv.ClientURL()
		}

		nc, err := nats.Connect(url,
			nats.Name("docspaced"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(5),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", url, err)
		}
		d.natsConn = nc

		store, err := metastore.NewJetStreamStore(ctx, nc, metastore.JetStreamConfig{
			Bucket:   cfg.JetStream.Bucket,
			InMemory: cfg.JetStream.InMemory,
		})
		if err != nil {
			return fmt.Errorf("opening jetstream metadata store: %w", err)
		}
		d.meta = store
		return nil

	default:
		return fmt.Errorf("unsupported metadata backend: %s (supported: memory, jetstream, sqlite, redis)", cfg.Backend)
	}
}

// openEmbedder creates the embedding provider and checks that it produces
// vectors of the configured size.
func (d *dependencies) openEmbedder(cfg *config.Config) error {
	cacheDir, err := config.ExpandPath(cfg.Embeddings.CacheDir)
	if err != nil {
		return err
	}
	provider, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:  cfg.Embeddings.Provider,
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey.Value(),
		CacheDir:  cacheDir,
		Dimension: cfg.VectorStore.VectorSize,
	}, d.logger.Underlying())
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	d.embedder = provider

	if dim := provider.Dimension(); dim != cfg.VectorStore.VectorSize {
		return fmt.Errorf("embedding model %s produces %d dimensions but vectorstore.vector_size is %d",
			provider.Model(), dim, cfg.VectorStore.VectorSize)
	}
	return nil
}

func openBlobs(ctx context.Context, cfg config.BlobConfig, logger *logging.Logger) (blobstore.Store, error) {
	switch cfg.Backend {
	case "local", "":
		store, err := blobstore.NewLocalStore(cfg.Path, logger.Underlying())
		if err != nil {
			return nil, fmt.Errorf("opening local blob store: %w", err)
		}
		return store, nil
	case "s3":
		store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:   cfg.Bucket,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
			Prefix:   cfg.Prefix,
		}, logger.Underlying())
		if err != nil {
			return nil, fmt.Errorf("opening s3 blob store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s (supported: local, s3)", cfg.Backend)
	}
}

// healthChecks checks each store with a cheap read.
func (d *dependencies) healthChecks() map[string]httpserver.HealthCheck {
	return map[string]httpserver.HealthCheck{
		"metadata": func(ctx context.Context) error {
			_, err := d.meta.Get(ctx, healthCheckKey)
			if err == nil || errors.Is(err, metastore.ErrNotFound) {
				return nil
			}
			return err
		},
		"vectors": func(ctx context.Context) error {
			_, err := d.vectors.ListCollections(ctx)
			return err
		},
		"blobs": func(ctx context.Context) error {
			_, err := d.blobs.Exists(ctx, healthCheckKey)
			return err
		},
	}
}

// Close releases all resources in reverse order of opening.
func (d *dependencies) Close() {
	ctx := context.Background()
	if d.vectors != nil {
		if err := d.vectors.Close(); err != nil {
			d.logger.Warn(ctx, "closing vector store failed", zap.Error(err))
		}
	}
	if d.embedder != nil {
		if err := d.embedder.Close(); err != nil {
			d.logger.Warn(ctx, "closing embedding provider failed", zap.Error(err))
		}
	}
	if d.meta != nil {
		if err := d.meta.Close(); err != nil {
			d.logger.Warn(ctx, "closing metadata store failed", zap.Error(err))
		}
	}
	if d.natsConn != nil {
		d.natsConn.Close()
	}
	if d.natsServer != nil {
		d.natsServer.Shutdown()
	}
}
