// Docspaced is the docspace daemon: a REST API over workspaces and their
// documents, backed by a metadata store, a vector store and a blob store.
//
// Configuration is read from ~/.config/docspace/config.yaml (or --config)
// and DOCSPACE_* environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded NATS, chromem, local blobs, FastEmbed)
//	docspaced
//
//	# Override via environment
//	DOCSPACE_SERVER_PORT=9000 DOCSPACE_METADATA_BACKEND=sqlite docspaced
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/config"
	httpserver "github.com/fyrsmithlabs/docspace/internal/http"
	"github.com/fyrsmithlabs/docspace/internal/telemetry"
	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docspaced",
		Short:         "Run the docspace workspace daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			return run(ctx, cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/docspace/config.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "docspaced by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	})
	return root
}

// run starts the daemon and blocks until ctx is cancelled or the HTTP
// server fails.
//
//  1. Initializes logger and telemetry
//  2. Opens the metadata, vector and blob stores and the embedder
//  3. Builds the workspace Coordinator
//  4. Serves the HTTP API
//  5. Shuts down gracefully on cancellation
func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(ctx, telemetry.FromConfig(cfg.Telemetry, version), logger.Underlying())
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting docspaced",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("metadata_backend", cfg.Metadata.Backend),
		zap.String("vector_provider", cfg.VectorStore.Provider),
		zap.String("embedding_provider", cfg.Embeddings.Provider),
		zap.String("blob_backend", cfg.Blob.Backend),
	)

	deps, err := openDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing dependencies: %w", err)
	}
	defer deps.Close()

	coord, err := workspace.New(workspace.Deps{
		Meta:     deps.meta,
		Vectors:  deps.vectors,
		Blobs:    deps.blobs,
		Embedder: deps.embedder,
	}, workspace.Options{
		Logger:                logger,
		VectorDeletePolicy:    workspace.VectorDeletePolicy(cfg.Coordinator.VectorDeletePolicy),
		EmbedOnCreate:         cfg.Coordinator.EmbedOnCreate,
		BlobDeleteConcurrency: cfg.Coordinator.BlobDeleteConcurrency,
		CounterRetries:        cfg.Coordinator.CounterRetries,
	})
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	if tel.Health().Degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without full export")
	}

	srv, err := httpserver.NewServer(coord, logger, &httpserver.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		MaxUploadBytes:     cfg.Server.MaxUploadBytes,
		Version:            version,
		Checks:             deps.healthChecks(),
		RecordEmbedFailure: cfg.Coordinator.RecordEmbedFailure,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-serverErrors; err != nil {
		return err
	}
	logger.Info(shutdownCtx, "docspaced stopped")
	return nil
}
