// Package config provides configuration loading for docspace.
//
// Configuration comes from three layers, highest precedence first:
// DOCSPACE_* environment variables, a YAML file, and NewDefault.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config holds the complete docspace configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Metadata    MetadataConfig    `koanf:"metadata"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Blob        BlobConfig        `koanf:"blob"`
	Coordinator CoordinatorConfig `koanf:"coordinator"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetadataConfig selects and configures the metadata key-value store.
type MetadataConfig struct {
	// Backend is one of memory, jetstream, sqlite, redis.
	Backend   string          `koanf:"backend"`
	JetStream JetStreamConfig `koanf:"jetstream"`
	SQLite    SQLiteConfig    `koanf:"sqlite"`
	Redis     RedisConfig     `koanf:"redis"`
}

// JetStreamConfig configures the NATS JetStream KV backend.
type JetStreamConfig struct {
	URL    string `koanf:"url"`
	Bucket string `koanf:"bucket"`
	// Embedded starts an in-process NATS server instead of dialing URL.
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`
	InMemory bool   `koanf:"in_memory"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  Secret `koanf:"password"`
	DB        int    `koanf:"db"`
	Namespace string `koanf:"namespace"`
}

// VectorStoreConfig holds vector store provider configuration.
type VectorStoreConfig struct {
	// Provider is chromem (embedded, default) or qdrant.
	Provider   string        `koanf:"provider"`
	VectorSize int           `koanf:"vector_size"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds chromem-go settings.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// EmbeddingsConfig selects the embedding provider.
type EmbeddingsConfig struct {
	// Provider is fastembed (local ONNX, default) or tei.
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// BlobConfig selects the blob store backend.
type BlobConfig struct {
	// Backend is local (default) or s3.
	Backend  string `koanf:"backend"`
	Path     string `koanf:"path"`
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
	Prefix   string `koanf:"prefix"`
}

// CoordinatorConfig tunes the workspace coordinator.
type CoordinatorConfig struct {
	// VectorDeletePolicy is best_effort (default) or strict.
	VectorDeletePolicy    string `koanf:"vector_delete_policy"`
	EmbedOnCreate         bool   `koanf:"embed_on_create"`
	BlobDeleteConcurrency int    `koanf:"blob_delete_concurrency"`
	CounterRetries        int    `koanf:"counter_retries"`
	// RecordEmbedFailure marks a document as error when embedding fails
	// behind an HTTP request. Off by default: the status stays unchanged.
	RecordEmbedFailure bool `koanf:"record_embed_failure"`
}

// LoggingConfig is the file/env view of logging settings; the daemon maps it
// onto logging.Config.
type LoggingConfig struct {
	Level     string             `koanf:"level"`
	Format    string             `koanf:"format"`
	Caller    bool               `koanf:"caller"`
	Fields    map[string]string  `koanf:"fields"`
	Sampling  LogSamplingConfig  `koanf:"sampling"`
	Redaction LogRedactionConfig `koanf:"redaction"`
}

// LogSamplingConfig keeps the first Initial entries with the same level and
// message per Tick, then every Thereafter-th. Errors are never sampled.
type LogSamplingConfig struct {
	Enabled    bool     `koanf:"enabled"`
	Tick       Duration `koanf:"tick"`
	Initial    int      `koanf:"initial"`
	Thereafter int      `koanf:"thereafter"`
}

// LogRedactionConfig masks field values before they reach any log output.
// Fields and Patterns extend the built-in credential rules.
type LogRedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// TelemetryConfig is the file/env view of OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"`
	Protocol     string  `koanf:"protocol"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

// NewDefault returns the configuration used when nothing is overridden.
func NewDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8420,
			ShutdownTimeout: Duration(10 * time.Second),
			MaxUploadBytes:  32 << 20,
		},
		Metadata: MetadataConfig{
			Backend: "jetstream",
			JetStream: JetStreamConfig{
				URL:      "nats://127.0.0.1:4222",
				Bucket:   "docspace",
				Embedded: true,
				StoreDir: "~/.local/share/docspace/nats",
			},
			SQLite: SQLiteConfig{Path: "~/.local/share/docspace/metadata.db"},
			Redis:  RedisConfig{Addr: "127.0.0.1:6379", Namespace: "docspace:"},
		},
		VectorStore: VectorStoreConfig{
			Provider:   "chromem",
			VectorSize: 384,
			Chromem:    ChromemConfig{Path: "~/.local/share/docspace/vectors", Compress: true},
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
		},
		Embeddings: EmbeddingsConfig{
			Provider: "fastembed",
			Model:    "BAAI/bge-small-en-v1.5",
			BaseURL:  "http://localhost:8080",
			CacheDir: "~/.cache/docspace/models",
		},
		Blob: BlobConfig{
			Backend: "local",
			Path:    "~/.local/share/docspace/blobs",
		},
		Coordinator: CoordinatorConfig{
			VectorDeletePolicy:    "best_effort",
			EmbedOnCreate:         true,
			BlobDeleteConcurrency: 8,
			CounterRetries:        5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: true,
			Sampling: LogSamplingConfig{
				Enabled:    true,
				Tick:       Duration(time.Second),
				Initial:    100,
				Thereafter: 10,
			},
			Redaction: LogRedactionConfig{Enabled: true},
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			Endpoint:     "localhost:4317",
			Protocol:     "grpc",
			Insecure:     true,
			ServiceName:  "docspace",
			SamplingRate: 1.0,
		},
	}
}

// Validate checks the aggregate configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}

	switch c.Metadata.Backend {
	case "memory":
	case "jetstream":
		if !c.Metadata.JetStream.Embedded && c.Metadata.JetStream.URL == "" {
			errs = append(errs, errors.New("metadata.jetstream.url is required unless embedded"))
		}
		if c.Metadata.JetStream.Bucket == "" {
			errs = append(errs, errors.New("metadata.jetstream.bucket is required"))
		}
	case "sqlite":
		if c.Metadata.SQLite.Path == "" {
			errs = append(errs, errors.New("metadata.sqlite.path is required"))
		}
	case "redis":
		if c.Metadata.Redis.Addr == "" {
			errs = append(errs, errors.New("metadata.redis.addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("metadata.backend must be one of memory, jetstream, sqlite, redis; got %q", c.Metadata.Backend))
	}

	switch c.VectorStore.Provider {
	case "chromem":
	case "qdrant":
		if c.VectorStore.Qdrant.Host == "" {
			errs = append(errs, errors.New("vectorstore.qdrant.host is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("vectorstore.provider must be chromem or qdrant; got %q", c.VectorStore.Provider))
	}
	if c.VectorStore.VectorSize <= 0 {
		errs = append(errs, errors.New("vectorstore.vector_size must be positive"))
	}

	switch c.Embeddings.Provider {
	case "fastembed":
	case "tei":
		if !strings.HasPrefix(c.Embeddings.BaseURL, "http://") && !strings.HasPrefix(c.Embeddings.BaseURL, "https://") {
			errs = append(errs, fmt.Errorf("embeddings.base_url must be http(s); got %q", c.Embeddings.BaseURL))
		}
	default:
		errs = append(errs, fmt.Errorf("embeddings.provider must be fastembed or tei; got %q", c.Embeddings.Provider))
	}

	switch c.Blob.Backend {
	case "local":
		if c.Blob.Path == "" {
			errs = append(errs, errors.New("blob.path is required for the local backend"))
		}
	case "s3":
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("blob.backend must be local or s3; got %q", c.Blob.Backend))
	}

	switch c.Coordinator.VectorDeletePolicy {
	case "best_effort", "strict":
	default:
		errs = append(errs, fmt.Errorf("coordinator.vector_delete_policy must be best_effort or strict; got %q", c.Coordinator.VectorDeletePolicy))
	}
	if c.Coordinator.BlobDeleteConcurrency <= 0 {
		errs = append(errs, errors.New("coordinator.blob_delete_concurrency must be positive"))
	}
	if c.Coordinator.CounterRetries <= 0 {
		errs = append(errs, errors.New("coordinator.counter_retries must be positive"))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be json or console; got %q", c.Logging.Format))
	}
	if s := c.Logging.Sampling; s.Enabled {
		if s.Tick.Duration() <= 0 {
			errs = append(errs, errors.New("logging.sampling.tick must be positive"))
		}
		if s.Initial <= 0 || s.Thereafter < 0 {
			errs = append(errs, fmt.Errorf("logging.sampling needs initial > 0 and thereafter >= 0; got %d/%d", s.Initial, s.Thereafter))
		}
	}
	for _, p := range c.Logging.Redaction.Patterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("logging.redaction.patterns: %w", err))
		}
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			errs = append(errs, errors.New("telemetry.endpoint is required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http/protobuf; got %q", c.Telemetry.Protocol))
		}
	}
	if c.Telemetry.SamplingRate < 0 || c.Telemetry.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sampling_rate must be within [0,1]; got %v", c.Telemetry.SamplingRate))
	}

	return errors.Join(errs...)
}
