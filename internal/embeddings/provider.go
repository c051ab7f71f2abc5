package embeddings

import (
	"fmt"

	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
	"go.uber.org/zap"
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Model returns the configured model name, recorded on embedded documents.
	Model() string
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" or "tei"
	Provider string
	// Model is the embedding model name
	Model string
	// BaseURL is the TEI URL (only used for TEI provider)
	BaseURL string
	// APIKey is sent as a bearer token to TEI when set
	APIKey string
	// CacheDir is the model cache directory (only used for FastEmbed)
	CacheDir string
	// Dimension overrides the detected dimension for TEI models we don't know.
	Dimension int
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	switch cfg.Provider {
	case "fastembed", "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case "tei":
		svc, err := NewService(Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		dim := cfg.Dimension
		if dim == 0 {
			dim = detectDimensionFromModel(cfg.Model)
		}
		return &teiProvider{Service: svc, dimension: dim}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// teiProvider wraps Service to implement Provider interface.
type teiProvider struct {
	*Service
	dimension int
}

// Dimension returns the embedding dimension based on the configured model.
func (t *teiProvider) Dimension() int {
	return t.dimension
}

// Close is a no-op for TEI since it uses HTTP.
func (t *teiProvider) Close() error {
	return nil
}
