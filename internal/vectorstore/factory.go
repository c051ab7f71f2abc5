package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/docspace/internal/config"
	"go.uber.org/zap"
)

// NewStore creates a Store based on the configuration.
//
//   - "chromem" (default): embedded ChromemStore, no external deps
//   - "qdrant": QdrantStore, requires an external Qdrant server
//
// Example usage:
//
//	store, err := vectorstore.NewStore(&cfg.VectorStore, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func NewStore(cfg *config.VectorStoreConfig, embedder Embedder, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			VectorSize: cfg.VectorSize,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey.Value(),
			VectorSize: uint64(cfg.VectorSize),
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("unsupported vectorstore provider: %s (supported: chromem, qdrant)", cfg.Provider)
	}
}
