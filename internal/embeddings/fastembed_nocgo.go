//go:build !cgo

package embeddings

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed is not available (requires CGO).
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use TEI provider instead)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
	Logger    *zap.Logger
}

// FastEmbedProvider is a stub for non-CGO builds.
type FastEmbedProvider struct{}

// NewFastEmbedProvider returns an error when CGO is not available.
func NewFastEmbedProvider(_ FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Model() string { return "" }

func (p *FastEmbedProvider) Close() error { return nil }
