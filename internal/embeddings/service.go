package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Config holds configuration for the TEI embedding service.
type Config struct {
	// BaseURL is the base URL for the embedding API
	BaseURL string

	// Model is the embedding model served by the endpoint
	Model string

	// APIKey is the API key (optional for TEI)
	APIKey string

	// Timeout bounds a single embed request. Default: 30s
	Timeout time.Duration

	Logger *zap.Logger
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base URL must be http(s): %q", ErrInvalidConfig, c.BaseURL)
	}
	return nil
}

// Service generates embeddings through a TEI /embed endpoint.
type Service struct {
	config  Config
	client  *http.Client
	metrics *Metrics
	logger  *zap.Logger
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Service{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

// teiRequest is the request body for TEI embed endpoint.
type teiRequest struct {
	Inputs   interface{} `json:"inputs"`
	Truncate bool        `json:"truncate"`
}

// Model returns the configured model name.
func (s *Service) Model() string {
	return s.config.Model
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func(start time.Time) {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), err)
	}(time.Now())

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err = s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingFailed, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) (_ []float32, err error) {
	defer func(start time.Time) {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, err)
	}(time.Now())

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// embed posts inputs (a string or []string) to /embed.
func (s *Service) embed(ctx context.Context, inputs interface{}) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Warn("embedding request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("model", s.config.Model),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}
