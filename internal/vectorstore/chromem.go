package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const providerChromem = "chromem"

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("docspace.vectorstore.chromem")

// ChromemConfig holds configuration for chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/docspace/vectors"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	// Default: 384 (for FastEmbed bge-small-en-v1.5)
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/docspace/vectors"
	}
	if c.VectorSize == 0 {
		c.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements the Store interface using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. Collections live in memory and are persisted to gob files.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a new ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandChromemPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("ChromemStore initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
	)

	return &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts Embedder to chromem.EmbeddingFunc.
//
// It must always be passed to GetCollection/CreateCollection: chromem-go falls
// back to its OpenAI embedder when nil is passed for persisted collections.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) collection(name string) *chromem.Collection {
	return s.db.GetCollection(name, s.embeddingFunc())
}

// AddDocuments embeds docs and upserts them into their existing collection.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.AddDocuments")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerChromem, "add_documents", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	collectionName, err := validateBatch(docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("collection", collectionName))

	collection := s.collection(collectionName)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
	}

	ids = make([]string, len(docs))
	texts := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		texts[i] = doc.Content
	}

	// Embed in one batch so the collection never calls the embedder per document.
	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		err = fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  convertMetadataToString(doc.Metadata),
			Embedding: embeddings[i],
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("adding documents: %w", err)
	}

	DocumentsUpserted.WithLabelValues(providerChromem).Add(float64(len(ids)))
	span.SetAttributes(attribute.Int("documents_added", len(ids)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", collectionName),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// SearchInCollection performs similarity search in a specific collection.
func (s *ChromemStore) SearchInCollection(ctx context.Context, collectionName string, query string, k int, filters map[string]interface{}) (_ []SearchResult, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.SearchInCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerChromem, "search", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := s.collection(collectionName)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
	}

	// chromem requires nResults <= doc count
	docCount := collection.Count()
	if docCount == 0 {
		return []SearchResult{}, nil
	}
	if k > docCount {
		k = docCount
	}

	results, err := collection.Query(ctx, query, k, convertMetadataToString(filters), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", collectionName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: convertMetadataFromString(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("searched chromem collection",
		zap.String("collection", collectionName),
		zap.Int("k", k),
		zap.Int("results", len(searchResults)),
	)

	return searchResults, nil
}

// DeleteDocumentsFromCollection deletes documents by their IDs from a specific collection.
func (s *ChromemStore) DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteDocumentsFromCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerChromem, "delete_documents", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("id_count", len(ids)),
	)

	if len(ids) == 0 {
		return nil
	}

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	collection := s.collection(collectionName)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
	}

	var failures []string
	for _, id := range ids {
		if err := collection.Delete(ctx, nil, nil, id); err != nil {
			span.RecordError(err)
			s.logger.Error("failed to delete document",
				zap.String("collection", collectionName),
				zap.String("id", id),
				zap.Error(err),
			)
			failures = append(failures, id)
		}
	}

	if len(failures) > 0 {
		span.SetStatus(codes.Error, "partial deletion failure")
		return fmt.Errorf("failed to delete %d of %d documents: %v", len(failures), len(ids), failures)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("deleted documents from chromem",
		zap.String("collection", collectionName),
		zap.Int("count", len(ids)),
	)

	return nil
}

// CreateCollection creates a new collection.
func (s *ChromemStore) CreateCollection(ctx context.Context, collectionName string, vectorSize int) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CreateCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerChromem, "create_collection", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	// Accept 0 as "use configured default"
	if vectorSize == 0 {
		vectorSize = s.config.VectorSize
	}
	if vectorSize != s.config.VectorSize {
		return fmt.Errorf("%w: vector size %d does not match configured size %d",
			ErrInvalidConfig, vectorSize, s.config.VectorSize)
	}

	// chromem-go's CreateCollection is idempotent, so check first.
	if s.collection(collectionName) != nil {
		return ErrCollectionExists
	}

	metadata := map[string]string{"vector_size": fmt.Sprintf("%d", vectorSize)}
	if _, err := s.db.CreateCollection(collectionName, metadata, s.embeddingFunc()); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return ErrCollectionExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Info("created chromem collection",
		zap.String("collection", collectionName),
		zap.Int("vector_size", vectorSize),
	)

	return nil
}

// DeleteCollection deletes a collection and all its documents.
func (s *ChromemStore) DeleteCollection(ctx context.Context, collectionName string) (err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.DeleteCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerChromem, "delete_collection", start, err) }(time.Now())

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	if err := s.db.DeleteCollection(collectionName); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Info("deleted chromem collection",
		zap.String("collection", collectionName),
	)

	return nil
}

// CollectionExists checks if a collection exists.
func (s *ChromemStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.CollectionExists")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}

	exists := s.collection(collectionName) != nil
	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// ListCollections returns a list of all collection names.
func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.ListCollections")
	defer span.End()

	collectionsMap := s.db.ListCollections()
	names := make([]string, 0, len(collectionsMap))
	for name := range collectionsMap {
		names = append(names, name)
	}

	span.SetAttributes(attribute.Int("collection_count", len(names)))
	span.SetStatus(codes.Ok, "success")

	return names, nil
}

// GetCollectionInfo returns metadata about a collection.
func (s *ChromemStore) GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.GetCollectionInfo")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}

	collection := s.collection(collectionName)
	if collection == nil {
		span.SetStatus(codes.Error, "collection not found")
		return nil, ErrCollectionNotFound
	}

	info := &CollectionInfo{
		Name:       collectionName,
		PointCount: collection.Count(),
		VectorSize: s.config.VectorSize,
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")

	return info, nil
}

// Close closes the ChromemStore.
// chromem-go persists on every write, so there is nothing to flush.
func (s *ChromemStore) Close() error {
	s.logger.Info("chromem store closed")
	return nil
}

// convertMetadataToString converts map[string]interface{} to map[string]string.
func convertMetadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = fmt.Sprintf("%d", val)
		case int64:
			result[k] = fmt.Sprintf("%d", val)
		case float64:
			result[k] = fmt.Sprintf("%f", val)
		case bool:
			result[k] = fmt.Sprintf("%t", val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

// convertMetadataFromString converts map[string]string back to map[string]interface{}.
func convertMetadataFromString(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}

	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}

// Ensure ChromemStore implements Store interface.
var _ Store = (*ChromemStore)(nil)
