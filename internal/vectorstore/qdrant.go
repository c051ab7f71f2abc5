package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerQdrant = "qdrant"

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("docspace.vectorstore.qdrant")

// pointNamespace seeds deterministic point IDs.
var pointNamespace = uuid.MustParse("6f0e7c1a-4b8e-5d2a-9c3f-1e2d3c4b5a69")

// QdrantConfig holds configuration for Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// VectorSize is the dimensionality of embeddings.
	// MUST match Embedder output dimensions.
	VectorSize uint64

	// Distance is the similarity metric for vector search.
	// Options: Cosine (default), Euclid, Dot
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for gRPC connection.
	UseTLS bool

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff).
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (to handle large documents)
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening circuit.
	// Default: 5
	CircuitBreakerThreshold int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts, temporary unavailability.
// Returns false for invalid config, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// isAlreadyExists reports whether Qdrant rejected a create because the
// collection is present. Older servers answer InvalidArgument with a message.
func isAlreadyExists(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	if st.Code() == grpccodes.AlreadyExists {
		return true
	}
	return strings.Contains(strings.ToLower(st.Message()), "already exists")
}

func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	if st.Code() == grpccodes.NotFound {
		return true
	}
	return strings.Contains(strings.ToLower(st.Message()), "doesn't exist") ||
		strings.Contains(strings.ToLower(st.Message()), "not found")
}

// PointID maps a document ID to its Qdrant point ID.
//
// UUIDs are used as-is; anything else is hashed into a UUIDv5 so upserting
// the same document twice replaces the existing point.
func PointID(documentID string) string {
	if _, err := uuid.Parse(documentID); err == nil {
		return documentID
	}
	return uuid.NewSHA1(pointNamespace, []byte(documentID)).String()
}

// QdrantStore is a Store implementation using Qdrant's native gRPC client.
//
// Key features:
//   - Native gRPC transport (port 6334)
//   - Binary protobuf encoding (no JSON size limits)
//   - Collection-per-workspace isolation
//   - Retries with exponential backoff and a simple circuit breaker
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// collections caches known-existing collections.
	collections sync.Map

	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a new QdrantStore and verifies connectivity.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
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

	if !config.UseTLS {
		logger.Warn("Qdrant gRPC using plaintext (TLS disabled); insecure for production")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.healthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	logger.Info("QdrantStore initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// healthCheck performs a health check on the Qdrant connection.
func (s *QdrantStore) healthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("health check failed: %w", err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// AddDocuments embeds docs and upserts them as points.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) (ids []string, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.AddDocuments")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerQdrant, "add_documents", start, err) }(time.Now())

	span.SetAttributes(attribute.Int("document_count", len(docs)))

	collectionName, err := validateBatch(docs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("collection", collectionName))

	exists, err := s.CollectionExists(ctx, collectionName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !exists {
		span.SetStatus(codes.Error, "collection not found")
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(embeddings) != len(docs) {
		err = fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(embeddings), len(docs))
		span.RecordError(err)
		return nil, err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids = make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID

		// The document ID lives in the payload; the point ID is derived from it.
		payload := make(map[string]*qdrant.Value, len(doc.Metadata)+2)
		for k, v := range doc.Metadata {
			if pv := toQdrantValue(v); pv != nil {
				payload[k] = pv
			}
		}
		payload["content"] = qdrant.NewValueString(doc.Content)
		payload["id"] = qdrant.NewValueString(doc.ID)

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(doc.ID)),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collectionName,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("upserting points to collection %s: %w", collectionName, err)
	}

	DocumentsUpserted.WithLabelValues(providerQdrant).Add(float64(len(ids)))
	span.SetAttributes(attribute.Int("points_added", len(ids)))
	span.SetStatus(codes.Ok, "success")
	return ids, nil
}

// SearchInCollection performs similarity search in a specific collection.
func (s *QdrantStore) SearchInCollection(ctx context.Context, collectionName string, query string, k int, filters map[string]interface{}) (_ []SearchResult, err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.SearchInCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerQdrant, "search", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("k", k),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}

	// Bound k and query size to prevent resource exhaustion.
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	const maxK = 10000
	if k > maxK {
		k = maxK
	}
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	const maxQueryLength = 10000
	if len(query) > maxQueryLength {
		return nil, fmt.Errorf("query exceeds maximum length of %d characters", maxQueryLength)
	}

	queryVector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	var filter *qdrant.Filter
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for key, value := range filters {
			if v, ok := value.(string); ok {
				conditions = append(conditions, qdrant.NewMatchKeyword(key, v))
			}
		}
		if len(conditions) > 0 {
			filter = &qdrant.Filter{Must: conditions}
		}
	}

	var results []*qdrant.ScoredPoint
	err = s.retryOperation(ctx, "search", func() error {
		res, err := s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: collectionName,
			Query:          qdrant.NewQuery(queryVector...),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
			Filter:         filter,
		})
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("searching collection %s: %w", collectionName, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, point := range results {
		searchResults[i] = fromScoredPoint(point)
	}

	span.SetAttributes(attribute.Int("results_count", len(searchResults)))
	span.SetStatus(codes.Ok, "success")
	return searchResults, nil
}

// DeleteDocumentsFromCollection deletes documents by their IDs from a specific collection.
func (s *QdrantStore) DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteDocumentsFromCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerQdrant, "delete_documents", start, err) }(time.Now())

	span.SetAttributes(
		attribute.Int("id_count", len(ids)),
		attribute.String("collection", collectionName),
	)

	if len(ids) == 0 {
		return nil
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	// Delete by payload ID so points written under any ID scheme are removed.
	err = s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: collectionName,
			Wait:           qdrant.PtrOf(true),
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatchKeywords("id", ids...)},
			}),
		})
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, collectionName)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting points from %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CreateCollection creates a new collection.
func (s *QdrantStore) CreateCollection(ctx context.Context, collectionName string, vectorSize int) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CreateCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerQdrant, "create_collection", start, err) }(time.Now())

	span.SetAttributes(
		attribute.String("collection", collectionName),
		attribute.Int("vector_size", vectorSize),
	)

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}
	if vectorSize == 0 {
		vectorSize = int(s.config.VectorSize)
	}

	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: s.config.Distance,
			}),
		})
	})
	if err != nil {
		if isAlreadyExists(err) {
			s.collections.Store(collectionName, true)
			return ErrCollectionExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", collectionName, err)
	}

	s.collections.Store(collectionName, true)
	span.SetStatus(codes.Ok, "success")

	s.logger.Info("created qdrant collection",
		zap.String("collection", collectionName),
		zap.Int("vector_size", vectorSize),
	)
	return nil
}

// DeleteCollection deletes a collection and all its documents.
func (s *QdrantStore) DeleteCollection(ctx context.Context, collectionName string) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.DeleteCollection")
	defer span.End()
	defer func(start time.Time) { recordOperation(providerQdrant, "delete_collection", start, err) }(time.Now())

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return err
	}

	err = s.retryOperation(ctx, "delete_collection", func() error {
		return s.client.DeleteCollection(ctx, collectionName)
	})
	s.collections.Delete(collectionName)
	if err != nil && !isNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting collection %s: %w", collectionName, err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// CollectionExists checks if a collection exists.
func (s *QdrantStore) CollectionExists(ctx context.Context, collectionName string) (bool, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.CollectionExists")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return false, err
	}

	if _, ok := s.collections.Load(collectionName); ok {
		return true, nil
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		ok, err := s.client.CollectionExists(ctx, collectionName)
		if err != nil {
			return err
		}
		exists = ok
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("checking collection %s: %w", collectionName, err)
	}

	if exists {
		s.collections.Store(collectionName, true)
	}

	span.SetStatus(codes.Ok, "success")
	return exists, nil
}

// ListCollections returns a list of all collection names.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.ListCollections")
	defer span.End()

	var collections []string
	err := s.retryOperation(ctx, "list_collections", func() error {
		result, err := s.client.ListCollections(ctx)
		if err != nil {
			return err
		}
		collections = result
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	span.SetAttributes(attribute.Int("collection_count", len(collections)))
	span.SetStatus(codes.Ok, "success")
	return collections, nil
}

// GetCollectionInfo returns metadata about a collection.
func (s *QdrantStore) GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.GetCollectionInfo")
	defer span.End()

	span.SetAttributes(attribute.String("collection", collectionName))

	if err := ValidateCollectionName(collectionName); err != nil {
		return nil, err
	}

	var info *CollectionInfo
	err := s.retryOperation(ctx, "get_collection_info", func() error {
		collInfo, err := s.client.GetCollectionInfo(ctx, collectionName)
		if err != nil {
			if isNotFound(err) {
				return ErrCollectionNotFound
			}
			return err
		}
		pointCount := 0
		if collInfo.PointsCount != nil {
			pointCount = int(*collInfo.PointsCount)
		}
		info = &CollectionInfo{
			Name:       collectionName,
			PointCount: pointCount,
			VectorSize: int(s.config.VectorSize),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			span.SetStatus(codes.Error, "collection not found")
			return nil, ErrCollectionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting collection info for %s: %w", collectionName, err)
	}

	span.SetAttributes(attribute.Int("point_count", info.PointCount))
	span.SetStatus(codes.Ok, "success")
	return info, nil
}

func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return qdrant.NewValueString(val)
	case int:
		return qdrant.NewValueInt(int64(val))
	case int64:
		return qdrant.NewValueInt(val)
	case float64:
		return qdrant.NewValueDouble(val)
	case bool:
		return qdrant.NewValueBool(val)
	default:
		return nil
	}
}

func fromScoredPoint(point *qdrant.ScoredPoint) SearchResult {
	result := SearchResult{Score: point.Score}
	if point.Payload == nil {
		return result
	}

	result.Metadata = make(map[string]interface{}, len(point.Payload))
	for k, v := range point.Payload {
		switch val := v.Kind.(type) {
		case *qdrant.Value_StringValue:
			result.Metadata[k] = val.StringValue
			switch k {
			case "content":
				result.Content = val.StringValue
			case "id":
				result.ID = val.StringValue
			}
		case *qdrant.Value_IntegerValue:
			result.Metadata[k] = val.IntegerValue
		case *qdrant.Value_DoubleValue:
			result.Metadata[k] = val.DoubleValue
		case *qdrant.Value_BoolValue:
			result.Metadata[k] = val.BoolValue
		}
	}
	return result
}

// Ensure QdrantStore implements Store interface.
var _ Store = (*QdrantStore)(nil)
