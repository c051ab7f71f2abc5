package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidDocument indicates a document without an ID or collection.
	ErrInvalidDocument = errors.New("invalid document")
)

// collectionNamePattern validates collection names.
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

// collectionPrefix namespaces workspace collections.
const collectionPrefix = "ws_"

// CollectionName returns the collection owned by a workspace.
func CollectionName(workspaceID string) string {
	return collectionPrefix + workspaceID
}

// ValidateCollectionName validates a collection name against security rules.
// Rejects special chars, path traversal and spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern %s, got %q",
			ErrInvalidCollectionName, collectionNamePattern.String(), name)
	}
	return nil
}

// CollectionInfo contains metadata about a vector collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string `json:"name"`

	// PointCount is the number of vectors in the collection.
	PointCount int `json:"point_count"`

	// VectorSize is the dimensionality of vectors in this collection.
	VectorSize int `json:"vector_size"`
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns a slice of embeddings (one per input text) or an error.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// Implementations:
//   - ChromemStore: Embedded chromem-go (default)
//   - QdrantStore: External Qdrant gRPC client
type Store interface {
	// AddDocuments embeds and upserts documents.
	//
	// All documents must carry an ID and target the same, existing collection.
	// Adding a document whose ID already exists replaces it.
	// Returns ErrCollectionNotFound if the collection has not been created.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// SearchInCollection performs similarity search in a specific collection.
	//
	// Filters are applied to document metadata; only documents matching ALL
	// filter conditions are returned. Results are ordered by score, highest first.
	SearchInCollection(ctx context.Context, collectionName string, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// DeleteDocumentsFromCollection deletes documents by their IDs from a collection.
	// Deleting IDs that are not present is not an error.
	DeleteDocumentsFromCollection(ctx context.Context, collectionName string, ids []string) error

	// CreateCollection creates a new collection.
	// Returns ErrCollectionExists if the collection already exists.
	CreateCollection(ctx context.Context, collectionName string, vectorSize int) error

	// DeleteCollection deletes a collection and all its documents.
	// Deleting a missing collection is not an error.
	DeleteCollection(ctx context.Context, collectionName string) error

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collectionName string) (bool, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// GetCollectionInfo returns metadata about a collection.
	// Returns ErrCollectionNotFound if the collection doesn't exist.
	GetCollectionInfo(ctx context.Context, collectionName string) (*CollectionInfo, error)

	// Close releases resources.
	Close() error
}

// validateBatch checks that docs form a valid single-collection batch and
// returns the target collection.
func validateBatch(docs []Document) (string, error) {
	if len(docs) == 0 {
		return "", ErrEmptyDocuments
	}
	collectionName := docs[0].Collection
	for i, doc := range docs {
		if doc.ID == "" {
			return "", fmt.Errorf("%w: document at index %d has no ID", ErrInvalidDocument, i)
		}
		if doc.Collection != collectionName {
			return "", fmt.Errorf("%w: document at index %d has collection %q but batch targets %q",
				ErrInvalidDocument, i, doc.Collection, collectionName)
		}
	}
	if err := ValidateCollectionName(collectionName); err != nil {
		return "", err
	}
	return collectionName, nil
}
