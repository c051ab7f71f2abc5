package vectorstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testVectorSize = 32

func newTestChromemStore(t *testing.T) (*vectorstore.ChromemStore, *hashEmbedder) {
	t.Helper()

	embedder := &hashEmbedder{vectorSize: testVectorSize}
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		VectorSize: testVectorSize,
	}, embedder, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, embedder
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	config := vectorstore.ChromemConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "~/.local/share/docspace/vectors", config.Path)
	assert.Equal(t, 384, config.VectorSize)
}

func TestChromemConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    vectorstore.ChromemConfig
		wantError bool
	}{
		{name: "valid config", config: vectorstore.ChromemConfig{Path: "/tmp/test", VectorSize: 384}},
		{name: "zero vector size", config: vectorstore.ChromemConfig{Path: "/tmp/test"}, wantError: true},
		{name: "negative vector size", config: vectorstore.ChromemConfig{Path: "/tmp/test", VectorSize: -1}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_CollectionLifecycle(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsLifecycle")

	exists, err := store.CollectionExists(ctx, coll)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateCollection(ctx, coll, testVectorSize))

	exists, err = store.CollectionExists(ctx, coll)
	require.NoError(t, err)
	assert.True(t, exists)

	err = store.CreateCollection(ctx, coll, testVectorSize)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionExists)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, coll)

	info, err := store.GetCollectionInfo(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PointCount)
	assert.Equal(t, testVectorSize, info.VectorSize)

	require.NoError(t, store.DeleteCollection(ctx, coll))
	exists, err = store.CollectionExists(ctx, coll)
	require.NoError(t, err)
	assert.False(t, exists)

	// Dropping again is a no-op.
	assert.NoError(t, store.DeleteCollection(ctx, coll))
}

func TestChromemStore_CreateCollection_VectorSizeMismatch(t *testing.T) {
	store, _ := newTestChromemStore(t)
	err := store.CreateCollection(context.Background(), "ws_mismatch", testVectorSize+1)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
}

func TestChromemStore_AddDocuments(t *testing.T) {
	store, embedder := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsAdd")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	ids, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc1", Content: "First document about Go programming", Collection: coll},
		{ID: "doc2", Content: "Second document about vector databases", Collection: coll},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2"}, ids)
	assert.Equal(t, int64(1), embedder.calls.Load(), "documents are embedded in one batch")

	info, err := store.GetCollectionInfo(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PointCount)
}

func TestChromemStore_AddDocuments_Upserts(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsUpsert")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	_, err := store.AddDocuments(ctx, []vectorstore.Document{{ID: "doc1", Content: "old text", Collection: coll}})
	require.NoError(t, err)
	_, err = store.AddDocuments(ctx, []vectorstore.Document{{ID: "doc1", Content: "new text", Collection: coll}})
	require.NoError(t, err)

	results, err := store.SearchInCollection(ctx, coll, "new text", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].ID)
	assert.Equal(t, "new text", results[0].Content)
}

func TestChromemStore_AddDocuments_Validation(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsValidate")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	t.Run("empty batch", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, nil)
		assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, []vectorstore.Document{{Content: "x", Collection: coll}})
		assert.ErrorIs(t, err, vectorstore.ErrInvalidDocument)
	})

	t.Run("mixed collections", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, []vectorstore.Document{
			{ID: "a", Content: "x", Collection: coll},
			{ID: "b", Content: "y", Collection: "ws_other"},
		})
		assert.ErrorIs(t, err, vectorstore.ErrInvalidDocument)
	})

	t.Run("missing collection", func(t *testing.T) {
		_, err := store.AddDocuments(ctx, []vectorstore.Document{{ID: "a", Content: "x", Collection: "ws_absent"}})
		assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
	})
}

func TestChromemStore_AddDocuments_EmbedderFailure(t *testing.T) {
	store, embedder := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsEmbedFail")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	embedder.fail.Store(true)
	_, err := store.AddDocuments(ctx, []vectorstore.Document{{ID: "doc1", Content: "text", Collection: coll}})
	assert.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)

	info, err := store.GetCollectionInfo(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 0, info.PointCount)
}

func TestChromemStore_SearchInCollection(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsSearch")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc1", Content: "alpha", Collection: coll, Metadata: map[string]interface{}{"document_id": "doc1", "kind": "note"}},
		{ID: "doc2", Content: "beta", Collection: coll, Metadata: map[string]interface{}{"document_id": "doc2", "kind": "pdf"}},
	})
	require.NoError(t, err)

	t.Run("exact text ranks first", func(t *testing.T) {
		results, err := store.SearchInCollection(ctx, coll, "alpha", 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 2, "k is capped at the collection size")
		assert.Equal(t, "doc1", results[0].ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("metadata filter", func(t *testing.T) {
		results, err := store.SearchInCollection(ctx, coll, "alpha", 1, map[string]interface{}{"kind": "pdf"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "doc2", results[0].ID)
		assert.Equal(t, "pdf", results[0].Metadata["kind"])
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := store.SearchInCollection(ctx, coll, "", 1, nil)
		assert.Error(t, err)
		_, err = store.SearchInCollection(ctx, coll, "alpha", 0, nil)
		assert.Error(t, err)
		_, err = store.SearchInCollection(ctx, "ws_absent", "alpha", 1, nil)
		assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
	})
}

func TestChromemStore_SearchEmptyCollection(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsEmpty")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	results, err := store.SearchInCollection(ctx, coll, "anything", 3, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_DeleteDocuments(t *testing.T) {
	store, _ := newTestChromemStore(t)
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsDelete")
	require.NoError(t, store.CreateCollection(ctx, coll, 0))

	_, err := store.AddDocuments(ctx, []vectorstore.Document{
		{ID: "doc1", Content: "one", Collection: coll},
		{ID: "doc2", Content: "two", Collection: coll},
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocumentsFromCollection(ctx, coll, []string{"doc1"}))
	require.NoError(t, store.DeleteDocumentsFromCollection(ctx, coll, nil))

	info, err := store.GetCollectionInfo(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, 1, info.PointCount)

	err = store.DeleteDocumentsFromCollection(ctx, "ws_absent", []string{"doc1"})
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestChromemStore_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectors")
	embedder := &hashEmbedder{vectorSize: testVectorSize}
	ctx := context.Background()
	coll := vectorstore.CollectionName("wsPersist")

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: dir, VectorSize: testVectorSize}, embedder, nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateCollection(ctx, coll, 0))
	_, err = store.AddDocuments(ctx, []vectorstore.Document{{ID: "doc1", Content: "persisted", Collection: coll}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: dir, VectorSize: testVectorSize}, embedder, nil)
	require.NoError(t, err)
	defer reopened.Close()

	exists, err := reopened.CollectionExists(ctx, coll)
	require.NoError(t, err)
	assert.True(t, exists)

	results, err := reopened.SearchInCollection(ctx, coll, "persisted", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1", results[0].ID)
}
