package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

// The end-to-end lifecycle: create, add, embed, delete, delete again.
func TestWorkspaceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ws, err := h.c.CreateWorkspace(ctx, CreateWorkspaceRequest{Name: "Test", Description: "d"})
	require.NoError(t, err)
	assert.Equal(t, 0, ws.DocumentCount)

	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "greeting", Content: "hello"})

	embedded, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, embedded.Status)
	require.NotNil(t, embedded.EmbeddedAt)
	assert.Equal(t, testModel, embedded.EmbeddingModel)

	stored, ok := h.vectors.document(vectorstore.CollectionName(ws.ID), doc.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", stored.Content)
	assert.Equal(t, ws.ID, stored.Metadata["workspace_id"])

	counted, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, counted.DocumentCount)
	assert.Equal(t, 1, counted.EmbeddedCount)

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	again, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestEmbedDocument_FailureLeavesStatusUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})
	rev := h.revision(t, documentKey(ws.ID, doc.ID))

	h.vectors.setErr(&h.vectors.addErr, errors.New("embedding service down"))
	got, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	assert.Nil(t, got)
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "add_document", upstream.Op)

	after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, after.Status)
	assert.Nil(t, after.EmbeddedAt)
	assert.Equal(t, rev, h.revision(t, documentKey(ws.ID, doc.ID)), "no write on failure")

	// Safe to re-invoke once the store recovers.
	h.vectors.setErr(&h.vectors.addErr, nil)
	got, err = h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, got.Status)
}

func TestEmbedDocument_RecordFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})

	h.vectors.setErr(&h.vectors.addErr, errors.New("embedding service down"))
	_, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{RecordFailure: true})
	require.Error(t, err)

	failed, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusError, failed.Status)
	assert.Contains(t, failed.EmbedError, "embedding service down")

	h.vectors.setErr(&h.vectors.addErr, nil)
	fixed, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, fixed.Status)
	assert.Empty(t, fixed.EmbedError)
}

func TestEmbedDocument_VectorNotReady(t *testing.T) {
	h := newHarness(t)
	h.vectors.setErr(&h.vectors.createErr, errors.New("timeout"))
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})

	_, err := h.c.EmbedDocument(context.Background(), ws.ID, doc.ID, EmbedOptions{})
	assert.ErrorIs(t, err, ErrVectorNotReady)
	assert.ErrorIs(t, err, vectorstore.ErrCollectionNotFound)
}

func TestEmbedDocument_MissingAndEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")

	got, err := h.c.EmbedDocument(ctx, ws.ID, "missing", EmbedOptions{})
	require.NoError(t, err)
	assert.Nil(t, got)

	empty := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "blank"})
	got, err = h.c.EmbedDocument(ctx, ws.ID, empty.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, got.Status)
	assert.Zero(t, h.vectors.callCount("AddDocuments"))
}

func TestEmbedDocument_WhitespaceContentIsEmbedded(t *testing.T) {
	h := newHarness(t)
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "blank", Content: "  \n"})

	got, err := h.c.EmbedDocument(context.Background(), ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, got.Status)

	stored, ok := h.vectors.document(vectorstore.CollectionName(ws.ID), doc.ID)
	require.True(t, ok)
	assert.Equal(t, "  \n", stored.Content)
}

func TestEmbedDocument_ModelOverride(t *testing.T) {
	h := newHarness(t)
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})

	got, err := h.c.EmbedDocument(context.Background(), ws.ID, doc.ID, EmbedOptions{Model: "custom-v2"})
	require.NoError(t, err)
	assert.Equal(t, "custom-v2", got.EmbeddingModel)
}

func TestEmbedDocument_TwiceCountsOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})

	first, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	second, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.True(t, second.EmbeddedAt.After(*first.EmbeddedAt))

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EmbeddedCount)
}

func TestCreateAndEmbedDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")

	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, doc.Status)

	skipped, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "b", Content: "beta"}, EmbedOptions{SkipEmbed: true})
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, skipped.Status)
}

func TestCreateAndEmbedDocument_EmbedFailureKeepsDocument(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	h.vectors.setErr(&h.vectors.addErr, errors.New("embedding service down"))

	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.Error(t, err)
	require.NotNil(t, doc, "created document is returned with the embed error")
	assert.Equal(t, StatusUploaded, doc.Status)

	stored, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusUploaded, stored.Status)

	// Retry embedding without recreating the document.
	h.vectors.setErr(&h.vectors.addErr, nil)
	embedded, err := h.c.EmbedDocument(ctx, ws.ID, doc.ID, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, embedded.Status)

	docs, err := h.c.ListDocuments(ctx, ws.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestCreateAndEmbedDocument_EmbedOnCreateDisabled(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) { o.EmbedOnCreate = false }))
	ws := h.createWorkspace(t, "Test")

	doc, err := h.c.CreateAndEmbedDocument(context.Background(), ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, doc.Status)
	assert.Zero(t, h.vectors.callCount("AddDocuments"))
}

func TestReembedIfContentChanged_Unchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)
	rev := h.revision(t, documentKey(ws.ID, doc.ID))
	calls := h.vectors.callCount("AddDocuments")

	changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "alpha", EmbedOptions{})
	require.NoError(t, err)
	assert.False(t, changed)

	after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, "alpha", after.Content)
	assert.Equal(t, rev, h.revision(t, documentKey(ws.ID, doc.ID)))
	assert.Equal(t, calls, h.vectors.callCount("AddDocuments"))
}

func TestReembedIfContentChanged_Changed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)

	changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "alpha beta", EmbedOptions{})
	require.NoError(t, err)
	assert.True(t, changed)

	after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEmbedded, after.Status)
	assert.Equal(t, "alpha beta", after.Content)
	assert.Equal(t, int64(len("alpha beta")), after.FileSize)

	stored, ok := h.vectors.document(vectorstore.CollectionName(ws.ID), doc.ID)
	require.True(t, ok)
	assert.Equal(t, "alpha beta", stored.Content)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.EmbeddedCount)
}

func TestReembedIfContentChanged_WhitespaceCounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})

	changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "alpha ", EmbedOptions{})
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestReembedIfContentChanged_EmbedFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)
	h.vectors.setErr(&h.vectors.addErr, errors.New("embedding service down"))

	changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "gamma", EmbedOptions{})
	require.Error(t, err)
	assert.True(t, changed)

	after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, after.Status)
	assert.Equal(t, "gamma", after.Content)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.EmbeddedCount)
}

func TestReembedIfContentChanged_EmbedFailureDropsStaleVector(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "old text"}, EmbedOptions{})
	require.NoError(t, err)
	h.vectors.setErr(&h.vectors.addErr, errors.New("embedding service down"))

	_, err = h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "new text", EmbedOptions{})
	require.Error(t, err)

	_, ok := h.vectors.document(vectorstore.CollectionName(ws.ID), doc.ID)
	assert.False(t, ok)
}

func TestReembedIfContentChanged_EmptyRemovesVector(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "old text"}, EmbedOptions{})
	require.NoError(t, err)

	changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "", EmbedOptions{})
	require.NoError(t, err)
	assert.True(t, changed)

	_, ok := h.vectors.document(vectorstore.CollectionName(ws.ID), doc.ID)
	assert.False(t, ok)

	hits, err := h.c.Search(ctx, ws.ID, "old text", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, after.Status)
	assert.Empty(t, after.Content)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.EmbeddedCount)
}

func TestReembedIfContentChanged_EmptyVectorDeletePolicy(t *testing.T) {
	t.Run("best effort", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()
		ws := h.createWorkspace(t, "Test")
		doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "old text"}, EmbedOptions{})
		require.NoError(t, err)
		h.vectors.setErr(&h.vectors.deleteErr, errors.New("vector store down"))

		changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "", EmbedOptions{})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.NotEmpty(t, h.logs.FilterMessage("best-effort vector delete_document failed").All())
	})

	t.Run("strict", func(t *testing.T) {
		h := newHarness(t, withOptions(func(o *Options) { o.VectorDeletePolicy = VectorDeleteStrict }))
		ctx := context.Background()
		ws := h.createWorkspace(t, "Test")
		doc, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "old text"}, EmbedOptions{})
		require.NoError(t, err)
		h.vectors.setErr(&h.vectors.deleteErr, errors.New("vector store down"))

		changed, err := h.c.ReembedIfContentChanged(ctx, ws.ID, doc.ID, "", EmbedOptions{})
		assert.False(t, changed)
		var upstream *UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, StoreVector, upstream.Store)

		after, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "old text", after.Content)
		assert.Equal(t, StatusEmbedded, after.Status)
	})
}

func TestReembedIfContentChanged_Missing(t *testing.T) {
	h := newHarness(t)
	ws := h.createWorkspace(t, "Test")

	changed, err := h.c.ReembedIfContentChanged(context.Background(), ws.ID, "missing", "x", EmbedOptions{})
	assert.False(t, changed)
	assert.ErrorIs(t, err, ErrNotFound)
}
