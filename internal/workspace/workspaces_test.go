package workspace

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/fyrsmithlabs/docspace/internal/telemetry"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

func TestNew_RequiresDeps(t *testing.T) {
	full := Deps{
		Meta:     metastore.NewMemoryStore(),
		Vectors:  newFakeVectors(),
		Blobs:    &mockBlobs{},
		Embedder: stubEmbedder{model: testModel, dim: 8},
	}

	tests := map[string]func(d *Deps){
		"meta":     func(d *Deps) { d.Meta = nil },
		"vectors":  func(d *Deps) { d.Vectors = nil },
		"blobs":    func(d *Deps) { d.Blobs = nil },
		"embedder": func(d *Deps) { d.Embedder = nil },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			d := full
			mutate(&d)
			_, err := New(d, Options{})
			assert.Error(t, err)
		})
	}

	_, err := New(full, Options{VectorDeletePolicy: "never"})
	assert.ErrorIs(t, err, ErrValidation)

	c, err := New(full, Options{})
	require.NoError(t, err)
	assert.Equal(t, VectorDeleteBestEffort, c.opts.VectorDeletePolicy)
	assert.Equal(t, 8, c.opts.BlobDeleteConcurrency)
	assert.Equal(t, 5, c.opts.CounterRetries)
}

func TestCreateWorkspace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ws, err := h.c.CreateWorkspace(ctx, CreateWorkspaceRequest{
		Name:        "  Test ",
		Description: "d",
		Metadata:    map[string]any{"team": "search"},
	})
	require.NoError(t, err)

	assert.Equal(t, "id0001", ws.ID)
	assert.Equal(t, "Test", ws.Name)
	assert.Equal(t, 0, ws.DocumentCount)
	assert.Equal(t, 0, ws.EmbeddedCount)
	assert.Equal(t, VectorState{Status: VectorReady}, ws.Vector)
	assert.True(t, h.vectors.hasCollection(vectorstore.CollectionName(ws.ID)))
	assert.Equal(t, 8, h.vectors.sizes[vectorstore.CollectionName(ws.ID)])

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws, got)
}

func TestCreateWorkspace_VectorFailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.vectors.setErr(&h.vectors.createErr, errors.New("quota exceeded"))

	ws, err := h.c.CreateWorkspace(context.Background(), CreateWorkspaceRequest{Name: "Test"})
	require.NoError(t, err)

	assert.Equal(t, VectorFailed, ws.Vector.Status)
	assert.Contains(t, ws.Vector.Error, "quota exceeded")

	got, err := h.c.GetWorkspace(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorFailed, got.Vector.Status)
	assert.NotEmpty(t, got.Vector.Error)

	h.logs.AssertLogged(t, zapcore.WarnLevel, "best-effort vector create_collection failed")
	h.logs.AssertField(t, "best-effort vector create_collection failed", "workspace_id", ws.ID)
}

func TestCreateWorkspace_ExistingCollectionCountsAsReady(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.vectors.CreateCollection(context.Background(), vectorstore.CollectionName("id0001"), 8))

	ws := h.createWorkspace(t, "Test")
	assert.Equal(t, VectorReady, ws.Vector.Status)
}

func TestCreateWorkspace_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.CreateWorkspace(ctx, CreateWorkspaceRequest{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = h.c.CreateWorkspace(ctx, CreateWorkspaceRequest{Name: string(long)})
	assert.ErrorIs(t, err, ErrValidation)

	list, err := h.c.ListWorkspaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, h.vectors.callCount("CreateCollection"))
}

func TestCreateWorkspace_Collision(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) {
		o.NewID = func() string { return "fixed" }
	}))

	first := h.createWorkspace(t, "one")

	_, err := h.c.CreateWorkspace(context.Background(), CreateWorkspaceRequest{Name: "two"})
	require.ErrorIs(t, err, ErrCollision)

	// The existing record is untouched.
	got, err := h.c.GetWorkspace(context.Background(), "fixed")
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)
}

func TestCreateWorkspace_MetadataErrorPropagates(t *testing.T) {
	h := newHarness(t)
	h.meta.set(func(f *faultyMeta) { f.createErr = errors.New("kv unavailable") })

	_, err := h.c.CreateWorkspace(context.Background(), CreateWorkspaceRequest{Name: "Test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kv unavailable")
	assert.Zero(t, h.vectors.callCount("CreateCollection"))
}

func TestGetWorkspace_Missing(t *testing.T) {
	h := newHarness(t)

	ws, err := h.c.GetWorkspace(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, ws)

	_, err = h.c.GetWorkspace(context.Background(), "../etc")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListWorkspaces(t *testing.T) {
	h := newHarness(t)
	a := h.createWorkspace(t, "a")
	b := h.createWorkspace(t, "b")

	list, err := h.c.ListWorkspaces(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
}

func TestUpdateWorkspace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "before")

	name := "after"
	updated, err := h.c.UpdateWorkspace(ctx, ws.ID, UpdateWorkspaceRequest{
		Name:     &name,
		Metadata: map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, map[string]any{"k": "v"}, updated.Metadata)
	assert.True(t, updated.UpdatedAt.After(ws.UpdatedAt))

	empty := ""
	_, err = h.c.UpdateWorkspace(ctx, ws.ID, UpdateWorkspaceRequest{Name: &empty})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.c.UpdateWorkspace(ctx, "missing", UpdateWorkspaceRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWorkspace_RemovesEverything(t *testing.T) {
	blobs := &mockBlobs{}
	blobs.On("Delete", mock.Anything, mock.Anything).Return(nil)
	h := newHarness(t, withBlobs(blobs))
	ctx := context.Background()

	ws := h.createWorkspace(t, "Test")
	d1 := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", StorageKey: "k/a", Content: "alpha"})
	d2 := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "b", Content: "beta"})
	_, err := h.c.EmbedDocument(ctx, ws.ID, d1.ID, EmbedOptions{})
	require.NoError(t, err)

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	for _, id := range []string{d1.ID, d2.ID} {
		doc, err := h.c.GetDocument(ctx, ws.ID, id)
		require.NoError(t, err)
		assert.Nil(t, doc)
	}
	assert.False(t, h.vectors.hasCollection(vectorstore.CollectionName(ws.ID)))

	// Only documents with stored content have blobs.
	blobs.AssertNumberOfCalls(t, "Delete", 1)
	blobs.AssertCalled(t, "Delete", mock.Anything, "k/a")

	again, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestDeleteWorkspace_Missing_NoSideEffects(t *testing.T) {
	blobs := &mockBlobs{}
	h := newHarness(t, withBlobs(blobs))

	deleted, err := h.c.DeleteWorkspace(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.Zero(t, h.vectors.callCount("DeleteCollection"))
	blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteWorkspace_VectorDropFailureIsBestEffort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	h.vectors.setErr(&h.vectors.dropErr, errors.New("vector db down"))

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	h.logs.AssertLogged(t, zapcore.WarnLevel, "best-effort vector delete_collection failed")
}

func TestDeleteWorkspace_StrictPolicyAbortsOnVectorFailure(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) { o.VectorDeletePolicy = VectorDeleteStrict }))
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	doc := h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"})
	h.vectors.setErr(&h.vectors.dropErr, errors.New("vector db down"))

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	assert.False(t, deleted)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, StoreVector, upstream.Store)

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	d, err := h.c.GetDocument(ctx, ws.ID, doc.ID)
	require.NoError(t, err)
	assert.NotNil(t, d)

	// Retry succeeds once the vector store recovers.
	h.vectors.setErr(&h.vectors.dropErr, nil)
	deleted, err = h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDeleteWorkspace_AttemptsEveryBlobDespiteFailures(t *testing.T) {
	const n = 6
	failing := map[string]bool{"blob/1": true, "blob/4": true}

	blobs := &mockBlobs{}
	for key := range failing {
		blobs.On("Delete", mock.Anything, key).Return(errors.New("disk error"))
	}
	blobs.On("Delete", mock.Anything, mock.Anything).Return(nil)

	h := newHarness(t, withBlobs(blobs), withOptions(func(o *Options) { o.BlobDeleteConcurrency = 2 }))
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	for i := 0; i < n; i++ {
		h.addDocument(t, ws.ID, CreateDocumentRequest{
			Name:       fmt.Sprintf("doc-%d", i),
			StorageKey: fmt.Sprintf("blob/%d", i),
		})
	}

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	blobs.AssertNumberOfCalls(t, "Delete", n)
	for i := 0; i < n; i++ {
		blobs.AssertCalled(t, "Delete", mock.Anything, fmt.Sprintf("blob/%d", i))
	}

	warnings := h.logs.FilterMessage("best-effort blob delete failed").All()
	assert.Len(t, warnings, len(failing))

	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteWorkspace_MetadataFailurePropagates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	h.meta.set(func(f *faultyMeta) { f.deleteErr = errors.New("kv unavailable") })

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.Error(t, err)
	assert.False(t, deleted)

	h.meta.set(func(f *faultyMeta) { f.deleteErr = nil })
	got, err := h.c.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "record survives so the delete can be retried")

	deleted, err = h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestDeleteWorkspace_RunsToCompletionAfterCancel(t *testing.T) {
	h := newHarness(t)
	ws := h.createWorkspace(t, "Test")
	h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "a", StorageKey: "k/a"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.meta.set(func(f *faultyMeta) { f.afterGet = cancel })

	deleted, err := h.c.DeleteWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	h.meta.set(func(f *faultyMeta) { f.afterGet = nil })
	got, err := h.c.GetWorkspace(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteWorkspace_RecordsSpan(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	h := newHarness(t, withOptions(func(o *Options) {
		o.Tracer = tel.Tracer("test")
		o.Meter = tel.Meter("test")
	}))
	ws := h.createWorkspace(t, "Test")
	h.vectors.setErr(&h.vectors.dropErr, errors.New("vector db down"))

	_, err := h.c.DeleteWorkspace(context.Background(), ws.ID)
	require.NoError(t, err)

	tel.AssertSpanExists(t, "workspace.create_workspace")
	tel.AssertSpanAttribute(t, "workspace.delete_workspace", "workspace.id", ws.ID)

	span := tel.SpanByName("workspace.delete_workspace")
	require.NotNil(t, span)
	require.NotEmpty(t, span.Events())
	assert.Equal(t, "best_effort_failure", span.Events()[0].Name)

	failures, err := tel.Counter(context.Background(), "docspace.workspace.best_effort_failures_total",
		attribute.String("store", StoreVector), attribute.String("operation", "delete_collection"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), failures)

	deletes, err := tel.Counter(context.Background(), "docspace.workspace.operations_total",
		attribute.String("operation", "delete_workspace"), attribute.String("result", "ok"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deletes)
}

func TestRetryVectorCollection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.vectors.setErr(&h.vectors.createErr, errors.New("timeout"))
	ws := h.createWorkspace(t, "Test")
	require.Equal(t, VectorFailed, ws.Vector.Status)

	// Still failing.
	again, err := h.c.RetryVectorCollection(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorFailed, again.Vector.Status)

	h.vectors.setErr(&h.vectors.createErr, nil)
	fixed, err := h.c.RetryVectorCollection(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorState{Status: VectorReady}, fixed.Vector)
	assert.True(t, h.vectors.hasCollection(vectorstore.CollectionName(ws.ID)))

	calls := h.vectors.callCount("CreateCollection")
	ready, err := h.c.RetryVectorCollection(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, VectorReady, ready.Vector.Status)
	assert.Equal(t, calls, h.vectors.callCount("CreateCollection"), "ready workspaces are not retried")

	_, err = h.c.RetryVectorCollection(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")

	_, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "greeting", Content: "hello world"}, EmbedOptions{})
	require.NoError(t, err)
	_, err = h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "farewell", Content: "goodbye"}, EmbedOptions{})
	require.NoError(t, err)

	hits, err := h.c.Search(ctx, ws.ID, "hello", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "greeting", hits[0].Name)
	assert.Equal(t, "hello world", hits[0].Content)

	_, err = h.c.Search(ctx, ws.ID, " ", 5)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.c.Search(ctx, "missing", "hello", 5)
	assert.ErrorIs(t, err, ErrNotFound)

	h.vectors.setErr(&h.vectors.searchErr, errors.New("boom"))
	_, err = h.c.Search(ctx, ws.ID, "hello", 5)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestSearch_VectorNotReady(t *testing.T) {
	h := newHarness(t)
	h.vectors.setErr(&h.vectors.createErr, errors.New("timeout"))
	ws := h.createWorkspace(t, "Test")

	_, err := h.c.Search(context.Background(), ws.ID, "hello", 5)
	assert.ErrorIs(t, err, ErrVectorNotReady)
	assert.Zero(t, h.vectors.callCount("SearchInCollection"))
}

func TestRecountDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ws := h.createWorkspace(t, "Test")
	_, err := h.c.CreateAndEmbedDocument(ctx, ws.ID, CreateDocumentRequest{Name: "a", Content: "alpha"}, EmbedOptions{})
	require.NoError(t, err)
	h.addDocument(t, ws.ID, CreateDocumentRequest{Name: "b", Content: "beta"})

	// Drift the counters.
	_, err = h.c.mutateWorkspace(ctx, ws.ID, func(w *Workspace) error {
		w.DocumentCount = 42
		w.EmbeddedCount = 7
		return nil
	})
	require.NoError(t, err)

	fixed, err := h.c.RecountDocuments(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fixed.DocumentCount)
	assert.Equal(t, 1, fixed.EmbeddedCount)
}
