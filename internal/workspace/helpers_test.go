package workspace

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docspace/internal/blobstore"
	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

// fakeVectors is an in-memory vectorstore.Store with per-method failure
// injection and call counting.
type fakeVectors struct {
	mu          sync.Mutex
	collections map[string]map[string]vectorstore.Document
	sizes       map[string]int
	calls       map[string]int

	createErr error
	dropErr   error
	addErr    error
	deleteErr error
	searchErr error
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{
		collections: make(map[string]map[string]vectorstore.Document),
		sizes:       make(map[string]int),
		calls:       make(map[string]int),
	}
}

func (f *fakeVectors) record(method string) {
	f.calls[method]++
}

func (f *fakeVectors) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeVectors) setErr(target *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*target = err
}

func (f *fakeVectors) hasCollection(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok
}

func (f *fakeVectors) document(collection, id string) (vectorstore.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.collections[collection][id]
	return doc, ok
}

func (f *fakeVectors) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("AddDocuments")
	if f.addErr != nil {
		return nil, f.addErr
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		coll, ok := f.collections[d.Collection]
		if !ok {
			return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, d.Collection)
		}
		coll[d.ID] = d
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (f *fakeVectors) SearchInCollection(_ context.Context, name, query string, k int, _ map[string]interface{}) ([]vectorstore.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SearchInCollection")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	coll, ok := f.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	var out []vectorstore.SearchResult
	for _, d := range coll {
		if strings.Contains(strings.ToLower(d.Content), strings.ToLower(query)) {
			out = append(out, vectorstore.SearchResult{ID: d.ID, Content: d.Content, Score: 1, Metadata: d.Metadata})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectors) DeleteDocumentsFromCollection(_ context.Context, name string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteDocumentsFromCollection")
	if f.deleteErr != nil {
		return f.deleteErr
	}
	coll, ok := f.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}
	for _, id := range ids {
		delete(coll, id)
	}
	return nil
}

func (f *fakeVectors) CreateCollection(_ context.Context, name string, vectorSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateCollection")
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.collections[name]; ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionExists, name)
	}
	f.collections[name] = make(map[string]vectorstore.Document)
	f.sizes[name] = vectorSize
	return nil
}

func (f *fakeVectors) DeleteCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteCollection")
	if f.dropErr != nil {
		return f.dropErr
	}
	delete(f.collections, name)
	return nil
}

func (f *fakeVectors) CollectionExists(_ context.Context, name string) (bool, error) {
	return f.hasCollection(name), nil
}

func (f *fakeVectors) ListCollections(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.collections))
	for n := range f.collections {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeVectors) GetCollectionInfo(_ context.Context, name string) (*vectorstore.CollectionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	coll, ok := f.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	return &vectorstore.CollectionInfo{Name: name, PointCount: len(coll), VectorSize: f.sizes[name]}, nil
}

func (f *fakeVectors) Close() error { return nil }

// mockBlobs is a testify mock of blobstore.Store.
type mockBlobs struct {
	mock.Mock
}

func (m *mockBlobs) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockBlobs) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockBlobs) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockBlobs) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// faultyMeta wraps a metastore.Store and injects errors.
type faultyMeta struct {
	metastore.Store

	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	afterGet  func()
}

func (f *faultyMeta) set(fn func(f *faultyMeta)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *faultyMeta) Get(ctx context.Context, key string) (*metastore.Entry, error) {
	e, err := f.Store.Get(ctx, key)
	f.mu.Lock()
	hook := f.afterGet
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return e, err
}

func (f *faultyMeta) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Store.Create(ctx, key, value)
}

func (f *faultyMeta) Update(ctx context.Context, key string, value []byte, rev uint64) (uint64, error) {
	f.mu.Lock()
	err := f.updateErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return f.Store.Update(ctx, key, value, rev)
}

func (f *faultyMeta) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.Delete(ctx, key)
}

type stubEmbedder struct {
	model string
	dim   int
}

func (s stubEmbedder) Model() string  { return s.model }
func (s stubEmbedder) Dimension() int { return s.dim }

// harness bundles a Coordinator with its test collaborators.
type harness struct {
	c       *Coordinator
	meta    *faultyMeta
	vectors *fakeVectors
	blobs   blobstore.Store
	logs    *logging.TestLogger
}

const testModel = "test-model"

type harnessOption func(*Options, *Deps)

func withBlobs(b blobstore.Store) harnessOption {
	return func(_ *Options, d *Deps) { d.Blobs = b }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(o *Options, _ *Deps) { fn(o) }
}

// newHarness builds a Coordinator over an in-memory metastore, fakeVectors
// and, unless overridden, a permissive mockBlobs. IDs and timestamps are
// deterministic.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	var seq atomic.Int64
	var tick atomic.Int64
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	logs := logging.NewTestLogger()
	meta := &faultyMeta{Store: metastore.NewMemoryStore()}
	vectors := newFakeVectors()

	blobs := &mockBlobs{}
	blobs.On("Delete", mock.Anything, mock.Anything).Return(nil).Maybe()

	deps := Deps{Meta: meta, Vectors: vectors, Blobs: blobs, Embedder: stubEmbedder{model: testModel, dim: 8}}
	o := DefaultOptions()
	o.Logger = logs.Logger
	o.NewID = func() string { return fmt.Sprintf("id%04d", seq.Add(1)) }
	o.Now = func() time.Time { return base.Add(time.Duration(tick.Add(1)) * time.Second) }
	for _, fn := range opts {
		fn(&o, &deps)
	}

	c, err := New(deps, o)
	require.NoError(t, err)
	return &harness{c: c, meta: meta, vectors: vectors, blobs: deps.Blobs, logs: logs}
}

func (h *harness) createWorkspace(t *testing.T, name string) *Workspace {
	t.Helper()
	ws, err := h.c.CreateWorkspace(context.Background(), CreateWorkspaceRequest{Name: name, Description: "d"})
	require.NoError(t, err)
	return ws
}

func (h *harness) addDocument(t *testing.T, wsID string, req CreateDocumentRequest) *Document {
	t.Helper()
	doc, err := h.c.AddDocument(context.Background(), wsID, req)
	require.NoError(t, err)
	return doc
}

func (h *harness) revision(t *testing.T, key string) uint64 {
	t.Helper()
	e, err := h.meta.Store.Get(context.Background(), key)
	require.NoError(t, err)
	return e.Revision
}
