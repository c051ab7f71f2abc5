package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

func TestWorkspaceEndpoints(t *testing.T) {
	ts := setupTestServer(t, nil)

	ws := ts.createWorkspace(t, "Research")
	assert.Equal(t, "Research", ws.Name)
	assert.Equal(t, workspace.VectorReady, ws.Vector.Status)

	t.Run("get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/"+ws.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, ws.ID, decode[*workspace.Workspace](t, rec).ID)
	})

	t.Run("list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ListWorkspacesResponse](t, rec)
		require.Len(t, resp.Workspaces, 1)
		assert.Equal(t, ws.ID, resp.Workspaces[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		name := "Renamed"
		rec := ts.do(t, http.MethodPatch, "/api/v1/workspaces/"+ws.ID, UpdateWorkspaceRequest{Name: &name})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		updated := decode[*workspace.Workspace](t, rec)
		assert.Equal(t, "Renamed", updated.Name)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/bad.id", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create without name", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces", CreateWorkspaceRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Error, "name")
	})

	t.Run("create with broken json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/workspaces", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, "/api/v1/workspaces/"+ws.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[DeleteResponse](t, rec).Deleted)

		rec = ts.do(t, http.MethodDelete, "/api/v1/workspaces/"+ws.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[DeleteResponse](t, rec).Deleted)
	})
}

func TestDocumentEndpoints(t *testing.T) {
	ts := setupTestServer(t, nil)
	ws := ts.createWorkspace(t, "Docs")
	base := "/api/v1/workspaces/" + ws.ID + "/documents"

	rec := ts.do(t, http.MethodPost, base, CreateDocumentRequest{Name: "notes.txt", Content: "alpha beta gamma"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[DocumentResponse](t, rec)
	require.NotNil(t, created.Document)
	doc := created.Document
	assert.Equal(t, workspace.StatusEmbedded, doc.Status)
	assert.Equal(t, "hash-test", doc.EmbeddingModel)
	assert.Empty(t, created.EmbedError)

	t.Run("list and get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, base, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[ListDocumentsResponse](t, rec).Documents, 1)

		rec = ts.do(t, http.MethodGet, base+"/"+doc.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alpha beta gamma", decode[*workspace.Document](t, rec).Content)
	})

	t.Run("workspace counters", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/"+ws.ID, nil)
		got := decode[*workspace.Workspace](t, rec)
		assert.Equal(t, 1, got.DocumentCount)
		assert.Equal(t, 1, got.EmbeddedCount)
	})

	t.Run("search", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/search", SearchRequest{Query: "alpha", Limit: 5})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		hits := decode[SearchResponse](t, rec).Results
		require.Len(t, hits, 1)
		assert.Equal(t, doc.ID, hits[0].DocumentID)
		assert.Equal(t, "notes.txt", hits[0].Name)
	})

	t.Run("search without query", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/search", SearchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("embed again", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, base+"/"+doc.ID+"/embed", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, workspace.StatusEmbedded, decode[*workspace.Document](t, rec).Status)
	})

	t.Run("embed missing", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, base+"/missing/embed", EmbedRequest{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unchanged content", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, base+"/"+doc.ID+"/content", UpdateContentRequest{Content: "alpha beta gamma"})
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[UpdateContentResponse](t, rec)
		assert.False(t, resp.Changed)
		require.NotNil(t, resp.Document)
		assert.Equal(t, workspace.StatusEmbedded, resp.Document.Status)
	})

	t.Run("changed content", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, base+"/"+doc.ID+"/content", UpdateContentRequest{Content: "delta"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[UpdateContentResponse](t, rec)
		assert.True(t, resp.Changed)
		require.NotNil(t, resp.Document)
		assert.Equal(t, "delta", resp.Document.Content)
		assert.Equal(t, workspace.StatusEmbedded, resp.Document.Status)
	})

	t.Run("content of missing document", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, base+"/missing/content", UpdateContentRequest{Content: "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := ts.do(t, http.MethodDelete, base+"/"+doc.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[DeleteResponse](t, rec).Deleted)

		rec = ts.do(t, http.MethodGet, base+"/"+doc.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodDelete, base+"/"+doc.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[DeleteResponse](t, rec).Deleted)
	})

	t.Run("documents of missing workspace", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/workspaces/missing/documents", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateDocumentSkipEmbed(t *testing.T) {
	ts := setupTestServer(t, nil)
	ws := ts.createWorkspace(t, "Docs")

	embed := false
	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/documents",
		CreateDocumentRequest{Name: "a", Content: "text", Embed: &embed})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, workspace.StatusUploaded, decode[DocumentResponse](t, rec).Document.Status)
}

func TestCreateDocumentEmbedFailure(t *testing.T) {
	ts := setupTestServer(t, nil)
	ws := ts.createWorkspace(t, "Docs")
	ts.vectors.fail(nil, errors.New("vector store down"))

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/documents",
		CreateDocumentRequest{Name: "a", Content: "text"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	resp := decode[DocumentResponse](t, rec)
	require.NotNil(t, resp.Document)
	assert.Contains(t, resp.EmbedError, "vector store down")
	assert.Equal(t, workspace.StatusUploaded, resp.Document.Status)

	t.Run("embed endpoint reports upstream failure", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/documents/"+resp.Document.ID+"/embed", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "vector store unavailable", decode[ErrorResponse](t, rec).Error)
	})

	t.Run("embed succeeds after recovery", func(t *testing.T) {
		ts.vectors.fail(nil, nil)
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/documents/"+resp.Document.ID+"/embed", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, workspace.StatusEmbedded, decode[*workspace.Document](t, rec).Status)
	})
}

func TestCreateDocumentEmbedFailureRecorded(t *testing.T) {
	ts := setupTestServer(t, &Config{RecordEmbedFailure: true})
	ws := ts.createWorkspace(t, "Docs")
	ts.vectors.fail(nil, errors.New("vector store down"))
	base := "/api/v1/workspaces/" + ws.ID + "/documents"

	rec := ts.do(t, http.MethodPost, base, CreateDocumentRequest{Name: "a", Content: "text"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	doc := decode[DocumentResponse](t, rec).Document
	assert.Equal(t, workspace.StatusError, doc.Status)

	rec = ts.upload(t, base+"/upload", "b.txt", []byte("upload text"), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, workspace.StatusError, decode[DocumentResponse](t, rec).Document.Status)

	rec = ts.do(t, http.MethodGet, base+"/"+doc.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, workspace.StatusError, decode[*workspace.Document](t, rec).Status)
}

func TestVectorNotReady(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.vectors.fail(errors.New("qdrant unreachable"), nil)

	ws := ts.createWorkspace(t, "Pending")
	assert.Equal(t, workspace.VectorFailed, ws.Vector.Status)
	assert.Contains(t, ws.Vector.Error, "qdrant unreachable")

	rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/search", SearchRequest{Query: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[StatusResponse](t, rec).Counts.VectorFailed)

	ts.vectors.fail(nil, nil)
	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/vector/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, workspace.VectorReady, decode[*workspace.Workspace](t, rec).Vector.Status)

	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/search", SearchRequest{Query: "x"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[SearchResponse](t, rec).Results)
}

func TestUploadDocument(t *testing.T) {
	ts := setupTestServer(t, &Config{MaxUploadBytes: 1024})
	ws := ts.createWorkspace(t, "Uploads")
	path := "/api/v1/workspaces/" + ws.ID + "/documents/upload"

	t.Run("text file", func(t *testing.T) {
		rec := ts.upload(t, path, "readme.txt", []byte("hello upload"), map[string]string{"name": "Readme"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		doc := decode[DocumentResponse](t, rec).Document
		require.NotNil(t, doc)
		assert.Equal(t, "Readme", doc.Name)
		assert.Equal(t, "readme.txt", doc.OriginalName)
		assert.Equal(t, "hello upload", doc.Content)
		assert.Equal(t, int64(len("hello upload")), doc.FileSize)
		assert.NotEmpty(t, doc.StorageKey)
		assert.Equal(t, workspace.StatusEmbedded, doc.Status)
	})

	t.Run("skip embed", func(t *testing.T) {
		rec := ts.upload(t, path, "later.txt", []byte("later"), map[string]string{"embed": "false"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, workspace.StatusUploaded, decode[DocumentResponse](t, rec).Document.Status)
	})

	t.Run("bad embed flag", func(t *testing.T) {
		rec := ts.upload(t, path, "x.txt", []byte("x"), map[string]string{"embed": "maybe"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		rec := ts.upload(t, path, "", nil, map[string]string{"name": "nothing"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		rec := ts.upload(t, path, "empty.txt", []byte{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		rec := ts.upload(t, path, "big.txt", []byte(strings.Repeat("a", 4096)), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("missing workspace", func(t *testing.T) {
		rec := ts.upload(t, "/api/v1/workspaces/missing/documents/upload", "a.txt", []byte("a"), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDownloadDocument(t *testing.T) {
	ts := setupTestServer(t, nil)
	ws := ts.createWorkspace(t, "Downloads")
	base := "/api/v1/workspaces/" + ws.ID + "/documents"

	rec := ts.upload(t, base+"/upload", "report final.txt", []byte("original bytes"), map[string]string{"embed": "false"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	doc := decode[DocumentResponse](t, rec).Document

	rec = ts.do(t, http.MethodGet, base+"/"+doc.ID+"/file", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "original bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")
	assert.Equal(t, `attachment; filename="report final.txt"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "14", rec.Header().Get(echo.HeaderContentLength))

	rec = ts.do(t, http.MethodPost, base, CreateDocumentRequest{Name: "typed", Content: "inline"})
	require.Equal(t, http.StatusCreated, rec.Code)
	typed := decode[DocumentResponse](t, rec).Document
	rec = ts.do(t, http.MethodGet, base+"/"+typed.ID+"/file", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/missing/file", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/bad.id/file", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusAndRecount(t *testing.T) {
	ts := setupTestServer(t, &Config{Version: "1.2.3"})
	ws := ts.createWorkspace(t, "Counted")
	for _, name := range []string{"a", "b"} {
		rec := ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/documents",
			CreateDocumentRequest{Name: name, Content: "content " + name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, StatusCounts{Workspaces: 1, Documents: 2, Embedded: 2}, status.Counts)

	rec = ts.do(t, http.MethodPost, "/api/v1/workspaces/"+ws.ID+"/recount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[*workspace.Workspace](t, rec)
	assert.Equal(t, 2, got.DocumentCount)
	assert.Equal(t, 2, got.EmbeddedCount)
}
