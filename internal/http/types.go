package http

import (
	"context"
	"io"

	"github.com/fyrsmithlabs/docspace/internal/workspace"
)

// Coordinator is the workspace API served over HTTP.
type Coordinator interface {
	CreateWorkspace(ctx context.Context, req workspace.CreateWorkspaceRequest) (*workspace.Workspace, error)
	GetWorkspace(ctx context.Context, id string) (*workspace.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]*workspace.Workspace, error)
	UpdateWorkspace(ctx context.Context, id string, req workspace.UpdateWorkspaceRequest) (*workspace.Workspace, error)
	DeleteWorkspace(ctx context.Context, id string) (bool, error)
	RetryVectorCollection(ctx context.Context, id string) (*workspace.Workspace, error)
	RecountDocuments(ctx context.Context, id string) (*workspace.Workspace, error)
	Search(ctx context.Context, id, query string, limit int) ([]workspace.SearchHit, error)

	CreateAndEmbedDocument(ctx context.Context, workspaceID string, req workspace.CreateDocumentRequest, opts workspace.EmbedOptions) (*workspace.Document, error)
	UploadDocument(ctx context.Context, workspaceID string, req workspace.UploadRequest, body io.Reader, opts workspace.EmbedOptions) (*workspace.Document, error)
	GetDocument(ctx context.Context, workspaceID, documentID string) (*workspace.Document, error)
	OpenDocumentFile(ctx context.Context, workspaceID, documentID string) (*workspace.Document, io.ReadCloser, error)
	ListDocuments(ctx context.Context, workspaceID string) ([]*workspace.Document, error)
	DeleteDocument(ctx context.Context, workspaceID, documentID string) (bool, error)
	EmbedDocument(ctx context.Context, workspaceID, documentID string, opts workspace.EmbedOptions) (*workspace.Document, error)
	ReembedIfContentChanged(ctx context.Context, workspaceID, documentID, newContent string, opts workspace.EmbedOptions) (bool, error)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Counts  StatusCounts `json:"counts"`
}

// StatusCounts totals the stored workspaces and documents.
type StatusCounts struct {
	Workspaces int `json:"workspaces"`
	Documents  int `json:"documents"`
	Embedded   int `json:"embedded"`
	// VectorFailed counts workspaces whose collection needs a retry.
	VectorFailed int `json:"vector_failed"`
}

// CreateWorkspaceRequest is the request body for POST /api/v1/workspaces.
type CreateWorkspaceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateWorkspaceRequest is the request body for PATCH /api/v1/workspaces/:id.
type UpdateWorkspaceRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ListWorkspacesResponse is the response body for GET /api/v1/workspaces.
type ListWorkspacesResponse struct {
	Workspaces []*workspace.Workspace `json:"workspaces"`
}

// SearchRequest is the request body for POST /api/v1/workspaces/:id/search.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponse is the response body for search.
type SearchResponse struct {
	Results []workspace.SearchHit `json:"results"`
}

// CreateDocumentRequest is the request body for POST .../documents.
type CreateDocumentRequest struct {
	Name         string         `json:"name"`
	OriginalName string         `json:"original_name,omitempty"`
	MimeType     string         `json:"mime_type,omitempty"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	// Embed defaults to true.
	Embed *bool  `json:"embed,omitempty"`
	Model string `json:"model,omitempty"`
}

// DocumentResponse carries a document and, when it was stored but could not
// be embedded, the embed error.
type DocumentResponse struct {
	Document   *workspace.Document `json:"document"`
	EmbedError string              `json:"embed_error,omitempty"`
}

// ListDocumentsResponse is the response body for GET .../documents.
type ListDocumentsResponse struct {
	Documents []*workspace.Document `json:"documents"`
}

// EmbedRequest is the optional request body for POST .../embed.
type EmbedRequest struct {
	Model string `json:"model,omitempty"`
}

// UpdateContentRequest is the request body for PUT .../content.
type UpdateContentRequest struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// UpdateContentResponse reports whether the content changed.
type UpdateContentResponse struct {
	Changed    bool                `json:"changed"`
	Document   *workspace.Document `json:"document,omitempty"`
	EmbedError string              `json:"embed_error,omitempty"`
}

// DeleteResponse is returned by every delete endpoint.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
