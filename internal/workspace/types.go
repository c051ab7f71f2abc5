package workspace

import (
	"time"
)

// VectorStatus is the believed state of a workspace's vector collection.
type VectorStatus string

const (
	// VectorPending means the collection has not been created yet.
	VectorPending VectorStatus = "pending"
	// VectorReady means collection creation succeeded.
	VectorReady VectorStatus = "ready"
	// VectorFailed means collection creation failed; see VectorState.Error.
	VectorFailed VectorStatus = "failed"
)

// Valid reports whether s is a known status.
func (s VectorStatus) Valid() bool {
	switch s {
	case VectorPending, VectorReady, VectorFailed:
		return true
	}
	return false
}

// VectorState records the vector collection status of a workspace.
type VectorState struct {
	Status VectorStatus `json:"status"`
	// Error holds the last creation error when Status is VectorFailed.
	Error string `json:"error,omitempty"`
}

// DocumentStatus drives whether a vector representation is believed to exist.
type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusEmbedded   DocumentStatus = "embedded"
	StatusError      DocumentStatus = "error"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusEmbedded, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether a document may move from s to next.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case StatusUploaded:
		return next == StatusProcessing || next == StatusEmbedded || next == StatusError
	case StatusProcessing:
		return next == StatusEmbedded || next == StatusError
	case StatusEmbedded:
		return next == StatusUploaded
	case StatusError:
		return next == StatusUploaded || next == StatusEmbedded
	}
	return false
}

// VectorDeletePolicy decides how vector failures affect deletes.
type VectorDeletePolicy string

const (
	// VectorDeleteBestEffort logs vector failures and continues the delete.
	VectorDeleteBestEffort VectorDeletePolicy = "best_effort"
	// VectorDeleteStrict aborts the delete before the metadata record is
	// removed and returns an *UpstreamError.
	VectorDeleteStrict VectorDeletePolicy = "strict"
)

// Valid reports whether p is a known policy.
func (p VectorDeletePolicy) Valid() bool {
	return p == VectorDeleteBestEffort || p == VectorDeleteStrict
}

// Workspace is the metadata record of a workspace.
type Workspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// DocumentCount and EmbeddedCount are materialized and approximate.
	DocumentCount int `json:"document_count"`
	EmbeddedCount int `json:"embedded_count"`

	Vector VectorState `json:"vector"`

	// Metadata is free-form extension data.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Document is the metadata record of a document owned by one workspace.
type Document struct {
	ID           string `json:"id"`
	WorkspaceID  string `json:"workspace_id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	// StorageKey is the blob store key; empty for documents created from text.
	StorageKey string         `json:"storage_key,omitempty"`
	FileSize   int64          `json:"file_size"`
	MimeType   string         `json:"mime_type"`
	Status     DocumentStatus `json:"status"`

	// Content is the extracted text that gets embedded.
	Content string `json:"content,omitempty"`
	// EmbeddingModel is the model that produced the current vector.
	EmbeddingModel string `json:"embedding_model,omitempty"`
	// EmbedError holds the last embedding error when Status is StatusError.
	EmbedError string `json:"embed_error,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	UploadedAt time.Time  `json:"uploaded_at"`
	EmbeddedAt *time.Time `json:"embedded_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// CreateWorkspaceRequest holds the caller-supplied fields of a new workspace.
type CreateWorkspaceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateWorkspaceRequest changes the fields that are set.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	// Metadata replaces the whole map when non-nil.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateDocumentRequest holds the caller-supplied fields of a new document.
type CreateDocumentRequest struct {
	Name         string         `json:"name"`
	OriginalName string         `json:"original_name,omitempty"`
	MimeType     string         `json:"mime_type,omitempty"`
	StorageKey   string         `json:"storage_key,omitempty"`
	FileSize     int64          `json:"file_size,omitempty"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// UploadRequest describes a file upload.
type UploadRequest struct {
	// Name defaults to FileName.
	Name     string
	FileName string
	// MimeType is the declared type; it is sniffed when empty or generic.
	MimeType string
	Metadata map[string]any
}

// EmbedOptions tunes a single embedding run.
type EmbedOptions struct {
	// Model overrides the provenance label recorded on the document.
	Model string
	// RecordFailure writes StatusError when the vector store rejects the
	// document. By default a failed embed leaves the status unchanged.
	RecordFailure bool
	// SkipEmbed creates the document without embedding it.
	SkipEmbed bool
}

// SearchHit is one semantic search result.
type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Name       string  `json:"name,omitempty"`
	Score      float32 `json:"score"`
	Content    string  `json:"content"`
}

// BatchFailure is one failed item of a best-effort batch.
type BatchFailure struct {
	DocumentID string
	Key        string
	Err        error
}

// BatchResult reports a best-effort batch that always runs to completion.
type BatchResult struct {
	Attempted int
	Failed    []BatchFailure
}

// Succeeded returns the number of items that did not fail.
func (r BatchResult) Succeeded() int {
	return r.Attempted - len(r.Failed)
}
