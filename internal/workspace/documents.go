package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/blobstore"
	"github.com/fyrsmithlabs/docspace/internal/extract"
	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/metastore"
)

// AddDocument stores a new document record with StatusUploaded. It does not
// embed; see CreateAndEmbedDocument.
func (c *Coordinator) AddDocument(ctx context.Context, workspaceID string, req CreateDocumentRequest) (doc *Document, err error) {
	ctx, end := c.start(ctx, "add_document", attribute.String("workspace.id", workspaceID))
	defer func() { end(err) }()

	return c.addDocument(ctx, workspaceID, c.opts.NewID(), req)
}

func (c *Coordinator) addDocument(ctx context.Context, workspaceID, documentID string, req CreateDocumentRequest) (*Document, error) {
	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if _, _, err := c.loadWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	now := c.now()
	doc := &Document{
		ID:           documentID,
		WorkspaceID:  workspaceID,
		Name:         strings.TrimSpace(req.Name),
		OriginalName: req.OriginalName,
		StorageKey:   req.StorageKey,
		FileSize:     req.FileSize,
		MimeType:     req.MimeType,
		Status:       StatusUploaded,
		Content:      req.Content,
		Metadata:     req.Metadata,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if doc.OriginalName == "" {
		doc.OriginalName = doc.Name
	}
	if doc.MimeType == "" {
		doc.MimeType = extract.MIMEText
	}
	if doc.FileSize == 0 && doc.StorageKey == "" {
		doc.FileSize = int64(len(doc.Content))
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	if _, err := c.meta.Create(ctx, documentKey(workspaceID, documentID), data); err != nil {
		if errors.Is(err, metastore.ErrKeyExists) {
			return nil, fmt.Errorf("%w: document %s/%s", ErrCollision, workspaceID, documentID)
		}
		return nil, fmt.Errorf("creating document record: %w", err)
	}

	c.adjustCounters(ctx, workspaceID, 1, 0)

	c.logger.Debug(ctx, "document added",
		zap.String("workspace_id", workspaceID),
		zap.String("document_id", documentID))
	return doc, nil
}

// GetDocument returns the document, or nil if it does not exist.
func (c *Coordinator) GetDocument(ctx context.Context, workspaceID, documentID string) (*Document, error) {
	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}
	doc, _, err := c.loadDocument(ctx, workspaceID, documentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return doc, err
}

// OpenDocumentFile returns the document and a reader over its original
// uploaded bytes. The caller closes the reader.
//
// Returns ErrNotFound if the document does not exist or was created from
// text rather than uploaded. A record whose blob is missing is reported as
// an *UpstreamError.
func (c *Coordinator) OpenDocumentFile(ctx context.Context, workspaceID, documentID string) (doc *Document, rc io.ReadCloser, err error) {
	ctx, end := c.start(ctx, "open_document_file",
		attribute.String("workspace.id", workspaceID),
		attribute.String("document.id", documentID))
	defer func() { end(err) }()

	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, nil, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return nil, nil, err
	}
	doc, _, err = c.loadDocument(ctx, workspaceID, documentID)
	if err != nil {
		return nil, nil, err
	}
	if doc.StorageKey == "" {
		return nil, nil, fmt.Errorf("%w: document %s/%s has no stored file", ErrNotFound, workspaceID, documentID)
	}

	rc, err = c.blobs.Open(ctx, doc.StorageKey)
	if err != nil {
		return nil, nil, &UpstreamError{Store: StoreBlob, Op: "open", Err: err}
	}
	return doc, rc, nil
}

// ListDocuments returns the documents of a workspace in creation order.
// Returns ErrNotFound if the workspace does not exist.
func (c *Coordinator) ListDocuments(ctx context.Context, workspaceID string) ([]*Document, error) {
	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, err
	}
	if _, _, err := c.loadWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}
	return c.listDocuments(ctx, workspaceID)
}

// DeleteDocument removes a document: blob, then vector, then the metadata
// record. Blob and vector failures are logged and skipped; under
// VectorDeleteStrict a vector failure aborts before the record is removed.
// Returns false if the document record was already absent.
func (c *Coordinator) DeleteDocument(ctx context.Context, workspaceID, documentID string) (deleted bool, err error) {
	ctx, end := c.start(ctx, "delete_document",
		attribute.String("workspace.id", workspaceID),
		attribute.String("document.id", documentID))
	defer func() { end(err) }()

	if err := validateID("workspace_id", workspaceID); err != nil {
		return false, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return false, err
	}

	doc, _, err := c.loadDocument(ctx, workspaceID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	ctx = logging.WithWorkspaceID(context.WithoutCancel(ctx), workspaceID)
	ctx = logging.WithDocumentID(ctx, documentID)

	if doc.StorageKey != "" {
		if err := c.blobs.Delete(ctx, doc.StorageKey); err != nil {
			c.bestEffortFailed(ctx, StoreBlob, "delete", err,
				zap.String("workspace_id", workspaceID),
				zap.String("document_id", documentID),
				zap.String("storage_key", doc.StorageKey))
		}
	}

	if err := c.dropVector(ctx, workspaceID, documentID, "delete_document"); err != nil {
		return false, err
	}

	if err := c.meta.Delete(ctx, documentKey(workspaceID, documentID)); err != nil {
		return false, fmt.Errorf("deleting document record: %w", err)
	}

	embedded := 0
	if doc.Status == StatusEmbedded {
		embedded = -1
	}
	c.adjustCounters(ctx, workspaceID, -1, embedded)

	c.logger.Info(ctx, "document deleted",
		zap.String("workspace_id", workspaceID),
		zap.String("document_id", documentID))
	return true, nil
}

// UploadDocument stores the file in the blob store, extracts its text and
// creates the document record, embedding it when EmbedOnCreate is set.
//
// The blob is written before the record so that a stored record always
// points at existing content. If the record cannot be created the blob is
// deleted best-effort. Embedding failures behave as in
// CreateAndEmbedDocument.
func (c *Coordinator) UploadDocument(ctx context.Context, workspaceID string, req UploadRequest, body io.Reader, opts EmbedOptions) (doc *Document, err error) {
	ctx, end := c.start(ctx, "upload_document", attribute.String("workspace.id", workspaceID))
	defer func() { end(err) }()

	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, invalid("file_name", "must not be empty")
	}
	if req.Name == "" {
		req.Name = req.FileName
	}
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if _, _, err := c.loadWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, invalid("file", "must not be empty")
	}

	mimeType := extract.DetectMIME(req.MimeType, req.FileName, data)
	text, err := extract.Text(ctx, data, mimeType, req.FileName)
	if err != nil {
		return nil, invalid("file", err.Error())
	}

	documentID := c.opts.NewID()
	ctx = logging.WithWorkspaceID(ctx, workspaceID)
	ctx = logging.WithDocumentID(ctx, documentID)

	key := blobstore.Key(workspaceID, documentID, req.FileName)
	size, err := c.blobs.Put(ctx, key, bytes.NewReader(data), mimeType)
	if err != nil {
		return nil, &UpstreamError{Store: StoreBlob, Op: "put", Err: err}
	}

	doc, err = c.addDocument(ctx, workspaceID, documentID, CreateDocumentRequest{
		Name:         req.Name,
		OriginalName: req.FileName,
		MimeType:     mimeType,
		StorageKey:   key,
		FileSize:     size,
		Content:      text,
		Metadata:     req.Metadata,
	})
	if err != nil {
		if delErr := c.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			c.bestEffortFailed(ctx, StoreBlob, "delete", delErr,
				zap.String("workspace_id", workspaceID),
				zap.String("document_id", documentID),
				zap.String("storage_key", key))
		}
		return nil, err
	}

	return c.embedAfterCreate(ctx, doc, opts)
}
