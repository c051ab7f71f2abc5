package workspace

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

// EmbedDocument sends the document content to the vector store and, only
// after the store accepted it, marks the document embedded with the model
// and time.
//
// Returns nil, nil if the document does not exist and the document unchanged
// if it has no content. When the vector store fails the status is left as it
// was, unless opts.RecordFailure is set, and an *UpstreamError is returned.
func (c *Coordinator) EmbedDocument(ctx context.Context, workspaceID, documentID string, opts EmbedOptions) (doc *Document, err error) {
	ctx, end := c.start(ctx, "embed_document",
		attribute.String("workspace.id", workspaceID),
		attribute.String("document.id", documentID))
	defer func() { end(err) }()

	if err := validateID("workspace_id", workspaceID); err != nil {
		return nil, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}

	doc, _, err = c.loadDocument(ctx, workspaceID, documentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return c.embed(ctx, doc, opts)
}

func (c *Coordinator) embed(ctx context.Context, doc *Document, opts EmbedOptions) (*Document, error) {
	if doc.Content == "" {
		return doc, nil
	}

	ctx = logging.WithWorkspaceID(ctx, doc.WorkspaceID)
	ctx = logging.WithDocumentID(ctx, doc.ID)

	model := opts.Model
	if model == "" {
		model = c.embedder.Model()
	}

	_, err := c.vectors.AddDocuments(ctx, []vectorstore.Document{{
		ID:         doc.ID,
		Content:    doc.Content,
		Collection: vectorstore.CollectionName(doc.WorkspaceID),
		Metadata: map[string]interface{}{
			"workspace_id": doc.WorkspaceID,
			"document_id":  doc.ID,
			"name":         doc.Name,
			"mime_type":    doc.MimeType,
		},
	}})
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			err = fmt.Errorf("%w: %w", ErrVectorNotReady, err)
		}
		upstream := &UpstreamError{Store: StoreVector, Op: "add_document", Err: err}
		if opts.RecordFailure {
			c.recordEmbedFailure(ctx, doc, upstream)
		}
		return nil, upstream
	}

	previous := doc.Status
	updated, err := c.mutateDocument(ctx, doc.WorkspaceID, doc.ID, func(d *Document) error {
		previous = d.Status
		now := c.now()
		d.Status = StatusEmbedded
		d.EmbeddedAt = &now
		d.EmbeddingModel = model
		d.EmbedError = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previous != StatusEmbedded {
		c.adjustCounters(ctx, doc.WorkspaceID, 0, 1)
	}

	c.logger.Info(ctx, "document embedded",
		zap.String("workspace_id", doc.WorkspaceID),
		zap.String("document_id", doc.ID),
		zap.String("model", model))
	return updated, nil
}

// recordEmbedFailure moves the document to StatusError. The embed error is
// what the caller sees, so a failure here is only logged.
func (c *Coordinator) recordEmbedFailure(ctx context.Context, doc *Document, cause error) {
	_, err := c.mutateDocument(ctx, doc.WorkspaceID, doc.ID, func(d *Document) error {
		if !d.Status.CanTransition(StatusError) {
			return fmt.Errorf("cannot move document from %s to %s", d.Status, StatusError)
		}
		d.Status = StatusError
		d.EmbedError = cause.Error()
		return nil
	})
	if err != nil {
		c.logger.Warn(ctx, "recording embed failure failed",
			zap.String("workspace_id", doc.WorkspaceID),
			zap.String("document_id", doc.ID),
			zap.Error(err))
	}
}

// CreateAndEmbedDocument creates the document record and then embeds it when
// EmbedOnCreate is set and opts.SkipEmbed is not.
//
// If embedding fails, the created document (still StatusUploaded) is
// returned together with the error so the caller can retry EmbedDocument
// without recreating it.
func (c *Coordinator) CreateAndEmbedDocument(ctx context.Context, workspaceID string, req CreateDocumentRequest, opts EmbedOptions) (doc *Document, err error) {
	ctx, end := c.start(ctx, "create_and_embed_document", attribute.String("workspace.id", workspaceID))
	defer func() { end(err) }()

	doc, err = c.addDocument(ctx, workspaceID, c.opts.NewID(), req)
	if err != nil {
		return nil, err
	}
	return c.embedAfterCreate(ctx, doc, opts)
}

func (c *Coordinator) embedAfterCreate(ctx context.Context, doc *Document, opts EmbedOptions) (*Document, error) {
	if !c.opts.EmbedOnCreate || opts.SkipEmbed {
		return doc, nil
	}

	embedded, err := c.embed(ctx, doc, opts)
	if err != nil {
		c.logger.Warn(ctx, "document created but not embedded",
			zap.String("workspace_id", doc.WorkspaceID),
			zap.String("document_id", doc.ID),
			zap.Error(err))
		if opts.RecordFailure {
			if current, _, loadErr := c.loadDocument(ctx, doc.WorkspaceID, doc.ID); loadErr == nil {
				doc = current
			}
		}
		return doc, err
	}
	return embedded, nil
}

// ReembedIfContentChanged replaces the document content and re-embeds it.
//
// Content is compared verbatim; whitespace differences count as changes.
// Unchanged content returns false without any write. Changed content is
// stored with StatusUploaded before embedding, so true is returned together
// with the embed error if embedding then fails.
//
// The previous vector never outlives the content it was built from. Empty
// content removes it before the record is rewritten, so under
// VectorDeleteStrict a failed removal returns false and leaves the document
// as it was. A failed re-embed removes the stale vector best-effort.
func (c *Coordinator) ReembedIfContentChanged(ctx context.Context, workspaceID, documentID, newContent string, opts EmbedOptions) (changed bool, err error) {
	ctx, end := c.start(ctx, "reembed_if_content_changed",
		attribute.String("workspace.id", workspaceID),
		attribute.String("document.id", documentID))
	defer func() { end(err) }()

	if err := validateID("workspace_id", workspaceID); err != nil {
		return false, err
	}
	if err := validateID("document_id", documentID); err != nil {
		return false, err
	}

	current, _, err := c.loadDocument(ctx, workspaceID, documentID)
	if err != nil {
		return false, err
	}
	if current.Content == newContent {
		return false, nil
	}
	if newContent == "" {
		if err := c.dropVector(ctx, workspaceID, documentID, "delete_document"); err != nil {
			return false, err
		}
	}

	wasEmbedded := false
	doc, err := c.mutateDocument(ctx, workspaceID, documentID, func(d *Document) error {
		wasEmbedded = d.Status == StatusEmbedded
		if d.Status != StatusUploaded && !d.Status.CanTransition(StatusUploaded) {
			return fmt.Errorf("cannot reset document in status %s", d.Status)
		}
		d.Content = newContent
		if d.StorageKey == "" {
			d.FileSize = int64(len(newContent))
		}
		d.Status = StatusUploaded
		d.EmbeddedAt = nil
		d.EmbedError = ""
		return nil
	})
	if err != nil {
		return false, err
	}
	if wasEmbedded {
		c.adjustCounters(ctx, workspaceID, 0, -1)
	}

	if _, err := c.embed(ctx, doc, opts); err != nil {
		if dropErr := c.dropVector(ctx, workspaceID, documentID, "delete_stale_vector"); dropErr != nil {
			c.bestEffortFailed(ctx, StoreVector, "delete_stale_vector", dropErr,
				zap.String("workspace_id", workspaceID),
				zap.String("document_id", documentID))
		}
		return true, err
	}
	return true, nil
}

// dropVector removes one document from the workspace collection. A missing
// collection means there is nothing to remove. Other failures are returned
// under VectorDeleteStrict and logged otherwise.
func (c *Coordinator) dropVector(ctx context.Context, workspaceID, documentID, op string) error {
	err := c.vectors.DeleteDocumentsFromCollection(ctx, vectorstore.CollectionName(workspaceID), []string{documentID})
	if err == nil || errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil
	}
	if c.opts.VectorDeletePolicy == VectorDeleteStrict {
		return &UpstreamError{Store: StoreVector, Op: op, Err: err}
	}
	c.bestEffortFailed(ctx, StoreVector, op, err,
		zap.String("workspace_id", workspaceID),
		zap.String("document_id", documentID))
	return nil
}
