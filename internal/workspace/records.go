package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/metastore"
)

const (
	workspacePrefix = "workspace."
	documentPrefix  = "document."
)

// idPattern keeps IDs usable as metadata key tokens and inside collection
// names ("ws_" + id).
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,48}$`)

// NewID returns a sortable, opaque identifier.
func NewID() string {
	return ksuid.New().String()
}

func validateID(field, id string) error {
	if !idPattern.MatchString(id) {
		return invalid(field, fmt.Sprintf("must match %s", idPattern.String()))
	}
	return nil
}

func workspaceKey(id string) string { return workspacePrefix + id }

func documentKey(workspaceID, documentID string) string {
	return documentPrefix + workspaceID + "." + documentID
}

func documentListPrefix(workspaceID string) string {
	return documentPrefix + workspaceID + "."
}

func (c *Coordinator) loadWorkspace(ctx context.Context, id string) (*Workspace, uint64, error) {
	entry, err := c.meta.Get(ctx, workspaceKey(id))
	if errors.Is(err, metastore.ErrNotFound) {
		return nil, 0, fmt.Errorf("%w: workspace %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading workspace %s: %w", id, err)
	}

	var ws Workspace
	if err := json.Unmarshal(entry.Value, &ws); err != nil {
		return nil, 0, fmt.Errorf("decoding workspace %s: %w", id, err)
	}
	return &ws, entry.Revision, nil
}

func (c *Coordinator) loadDocument(ctx context.Context, workspaceID, documentID string) (*Document, uint64, error) {
	entry, err := c.meta.Get(ctx, documentKey(workspaceID, documentID))
	if errors.Is(err, metastore.ErrNotFound) {
		return nil, 0, fmt.Errorf("%w: document %s/%s", ErrNotFound, workspaceID, documentID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("loading document %s/%s: %w", workspaceID, documentID, err)
	}

	var doc Document
	if err := json.Unmarshal(entry.Value, &doc); err != nil {
		return nil, 0, fmt.Errorf("decoding document %s/%s: %w", workspaceID, documentID, err)
	}
	return &doc, entry.Revision, nil
}

// listDocuments decodes every document of a workspace in key order.
// Undecodable records are skipped with a warning.
func (c *Coordinator) listDocuments(ctx context.Context, workspaceID string) ([]*Document, error) {
	entries, err := c.meta.List(ctx, documentListPrefix(workspaceID))
	if err != nil {
		return nil, fmt.Errorf("listing documents of %s: %w", workspaceID, err)
	}

	docs := make([]*Document, 0, len(entries))
	for _, e := range entries {
		var doc Document
		if err := json.Unmarshal(e.Value, &doc); err != nil {
			c.logger.Warn(ctx, "skipping undecodable document record",
				zap.String("key", e.Key), zap.Error(err))
			continue
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}

// mutateWorkspace applies fn to the stored workspace and writes it back with
// revision compare-and-swap, re-reading on conflict.
func (c *Coordinator) mutateWorkspace(ctx context.Context, id string, fn func(*Workspace) error) (*Workspace, error) {
	for attempt := 0; attempt < c.opts.CounterRetries; attempt++ {
		ws, rev, err := c.loadWorkspace(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(ws); err != nil {
			return nil, err
		}
		ws.UpdatedAt = c.now()

		data, err := json.Marshal(ws)
		if err != nil {
			return nil, fmt.Errorf("encoding workspace %s: %w", id, err)
		}
		_, err = c.meta.Update(ctx, workspaceKey(id), data, rev)
		switch {
		case err == nil:
			return ws, nil
		case errors.Is(err, metastore.ErrRevisionMismatch):
			continue
		case errors.Is(err, metastore.ErrNotFound):
			return nil, fmt.Errorf("%w: workspace %s", ErrNotFound, id)
		default:
			return nil, fmt.Errorf("writing workspace %s: %w", id, err)
		}
	}
	return nil, fmt.Errorf("writing workspace %s: %w after %d attempts", id, metastore.ErrRevisionMismatch, c.opts.CounterRetries)
}

// mutateDocument is mutateWorkspace for document records.
func (c *Coordinator) mutateDocument(ctx context.Context, workspaceID, documentID string, fn func(*Document) error) (*Document, error) {
	key := documentKey(workspaceID, documentID)
	for attempt := 0; attempt < c.opts.CounterRetries; attempt++ {
		doc, rev, err := c.loadDocument(ctx, workspaceID, documentID)
		if err != nil {
			return nil, err
		}
		if err := fn(doc); err != nil {
			return nil, err
		}
		doc.UpdatedAt = c.now()

		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encoding document %s: %w", key, err)
		}
		_, err = c.meta.Update(ctx, key, data, rev)
		switch {
		case err == nil:
			return doc, nil
		case errors.Is(err, metastore.ErrRevisionMismatch):
			continue
		case errors.Is(err, metastore.ErrNotFound):
			return nil, fmt.Errorf("%w: document %s/%s", ErrNotFound, workspaceID, documentID)
		default:
			return nil, fmt.Errorf("writing document %s: %w", key, err)
		}
	}
	return nil, fmt.Errorf("writing document %s: %w after %d attempts", key, metastore.ErrRevisionMismatch, c.opts.CounterRetries)
}

// adjustCounters applies deltas to the workspace counters, clamping at zero.
// Counters are approximate, so failures are logged rather than returned.
func (c *Coordinator) adjustCounters(ctx context.Context, workspaceID string, documents, embedded int) {
	if documents == 0 && embedded == 0 {
		return
	}
	_, err := c.mutateWorkspace(ctx, workspaceID, func(ws *Workspace) error {
		ws.DocumentCount = max(0, ws.DocumentCount+documents)
		ws.EmbeddedCount = max(0, ws.EmbeddedCount+embedded)
		return nil
	})
	if err != nil {
		c.logger.Warn(ctx, "workspace counter update failed",
			zap.String("workspace_id", workspaceID), zap.Error(err))
	}
}
