package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docspace/internal/logging"
	"github.com/fyrsmithlabs/docspace/internal/metastore"
	"github.com/fyrsmithlabs/docspace/internal/vectorstore"
)

const (
	maxNameLength        = 256
	maxDescriptionLength = 4096

	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return invalid("name", "must not be empty")
	case len(name) > maxNameLength:
		return invalid("name", fmt.Sprintf("must be at most %d bytes", maxNameLength))
	}
	return nil
}

func validateDescription(desc string) error {
	if len(desc) > maxDescriptionLength {
		return invalid("description", fmt.Sprintf("must be at most %d bytes", maxDescriptionLength))
	}
	return nil
}

// CreateWorkspace persists a new workspace and then creates its vector
// collection.
//
// The metadata record is written first with VectorPending. A collection
// failure is recorded as VectorFailed with the error message and is not
// returned; the workspace exists either way. ErrCollision is returned if the
// generated ID is already taken.
func (c *Coordinator) CreateWorkspace(ctx context.Context, req CreateWorkspaceRequest) (ws *Workspace, err error) {
	ctx, end := c.start(ctx, "create_workspace")
	defer func() { end(err) }()

	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(req.Description); err != nil {
		return nil, err
	}

	now := c.now()
	ws = &Workspace{
		ID:          c.opts.NewID(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Vector:      VectorState{Status: VectorPending},
		Metadata:    req.Metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateID("workspace_id", ws.ID); err != nil {
		return nil, err
	}
	ctx = logging.WithWorkspaceID(ctx, ws.ID)

	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encoding workspace: %w", err)
	}
	if _, err := c.meta.Create(ctx, workspaceKey(ws.ID), data); err != nil {
		if errors.Is(err, metastore.ErrKeyExists) {
			return nil, fmt.Errorf("%w: workspace %s", ErrCollision, ws.ID)
		}
		return nil, fmt.Errorf("creating workspace record: %w", err)
	}

	state := c.createCollection(ctx, ws.ID)
	ws, err = c.mutateWorkspace(ctx, ws.ID, func(w *Workspace) error {
		w.Vector = state
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "workspace created",
		zap.String("workspace_id", ws.ID),
		zap.String("vector_status", string(ws.Vector.Status)))
	return ws, nil
}

// createCollection creates the workspace collection and reports the outcome
// as a VectorState. An already existing collection counts as ready.
func (c *Coordinator) createCollection(ctx context.Context, workspaceID string) VectorState {
	err := c.vectors.CreateCollection(ctx, vectorstore.CollectionName(workspaceID), c.embedder.Dimension())
	if err == nil || errors.Is(err, vectorstore.ErrCollectionExists) {
		return VectorState{Status: VectorReady}
	}
	c.bestEffortFailed(ctx, StoreVector, "create_collection", err,
		zap.String("workspace_id", workspaceID))
	return VectorState{Status: VectorFailed, Error: err.Error()}
}

// GetWorkspace returns the workspace, or nil if it does not exist.
func (c *Coordinator) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	if err := validateID("workspace_id", id); err != nil {
		return nil, err
	}
	ws, _, err := c.loadWorkspace(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return ws, err
}

// ListWorkspaces returns all workspaces ordered by ID, which is creation order.
func (c *Coordinator) ListWorkspaces(ctx context.Context) ([]*Workspace, error) {
	entries, err := c.meta.List(ctx, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}

	out := make([]*Workspace, 0, len(entries))
	for _, e := range entries {
		var ws Workspace
		if err := json.Unmarshal(e.Value, &ws); err != nil {
			c.logger.Warn(ctx, "skipping undecodable workspace record",
				zap.String("key", e.Key), zap.Error(err))
			continue
		}
		out = append(out, &ws)
	}
	return out, nil
}

// UpdateWorkspace changes name, description or metadata.
func (c *Coordinator) UpdateWorkspace(ctx context.Context, id string, req UpdateWorkspaceRequest) (ws *Workspace, err error) {
	ctx, end := c.start(ctx, "update_workspace", attribute.String("workspace.id", id))
	defer func() { end(err) }()

	if err := validateID("workspace_id", id); err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}

	return c.mutateWorkspace(ctx, id, func(w *Workspace) error {
		if req.Name != nil {
			w.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			w.Description = *req.Description
		}
		if req.Metadata != nil {
			w.Metadata = req.Metadata
		}
		return nil
	})
}

// DeleteWorkspace removes a workspace and everything it owns.
//
// Order: vector collection, document blobs (in parallel), document records,
// workspace record. Vector and blob failures are logged and skipped; under
// VectorDeleteStrict a collection drop failure aborts before any metadata is
// removed. Returns false without side effects if the workspace is absent.
// Once started, the sequence ignores cancellation of ctx.
func (c *Coordinator) DeleteWorkspace(ctx context.Context, id string) (deleted bool, err error) {
	ctx, end := c.start(ctx, "delete_workspace", attribute.String("workspace.id", id))
	defer func() { end(err) }()

	if err := validateID("workspace_id", id); err != nil {
		return false, err
	}
	if _, _, err := c.loadWorkspace(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	ctx = logging.WithWorkspaceID(context.WithoutCancel(ctx), id)

	if err := c.vectors.DeleteCollection(ctx, vectorstore.CollectionName(id)); err != nil {
		if c.opts.VectorDeletePolicy == VectorDeleteStrict {
			return false, &UpstreamError{Store: StoreVector, Op: "delete_collection", Err: err}
		}
		c.bestEffortFailed(ctx, StoreVector, "delete_collection", err, zap.String("workspace_id", id))
	}

	docs, err := c.listDocuments(ctx, id)
	if err != nil {
		return false, err
	}

	result := c.deleteBlobs(ctx, id, docs)

	for _, doc := range docs {
		if err := c.meta.Delete(ctx, documentKey(id, doc.ID)); err != nil {
			return false, fmt.Errorf("deleting document record %s: %w", doc.ID, err)
		}
	}

	if err := c.meta.Delete(ctx, workspaceKey(id)); err != nil {
		return false, fmt.Errorf("deleting workspace record: %w", err)
	}

	c.logger.Info(ctx, "workspace deleted",
		zap.String("workspace_id", id),
		zap.Int("documents", len(docs)),
		zap.Int("blobs_attempted", result.Attempted),
		zap.Int("blobs_failed", len(result.Failed)))
	return true, nil
}

// RetryVectorCollection re-attempts collection creation for a workspace that
// is not ready and records the new status. A ready workspace is returned
// unchanged.
func (c *Coordinator) RetryVectorCollection(ctx context.Context, id string) (ws *Workspace, err error) {
	ctx, end := c.start(ctx, "retry_vector_collection", attribute.String("workspace.id", id))
	defer func() { end(err) }()

	if err := validateID("workspace_id", id); err != nil {
		return nil, err
	}
	ws, _, err = c.loadWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Vector.Status == VectorReady {
		return ws, nil
	}

	ctx = logging.WithWorkspaceID(ctx, id)
	state := c.createCollection(ctx, id)
	return c.mutateWorkspace(ctx, id, func(w *Workspace) error {
		w.Vector = state
		return nil
	})
}

// Search runs a semantic query against the workspace collection.
// Returns ErrVectorNotReady unless the collection is ready.
func (c *Coordinator) Search(ctx context.Context, id, query string, limit int) (hits []SearchHit, err error) {
	ctx, end := c.start(ctx, "search", attribute.String("workspace.id", id))
	defer func() { end(err) }()

	if err := validateID("workspace_id", id); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, invalid("query", "must not be empty")
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	ws, _, err := c.loadWorkspace(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.Vector.Status != VectorReady {
		return nil, fmt.Errorf("%w: workspace %s is %s", ErrVectorNotReady, id, ws.Vector.Status)
	}

	results, err := c.vectors.SearchInCollection(ctx, vectorstore.CollectionName(id), query, limit, nil)
	if err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			err = fmt.Errorf("%w: %w", ErrVectorNotReady, err)
		}
		return nil, &UpstreamError{Store: StoreVector, Op: "search", Err: err}
	}

	hits = make([]SearchHit, 0, len(results))
	for _, r := range results {
		name, _ := r.Metadata["name"].(string)
		hits = append(hits, SearchHit{
			DocumentID: r.ID,
			Name:       name,
			Score:      r.Score,
			Content:    r.Content,
		})
	}
	return hits, nil
}

// RecountDocuments rebuilds DocumentCount and EmbeddedCount from the stored
// documents.
func (c *Coordinator) RecountDocuments(ctx context.Context, id string) (ws *Workspace, err error) {
	ctx, end := c.start(ctx, "recount_documents", attribute.String("workspace.id", id))
	defer func() { end(err) }()

	if err := validateID("workspace_id", id); err != nil {
		return nil, err
	}
	if _, _, err := c.loadWorkspace(ctx, id); err != nil {
		return nil, err
	}

	docs, err := c.listDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	embedded := 0
	for _, d := range docs {
		if d.Status == StatusEmbedded {
			embedded++
		}
	}

	return c.mutateWorkspace(ctx, id, func(w *Workspace) error {
		w.DocumentCount = len(docs)
		w.EmbeddedCount = embedded
		return nil
	})
}
