package workspace

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// deleteBlobs deletes the blobs of docs in parallel. Every item is attempted;
// failures (including panics) are logged and collected, never returned early.
func (c *Coordinator) deleteBlobs(ctx context.Context, workspaceID string, docs []*Document) BatchResult {
	var (
		result BatchResult
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	sem := semaphore.NewWeighted(int64(c.opts.BlobDeleteConcurrency))

	fail := func(doc *Document, err error) {
		c.bestEffortFailed(ctx, StoreBlob, "delete", err,
			zap.String("workspace_id", workspaceID),
			zap.String("document_id", doc.ID),
			zap.String("storage_key", doc.StorageKey))
		mu.Lock()
		result.Failed = append(result.Failed, BatchFailure{DocumentID: doc.ID, Key: doc.StorageKey, Err: err})
		mu.Unlock()
	}

	for _, doc := range docs {
		if doc.StorageKey == "" {
			continue
		}
		result.Attempted++

		// ctx is detached from cancellation by the caller, so Acquire only
		// blocks until a slot frees up.
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(doc, err)
			continue
		}
		wg.Add(1)
		go func(doc *Document) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					fail(doc, fmt.Errorf("panic: %v", r))
				}
			}()

			if err := c.blobs.Delete(ctx, doc.StorageKey); err != nil {
				fail(doc, err)
			}
		}(doc)
	}
	wg.Wait()

	return result
}
