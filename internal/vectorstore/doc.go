// Package vectorstore provides per-workspace vector collections.
//
// Each workspace owns exactly one collection. Collections are created
// explicitly (CreateCollection) and documents are upserted into an existing
// collection; AddDocuments never creates a collection implicitly, so a
// workspace whose collection failed to create stays visibly degraded until
// the caller retries.
//
// # Providers
//
// ChromemStore (default):
//   - Embedded chromem-go storage, no external service
//   - Persists collections as gob files under a directory
//
// QdrantStore:
//   - External Qdrant server over gRPC (port 6334)
//   - Point IDs are derived deterministically from document IDs so
//     re-embedding a document overwrites its previous vector
//
// Provider selection via config:
//
//	vectorstore:
//	  provider: chromem  # "chromem" (default) or "qdrant"
//
// # Usage
//
//	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
//	    Path:       "/data/vectors",
//	    VectorSize: 384,
//	}, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	coll := vectorstore.CollectionName(workspaceID)
//	if err := store.CreateCollection(ctx, coll, 384); err != nil {
//	    return err
//	}
//	_, err = store.AddDocuments(ctx, []vectorstore.Document{{
//	    ID:         documentID,
//	    Content:    "extracted text",
//	    Collection: coll,
//	}})
//
// Collection names must match ^[A-Za-z0-9_]{1,64}$.
package vectorstore
