// Package workspace coordinates workspaces and their documents across the
// metadata store, the vector store and the blob store.
//
// None of the stores share a transaction, so every operation runs its store
// calls in a fixed order and records what it learned as status on the
// metadata record:
//
//   - The metadata store is the system of record. Its errors always reach
//     the caller.
//   - Vector and blob failures during creation become status (VectorState,
//     DocumentStatus) instead of errors.
//   - Vector and blob failures during deletion are logged at Warn and the
//     deletion continues, unless VectorDeletePolicyStrict is configured.
//
// Deletes free external resources first and remove the metadata record last,
// so a failed delete can always be retried. Embedding only marks a document
// embedded after the vector store accepted it, so a failed embed can be
// retried without recreating the document.
//
// Workspace counters (DocumentCount, EmbeddedCount) are maintained with
// revision compare-and-swap and are approximate; RecountDocuments rebuilds
// them from the document listing.
package workspace
