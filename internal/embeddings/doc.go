// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX, cgo builds only) and TEI (an external text
// embeddings inference service). NewProvider selects the provider at runtime
// and reports the vector dimension for well-known models so collections can be
// created before the first embedding call.
package embeddings
