package vectorstore_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
)

// hashEmbedder returns deterministic unit vectors derived from the text, so
// identical texts embed identically and different texts usually differ.
type hashEmbedder struct {
	vectorSize int
	fail       atomic.Bool
	calls      atomic.Int64
}

var errEmbedderDown = errors.New("embedder unavailable")

func (e *hashEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls.Add(1)
	if e.fail.Load() {
		return nil, errEmbedderDown
	}
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.makeEmbedding(text)
	}
	return embeddings, nil
}

func (e *hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.fail.Load() {
		return nil, errEmbedderDown
	}
	return e.makeEmbedding(text), nil
}

// makeEmbedding creates a normalized embedding based on text hash.
// chromem requires normalized vectors.
func (e *hashEmbedder) makeEmbedding(text string) []float32 {
	embedding := make([]float32, e.vectorSize)
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 1000
	}
	var sumSq float64
	for i := range embedding {
		embedding[i] = float32((hash+i*7)%100+1) / 100.0
		sumSq += float64(embedding[i]) * float64(embedding[i])
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range embedding {
		embedding[i] *= norm
	}
	return embedding
}
