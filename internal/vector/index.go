// Package vector provides nearest-neighbour search over chunk embeddings.
package vector

import "context"

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit keyed by chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}

// Distance returns the cosine distance (0 for identical direction).
func (r *VectorResult) Distance() float64 {
	return 1 - r.Score
}
