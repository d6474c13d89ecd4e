// Package vector provides exact nearest-neighbor indices over unit-normalized embeddings.
package vector

import "context"

// VectorIndex stores normalized vectors at dense positions 0..N-1 together with an
// append-only position -> external ID mapping. The vectors and the mapping are
// saved, loaded and reset as one unit.
//
// Search, Size and Save may run concurrently with each other; Add, AddBatch,
// Reset and Load are exclusive.
type VectorIndex interface {
	// Add normalizes vec to unit length and appends it with externalID.
	Add(ctx context.Context, externalID int64, vec []float32) error
	// AddBatch appends several vectors; either all are added or none.
	AddBatch(ctx context.Context, ids []int64, vectors [][]float32) error
	// Search returns up to k hits by descending inner product with the normalized query.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	// Reset discards every entry.
	Reset() error
	// Save writes the index and mapping into dir.
	Save(dir string) error
	// Load replaces the contents with the index persisted in dir. A dir without a
	// persisted index is not an error and leaves the index unchanged.
	Load(dir string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit. ID is the external (chunk) ID.
type VectorResult struct {
	ID    int64
	Score float64 // inner product of unit vectors, in [-1, 1]
}
