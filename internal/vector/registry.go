package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry owns one VectorIndex per repository, each persisted under root/repo-<id>.
// Indices are created and loaded lazily on first use.
type Registry struct {
	root      string
	indexType string
	dims      int
	logger    *zap.Logger

	mu      sync.Mutex
	indices map[int64]VectorIndex
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger. If nil, a no-op logger is used.
func WithRegistryLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a registry rooted at root. indexType is passed to NewVectorIndex.
func NewRegistry(root, indexType string, dims int, opts ...RegistryOption) (*Registry, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	check, err := NewVectorIndex(indexType, dims)
	if err != nil {
		return nil, fmt.Errorf("index type %q: %w", indexType, err)
	}
	_ = check.Close()
	r := &Registry{
		root:      root,
		indexType: indexType,
		dims:      dims,
		logger:    zap.NewNop(),
		indices:   make(map[int64]VectorIndex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the persistence directory of a repository's index.
func (r *Registry) Dir(repoID int64) string {
	if r.root == "" {
		return ""
	}
	return filepath.Join(r.root, fmt.Sprintf("repo-%d", repoID))
}

// Get returns the repository's index, loading it from disk the first time.
func (r *Registry) Get(repoID int64) (VectorIndex, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(repoID)
}

func (r *Registry) getLocked(repoID int64) (VectorIndex, error) {
	if idx, ok := r.indices[repoID]; ok {
		return idx, nil
	}
	idx, err := NewVectorIndex(r.indexType, r.dims)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(r.Dir(repoID)); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("load index for repository %d: %w", repoID, err)
	}
	r.logger.Debug("vector index opened",
		zap.Int64("repo_id", repoID),
		zap.Int("vectors", idx.Size()),
		zap.String("type", idx.Type()))
	r.indices[repoID] = idx
	return idx, nil
}

// Rebuild replaces a repository's vectors with ids/vectors and persists the result.
// The new index is filled and saved before it replaces the open one, so a rejected
// batch leaves both the served index and the files on disk untouched.
func (r *Registry) Rebuild(ctx context.Context, repoID int64, ids []int64, vectors [][]float32) error {
	next, err := NewVectorIndex(r.indexType, r.dims)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := next.AddBatch(ctx, ids, vectors); err != nil {
			_ = next.Close()
			return fmt.Errorf("add vectors: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := next.Save(r.Dir(repoID)); err != nil {
		_ = next.Close()
		return fmt.Errorf("save index: %w", err)
	}
	if old, ok := r.indices[repoID]; ok {
		_ = old.Close()
	}
	r.indices[repoID] = next
	r.logger.Info("vector index rebuilt", zap.Int64("repo_id", repoID), zap.Int("vectors", next.Size()))
	return nil
}

// Search runs a k-nearest search against one repository's index.
func (r *Registry) Search(ctx context.Context, repoID int64, query []float32, k int) ([]*VectorResult, error) {
	idx, err := r.Get(repoID)
	if err != nil {
		return nil, err
	}
	return idx.Search(ctx, query, k)
}

// Drop closes a repository's index and removes its directory.
func (r *Registry) Drop(repoID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indices[repoID]; ok {
		_ = idx.Close()
		delete(r.indices, repoID)
	}
	dir := r.Dir(repoID)
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrPersistence, dir, err)
	}
	return nil
}

// SaveAll persists every open index. The first error is returned after all are attempted.
func (r *Registry) SaveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for _, id := range r.openIDs() {
		if err := r.indices[id].Save(r.Dir(id)); err != nil {
			r.logger.Error("save vector index failed", zap.Int64("repo_id", id), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Sizes returns the vector count of every open index keyed by repository ID.
func (r *Registry) Sizes() map[int64]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]int, len(r.indices))
	for id, idx := range r.indices {
		out[id] = idx.Size()
	}
	return out
}

// TotalSize returns the number of vectors across open indices.
func (r *Registry) TotalSize() int {
	total := 0
	for _, n := range r.Sizes() {
		total += n
	}
	return total
}

// Type returns the backend used for new indices.
func (r *Registry) Type() string {
	if r.indexType == "" {
		return string(IndexTypeMemory)
	}
	return r.indexType
}

// Close closes every open index without saving.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, idx := range r.indices {
		_ = idx.Close()
		delete(r.indices, id)
	}
	return nil
}

func (r *Registry) openIDs() []int64 {
	ids := make([]int64, 0, len(r.indices))
	for id := range r.indices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
