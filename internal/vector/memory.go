package vector

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ctxCheckEvery is how many rows Search scans between context checks.
const ctxCheckEvery = 4096

// MemoryIndex is an exact inner-product index held in one contiguous float32 slice.
// Row i of vectors belongs to ids[i]; both only grow until Reset or Load.
type MemoryIndex struct {
	dimensions int
	ids        []int64
	vectors    []float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an empty in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		ids:        make([]int64, 0),
		vectors:    make([]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Dimensions returns the vector length accepted by the index.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

// Add normalizes vec and appends it at the next position.
func (m *MemoryIndex) Add(ctx context.Context, externalID int64, vec []float32) error {
	return m.AddBatch(ctx, []int64{externalID}, [][]float32{vec})
}

// AddBatch validates and normalizes every vector before appending any of them.
func (m *MemoryIndex) AddBatch(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	flat := make([]float32, 0, len(vectors)*m.dimensions)
	for i, v := range vectors {
		if err := checkDimension(len(v), m.dimensions); err != nil {
			return fmt.Errorf("vector %d (id %d): %w", i, ids[i], err)
		}
		unit, err := Normalize(v)
		if err != nil {
			return fmt.Errorf("vector %d (id %d): %w", i, ids[i], err)
		}
		flat = append(flat, unit...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = append(m.vectors, flat...)
	m.ids = append(m.ids, ids...)
	return nil
}

// Search returns the top-k rows by inner product with the normalized query.
// Equal scores keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if err := checkDimension(len(query), m.dimensions); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	q, err := Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := len(m.vectors) / m.dimensions
	if k <= 0 || rows == 0 {
		return []*VectorResult{}, nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, 0, rows)
	for pos := 0; pos < rows; pos++ {
		if pos%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if pos >= len(m.ids) {
			// A row without a mapping entry has no identity to report.
			continue
		}
		row := m.vectors[pos*m.dimensions : (pos+1)*m.dimensions]
		scores = append(scores, scored{pos: pos, score: InnerProduct(q, row)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if k > len(scores) {
		k = len(scores)
	}
	result := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		result[i] = &VectorResult{ID: m.ids[scores[i].pos], Score: scores[i].score}
	}
	return result, nil
}

// Reset discards all vectors and the ID mapping.
func (m *MemoryIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]int64, 0)
	m.vectors = make([]float32, 0)
	return nil
}

// Save writes dir/code_index.vec and dir/id_mapping.gob. Both files are staged and
// renamed into place while holding the directory lock. An empty dir is a no-op.
func (m *MemoryIndex) Save(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create index dir: %v", ErrPersistence, err)
	}
	lock, err := lockDir(dir, false)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	vecTmp, err := stageFile(dir, vectorFileName, func(w io.Writer) error {
		return writeVectors(w, m.dimensions, m.vectors)
	})
	if err != nil {
		return err
	}
	mapTmp, err := stageFile(dir, mappingFileName, func(w io.Writer) error {
		return writeMapping(w, m.ids)
	})
	if err != nil {
		_ = os.Remove(vecTmp)
		return err
	}
	return commitFiles(dir,
		map[string]string{vectorFileName: vecTmp, mappingFileName: mapTmp},
		[]string{vectorFileName, mappingFileName},
	)
}

// Load replaces the in-memory contents with the index saved in dir. Dimensions must
// match. If dir holds no saved index, no error is returned and the index is unchanged.
func (m *MemoryIndex) Load(dir string) error {
	if dir == "" {
		return nil
	}
	exists, err := persistedIndexExists(dir, vectorFileName)
	if err != nil || !exists {
		return err
	}
	lock, err := lockDir(dir, true)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	vectors, err := readVectors(filepath.Join(dir, vectorFileName), m.dimensions)
	if err != nil {
		return err
	}
	ids, err := readMapping(filepath.Join(dir, mappingFileName))
	if err != nil {
		return err
	}
	if rows := len(vectors) / m.dimensions; rows != len(ids) {
		return fmt.Errorf("%w: %d vectors but %d mapped ids", ErrCorruptIndex, rows, len(ids))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = vectors
	m.ids = ids
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}
