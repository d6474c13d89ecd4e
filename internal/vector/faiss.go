//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex keeps vectors in a FAISS IndexFlatIP. FAISS labels are dense positions,
// so ids[label] is the external ID of each stored vector.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	ids        []int64
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS index with the given dimension using inner product.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	index, err := newFlatIP(dimensions)
	if err != nil {
		return nil, err
	}
	return &FAISSIndex{
		index:      index,
		dimensions: dimensions,
		ids:        make([]int64, 0),
	}, nil
}

func newFlatIP(dimensions int) (*C.FaissIndex, error) {
	var flat *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return (*C.FaissIndex)(unsafe.Pointer(flat)), nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add normalizes vec and appends it with externalID.
func (f *FAISSIndex) Add(ctx context.Context, externalID int64, vec []float32) error {
	return f.AddBatch(ctx, []int64{externalID}, [][]float32{vec})
}

// AddBatch validates every vector before handing the batch to FAISS.
func (f *FAISSIndex) AddBatch(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	flat := make([]float32, 0, len(vectors)*f.dimensions)
	for i, v := range vectors {
		if err := checkDimension(len(v), f.dimensions); err != nil {
			return fmt.Errorf("vector %d (id %d): %w", i, ids[i], err)
		}
		unit, err := Normalize(v)
		if err != nil {
			return fmt.Errorf("vector %d (id %d): %w", i, ids[i], err)
		}
		flat = append(flat, unit...)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ret := C.faiss_Index_add(f.index, C.idx_t(len(vectors)), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	f.ids = append(f.ids, ids...)
	return nil
}

// Search returns the top-k vectors by inner product with the normalized query.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if err := checkDimension(len(query), f.dimensions); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	q, err := Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if k <= 0 || ntotal == 0 {
		return []*VectorResult{}, nil
	}
	if k > ntotal {
		k = ntotal
	}
	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	type hit struct {
		label int64
		score float64
	}
	hits := make([]hit, 0, k)
	for i := 0; i < k; i++ {
		label := labels[i]
		if label < 0 || label >= int64(len(f.ids)) {
			continue
		}
		hits = append(hits, hit{label: label, score: float64(distances[i])})
	}
	// FAISS does not order equal distances; lower positions win ties.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].label < hits[j].label
	})
	results := make([]*VectorResult, len(hits))
	for i, h := range hits {
		results[i] = &VectorResult{ID: f.ids[h.label], Score: h.score}
	}
	return results, nil
}

// Reset empties the FAISS index and the ID mapping.
func (f *FAISSIndex) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	f.ids = make([]int64, 0)
	return nil
}

// Save writes dir/code_index.faiss and dir/id_mapping.gob under the directory lock.
func (f *FAISSIndex) Save(dir string) error {
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

	f.mu.RLock()
	defer f.mu.RUnlock()

	indexTmp := tempPath(dir, faissFileName)
	cPath := C.CString(indexTmp)
	defer C.free(unsafe.Pointer(cPath))
	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		_ = os.Remove(indexTmp)
		return fmt.Errorf("%w: write FAISS index: %s", ErrPersistence, faissLastError())
	}
	mapTmp, err := stageFile(dir, mappingFileName, func(w io.Writer) error {
		return writeMapping(w, f.ids)
	})
	if err != nil {
		_ = os.Remove(indexTmp)
		return err
	}
	return commitFiles(dir,
		map[string]string{faissFileName: indexTmp, mappingFileName: mapTmp},
		[]string{faissFileName, mappingFileName},
	)
}

// Load replaces the index with the one saved in dir. A dir without a saved index is a no-op.
func (f *FAISSIndex) Load(dir string) error {
	if dir == "" {
		return nil
	}
	exists, err := persistedIndexExists(dir, faissFileName)
	if err != nil || !exists {
		return err
	}
	lock, err := lockDir(dir, true)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	cPath := C.CString(filepath.Join(dir, faissFileName))
	defer C.free(unsafe.Pointer(cPath))
	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("%w: read FAISS index: %s", ErrPersistence, faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, d, f.dimensions)
	}
	ids, err := readMapping(filepath.Join(dir, mappingFileName))
	if err != nil {
		C.faiss_Index_free(loaded)
		return err
	}
	if n := int(C.faiss_Index_ntotal(loaded)); n != len(ids) {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: %d vectors but %d mapped ids", ErrCorruptIndex, n, len(ids))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.ids = ids
	return nil
}

// Size returns the number of stored vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Dimensions returns the vector length accepted by the index.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
