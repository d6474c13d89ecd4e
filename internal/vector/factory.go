package vector

import (
	"fmt"
	"sync"
)

// IndexType selects the backend of a VectorIndex.
type IndexType string

const (
	// IndexTypeMemory is the pure-Go exact index.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS is an exact FAISS IndexFlatIP. Requires -tags=faiss and libfaiss_c.
	IndexTypeFAISS IndexType = "faiss"
)

var backends = map[IndexType]func(dims int) (VectorIndex, error){
	IndexTypeMemory: func(dims int) (VectorIndex, error) { return NewMemoryIndex(dims) },
	IndexTypeFAISS:  func(dims int) (VectorIndex, error) { return NewFAISSIndex(dims) },
}

// ParseIndexType validates a configured index type. The empty string means memory.
func ParseIndexType(s string) (IndexType, error) {
	if s == "" {
		return IndexTypeMemory, nil
	}
	t := IndexType(s)
	if _, ok := backends[t]; !ok {
		return "", fmt.Errorf("unknown index type: %s (supported: memory, faiss)", s)
	}
	return t, nil
}

// NewVectorIndex creates an empty index of the named type.
func NewVectorIndex(indexType string, dimensions int) (VectorIndex, error) {
	t, err := ParseIndexType(indexType)
	if err != nil {
		return nil, err
	}
	idx, err := backends[t](dimensions)
	if err != nil {
		// Keep a typed-nil backend pointer out of the interface.
		return nil, err
	}
	return idx, nil
}

var (
	faissOnce      sync.Once
	faissAvailable bool
)

// IsFAISSAvailable reports whether FAISS support is compiled in and loadable.
func IsFAISSAvailable() bool {
	faissOnce.Do(func() {
		idx, err := NewFAISSIndex(1)
		if err != nil {
			return
		}
		_ = idx.Close()
		faissAvailable = true
	})
	return faissAvailable
}
