package embedding

import (
	"container/list"
	"crypto/sha256"
	"sync"
)

// textKey identifies an embedding input. Chunk texts run to kilobytes, so the
// cache holds their digests rather than the texts themselves.
type textKey [sha256.Size]byte

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// EmbeddingCache is a bounded LRU of embeddings keyed by input text.
// Returned vectors are shared; callers must not modify them.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[textKey]*list.Element
	order    *list.List // front is most recently used
	hits     uint64
	misses   uint64
}

type cachedVector struct {
	key    textKey
	vector []float32
}

// NewEmbeddingCache creates a cache holding up to capacity vectors. A capacity of
// zero or less disables caching.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[textKey]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached embedding for text.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	if c.capacity <= 0 {
		return nil, false
	}
	key := sha256.Sum256([]byte(text))

	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*cachedVector).vector, true
}

// Set stores the embedding for text, evicting the least recently used vector
// when full.
func (c *EmbeddingCache) Set(text string, vector []float32) {
	if c.capacity <= 0 {
		return
	}
	key := sha256.Sum256([]byte(text))

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cachedVector).vector = vector
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(&cachedVector{key: key, vector: vector})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cachedVector).key)
	}
}

// Len returns the number of cached embeddings.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *EmbeddingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: c.order.Len(), Hits: c.hits, Misses: c.misses}
}
