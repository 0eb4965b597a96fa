package embedding

import (
	"container/list"
	"sync"
)

// EmbeddingCache is a least-recently-used cache of embeddings keyed by text.
// Vectors are copied in and out so callers may modify what they receive.
type EmbeddingCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front is most recently used
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	text   string
	vector []float32
}

// NewEmbeddingCache creates a cache holding up to capacity embeddings.
// A capacity of zero or less disables caching.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	return &EmbeddingCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns a copy of the embedding cached for text.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[text]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return cloneVector(el.Value.(*cacheEntry).vector), true
}

// Set caches a copy of vector for text, evicting the least recently used entry
// when the cache is full.
func (c *EmbeddingCache) Set(text string, vector []float32) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[text]; ok {
		el.Value.(*cacheEntry).vector = cloneVector(vector)
		c.order.MoveToFront(el)
		return
	}
	c.items[text] = c.order.PushFront(&cacheEntry{text: text, vector: cloneVector(vector)})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).text)
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the number of lookups that hit and missed.
func (c *EmbeddingCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
