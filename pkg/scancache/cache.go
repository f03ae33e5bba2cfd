// Package scancache caches combined scan results by content hash so that
// repeated scans of identical text (common across feed reloads) skip the
// expensive classifier inference.
package scancache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultCapacity covers several full feed loads.
const DefaultCapacity = 512

// keyLen is the truncated hex length of the content hash. Fixed-width
// and stable across runs; collision probability at 64 bits is
// negligible for a 512-entry cache.
const keyLen = 16

// Cache is a fixed-capacity LRU keyed by a truncated SHA-256 of the
// exact input bytes. Get promotes to most-recently-used; Put beyond
// capacity evicts exactly the least-recently-used entry. Never
// persisted across restarts.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type entry[V any] struct {
	key   string
	value V
}

// New creates a cache with the given capacity. Non-positive capacities
// fall back to the default.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// Key hashes text content for cache lookup.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:keyLen]
}

// Get looks up a cached result and promotes it on hit.
func (c *Cache[V]) Get(text string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[Key(text)]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry[V]).value, true
}

// Put stores a result, evicting the least-recently-used entry when the
// cache is full. Storing an existing key updates it in place.
func (c *Cache[V]) Put(text string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(text)
	if el, ok := c.entries[key]; ok {
		el.Value.(*entry[V]).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry[V]).key)
	}
}

// Len returns the current number of cached entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
