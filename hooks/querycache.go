// Package hooks implements the Knowledge Hook Engine: a bounded query
// cache, the composable condition tree, the phase-indexed hook
// registry, and the transactional hook executor with its poka-yoke
// safety gates.
package hooks

import (
	"container/list"
	"sync"
	"time"
)

// DefaultQueryCacheSize is the cache's default max_size.
const DefaultQueryCacheSize = 1000

type cacheEntry struct {
	key        string
	value      any
	insertedAt time.Time
	ttl        time.Duration
}

// QueryCache is a bounded LRU map keyed by literal query text, storing
// the most recent result with an insertion timestamp. Entries with
// TTL==0 are stored but Get never returns them (bypass semantics).
type QueryCache struct {
	mu       sync.Mutex
	maxSize  int
	order    *list.List
	elements map[string]*list.Element
}

// NewQueryCache returns a cache bounded at maxSize entries (defaulting
// to DefaultQueryCacheSize when maxSize <= 0).
func NewQueryCache(maxSize int) *QueryCache {
	if maxSize <= 0 {
		maxSize = DefaultQueryCacheSize
	}
	return &QueryCache{
		maxSize:  maxSize,
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

// Get returns the cached value for key iff an entry exists, its
// ttl > 0, and it has not yet expired. A hit moves the entry to the
// front of the LRU order. An expired or TTL==0 entry is evicted.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.elements[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)

	if entry.ttl <= 0 {
		c.removeLocked(el)
		return nil, false
	}
	if time.Since(entry.insertedAt) > entry.ttl {
		c.removeLocked(el)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.value, true
}

// Set inserts value under key with the given ttl, evicting the
// least-recently-used entry if the cache is at capacity. A TTL of 0
// stores the entry but it is never retrievable via Get — equivalent to
// bypassing the cache while still occupying a slot for LRU purposes.
func (c *QueryCache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elements[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.insertedAt = time.Now()
		entry.ttl = ttl
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.removeLocked(oldest)
		}
	}

	entry := &cacheEntry{key: key, value: value, insertedAt: time.Now(), ttl: ttl}
	el := c.order.PushFront(entry)
	c.elements[key] = el
}

func (c *QueryCache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(c.elements, entry.key)
	c.order.Remove(el)
}

// Len returns the number of entries currently held, including any not
// yet expired-and-evicted TTL==0 placeholders.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
