package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultLRUSize is the entry limit when none is given.
const DefaultLRUSize = 10000

// LRUCache is a bounded in-memory cache with optional TTL.
type LRUCache struct {
	lru *expirable.LRU[string, string]
}

// NewLRUCache creates a cache holding at most size entries. A ttl of 0
// disables expiry.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultLRUSize
	}
	if ttl < 0 {
		ttl = 0
	}
	return &LRUCache{lru: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get retrieves a value. Expired entries are misses.
func (c *LRUCache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRUCache) Set(key string, value string) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// Clear removes all entries.
func (c *LRUCache) Clear() {
	c.lru.Purge()
}

// Entries returns all live entries.
func (c *LRUCache) Entries() (map[string]string, error) {
	out := make(map[string]string, c.lru.Len())
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

var _ Enumerable = (*LRUCache)(nil)
