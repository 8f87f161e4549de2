// Package ttlcache is a small mutex-guarded map with per-entry expiry.
package ttlcache

import (
	"sort"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	items    map[K]item[V]
	ttl      time.Duration
	maxItems int
	now      func() time.Time
}

// New creates a cache. maxItems <= 0 means unbounded; when full, the entries
// closest to expiry are evicted first.
func New[K comparable, V any](ttl time.Duration, maxItems int) *Cache[K, V] {
	return &Cache[K, V]{
		items:    make(map[K]item[V]),
		ttl:      ttl,
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(it.expiresAt) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return it.value, true
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value with a ttl other than the cache default.
func (c *Cache[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.items[key] = item[V]{value: value, expiresAt: now.Add(ttl)}
	c.pruneLocked(now)
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]item[V])
	c.mu.Unlock()
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Age reports how long ago key was stored, assuming the default ttl.
func (c *Cache[K, V]) Age(key K) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return 0, false
	}
	return c.now().Sub(it.expiresAt.Add(-c.ttl)), true
}

func (c *Cache[K, V]) pruneLocked(now time.Time) {
	for k, it := range c.items {
		if !now.Before(it.expiresAt) {
			delete(c.items, k)
		}
	}
	if c.maxItems <= 0 || len(c.items) <= c.maxItems {
		return
	}
	keys := make([]K, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.items[keys[i]].expiresAt.Before(c.items[keys[j]].expiresAt)
	})
	for _, k := range keys[:len(keys)-c.maxItems] {
		delete(c.items, k)
	}
}
