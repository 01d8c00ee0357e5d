package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	val T
	exp time.Time
}

// Cache is a TTL map safe for concurrent use. When maxEntries is set,
// inserting into a full cache first drops expired entries and then the
// entry closest to expiry.
type Cache[T any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	m          map[string]entry[T]
	now        func() time.Time
}

func New[T any](ttl time.Duration, maxEntries int) *Cache[T] {
	return &Cache[T]{
		ttl:        ttl,
		maxEntries: maxEntries,
		m:          make(map[string]entry[T]),
		now:        time.Now,
	}
}

func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	ent, ok := c.m[key]
	if !ok {
		return zero, false
	}
	if c.now().After(ent.exp) {
		delete(c.m, key)
		return zero, false
	}
	return ent.val, true
}

func (c *Cache[T]) Set(key string, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxEntries > 0 && len(c.m) >= c.maxEntries {
		c.evictLocked()
	}
	c.m[key] = entry[T]{val: val, exp: c.now().Add(c.ttl)}
}

func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *Cache[T]) evictLocked() {
	now := c.now()
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
	if len(c.m) < c.maxEntries {
		return
	}
	var oldest string
	var oldestExp time.Time
	for k, e := range c.m {
		if oldest == "" || e.exp.Before(oldestExp) {
			oldest, oldestExp = k, e.exp
		}
	}
	delete(c.m, oldest)
}
