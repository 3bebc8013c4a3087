package metrics

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value   any
	expires time.Time
}

// resultCache is a size-bounded TTL cache. Concurrent misses on one key share
// a single computation.
type resultCache struct {
	mu    sync.Mutex
	items *lru.Cache
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group
}

func newResultCache(size int, ttl time.Duration, now func() time.Time) *resultCache {
	if size <= 0 {
		size = 1
	}
	return &resultCache{items: lru.New(size), ttl: ttl, now: now}
}

// get returns the cached value for key or computes it with load. Errors are
// never cached.
func (c *resultCache) get(key string, load func() (any, error)) (any, error) {
	if c.ttl <= 0 {
		return load()
	}
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items.Add(key, cacheEntry{value: v, expires: c.now().Add(c.ttl)})
		c.mu.Unlock()
		return v, nil
	})
	return v, err
}

func (c *resultCache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	entry := raw.(cacheEntry)
	if !c.now().Before(entry.expires) {
		c.items.Remove(key)
		return nil, false
	}
	return entry.value, true
}

// Len reports the number of cached entries, expired ones included.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
