package tenant

import (
	"context"
	"sync"
	"time"
)

// Cache stores resolutions keyed by normalized host. The cache is a pure
// optimization: every request path must stay correct, only slower, with
// the cache cold or disabled.
type Cache interface {
	// Get returns an unexpired resolution for the key, if present.
	Get(ctx context.Context, key string) (*Resolution, bool)

	// Set stores a resolution under the key with the given TTL.
	Set(ctx context.Context, key string, res *Resolution, ttl time.Duration)

	// Delete removes a single key.
	Delete(ctx context.Context, key string)

	// DeleteByTenant removes every key mapping to the tenant. A tenant
	// may be reachable via both its subdomain and a custom domain, so
	// this must drop all of them atomically with respect to concurrent
	// Gets.
	DeleteByTenant(ctx context.Context, tenantID string)

	// Close releases any resources held by the cache.
	Close() error
}

// DefaultCacheSize bounds the in-memory cache.
const DefaultCacheSize = 1000

type memoryEntry struct {
	res       *Resolution
	expiresAt time.Time
}

// memoryCache is the default cache: a mutex-guarded map with a secondary
// tenant-id index so DeleteByTenant is a single critical section. An
// off-the-shelf LRU cannot provide the tenant index, which is why this
// is hand-rolled.
type memoryCache struct {
	mu       sync.Mutex
	items    map[string]memoryEntry
	byTenant map[string]map[string]struct{}
	order    []string
	maxSize  int
	done     chan struct{}
	closed   bool
}

// NewMemoryCache creates a bounded in-memory cache. The cleanup goroutine
// stops when ctx is cancelled or Close is called.
func NewMemoryCache(ctx context.Context) Cache {
	return NewMemoryCacheWithSize(ctx, DefaultCacheSize)
}

// NewMemoryCacheWithSize creates an in-memory cache holding at most
// maxSize resolutions, evicting the least recently used entry when full.
func NewMemoryCacheWithSize(ctx context.Context, maxSize int) Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	c := &memoryCache{
		items:    make(map[string]memoryEntry),
		byTenant: make(map[string]map[string]struct{}),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		done:     make(chan struct{}),
	}
	go c.janitor(ctx)
	return c
}

func (c *memoryCache) Get(ctx context.Context, key string) (*Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.remove(key, entry.res.ID)
		return nil, false
	}
	c.touch(key)
	return entry.res, true
}

func (c *memoryCache) Set(ctx context.Context, key string, res *Resolution, ttl time.Duration) {
	if res == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxSize {
		if len(c.order) > 0 {
			oldest := c.order[0]
			if old, ok := c.items[oldest]; ok {
				c.remove(oldest, old.res.ID)
			}
		}
	}

	c.items[key] = memoryEntry{res: res, expiresAt: time.Now().Add(ttl)}
	keys, ok := c.byTenant[res.ID]
	if !ok {
		keys = make(map[string]struct{})
		c.byTenant[res.ID] = keys
	}
	keys[key] = struct{}{}
	c.touch(key)
}

func (c *memoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.items[key]; ok {
		c.remove(key, entry.res.ID)
	}
}

func (c *memoryCache) DeleteByTenant(ctx context.Context, tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.byTenant[tenantID] {
		if _, ok := c.items[key]; ok {
			c.remove(key, tenantID)
		}
	}
	delete(c.byTenant, tenantID)
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// remove expects c.mu to be held.
func (c *memoryCache) remove(key, tenantID string) {
	delete(c.items, key)
	if keys, ok := c.byTenant[tenantID]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byTenant, tenantID)
		}
	}
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// touch expects c.mu to be held.
func (c *memoryCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

func (c *memoryCache) janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-ctx.Done():
			return
		case <-c.done:
			return
		}
	}
}

func (c *memoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			c.remove(key, entry.res.ID)
		}
	}
}

// noopCache disables caching; every lookup goes to the directory.
type noopCache struct{}

// NewNoopCache returns a cache that never stores anything. Useful in
// tests and for deployments that want directory-fresh resolutions.
func NewNoopCache() Cache { return noopCache{} }

func (noopCache) Get(context.Context, string) (*Resolution, bool)         { return nil, false }
func (noopCache) Set(context.Context, string, *Resolution, time.Duration) {}
func (noopCache) Delete(context.Context, string)                          {}
func (noopCache) DeleteByTenant(context.Context, string)                  {}
func (noopCache) Close() error                                            { return nil }
