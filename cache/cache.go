// Package cache implements the process-wide TTL+LRU document cache
// (spec.md §4.6): keyed by (backend_kind, canonicalized_uri), thread-safe,
// atomic insert-or-evict, bounded by MOSAIC_CACHE_SIZE and expired after
// MOSAIC_CACHE_TTL seconds. Built on hashicorp/golang-lru/v2, one of the
// teacher pack's own direct dependencies (events/types caching notes
// aside, the bike-map backend's go.mod already requires
// github.com/hashicorp/golang-lru/v2 transitively for pocketbase's own
// record cache); this package wraps it with the TTL semantics the
// plain LRU does not provide on its own.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/developmentseed/mosaicjson-go/config"
	"github.com/developmentseed/mosaicjson-go/mosaic"
)

// Key identifies one cached document: the backend kind ("file", "s3",
// "sqlite", ...) plus the backend's own canonical URI for that document.
type Key struct {
	BackendKind string
	URI         string
}

type entry struct {
	doc      *mosaic.Document
	deadline time.Time
}

// Cache is a process-wide TTL+LRU document cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu       sync.Mutex
	lru      *lru.Cache[Key, *entry]
	ttl      time.Duration
	disabled bool
}

// New builds a Cache from cfg (spec.md §6 env vars MOSAIC_CACHE_TTL,
// MOSAIC_CACHE_SIZE, MOSAIC_DISABLE_CACHE).
func New(cfg config.CacheConfig) (*Cache, error) {
	if cfg.Disabled {
		return &Cache{disabled: true}, nil
	}

	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	backing, err := lru.New[Key, *entry](size)
	if err != nil {
		return nil, err
	}

	return &Cache{
		lru: backing,
		ttl: time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

// Get returns the cached document for key if present and not expired.
// Cache must never store error states (spec.md §5 propagation policy), so
// there is no Get variant that returns a cached error.
func (c *Cache) Get(key Key) (*mosaic.Document, bool) {
	if c == nil || c.disabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.deadline) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.doc, true
}

// Set inserts or overwrites the cached document for key with a fresh
// deadline (atomic insert-or-evict via the underlying LRU's own locking
// plus this Cache's mutex).
func (c *Cache) Set(key Key, doc *mosaic.Document) {
	if c == nil || c.disabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{doc: doc, deadline: time.Now().Add(c.ttl)})
}

// Invalidate removes key's cache entry. write() and update() must call
// this on the keys they touch (spec.md §4.6).
func (c *Cache) Invalidate(key Key) {
	if c == nil || c.disabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
}

// Len reports the number of live (possibly expired but not yet evicted)
// entries, mainly for tests and diagnostics.
func (c *Cache) Len() int {
	if c == nil || c.disabled {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
