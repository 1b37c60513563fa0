package backend

import (
	"sync"

	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
)

// Base provides the common state-tracking scaffold every concrete backend
// embeds: the cached document, a mutex, and the lifecycle state transitions
// shared across file/HTTP/S3/GCS/Azure/DynamoDB/SQLite/STAC/Memory,
// analogous to how the teacher pack's services share PostGISService's
// Close-once idempotency rather than reimplementing it per service.
//
// Base also optionally fronts the process-wide cache.Cache (spec.md §4.4):
// a handle's own b.doc only lives as long as that handle, but durable
// backends (file/http/s3/gcs/azure/dynamodb/sqlite) are typically
// re-Open'd per request in a server, so sharing the parsed document across
// handles for the same URI is what actually amortizes the parse/fetch
// cost. EnableCache opts a concrete backend into that sharing; backends
// that don't (memory's own process-wide map, STAC's query-time-only
// documents) simply never call it.
type Base struct {
	mu    sync.RWMutex
	uri   string
	state State
	doc   *mosaic.Document

	procCache *cache.Cache
	cacheKind string
}

// NewBase initializes a Base in StateFresh for uri.
func NewBase(uri string) Base {
	return Base{uri: uri, state: StateFresh}
}

// EnableCache fronts this handle with the process-wide cache c, keyed by
// (kind, uri). Subsequent Cached/MarkLoaded/MarkPersisted calls read
// through to and populate c.
func (b *Base) EnableCache(kind string, c *cache.Cache) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cacheKind = kind
	b.procCache = c
}

func (b *Base) cacheKey() cache.Key { return cache.Key{BackendKind: b.cacheKind, URI: b.uri} }

func (b *Base) URI() string { return b.uri }

func (b *Base) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Cached returns the in-memory document if loaded, and whether it was set.
// Concrete backends call this before hitting durable storage. Falls
// through to the process-wide cache (if enabled) before reporting a miss.
func (b *Base) Cached() (*mosaic.Document, bool) {
	b.mu.RLock()
	doc := b.doc
	procCache := b.procCache
	key := b.cacheKey()
	b.mu.RUnlock()

	if doc != nil {
		return doc, true
	}
	if procCache == nil {
		return nil, false
	}
	if cached, ok := procCache.Get(key); ok {
		b.mu.Lock()
		b.doc = cached
		b.mu.Unlock()
		return cached, true
	}
	return nil, false
}

// MarkLoaded stores doc and transitions FRESH -> LOADED, populating the
// process-wide cache if enabled.
func (b *Base) MarkLoaded(doc *mosaic.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = doc
	if b.state == StateFresh {
		b.state = StateLoaded
	}
	if b.procCache != nil {
		b.procCache.Set(b.cacheKey(), doc)
	}
}

// MarkDirty marks the handle DIRTY ahead of a pending Write/Update.
func (b *Base) MarkDirty() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateDirty
}

// MarkPersisted stores doc and transitions to PERSISTED, invalidating then
// repopulating this handle's process-wide cache entry with the freshly
// written content (spec.md §4.4 "write() and update() must invalidate
// their own entry").
func (b *Base) MarkPersisted(doc *mosaic.Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.doc = doc
	b.state = StatePersisted
	if b.procCache != nil {
		key := b.cacheKey()
		b.procCache.Invalidate(key)
		b.procCache.Set(key, doc)
	}
}

// MarkClosed reports whether Close had already run before this call, and
// transitions to CLOSED, so concrete backends can make Close idempotent:
//
//	func (b *Backend) Close() error {
//	    if b.MarkClosed() { return nil }
//	    ... release resource ...
//	}
func (b *Base) MarkClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateClosed {
		return true
	}
	b.state = StateClosed
	return false
}
