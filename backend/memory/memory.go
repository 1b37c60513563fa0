// Package memory implements an in-process Backend (spec.md §4.5), a
// process-wide map of mosaic name to Document guarded by a mutex, grounded
// on the teacher pack's MVTMemoryStorage cache-map pattern
// (services/mvt_storage_memory_service.go).
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// store is the process-wide table of named in-memory mosaics, shared by
// every open Backend handle so writes from one handle are visible to
// another -- useful for tests and short-lived pipelines that never touch
// durable storage.
type store struct {
	mu   sync.RWMutex
	docs map[string]*mosaic.Document
}

func newStore() *store {
	return &store{docs: make(map[string]*mosaic.Document)}
}

var shared = newStore()

func (s *store) get(name string) (*mosaic.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[name]
	return d, ok
}

func (s *store) set(name string, d *mosaic.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = d
}

// Backend is the "memory://<name>" Backend implementation.
type Backend struct {
	backend.Base
	name string
	tms  tms.TMS
}

// New opens a memory backend handle for uri ("memory://name" or a bare
// name). opts["tms"] may supply a tms.TMS; it defaults to tms.Default().
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	name := strings.TrimPrefix(uri, "memory://")
	if name == "" {
		return nil, fmt.Errorf("memory: uri must name a mosaic, got %q", uri)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	return &Backend{Base: backend.NewBase(uri), name: name, tms: t}, nil
}

func init() {
	backend.Default.Register("memory", New)
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}
	doc, ok := shared.get(b.name)
	if !ok {
		return nil, mosaicerr.NewMosaicNotFoundError(b.name)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	if _, exists := shared.get(b.name); exists && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.name)
	}
	b.MarkDirty()
	shared.set(b.name, doc)
	b.MarkPersisted(doc)
	return nil
}

func (b *Backend) Update(ctx context.Context, features []mosaic.Feature, addFirst bool, opts mosaic.BuildOptions) (*mosaic.Document, error) {
	current, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := mosaic.Update(current, features, b.tms, addFirst, opts)
	if err != nil {
		return nil, err
	}
	b.MarkDirty()
	shared.set(b.name, updated)
	b.MarkPersisted(updated)
	return updated, nil
}

func (b *Backend) AssetsForTile(ctx context.Context, x, y, z int) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForTile(doc, b.tms, x, y, z)
}

func (b *Backend) AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForPoint(doc, b.tms, lng, lat)
}

func (b *Backend) AssetsForBbox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForBbox(doc, b.tms, xmin, ymin, xmax, ymax)
}

func (b *Backend) Info(ctx context.Context, withQuadkeys bool) (backend.Info, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return backend.Info{}, err
	}
	return backend.ResolveInfo(doc, withQuadkeys), nil
}

func (b *Backend) GetGeographicBounds(ctx context.Context, crs string) ([4]float64, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return [4]float64{}, err
	}
	return backend.ResolveGeographicBounds(doc, b.tms, crs)
}

func (b *Backend) Close() error {
	b.MarkClosed()
	return nil
}

// Reset clears the shared in-memory store; exported for tests that need a
// clean slate between runs.
func Reset() {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	shared.docs = make(map[string]*mosaic.Document)
}
