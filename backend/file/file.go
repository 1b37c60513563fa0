// Package file implements the filesystem Backend (spec.md §4.5): a bare
// path or "file://" URI naming one MosaicJSON document on local disk. A
// ".gz"-suffixed path is transparently gunzipped on read and gzipped on
// write (spec.md §4.5). Writes are atomic (write to a sibling temp file,
// then rename), grounded on the teacher pack's event-ID generation idiom
// (uuid.New().String() in events/types/trail_events.go) repurposed here to
// name the temp file.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Backend is the local-filesystem Backend implementation.
type Backend struct {
	backend.Base
	path string
	tms  tms.TMS
}

// New opens a file backend handle for uri, accepting both "file://<path>"
// and a bare filesystem path.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	path := strings.TrimPrefix(uri, "file://")
	if path == "" {
		return nil, fmt.Errorf("file: uri must name a path, got %q", uri)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{Base: backend.NewBase(uri), path: path, tms: t}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("file", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("file", New)
	backend.Default.Register("", New)
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, mosaicerr.NewMosaicNotFoundError(b.path)
		}
		return nil, mosaicerr.NewBackendError("file", err)
	}

	data, err = backend.MaybeGunzip(b.path, data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("file", err)
	}

	doc, err := mosaic.Unmarshal(data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("file", err)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	if _, err := os.Stat(b.path); err == nil && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.path)
	}

	data, err := doc.Marshal()
	if err != nil {
		return mosaicerr.NewBackendError("file", err)
	}
	data, err = backend.MaybeGzip(b.path, data)
	if err != nil {
		return mosaicerr.NewBackendError("file", err)
	}

	b.MarkDirty()
	if err := writeAtomic(b.path, data); err != nil {
		return mosaicerr.NewBackendError("file", err)
	}
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
	if err := b.Write(ctx, updated, true); err != nil {
		return nil, err
	}
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

// writeAtomic writes data to a uuid-named sibling of path, then renames it
// into place, so a concurrent reader never observes a partially written
// document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+uuid.New().String()+".tmp")

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
