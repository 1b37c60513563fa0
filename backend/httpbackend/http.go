// Package httpbackend implements a read-only Backend (spec.md §4.5) over a
// plain HTTP(S) GET, grounded on the teacher pack's
// downloadGPXFromPocketBase (gpx_importer.go) http.Get + status-check +
// io.ReadAll idiom. A URL ending in ".gz" is transparently gunzipped
// after the response body is read (spec.md §4.5).
package httpbackend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Backend is the "http(s)://" read-only Backend implementation.
type Backend struct {
	backend.Base
	url    string
	client *http.Client
	tms    tms.TMS
}

// New opens an http backend handle for uri, which is used unmodified as
// the GET target.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{
		Base:   backend.NewBase(uri),
		url:    uri,
		client: http.DefaultClient,
		tms:    t,
	}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("http", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("http", New)
	backend.Default.Register("https", New)
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, mosaicerr.NewBackendError("http", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, mosaicerr.NewBackendError("http", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, mosaicerr.NewMosaicNotFoundError(b.url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mosaicerr.NewBackendError("http", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, b.url))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mosaicerr.NewBackendError("http", err)
	}

	data, err = backend.MaybeGunzip(b.url, data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("http", err)
	}

	doc, err := mosaic.Unmarshal(data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("http", err)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	return mosaicerr.NewErrNotImplemented("write", "http")
}

func (b *Backend) Update(ctx context.Context, features []mosaic.Feature, addFirst bool, opts mosaic.BuildOptions) (*mosaic.Document, error) {
	return nil, mosaicerr.NewErrNotImplemented("update", "http")
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
