// Package gcs implements the Google Cloud Storage Backend (spec.md §4.5):
// "gs://bucket/object" names one MosaicJSON object. Enriches the stack
// beyond the teacher's own dependencies with cloud.google.com/go/storage,
// the idiomatic Go client for this concern, driven with application
// default credentials the same way the teacher resolves AWS/GCP
// credentials implicitly (no credentials ever appear in source). An
// object name ending in ".gz" is transparently gunzipped on read and
// gzipped on write (spec.md §4.5).
package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Backend is the "gs://bucket/object" Backend implementation.
type Backend struct {
	backend.Base
	client *storage.Client
	bucket string
	object string
	tms    tms.TMS
}

// New opens a GCS backend handle for uri.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	bucket, object, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, mosaicerr.NewBackendError("gcs", err)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{Base: backend.NewBase(uri), client: client, bucket: bucket, object: object, tms: t}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("gcs", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("gs", New)
}

func splitURI(uri string) (bucket, object string, err error) {
	trimmed := strings.TrimPrefix(uri, "gs://")
	idx := strings.Index(trimmed, "/")
	if idx < 0 {
		return "", "", mosaicerr.NewBackendError("gcs", errors.New("uri "+uri+" must be of the form gs://bucket/object"))
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

func (b *Backend) handle() *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.object)
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	r, err := b.handle().NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, mosaicerr.NewMosaicNotFoundError(b.object)
		}
		return nil, mosaicerr.NewBackendError("gcs", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mosaicerr.NewBackendError("gcs", err)
	}

	data, err = backend.MaybeGunzip(b.object, data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("gcs", err)
	}

	doc, err := mosaic.Unmarshal(data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("gcs", err)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) exists(ctx context.Context) (bool, error) {
	_, err := b.handle().Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, mosaicerr.NewBackendError("gcs", err)
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	already, err := b.exists(ctx)
	if err != nil {
		return err
	}
	if already && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.object)
	}

	data, err := doc.Marshal()
	if err != nil {
		return mosaicerr.NewBackendError("gcs", err)
	}
	data, err = backend.MaybeGzip(b.object, data)
	if err != nil {
		return mosaicerr.NewBackendError("gcs", err)
	}

	b.MarkDirty()
	w := b.handle().NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return mosaicerr.NewBackendError("gcs", err)
	}
	if err := w.Close(); err != nil {
		return mosaicerr.NewBackendError("gcs", err)
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
	if b.MarkClosed() {
		return nil
	}
	return b.client.Close()
}
