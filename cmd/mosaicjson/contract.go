// Package mosaicjson exposes the named mosaic operations as plain, directly
// callable functions — no flag parsing, no main() business logic beyond
// argument marshaling — so that a CLI, an HTTP handler, or a serverless
// entrypoint can each wrap this surface however fits their own argument
// conventions. Every function here opens the backend named by uri, scoped
// to the operation, and closes it before returning, mirroring how the
// teacher pack's apiHandlers functions open one PostGISService per request
// rather than holding a long-lived handle.
package mosaicjson

import (
	"context"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/mosaic"
)

// Create builds a new mosaic at uri from doc, failing with
// mosaicerr.MosaicExistsError if one is already there and overwrite is
// false.
func Create(ctx context.Context, uri string, doc *mosaic.Document, overwrite bool, opts map[string]any) error {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := mosaic.Validate(doc); err != nil {
		return err
	}
	return b.Write(ctx, doc, overwrite)
}

// Update merges features into the mosaic at uri and persists the result.
func Update(ctx context.Context, uri string, features []mosaic.Feature, addFirst bool, buildOpts mosaic.BuildOptions, opts map[string]any) (*mosaic.Document, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return b.Update(ctx, features, addFirst, buildOpts)
}

// Info returns the mosaic's metadata snapshot, including its full quadkey
// list when withQuadkeys is true.
func Info(ctx context.Context, uri string, withQuadkeys bool, opts map[string]any) (backend.Info, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return backend.Info{}, err
	}
	defer b.Close()

	return b.Info(ctx, withQuadkeys)
}

// AssetsForTile returns the ordered asset list covering tile (x, y, z).
func AssetsForTile(ctx context.Context, uri string, x, y, z int, opts map[string]any) ([]string, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return b.AssetsForTile(ctx, x, y, z)
}

// AssetsForPoint returns the ordered asset list covering (lng, lat).
func AssetsForPoint(ctx context.Context, uri string, lng, lat float64, opts map[string]any) ([]string, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return b.AssetsForPoint(ctx, lng, lat)
}

// AssetsForBbox returns the deduplicated, first-occurrence-ordered union
// of assets covering the rectangle (xmin, ymin, xmax, ymax).
func AssetsForBbox(ctx context.Context, uri string, xmin, ymin, xmax, ymax float64, opts map[string]any) ([]string, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return b.AssetsForBbox(ctx, xmin, ymin, xmax, ymax)
}

// GetGeographicBounds returns the mosaic's bounds reprojected to crs ("" or
// "EPSG:4326" returns the stored bounds unchanged).
func GetGeographicBounds(ctx context.Context, uri string, crs string, opts map[string]any) ([4]float64, error) {
	b, err := backend.Default.Open(ctx, uri, opts)
	if err != nil {
		return [4]float64{}, err
	}
	defer b.Close()

	return b.GetGeographicBounds(ctx, crs)
}
