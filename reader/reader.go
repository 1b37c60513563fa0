// Package reader defines the two out-of-scope collaborators spec.md §1
// names explicitly: "the underlying raster-reading library that fetches
// pixels given a URI" and its footprint-introspection primitive. The core
// consumes these through the interfaces below; concrete implementations
// (backed by a COG reader, GDAL, etc.) are injected by the caller.
package reader

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/mosaicerr"
)

// ErrNoData is returned by Tile/Part/Feature when asset has no data at
// the requested region -- the raster-reader analogue of
// mosaicerr.PointOutsideBounds for non-point queries. The query layer
// treats it as a soft per-asset failure: if every candidate asset fails
// this way the mosaic-level NoAssetFoundError is raised instead of
// surfacing the raw reader error (spec.md §5 propagation policy).
var ErrNoData = errors.New("reader: no data for requested region")

// IsSoftFailure reports whether err is one of the "no data here" outcomes
// the query layer tolerates per-asset rather than treating as a hard I/O
// failure: ErrNoData from Tile/Part/Feature, or
// mosaicerr.PointOutsideBounds from Point.
func IsSoftFailure(err error) bool {
	if errors.Is(err, ErrNoData) {
		return true
	}
	var pob *mosaicerr.PointOutsideBounds
	return errors.As(err, &pob)
}

// Footprint describes a raster asset's coverage as returned by the raster
// reader's footprint primitive (spec.md §4.2 from_urls): a WGS-84 polygon,
// the asset's native CRS, its overview resolutions, and its filename.
type Footprint struct {
	Polygon    orb.Polygon
	CRS        string
	Overviews  []float64
	Filename   string
}

// FootprintReader resolves a URI to the georeferencing metadata
// from_urls needs, without reading any pixel data.
type FootprintReader interface {
	Footprint(ctx context.Context, uri string) (Footprint, error)
}

// PixelValue is one band sample returned by Point for a single asset.
type PixelValue struct {
	Asset  string
	Values []float64
	Mask   []bool
}

// Options carries the per-call knobs the query layer forwards to the
// raster reader (spec.md §4.6): pixel dimensions, resampling, and any
// reader-specific extras are passed through opaquely since the reader's
// own option surface is out of this core's scope.
type Options map[string]any

// Reader is the raster-reading contract the query layer delegates to for
// every asset selected by a backend's assets_for_* methods.
type Reader interface {
	// Tile reads a single XYZ tile from asset, returning encoded image
	// bytes in whatever format the reader was configured for.
	Tile(ctx context.Context, asset string, x, y, z int, opts Options) ([]byte, error)
	// Point samples asset at (lng,lat), returning mosaicerr.PointOutsideBounds
	// (via the error return) when the point falls outside the asset's
	// extent.
	Point(ctx context.Context, asset string, lng, lat float64, opts Options) (PixelValue, error)
	// Part reads the sub-region of asset covering bbox.
	Part(ctx context.Context, asset string, bbox orb.Bound, opts Options) ([]byte, error)
	// Feature reads the sub-region of asset covering a GeoJSON geometry.
	Feature(ctx context.Context, asset string, geometry orb.Geometry, opts Options) ([]byte, error)
}
