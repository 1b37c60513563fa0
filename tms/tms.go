// Package tms describes the tile-matrix-set abstraction consumed by the
// tile-cover kernel: a pyramid of geographic tile grids parameterized by a
// CRS and per-level grid dimensions (spec.md GLOSSARY, §4.1). The TMS
// library itself — reprojection, grid-cell bounds — is an out-of-scope
// external collaborator per spec.md §1; this package defines the narrow
// surface the core actually calls (`Bounds`, `Tile`, `CRS`, `MatrixWidth`,
// `ValidBound`) plus the
// built-in Web Mercator default every MosaicJSON document falls back to
// when `tilematrixset` is absent.
package tms

import "github.com/paulmach/orb"

// TMS is the tile-matrix-set contract the tile-cover kernel and query
// layer depend on. A TMS maps between geographic coordinates and tile
// indices at a given zoom level.
type TMS interface {
	// Bounds returns the geographic (lng/lat) bounding box of tile (x,y) at
	// zoom z, re-closed across the anti-meridian where applicable.
	Bounds(x, y, z int) orb.Bound
	// Tile returns the tile index containing (lng,lat) at zoom z.
	Tile(lng, lat float64, z int) (x, y int)
	// CRS names the tile matrix set's native CRS, e.g. "EPSG:3857".
	CRS() string
	// MatrixWidth is the number of tile columns at zoom z.
	MatrixWidth(z int) int
	// ValidBound is the geographic extent the TMS is defined over; inputs
	// outside it must be clipped before tile-range computation.
	ValidBound() orb.Bound
}

// Default returns the Web-Mercator square-quad tile matrix set used when a
// MosaicJSON document's `tilematrixset` field is absent (spec.md §3).
func Default() TMS {
	return WebMercatorQuad{}
}
