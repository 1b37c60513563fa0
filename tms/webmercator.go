package tms

import (
	"math"

	"github.com/paulmach/orb"
)

// WebMercatorQuad implements TMS over EPSG:3857 with a 256px tile size and
// the Google/Bing slippy-map tile numbering (origin at the top-left, quad
// children ordered NW,NE,SW,SE). The projection math follows the standard
// spherical Mercator formulas: lon/lat -> meters -> pixels -> tile.
type WebMercatorQuad struct{}

const (
	earthRadius = 6378137.0
	tileSize    = 256.0
)

var originShift = math.Pi * earthRadius

func (WebMercatorQuad) CRS() string { return "EPSG:3857" }

func (WebMercatorQuad) MatrixWidth(z int) int {
	return 1 << uint(z)
}

func (WebMercatorQuad) ValidBound() orb.Bound {
	return orb.Bound{Min: orb.Point{-180, -85.0511287798066}, Max: orb.Point{180, 85.0511287798066}}
}

// resolution is meters-per-pixel at zoom z.
func resolution(z int) float64 {
	return (2 * originShift) / tileSize / math.Pow(2, float64(z))
}

func lonLatToMeters(lng, lat float64) (mx, my float64) {
	mx = lng * originShift / 180.0
	my = math.Log(math.Tan((90+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	my = my * originShift / 180.0
	return mx, my
}

func metersToLonLat(mx, my float64) (lng, lat float64) {
	lng = (mx / originShift) * 180.0
	lat = (my / originShift) * 180.0
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180.0)) - math.Pi/2.0)
	return lng, lat
}

// Tile returns the tile index containing (lng,lat) at zoom z, with y
// increasing southward (slippy-map / quadkey convention).
func (w WebMercatorQuad) Tile(lng, lat float64, z int) (x, y int) {
	mx, my := lonLatToMeters(lng, lat)
	res := resolution(z)

	px := (mx + originShift) / res
	py := (originShift - my) / res

	n := w.MatrixWidth(z)
	x = int(px / tileSize)
	y = int(py / tileSize)

	if x < 0 {
		x = 0
	}
	if x >= n {
		x = n - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= n {
		y = n - 1
	}
	return x, y
}

// Bounds returns the geographic bounding box of tile (x,y,z).
func (w WebMercatorQuad) Bounds(x, y, z int) orb.Bound {
	res := resolution(z)

	minMx := float64(x)*tileSize*res - originShift
	maxMx := float64(x+1)*tileSize*res - originShift
	maxMy := originShift - float64(y)*tileSize*res
	minMy := originShift - float64(y+1)*tileSize*res

	minLng, minLat := metersToLonLat(minMx, minMy)
	maxLng, maxLat := metersToLonLat(maxMx, maxMy)

	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
}

// boundsMeters is Bounds but in the TMS's native projected CRS (meters),
// used internally by the tile-cover kernel for area-based coverage math.
func (w WebMercatorQuad) boundsMeters(x, y, z int) orb.Bound {
	res := resolution(z)
	minMx := float64(x)*tileSize*res - originShift
	maxMx := float64(x+1)*tileSize*res - originShift
	maxMy := originShift - float64(y)*tileSize*res
	minMy := originShift - float64(y+1)*tileSize*res
	return orb.Bound{Min: orb.Point{minMx, minMy}, Max: orb.Point{maxMx, maxMy}}
}

// ProjectToMeters exposes the lon/lat -> EPSG:3857 meters projection used by
// the tile-cover kernel to reproject footprint polygons before computing
// tile ranges and coverage fractions.
func (w WebMercatorQuad) ProjectToMeters(p orb.Point) orb.Point {
	mx, my := lonLatToMeters(p[0], p[1])
	return orb.Point{mx, my}
}

// BoundsMeters is the exported form of boundsMeters for callers outside
// this package (the tile-cover kernel) that need cell geometry in the
// TMS's native projected CRS rather than geographic coordinates.
func (w WebMercatorQuad) BoundsMeters(x, y, z int) orb.Bound {
	return w.boundsMeters(x, y, z)
}
