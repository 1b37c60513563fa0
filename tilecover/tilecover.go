// Package tilecover implements the geometry & tile-cover kernel (spec.md
// §4.1): given a footprint polygon in WGS-84 and a tile-matrix-set, compute
// the set of indexing-level tile cells the polygon intersects, each tagged
// with its coverage fraction.
//
// Polygon clipping is delegated to github.com/paulmach/orb/clip (the
// consumed geometry-intersection primitive spec.md §1 names as an
// out-of-scope collaborator); this package supplies only the tile-pyramid
// walk and the coverage-fraction bookkeeping that is this core's own
// responsibility.
package tilecover

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"

	"github.com/developmentseed/mosaicjson-go/tms"
)

// Cell is one tile intersected by a footprint, along with what fraction of
// the cell's area the footprint covers.
type Cell struct {
	X, Y     int
	Coverage float64
}

// Options controls filtering and ordering of the kernel's output.
type Options struct {
	// MinTileCover removes cells with coverage below the threshold. Zero
	// means "no filter". Values above 1 are a caller error.
	MinTileCover float64
	// Sort, when true, orders the returned cells by descending coverage.
	Sort bool
}

// projector is implemented by TMS's whose native CRS differs from
// geographic coordinates and that can therefore compute an area-accurate
// coverage fraction. TMS's that don't implement it fall back to an
// approximate geographic-area fraction.
type projector interface {
	ProjectToMeters(orb.Point) orb.Point
	BoundsMeters(x, y, z int) orb.Bound
}

// Cover computes the tile cells at zoom z (under matrix set t) that
// geometry intersects. geometry is WGS-84 and may be an orb.Polygon,
// orb.MultiPolygon, orb.LineString, or orb.Point — non-polygonal inputs are
// treated as covering a cell iff they intersect its interior (spec.md §4.1
// "degenerate inputs"), reported with coverage 1.0 since an area fraction
// is not meaningful for them.
func Cover(geometry orb.Geometry, t tms.TMS, z int, opts Options) ([]Cell, error) {
	if opts.MinTileCover > 1 {
		return nil, fmt.Errorf("tilecover: min_tile_cover must be <= 1, got %f", opts.MinTileCover)
	}

	var cells []Cell
	switch g := geometry.(type) {
	case orb.Polygon:
		cells = coverPolygon(g, t, z)
	case orb.MultiPolygon:
		merged := map[[2]int]float64{}
		for _, poly := range g {
			for _, c := range coverPolygon(poly, t, z) {
				key := [2]int{c.X, c.Y}
				if c.Coverage > merged[key] {
					merged[key] = c.Coverage
				}
			}
		}
		for key, cov := range merged {
			cells = append(cells, Cell{X: key[0], Y: key[1], Coverage: cov})
		}
	case orb.Point:
		cells = coverDegenerate(orb.Bound{Min: g, Max: g}, t, z)
	case orb.LineString:
		bound := g.Bound()
		cells = coverDegenerate(bound, t, z, g)
	default:
		return nil, fmt.Errorf("tilecover: unsupported geometry type %T", geometry)
	}

	if opts.MinTileCover > 0 {
		filtered := cells[:0]
		for _, c := range cells {
			if c.Coverage >= opts.MinTileCover {
				filtered = append(filtered, c)
			}
		}
		cells = filtered
	}

	if opts.Sort {
		sort.SliceStable(cells, func(i, j int) bool { return cells[i].Coverage > cells[j].Coverage })
	}

	return cells, nil
}

// coverPolygon runs the full algorithm from spec.md §4.1: split the
// anti-meridian, clip to the TMS's valid geographic extent, compute the
// candidate tile range from the polygon's projected bounding box, then
// intersect each candidate cell.
func coverPolygon(polygon orb.Polygon, t tms.TMS, z int) []Cell {
	parts := splitAntimeridian(polygon)

	merged := map[[2]int]float64{}
	for _, part := range parts {
		clipped := clip.Polygon(t.ValidBound(), part)
		if len(clipped) == 0 || len(clipped[0]) == 0 {
			continue
		}

		for _, c := range coverClippedPolygon(clipped, t, z) {
			key := [2]int{c.X, c.Y}
			if c.Coverage > merged[key] {
				merged[key] = c.Coverage
			}
		}
	}

	cells := make([]Cell, 0, len(merged))
	for key, cov := range merged {
		cells = append(cells, Cell{X: key[0], Y: key[1], Coverage: cov})
	}
	return cells
}

func coverClippedPolygon(polygon orb.Polygon, t tms.TMS, z int) []Cell {
	bound := polygon.Bound()

	minX, minY := t.Tile(bound.Min[0], bound.Min[1], z)
	maxX, maxY := t.Tile(bound.Max[0], bound.Max[1], z)
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	proj, canProject := t.(projector)

	var cells []Cell
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cellBound := t.Bounds(x, y, z)
			cellPolygon := boundToPolygon(cellBound)

			intersection := clip.Polygon(cellBound, polygon)
			if len(intersection) == 0 || len(intersection[0]) == 0 || len(intersection[0]) < 3 {
				continue
			}

			var coverage float64
			if canProject {
				coverage = areaFractionProjected(intersection, proj, t, x, y, z)
			} else {
				coverage = polygonArea(intersection) / polygonArea(cellPolygon)
			}
			if coverage <= 0 {
				continue
			}
			if coverage > 1 {
				coverage = 1
			}
			cells = append(cells, Cell{X: x, Y: y, Coverage: coverage})
		}
	}
	return cells
}

func areaFractionProjected(intersectionGeo orb.Polygon, proj projector, t tms.TMS, x, y, z int) float64 {
	projected := make(orb.Polygon, len(intersectionGeo))
	for i, ring := range intersectionGeo {
		projRing := make(orb.Ring, len(ring))
		for j, pt := range ring {
			projRing[j] = proj.ProjectToMeters(pt)
		}
		projected[i] = projRing
	}

	cellBoundMeters := proj.BoundsMeters(x, y, z)
	cellArea := (cellBoundMeters.Max[0] - cellBoundMeters.Min[0]) * (cellBoundMeters.Max[1] - cellBoundMeters.Min[1])
	if cellArea <= 0 {
		return 0
	}
	return polygonArea(projected) / cellArea
}

// coverDegenerate handles Point and LineString geometries: a cell is
// reported iff the geometry intersects its interior, never its boundary
// alone (spec.md §4.1 "boundary-exclusive").
func coverDegenerate(bound orb.Bound, t tms.TMS, z int, line ...orb.LineString) []Cell {
	minX, minY := t.Tile(bound.Min[0], bound.Min[1], z)
	maxX, maxY := t.Tile(bound.Max[0], bound.Max[1], z)
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var cells []Cell
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cellBound := t.Bounds(x, y, z)
			if len(line) == 1 {
				if lineIntersectsInterior(line[0], cellBound) {
					cells = append(cells, Cell{X: x, Y: y, Coverage: 1.0})
				}
				continue
			}
			if pointInInterior(bound.Min, cellBound) {
				cells = append(cells, Cell{X: x, Y: y, Coverage: 1.0})
			}
		}
	}
	return cells
}

func pointInInterior(p orb.Point, b orb.Bound) bool {
	return p[0] > b.Min[0] && p[0] < b.Max[0] && p[1] > b.Min[1] && p[1] < b.Max[1]
}

func lineIntersectsInterior(line orb.LineString, b orb.Bound) bool {
	for _, p := range line {
		if pointInInterior(p, b) {
			return true
		}
	}
	// Fall back to clipping: a line that passes through the cell without a
	// vertex inside it still intersects the interior.
	clipped := clip.LineString(b, line)
	for _, seg := range clipped {
		for _, p := range seg {
			if pointInInterior(p, b) {
				return true
			}
		}
	}
	return false
}

func boundToPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}}
}

// polygonArea sums the (unsigned) shoelace area of the outer ring minus
// that of any holes.
func polygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	area := ringArea(p[0])
	for _, hole := range p[1:] {
		area -= ringArea(hole)
	}
	if area < 0 {
		return 0
	}
	return area
}

func ringArea(ring orb.Ring) float64 {
	if len(ring) < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < len(ring); i++ {
		j := (i + 1) % len(ring)
		sum += ring[i][0]*ring[j][1] - ring[j][0]*ring[i][1]
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// splitAntimeridian splits polygon at the +/-180 degree line when its
// bounding box suggests it wraps the antimeridian (a longitude span wider
// than 180 degrees after the usual signed [-180,180] encoding), returning
// the polygon unmodified as a single-element slice otherwise. Each
// returned part shares the same winding as the input.
func splitAntimeridian(polygon orb.Polygon) []orb.Polygon {
	bound := polygon.Bound()
	if bound.Max[0]-bound.Min[0] <= 180 {
		return []orb.Polygon{polygon}
	}

	west := shiftPolygon(polygon, func(lng float64) float64 {
		if lng > 0 {
			return lng - 360
		}
		return lng
	})
	east := shiftPolygon(polygon, func(lng float64) float64 {
		if lng < 0 {
			return lng + 360
		}
		return lng
	})
	return []orb.Polygon{west, east}
}

func shiftPolygon(polygon orb.Polygon, shift func(float64) float64) orb.Polygon {
	out := make(orb.Polygon, len(polygon))
	for i, ring := range polygon {
		newRing := make(orb.Ring, len(ring))
		for j, pt := range ring {
			newRing[j] = orb.Point{shift(pt[0]), pt[1]}
		}
		out[i] = newRing
	}
	return out
}
