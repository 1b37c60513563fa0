package backend

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tilecover"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// ResolveAssetsForTile implements spec.md §4.4/§4.6 tile-to-asset lookup:
// when the query tile sits at the document's indexing zoom it is a direct
// key lookup; when it is coarser, the assets of every covered indexing-zoom
// descendant are unioned in first-occurrence order (spec.md §8 scenario 5);
// when it is finer, the ancestor quadkey at the indexing zoom is looked up.
func ResolveAssetsForTile(doc *mosaic.Document, t tms.TMS, x, y, z int) ([]string, error) {
	qz := doc.EffectiveQuadkeyZoom()

	switch {
	case z == qz:
		qk := tms.Quadkey(x, y, z)
		return doc.AssetsForQuadkey(qk), nil

	case z < qz:
		descendants := tms.Descendants(x, y, z, qz)
		seen := make(map[string]bool)
		var out []string
		for _, qk := range descendants {
			for _, asset := range doc.AssetsForQuadkey(qk) {
				if seen[asset] {
					continue
				}
				seen[asset] = true
				out = append(out, asset)
			}
		}
		return out, nil

	default: // z > qz: ancestor lookup
		full := tms.Quadkey(x, y, z)
		if qz == 0 {
			return doc.AssetsForQuadkey("0"), nil
		}
		if len(full) < qz {
			return nil, nil
		}
		return doc.AssetsForQuadkey(full[:qz]), nil
	}
}

// ResolveAssetsForPoint implements spec.md §4.4 point-to-asset lookup:
// project lng/lat to the indexing-zoom tile under t and look up its
// quadkey. Returns mosaicerr.PointOutsideBounds when the point falls
// outside the document's bounds.
func ResolveAssetsForPoint(doc *mosaic.Document, t tms.TMS, lng, lat float64) ([]string, error) {
	if lng < doc.Bounds[0] || lng > doc.Bounds[2] || lat < doc.Bounds[1] || lat > doc.Bounds[3] {
		return nil, mosaicerr.NewPointOutsideBounds(lng, lat)
	}

	qz := doc.EffectiveQuadkeyZoom()
	x, y := t.Tile(lng, lat, qz)
	qk := tms.Quadkey(x, y, qz)
	return doc.AssetsForQuadkey(qk), nil
}

// ResolveAssetsForBbox implements spec.md §4.4 `assets_for_bbox`: run the
// tile-cover kernel over the bbox rectangle at the document's indexing zoom
// and union the covered cells' asset lists, deduplicating while preserving
// first-occurrence order (spec.md §4.4 "Lookup across TMSes" applies the
// same dedup rule to the tile case; bbox reuses it here).
func ResolveAssetsForBbox(doc *mosaic.Document, t tms.TMS, xmin, ymin, xmax, ymax float64) ([]string, error) {
	qz := doc.EffectiveQuadkeyZoom()
	bbox := orb.Polygon{orb.Ring{
		{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}, {xmin, ymin},
	}}

	cells, err := tilecover.Cover(bbox, t, qz, tilecover.Options{})
	if err != nil {
		return nil, err
	}

	// Sort for determinism: row-major (y, then x) so output order does not
	// depend on the kernel's internal map iteration order.
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})

	seen := make(map[string]bool)
	var out []string
	for _, c := range cells {
		qk := tms.Quadkey(c.X, c.Y, qz)
		for _, asset := range doc.AssetsForQuadkey(qk) {
			if seen[asset] {
				continue
			}
			seen[asset] = true
			out = append(out, asset)
		}
	}
	return out, nil
}

// Info is the metadata snapshot spec.md §4.4 `info(quadkeys: bool)` returns:
// the document's header fields, optionally accompanied by the full list of
// indexed quadkeys.
type Info struct {
	MosaicJSON  string     `json:"mosaicjson"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Version     string     `json:"version"`
	Minzoom     int        `json:"minzoom"`
	Maxzoom     int        `json:"maxzoom"`
	QuadkeyZoom int        `json:"quadkey_zoom"`
	Bounds      [4]float64 `json:"bounds"`
	Center      [3]float64 `json:"center"`
	TileCount   int        `json:"tile_count"`
	Quadkeys    []string   `json:"quadkeys,omitempty"`
}

// ResolveInfo builds an Info snapshot from doc, including the sorted list of
// indexed quadkeys when withQuadkeys is true.
func ResolveInfo(doc *mosaic.Document, withQuadkeys bool) Info {
	info := Info{
		MosaicJSON:  doc.MosaicJSON,
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Minzoom:     doc.Minzoom,
		Maxzoom:     doc.Maxzoom,
		QuadkeyZoom: doc.EffectiveQuadkeyZoom(),
		Bounds:      doc.Bounds,
		Center:      doc.Center,
		TileCount:   len(doc.Tiles),
	}
	if withQuadkeys {
		info.Quadkeys = make([]string, 0, len(doc.Tiles))
		for qk := range doc.Tiles {
			info.Quadkeys = append(info.Quadkeys, qk)
		}
		sort.Strings(info.Quadkeys)
	}
	return info
}

// projector is the same lon/lat -> native-CRS-meters capability the
// tile-cover kernel consumes (tilecover's unexported twin); a TMS that
// doesn't implement it only supports the geographic CRS.
type projector interface {
	ProjectToMeters(orb.Point) orb.Point
}

// ResolveGeographicBounds implements spec.md §4.4 `get_geographic_bounds(crs)`.
// crs == "" or "EPSG:4326" returns the document's stored geographic bounds
// unchanged. Any other value is reprojected via t, which must implement
// projector for that CRS; an unsupported crs is a BackendError.
func ResolveGeographicBounds(doc *mosaic.Document, t tms.TMS, crs string) ([4]float64, error) {
	if crs == "" || crs == "EPSG:4326" {
		return doc.Bounds, nil
	}
	if crs != t.CRS() {
		return [4]float64{}, fmt.Errorf("backend: unsupported bounds crs %q (tms native crs is %q)", crs, t.CRS())
	}
	proj, ok := t.(projector)
	if !ok {
		return [4]float64{}, fmt.Errorf("backend: tms %q cannot project bounds to %q", t.CRS(), crs)
	}
	min := proj.ProjectToMeters(orb.Point{doc.Bounds[0], doc.Bounds[1]})
	max := proj.ProjectToMeters(orb.Point{doc.Bounds[2], doc.Bounds[3]})
	return [4]float64{min[0], min[1], max[0], max[1]}, nil
}
