package mosaic

import (
	"context"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/reader"
	"github.com/developmentseed/mosaicjson-go/tilecover"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Feature is one georeferenced asset footprint fed to the index builder.
type Feature struct {
	Geometry   orb.Geometry
	Properties map[string]any
	CRS        string
}

// Accessor resolves a feature to the asset identifier stored in the
// document's tiles (spec.md §4.3 step 1, DESIGN NOTES capability
// interface).
type Accessor func(f Feature) (string, error)

// PathAccessor is the default Accessor: it reads properties["path"].
func PathAccessor(f Feature) (string, error) {
	path, ok := f.Properties["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("mosaic: feature has no string properties.path")
	}
	return path, nil
}

// AssetFilter may drop, sort, or deduplicate the candidate features for one
// tile (spec.md §4.3 step 3, DESIGN NOTES capability interface). It must
// return a subset/reordering of features; identity and order are
// otherwise preserved by the builder.
type AssetFilter func(tile string, features []Feature, geoms map[string]orb.Geometry) []Feature

// IdentityFilter is the default AssetFilter: it returns features
// unchanged.
func IdentityFilter(tile string, features []Feature, geoms map[string]orb.Geometry) []Feature {
	return features
}

// BuildOptions configures FromFeatures/FromURLs (DESIGN NOTES
// "configuration bag" — an enumerated struct, not an opaque map).
type BuildOptions struct {
	Minzoom       int
	Maxzoom       int
	QuadkeyZoom   *int
	TMS           tms.TMS
	Accessor      Accessor
	AssetFilter   AssetFilter
	MinTileCover  float64
	TileCoverSort bool
	Quiet         bool
	// AssetPrefix becomes the built document's asset_prefix; asset
	// identifiers resolved by Accessor are stripped of this prefix before
	// being stored in Tiles (spec.md §3: stored strings never include the
	// prefix, AssetsForQuadkey prepends it back on read).
	AssetPrefix string
}

func (o BuildOptions) tileMatrixSet() tms.TMS {
	if o.TMS != nil {
		return o.TMS
	}
	return tms.Default()
}

func (o BuildOptions) quadkeyZoom() int {
	if o.QuadkeyZoom != nil {
		return *o.QuadkeyZoom
	}
	return o.Minzoom
}

func (o BuildOptions) accessor() Accessor {
	if o.Accessor != nil {
		return o.Accessor
	}
	return PathAccessor
}

func (o BuildOptions) assetFilter() AssetFilter {
	if o.AssetFilter != nil {
		return o.AssetFilter
	}
	return IdentityFilter
}

// tileCandidate is one (feature, asset id) pair that landed in a tile,
// retaining the order features were supplied in (spec.md §4.3 "ordering
// rule").
type tileCandidate struct {
	assetID string
	feature Feature
}

// FromFeatures builds a MosaicJSON document from pre-materialized feature
// geometries (spec.md §4.2/§4.3).
func FromFeatures(features []Feature, opts BuildOptions) (*Document, error) {
	t := opts.tileMatrixSet()
	z := opts.quadkeyZoom()
	access := opts.accessor()
	filter := opts.assetFilter()

	tileOrder := make([]string, 0)
	candidates := make(map[string][]tileCandidate)
	geoms := make(map[string]map[string]orb.Geometry)

	bounds := orb.Bound{Min: orb.Point{180, 90}, Max: orb.Point{-180, -90}}
	hasBounds := false

	for _, f := range features {
		assetID, err := access(f)
		if err != nil {
			return nil, fmt.Errorf("mosaic: accessor failed: %w", err)
		}

		cells, err := tilecover.Cover(f.Geometry, t, z, tilecover.Options{
			MinTileCover: opts.MinTileCover,
			Sort:         opts.TileCoverSort,
		})
		if err != nil {
			return nil, fmt.Errorf("mosaic: tile cover for asset %q: %w", assetID, err)
		}

		fb := f.Geometry.Bound()
		bounds = bounds.Union(fb)
		hasBounds = true

		for _, cell := range cells {
			qk := tms.Quadkey(cell.X, cell.Y, z)
			if _, seen := candidates[qk]; !seen {
				tileOrder = append(tileOrder, qk)
				geoms[qk] = make(map[string]orb.Geometry)
			}
			candidates[qk] = append(candidates[qk], tileCandidate{assetID: assetID, feature: f})
			geoms[qk][assetID] = f.Geometry
		}

		if !opts.Quiet {
			log.Printf("mosaic: indexed asset %q into %d tiles", assetID, len(cells))
		}
	}

	doc := &Document{
		MosaicJSON:  Version003,
		Version:     "1.0.0",
		Minzoom:     opts.Minzoom,
		Maxzoom:     opts.Maxzoom,
		QuadkeyZoom: opts.QuadkeyZoom,
		AssetPrefix: opts.AssetPrefix,
	}

	tiles := make(map[string][]string, len(tileOrder))
	for _, qk := range tileOrder {
		tileFeatures := make([]Feature, len(candidates[qk]))
		for i, c := range candidates[qk] {
			tileFeatures[i] = c.feature
		}

		filtered := filter(qk, tileFeatures, geoms[qk])

		assets := make([]string, 0, len(filtered))
		for _, f := range filtered {
			id, err := access(f)
			if err != nil {
				return nil, fmt.Errorf("mosaic: accessor failed while re-resolving filtered feature: %w", err)
			}
			assets = append(assets, doc.stripPrefix(id))
		}
		if len(assets) > 0 {
			tiles[qk] = assets
		}
	}
	doc.Tiles = tiles
	if hasBounds {
		clipped := clampBound(bounds, t.ValidBound())
		doc.Bounds = [4]float64{clipped.Min[0], clipped.Min[1], clipped.Max[0], clipped.Max[1]}
	}
	doc.Center = deriveCenter(doc.Bounds, doc.Minzoom)

	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromURLs resolves each URI to a Feature via the raster reader's
// footprint primitive, then delegates to FromFeatures (spec.md §4.2).
func FromURLs(ctx context.Context, urls []string, fr reader.FootprintReader, opts BuildOptions) (*Document, error) {
	features := make([]Feature, 0, len(urls))
	for _, u := range urls {
		fp, err := fr.Footprint(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("mosaic: footprint for %q: %w", u, err)
		}
		features = append(features, Feature{
			Geometry: fp.Polygon,
			CRS:      fp.CRS,
			Properties: map[string]any{
				"path":      u,
				"filename":  fp.Filename,
				"overviews": fp.Overviews,
			},
		})
	}
	return FromFeatures(features, opts)
}

func deriveCenter(bounds [4]float64, minzoom int) [3]float64 {
	return [3]float64{
		(bounds[0] + bounds[2]) / 2,
		(bounds[1] + bounds[3]) / 2,
		float64(minzoom),
	}
}

// clampBound clips a to the component-wise intersection with b (spec.md
// §3: bounds is clipped to the TMS bbox).
func clampBound(a, b orb.Bound) orb.Bound {
	out := orb.Bound{
		Min: orb.Point{maxFloat(a.Min[0], b.Min[0]), maxFloat(a.Min[1], b.Min[1])},
		Max: orb.Point{minFloat(a.Max[0], b.Max[0]), minFloat(a.Max[1], b.Max[1])},
	}
	if out.Min[0] > out.Max[0] {
		out.Min[0], out.Max[0] = out.Max[0], out.Min[0]
	}
	if out.Min[1] > out.Max[1] {
		out.Min[1], out.Max[1] = out.Max[1], out.Min[1]
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
