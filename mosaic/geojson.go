package mosaic

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/developmentseed/mosaicjson-go/tms"
)

// ToGeoJSON emits a feature collection with one feature per indexing-level
// quadkey (spec.md §4.2), used for visualization/debugging: geometry is
// the cell polygon under t (or the Web Mercator default when t is nil),
// properties.files is the quadkey's asset list.
func ToGeoJSON(d *Document, t tms.TMS) (*geojson.FeatureCollection, error) {
	if t == nil {
		t = tms.Default()
	}

	fc := geojson.NewFeatureCollection()
	zoom := d.EffectiveQuadkeyZoom()

	for qk, assets := range d.Tiles {
		x, y, z, err := tms.QuadkeyToTile(qk)
		if err != nil {
			return nil, err
		}
		if z != zoom {
			z = zoom
		}

		bound := t.Bounds(x, y, z)
		polygon := orb.Polygon{orb.Ring{
			{bound.Min[0], bound.Min[1]},
			{bound.Max[0], bound.Min[1]},
			{bound.Max[0], bound.Max[1]},
			{bound.Min[0], bound.Max[1]},
			{bound.Min[0], bound.Min[1]},
		}}

		feature := geojson.NewFeature(polygon)
		feature.Properties["files"] = d.AssetsForQuadkey(qk)
		feature.Properties["quadkey"] = qk
		fc.Append(feature)
	}

	return fc, nil
}
