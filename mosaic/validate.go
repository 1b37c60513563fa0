package mosaic

import (
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Validate enforces the invariants spec.md §3 places on a document,
// returning every violation found rather than stopping at the first
// (mirroring the teacher pack's MultiValidationError accumulator
// pattern).
func Validate(d *Document) error {
	errs := mosaicerr.NewMultiValidationError()

	if d.MosaicJSON != Version002 && d.MosaicJSON != Version003 {
		errs.Add("mosaicjson", "must be one of \"0.0.2\", \"0.0.3\"")
	}

	if d.Minzoom < 0 || d.Minzoom > 30 {
		errs.Add("minzoom", "must be in [0,30]")
	}
	if d.Maxzoom < 0 || d.Maxzoom > 30 {
		errs.Add("maxzoom", "must be in [0,30]")
	}
	if d.Minzoom > d.Maxzoom {
		errs.Add("minzoom", "must be <= maxzoom")
	}

	qz := d.EffectiveQuadkeyZoom()
	if qz < 0 || qz > 30 {
		errs.Add("quadkey_zoom", "must be in [0,30]")
	}

	if d.Bounds[0] > d.Bounds[2] || d.Bounds[1] > d.Bounds[3] {
		errs.Add("bounds", "west must be <= east and south must be <= north")
	}

	for qk, assets := range d.Tiles {
		if !tms.ValidQuadkey(qk, qz) {
			errs.Add("tiles", "key "+qk+" is not a valid quadkey at the document's quadkey_zoom")
			continue
		}
		if len(assets) == 0 {
			errs.Add("tiles", "key "+qk+" has an empty asset list; empty lists must be elided")
		}
	}

	if !d.SupportsExtendedFields() && len(d.TileMatrixSet) > 0 {
		errs.Add("tilematrixset", "requires mosaicjson 0.0.3")
	}
	if !d.SupportsExtendedFields() && (len(d.Layers) > 0 || len(d.Colormap) > 0) {
		errs.Add("layers", "layers/colormap require mosaicjson 0.0.3")
	}

	return errs.AsError()
}
