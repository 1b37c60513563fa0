package mosaic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/tms"
)

// IncreaseVersion bumps the PATCH digit of Version in place, initializing
// it to "1.0.0" when Version is empty (spec.md §4.2).
func (d *Document) IncreaseVersion() {
	if d.Version == "" {
		d.Version = "1.0.0"
		return
	}

	parts := strings.SplitN(d.Version, ".", 3)
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		patch = 0
	}
	parts[2] = strconv.Itoa(patch + 1)
	d.Version = strings.Join(parts, ".")
}

// Update merges features into doc following the five-step algorithm of
// spec.md §4.4 ("Update protocol (§4.7 expanded)"): build a partial
// document from features at doc's own minzoom/maxzoom/quadkey_zoom/TMS,
// merge each touched tile's asset list, union bounds, recompute center,
// and bump the version. It does not persist — callers (typically a
// Backend.Update implementation) call Write/equivalent afterward.
func Update(doc *Document, features []Feature, t tms.TMS, addFirst bool, opts BuildOptions) (*Document, error) {
	opts.Minzoom = doc.Minzoom
	opts.Maxzoom = doc.Maxzoom
	opts.QuadkeyZoom = doc.QuadkeyZoom
	opts.TMS = t
	opts.AssetPrefix = doc.AssetPrefix

	partial, err := FromFeatures(features, opts)
	if err != nil {
		return nil, fmt.Errorf("mosaic: update: %w", err)
	}

	next := doc.Clone()

	for qk, newAssets := range partial.Tiles {
		oldAssets := next.Tiles[qk]

		var merged []string
		if addFirst {
			merged = append(append([]string{}, newAssets...), oldAssets...)
		} else {
			merged = append(append([]string{}, oldAssets...), newAssets...)
		}
		next.Tiles[qk] = merged
	}

	if len(features) > 0 {
		tmsToUse := t
		if tmsToUse == nil {
			tmsToUse = tms.Default()
		}
		currentBound := orb.Bound{
			Min: orb.Point{next.Bounds[0], next.Bounds[1]},
			Max: orb.Point{next.Bounds[2], next.Bounds[3]},
		}
		newBound := orb.Bound{
			Min: orb.Point{partial.Bounds[0], partial.Bounds[1]},
			Max: orb.Point{partial.Bounds[2], partial.Bounds[3]},
		}
		union := currentBound.Union(newBound)
		next.Bounds = [4]float64{union.Min[0], union.Min[1], union.Max[0], union.Max[1]}
		next.Center = deriveCenter(next.Bounds, next.Minzoom)
	}

	next.IncreaseVersion()

	if err := Validate(next); err != nil {
		return nil, err
	}
	return next, nil
}
