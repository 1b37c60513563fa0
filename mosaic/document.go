// Package mosaic implements the MosaicJSON document model (spec.md §3):
// the canonical in-memory representation, its invariants, bounds/center
// derivation, version bumping, and serialization.
package mosaic

import (
	"encoding/json"
	"strings"
)

// Recognized mosaicjson spec versions (spec.md §3).
const (
	Version002 = "0.0.2"
	Version003 = "0.0.3"
)

// Document is the sole persistent entity this core manages.
type Document struct {
	MosaicJSON    string              `json:"mosaicjson"`
	Name          string              `json:"name,omitempty"`
	Description   string              `json:"description,omitempty"`
	Attribution   string              `json:"attribution,omitempty"`
	Version       string              `json:"version"`
	Minzoom       int                 `json:"minzoom"`
	Maxzoom       int                 `json:"maxzoom"`
	QuadkeyZoom   *int                `json:"quadkey_zoom,omitempty"`
	Bounds        [4]float64          `json:"bounds"`
	Center        [3]float64          `json:"center"`
	Tiles         map[string][]string `json:"tiles"`
	TileMatrixSet json.RawMessage     `json:"tilematrixset,omitempty"`
	AssetType     string              `json:"asset_type,omitempty"`
	AssetPrefix   string              `json:"asset_prefix,omitempty"`
	DataType      string              `json:"data_type,omitempty"`
	Colormap      map[string][4]int   `json:"colormap,omitempty"`
	Layers        map[string]Layer    `json:"layers,omitempty"`
}

// Layer describes a named asset sub-selection (spec.md §3 `layers`).
type Layer struct {
	Bidx       []int  `json:"bidx,omitempty"`
	Expression string `json:"expression,omitempty"`
}

// EffectiveQuadkeyZoom returns quadkey_zoom, defaulting to minzoom when
// the field is absent (spec.md §3).
func (d *Document) EffectiveQuadkeyZoom() int {
	if d.QuadkeyZoom != nil {
		return *d.QuadkeyZoom
	}
	return d.Minzoom
}

// AssetsForQuadkey returns the ordered asset list stored under quadkey,
// with asset_prefix prepended (spec.md §3: stored strings never include
// the prefix; it is prepended on read).
func (d *Document) AssetsForQuadkey(quadkey string) []string {
	assets := d.Tiles[quadkey]
	if d.AssetPrefix == "" || len(assets) == 0 {
		return assets
	}
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = d.AssetPrefix + a
	}
	return out
}

// stripPrefix removes asset_prefix from an incoming asset identifier
// before it is stored in Tiles, best-effort: if the identifier does not
// already carry the prefix it is stored unchanged (spec.md §9 open
// question: source strips best-effort rather than refusing).
func (d *Document) stripPrefix(asset string) string {
	if d.AssetPrefix == "" {
		return asset
	}
	return strings.TrimPrefix(asset, d.AssetPrefix)
}

// SupportsExtendedFields reports whether mosaicjson == "0.0.3", which
// enables tilematrixset, layers, and colormap (spec.md §3).
func (d *Document) SupportsExtendedFields() bool {
	return d.MosaicJSON == Version003
}

// Clone returns a deep copy, used by Update to build a new state before
// committing it (spec.md §4.7 transactional update).
func (d *Document) Clone() *Document {
	clone := *d
	if d.QuadkeyZoom != nil {
		qz := *d.QuadkeyZoom
		clone.QuadkeyZoom = &qz
	}
	clone.Bounds = d.Bounds
	clone.Center = d.Center

	clone.Tiles = make(map[string][]string, len(d.Tiles))
	for k, v := range d.Tiles {
		cp := make([]string, len(v))
		copy(cp, v)
		clone.Tiles[k] = cp
	}

	if d.Colormap != nil {
		clone.Colormap = make(map[string][4]int, len(d.Colormap))
		for k, v := range d.Colormap {
			clone.Colormap[k] = v
		}
	}
	if d.Layers != nil {
		clone.Layers = make(map[string]Layer, len(d.Layers))
		for k, v := range d.Layers {
			clone.Layers[k] = v
		}
	}
	return &clone
}

// Marshal serializes the document as compact JSON (spec.md §6 wire
// format: byte-exact field content, field ordering not significant).
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal parses JSON bytes into a new Document.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
