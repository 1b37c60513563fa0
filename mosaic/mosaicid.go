package mosaic

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// digestDocument mirrors Document but omits Tiles, since MosaicID (spec.md
// §4.2) is computed over every field except the tile index.
type digestDocument struct {
	MosaicJSON    string            `json:"mosaicjson"`
	Name          string            `json:"name,omitempty"`
	Description   string            `json:"description,omitempty"`
	Attribution   string            `json:"attribution,omitempty"`
	Version       string            `json:"version"`
	Minzoom       int               `json:"minzoom"`
	Maxzoom       int               `json:"maxzoom"`
	QuadkeyZoom   *int              `json:"quadkey_zoom,omitempty"`
	Bounds        [4]float64        `json:"bounds"`
	Center        [3]float64        `json:"center"`
	TileMatrixSet []byte            `json:"tilematrixset,omitempty"`
	AssetType     string            `json:"asset_type,omitempty"`
	AssetPrefix   string            `json:"asset_prefix,omitempty"`
	DataType      string            `json:"data_type,omitempty"`
	Colormap      map[string][4]int `json:"colormap,omitempty"`
	Layers        map[string]Layer  `json:"layers,omitempty"`
}

// MosaicID returns the deterministic SHA-224 hex digest of the canonical
// JSON encoding of the document with `tiles` excluded (spec.md §4.2). Go's
// encoding/json serializes map keys in sorted order and a fixed struct
// field order, which keeps the digest stable across repeated calls and
// round trips regardless of the original field ordering in a parsed
// document.
func MosaicID(d *Document) (string, error) {
	dd := digestDocument{
		MosaicJSON:    d.MosaicJSON,
		Name:          d.Name,
		Description:   d.Description,
		Attribution:   d.Attribution,
		Version:       d.Version,
		Minzoom:       d.Minzoom,
		Maxzoom:       d.Maxzoom,
		QuadkeyZoom:   d.QuadkeyZoom,
		Bounds:        d.Bounds,
		Center:        d.Center,
		TileMatrixSet: d.TileMatrixSet,
		AssetType:     d.AssetType,
		AssetPrefix:   d.AssetPrefix,
		DataType:      d.DataType,
		Colormap:      d.Colormap,
		Layers:        d.Layers,
	}

	canonical, err := json.Marshal(dd)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum224(canonical)
	return hex.EncodeToString(sum[:]), nil
}
