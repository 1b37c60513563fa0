package tms

import (
	"fmt"
	"strings"
)

// Quadkey encodes tile (x,y) at zoom z into the `{0,1,2,3}` quad-tree
// traversal string spec.md §3 requires (NW=0, NE=1, SW=2, SE=3), with the
// zoom-0 tile encoded as the literal "0" rather than an empty string.
func Quadkey(x, y, z int) string {
	if z == 0 {
		return "0"
	}

	var b strings.Builder
	b.Grow(z)
	for i := z; i > 0; i-- {
		digit := 0
		mask := 1 << uint(i-1)
		if x&mask != 0 {
			digit++
		}
		if y&mask != 0 {
			digit += 2
		}
		b.WriteByte(byte('0' + digit))
	}
	return b.String()
}

// QuadkeyToTile decodes a quadkey string back into (x,y,z). It is the
// inverse of Quadkey and is used by mosaic.ToGeoJSON to turn each indexed
// quadkey back into a tile cell.
func QuadkeyToTile(quadkey string) (x, y, z int, err error) {
	if quadkey == "0" {
		return 0, 0, 0, nil
	}

	z = len(quadkey)
	for i, c := range quadkey {
		mask := 1 << uint(z-i-1)
		switch c {
		case '0':
		case '1':
			x |= mask
		case '2':
			y |= mask
		case '3':
			x |= mask
			y |= mask
		default:
			return 0, 0, 0, fmt.Errorf("tms: invalid quadkey digit %q in %q", c, quadkey)
		}
	}
	return x, y, z, nil
}

// ValidQuadkey reports whether s is exactly zoomLevels digits deep over the
// alphabet {0,1,2,3} (or the literal "0" when zoomLevels is 0), the
// invariant spec.md §3 places on every key in a document's `tiles` map.
func ValidQuadkey(s string, zoomLevels int) bool {
	if zoomLevels == 0 {
		return s == "0"
	}
	if len(s) != zoomLevels {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '3' {
			return false
		}
	}
	return true
}

// Children returns the four zoom+1 quadkeys nested under the tile at
// (x,y,z).
func Children(x, y, z int) [4]string {
	return [4]string{
		Quadkey(2*x, 2*y, z+1),
		Quadkey(2*x+1, 2*y, z+1),
		Quadkey(2*x, 2*y+1, z+1),
		Quadkey(2*x+1, 2*y+1, z+1),
	}
}

// Descendants enumerates every quadkey at targetZoom nested under the tile
// at (x,y,z), in row-major (y then x) order. When targetZoom == z it
// returns the tile's own quadkey. Used by assets_for_tile to resolve a
// coarser request zoom against a document indexed at a deeper
// quadkey_zoom (spec.md §8 scenario 5): the document's assets are looked
// up once per descendant quadkey and unioned in first-occurrence order.
func Descendants(x, y, z, targetZoom int) []string {
	if targetZoom <= z {
		return []string{Quadkey(x, y, z)}
	}

	levels := targetZoom - z
	span := 1 << uint(levels)
	baseX, baseY := x<<uint(levels), y<<uint(levels)

	keys := make([]string, 0, span*span)
	for dy := 0; dy < span; dy++ {
		for dx := 0; dx < span; dx++ {
			keys = append(keys, Quadkey(baseX+dx, baseY+dy, targetZoom))
		}
	}
	return keys
}
