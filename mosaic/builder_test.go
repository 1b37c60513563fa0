package mosaic

import (
	"testing"

	"github.com/paulmach/orb"
)

func squareFeature(path string, minLng, minLat, maxLng, maxLat float64) Feature {
	return Feature{
		Geometry: orb.Polygon{orb.Ring{
			{minLng, minLat},
			{maxLng, minLat},
			{maxLng, maxLat},
			{minLng, maxLat},
			{minLng, minLat},
		}},
		Properties: map[string]any{"path": path},
	}
}

func TestFromFeaturesOrderingAtZoomZero(t *testing.T) {
	qz := 0
	f1 := squareFeature("1.tif", -10, -10, 10, 10)
	f2 := squareFeature("2.tif", -10, -10, 10, 10)

	doc, err := FromFeatures([]Feature{f1, f2}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	got, ok := doc.Tiles["0"]
	if !ok {
		t.Fatalf("expected tile \"0\", got tiles %v", doc.Tiles)
	}
	want := []string{"1.tif", "2.tif"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected order-preserving merge %v, got %v", want, got)
	}
}

func TestFromFeaturesRejectsOutOfRangeMinTileCover(t *testing.T) {
	f := squareFeature("a.tif", -10, -10, 10, 10)
	_, err := FromFeatures([]Feature{f}, BuildOptions{
		Minzoom:      0,
		Maxzoom:      5,
		MinTileCover: 2.0,
	})
	if err == nil {
		t.Fatalf("expected error for min_tile_cover > 1")
	}
}

func TestFromFeaturesDisjointAssetsDoNotShareTiles(t *testing.T) {
	near := squareFeature("near.tif", 0, 0, 1, 1)
	far := squareFeature("far.tif", 170, 80, 179, 84)

	doc, err := FromFeatures([]Feature{near, far}, BuildOptions{Minzoom: 7, Maxzoom: 12})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	for qk, assets := range doc.Tiles {
		hasNear := false
		hasFar := false
		for _, a := range assets {
			if a == "near.tif" {
				hasNear = true
			}
			if a == "far.tif" {
				hasFar = true
			}
		}
		if hasNear && hasFar {
			t.Fatalf("disjoint assets unexpectedly shared tile %q: %v", qk, assets)
		}
	}
}

func TestFromFeaturesValidatesResult(t *testing.T) {
	f := squareFeature("a.tif", -10, -10, 10, 10)
	doc, err := FromFeatures([]Feature{f}, BuildOptions{Minzoom: 0, Maxzoom: 5})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}
	if err := Validate(doc); err != nil {
		t.Fatalf("expected built document to validate, got %v", err)
	}
}

func TestFromFeaturesStripsAssetPrefixOnWrite(t *testing.T) {
	qz := 0
	f := squareFeature("s3://bucket/1.tif", -10, -10, 10, 10)

	doc, err := FromFeatures([]Feature{f}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
		AssetPrefix: "s3://bucket/",
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}
	if doc.AssetPrefix != "s3://bucket/" {
		t.Fatalf("expected asset_prefix to be recorded, got %q", doc.AssetPrefix)
	}
	got := doc.Tiles["0"]
	if len(got) != 1 || got[0] != "1.tif" {
		t.Fatalf("expected stored asset to be stripped of prefix, got %v", got)
	}
	if read := doc.AssetsForQuadkey("0"); len(read) != 1 || read[0] != "s3://bucket/1.tif" {
		t.Fatalf("expected AssetsForQuadkey to re-prepend prefix, got %v", read)
	}
}

func TestAssetFilterCanDeduplicate(t *testing.T) {
	dedupe := func(tile string, features []Feature, geoms map[string]orb.Geometry) []Feature {
		seen := map[string]bool{}
		var out []Feature
		for _, f := range features {
			id, _ := PathAccessor(f)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, f)
		}
		return out
	}

	f1 := squareFeature("dup.tif", -10, -10, 10, 10)
	f2 := squareFeature("dup.tif", -10, -10, 10, 10)
	qz := 0

	doc, err := FromFeatures([]Feature{f1, f2}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
		AssetFilter: dedupe,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}
	if got := doc.Tiles["0"]; len(got) != 1 {
		t.Fatalf("expected dedup filter to collapse to 1 asset, got %v", got)
	}
}
