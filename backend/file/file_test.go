package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/config"
	"github.com/developmentseed/mosaicjson-go/mosaic"
)

func testDoc() *mosaic.Document {
	return &mosaic.Document{
		MosaicJSON: mosaic.Version003,
		Version:    "1.0.0",
		Minzoom:    0,
		Maxzoom:    0,
		Bounds:     [4]float64{-10, -10, 10, 10},
		Center:     [3]float64{0, 0, 0},
		Tiles:      map[string][]string{"0": {"a.tif"}},
	}
}

func TestWriteThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.json")
	ctx := context.Background()

	b, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fresh, err := New(ctx, path, nil)
	if err != nil {
		t.Fatalf("New (fresh handle): %v", err)
	}
	defer fresh.Close()

	got, err := fresh.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tiles["0"][0] != "a.tif" {
		t.Fatalf("unexpected tiles: %v", got.Tiles)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.json")
	b, _ := New(context.Background(), path, nil)
	defer b.Close()

	if _, err := b.Get(context.Background()); err == nil {
		t.Fatalf("expected MosaicNotFoundError")
	}
}

func TestWriteRejectsExistingWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.json")
	ctx := context.Background()
	b, _ := New(ctx, path, nil)
	defer b.Close()

	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := b.Write(ctx, testDoc(), false); err == nil {
		t.Fatalf("expected MosaicExistsError on second Write")
	}
}

// TestSharedCacheSurvivesUnderlyingFileRemoval shows that two handles for
// the same uri opened against one process-wide cache (spec.md §4.4) share
// the parsed document: once the first handle's Get populates the cache, a
// second handle sees the cached copy even after the backing file is gone.
func TestSharedCacheSurvivesUnderlyingFileRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.json")
	ctx := context.Background()

	c, err := cache.New(config.CacheConfig{TTLSeconds: 300, Size: 10})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	first, err := New(ctx, path, map[string]any{"cache": c})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := first.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Close()

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	second, err := New(ctx, path, map[string]any{"cache": c})
	if err != nil {
		t.Fatalf("New (second handle): %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx)
	if err != nil {
		t.Fatalf("Get should hit the shared cache, not the removed file: %v", err)
	}
	if got.Tiles["0"][0] != "a.tif" {
		t.Fatalf("unexpected tiles: %v", got.Tiles)
	}
}

// TestFileURIPrefixStripped shows that a document built with an
// asset_prefix (mosaic.BuildOptions.AssetPrefix) is persisted with that
// prefix stripped from every stored asset string (spec.md §3 "stripped
// on write"), and that reading it back through the file backend
// re-prepends the prefix via Document.AssetsForQuadkey.
func TestFileURIPrefixStripped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaic.json")
	ctx := context.Background()

	qz := 0
	f := squareFeature("s3://bucket/a.tif", -10, -10, 10, 10)
	doc, err := mosaic.FromFeatures([]mosaic.Feature{f}, mosaic.BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
		AssetPrefix: "s3://bucket/",
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	b, err := New(ctx, "file://"+path, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	if err := b.Write(ctx, doc, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(raw), "s3://bucket/a.tif") {
		t.Fatalf("expected stored document to omit the asset_prefix, got raw bytes %s", raw)
	}

	fresh, err := New(ctx, "file://"+path, nil)
	if err != nil {
		t.Fatalf("New (fresh handle): %v", err)
	}
	defer fresh.Close()

	got, err := fresh.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tiles["0"][0] != "a.tif" {
		t.Fatalf("expected stored tile asset to be stripped, got %v", got.Tiles)
	}
	if assets := got.AssetsForQuadkey("0"); len(assets) != 1 || assets[0] != "s3://bucket/a.tif" {
		t.Fatalf("expected AssetsForQuadkey to re-prepend asset_prefix, got %v", assets)
	}
}

func squareFeature(path string, minLng, minLat, maxLng, maxLat float64) mosaic.Feature {
	return mosaic.Feature{
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
