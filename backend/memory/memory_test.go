package memory

import (
	"context"
	"testing"

	"github.com/paulmach/orb"

	"github.com/developmentseed/mosaicjson-go/mosaic"
)

func squarePolygon(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minLng, minLat},
		{maxLng, minLat},
		{maxLng, maxLat},
		{minLng, maxLat},
		{minLng, minLat},
	}}
}

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
	Reset()
	ctx := context.Background()
	b, err := New(ctx, "memory://test-ab", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := b.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Tiles["0"][0] != "a.tif" {
		t.Fatalf("unexpected tiles: %v", got.Tiles)
	}
}

func TestWriteRejectsExistingWithoutOverwrite(t *testing.T) {
	Reset()
	ctx := context.Background()
	b, _ := New(ctx, "memory://dup", nil)
	defer b.Close()

	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := b.Write(ctx, testDoc(), false); err == nil {
		t.Fatalf("expected MosaicExistsError on second Write")
	}
	if err := b.Write(ctx, testDoc(), true); err != nil {
		t.Fatalf("overwrite Write should succeed: %v", err)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	Reset()
	b, _ := New(context.Background(), "memory://missing", nil)
	defer b.Close()

	if _, err := b.Get(context.Background()); err == nil {
		t.Fatalf("expected MosaicNotFoundError")
	}
}

func TestAssetsForTileAndPoint(t *testing.T) {
	Reset()
	ctx := context.Background()
	b, _ := New(ctx, "memory://lookup", nil)
	defer b.Close()
	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	tileAssets, err := b.AssetsForTile(ctx, 0, 0, 0)
	if err != nil {
		t.Fatalf("AssetsForTile: %v", err)
	}
	if len(tileAssets) != 1 || tileAssets[0] != "a.tif" {
		t.Fatalf("unexpected tile assets: %v", tileAssets)
	}

	pointAssets, err := b.AssetsForPoint(ctx, 0, 0)
	if err != nil {
		t.Fatalf("AssetsForPoint: %v", err)
	}
	if len(pointAssets) != 1 || pointAssets[0] != "a.tif" {
		t.Fatalf("unexpected point assets: %v", pointAssets)
	}

	if _, err := b.AssetsForPoint(ctx, 170, 80); err == nil {
		t.Fatalf("expected PointOutsideBounds")
	}
}

func TestAssetsForBboxInfoAndGeographicBounds(t *testing.T) {
	Reset()
	ctx := context.Background()
	b, _ := New(ctx, "memory://bbox-info", nil)
	defer b.Close()
	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	bboxAssets, err := b.AssetsForBbox(ctx, -5, -5, 5, 5)
	if err != nil {
		t.Fatalf("AssetsForBbox: %v", err)
	}
	if len(bboxAssets) != 1 || bboxAssets[0] != "a.tif" {
		t.Fatalf("unexpected bbox assets: %v", bboxAssets)
	}

	info, err := b.Info(ctx, true)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Minzoom != 0 || info.Maxzoom != 0 || info.TileCount != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.Quadkeys) != 1 || info.Quadkeys[0] != "0" {
		t.Fatalf("expected quadkeys=[0], got %v", info.Quadkeys)
	}

	bounds, err := b.GetGeographicBounds(ctx, "")
	if err != nil {
		t.Fatalf("GetGeographicBounds: %v", err)
	}
	if bounds != testDoc().Bounds {
		t.Fatalf("expected unchanged geographic bounds, got %v", bounds)
	}
}

func TestUpdateMergesAndPersists(t *testing.T) {
	Reset()
	ctx := context.Background()
	b, _ := New(ctx, "memory://upd", nil)
	defer b.Close()
	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	qz := 0
	feature := mosaic.Feature{
		Geometry: squarePolygon(-10, -10, 10, 10),
		Properties: map[string]any{
			"path": "b.tif",
		},
	}
	updated, err := b.Update(ctx, []mosaic.Feature{feature}, true, mosaic.BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Tiles["0"]) != 2 {
		t.Fatalf("expected 2 assets after update, got %v", updated.Tiles["0"])
	}
}
