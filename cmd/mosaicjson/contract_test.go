package mosaicjson

import (
	"context"
	"testing"

	"github.com/developmentseed/mosaicjson-go/backend/memory"
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

func TestCreateThenInfoRoundTrips(t *testing.T) {
	memory.Reset()
	ctx := context.Background()
	uri := "memory://contract-create"

	if err := Create(ctx, uri, testDoc(), false, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	info, err := Info(ctx, uri, true, nil)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.TileCount != 1 {
		t.Fatalf("expected 1 tile, got %d", info.TileCount)
	}
	if len(info.Quadkeys) != 1 || info.Quadkeys[0] != "0" {
		t.Fatalf("unexpected quadkeys: %v", info.Quadkeys)
	}
}

func TestCreateRejectsExistingWithoutOverwrite(t *testing.T) {
	memory.Reset()
	ctx := context.Background()
	uri := "memory://contract-dup"

	if err := Create(ctx, uri, testDoc(), false, nil); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if err := Create(ctx, uri, testDoc(), false, nil); err == nil {
		t.Fatalf("expected MosaicExistsError on second Create")
	}
}

func TestAssetsForTileAndBbox(t *testing.T) {
	memory.Reset()
	ctx := context.Background()
	uri := "memory://contract-assets"

	if err := Create(ctx, uri, testDoc(), false, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tileAssets, err := AssetsForTile(ctx, uri, 0, 0, 0, nil)
	if err != nil {
		t.Fatalf("AssetsForTile: %v", err)
	}
	if len(tileAssets) != 1 || tileAssets[0] != "a.tif" {
		t.Fatalf("unexpected tile assets: %v", tileAssets)
	}

	bboxAssets, err := AssetsForBbox(ctx, uri, -5, -5, 5, 5, nil)
	if err != nil {
		t.Fatalf("AssetsForBbox: %v", err)
	}
	if len(bboxAssets) != 1 || bboxAssets[0] != "a.tif" {
		t.Fatalf("unexpected bbox assets: %v", bboxAssets)
	}
}

func TestGetGeographicBoundsDefaultsToStored(t *testing.T) {
	memory.Reset()
	ctx := context.Background()
	uri := "memory://contract-bounds"

	if err := Create(ctx, uri, testDoc(), false, nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	bounds, err := GetGeographicBounds(ctx, uri, "", nil)
	if err != nil {
		t.Fatalf("GetGeographicBounds: %v", err)
	}
	if bounds != (testDoc()).Bounds {
		t.Fatalf("unexpected bounds: %v", bounds)
	}
}
