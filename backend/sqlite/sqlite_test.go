package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/developmentseed/mosaicjson-go/mosaic"
)

func testDoc() *mosaic.Document {
	return &mosaic.Document{
		MosaicJSON: mosaic.Version003,
		Version:    "1.0.0",
		Bounds:     [4]float64{-10, -10, 10, 10},
		Tiles:      map[string][]string{"0": {"a.tif"}},
	}
}

func TestSplitURI(t *testing.T) {
	path, name, err := splitURI("sqlite:///tmp/m.db:my-mosaic")
	if err != nil {
		t.Fatalf("splitURI: %v", err)
	}
	if path != "/tmp/m.db" || name != "my-mosaic" {
		t.Fatalf("got path=%q name=%q", path, name)
	}
}

func TestWriteThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	uri := "sqlite://" + filepath.Join(dir, "mosaics.db") + ":test"
	ctx := context.Background()

	b, err := New(ctx, uri, nil)
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

func TestMultipleMosaicsPerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mosaics.db")
	ctx := context.Background()

	b1, err := New(ctx, "sqlite://"+path+":one", nil)
	if err != nil {
		t.Fatalf("New b1: %v", err)
	}
	defer b1.Close()
	b2, err := New(ctx, "sqlite://"+path+":two", nil)
	if err != nil {
		t.Fatalf("New b2: %v", err)
	}
	defer b2.Close()

	if err := b1.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write b1: %v", err)
	}
	if _, err := b2.Get(ctx); err == nil {
		t.Fatalf("expected b2 to not find mosaic 'two' yet")
	}
	if err := b2.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("Write b2: %v", err)
	}
}

func TestWriteRejectsExistingWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	uri := "sqlite://" + filepath.Join(dir, "mosaics.db") + ":dup"
	ctx := context.Background()
	b, _ := New(ctx, uri, nil)
	defer b.Close()

	if err := b.Write(ctx, testDoc(), false); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := b.Write(ctx, testDoc(), false); err == nil {
		t.Fatalf("expected MosaicExistsError")
	}
}
