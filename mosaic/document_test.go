package mosaic

import "testing"

func baseDocument() *Document {
	return &Document{
		MosaicJSON: Version003,
		Version:    "1.0.0",
		Minzoom:    4,
		Maxzoom:    9,
		Bounds:     [4]float64{-10, -10, 10, 10},
		Center:     [3]float64{0, 0, 4},
		Tiles: map[string][]string{
			"0123": {"a.tif", "b.tif"},
		},
	}
}

func TestEffectiveQuadkeyZoomDefaultsToMinzoom(t *testing.T) {
	d := baseDocument()
	if got := d.EffectiveQuadkeyZoom(); got != d.Minzoom {
		t.Fatalf("expected %d, got %d", d.Minzoom, got)
	}
	qz := 7
	d.QuadkeyZoom = &qz
	if got := d.EffectiveQuadkeyZoom(); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestAssetsForQuadkeyPrependsPrefix(t *testing.T) {
	d := baseDocument()
	d.AssetPrefix = "s3://bucket/"
	got := d.AssetsForQuadkey("0123")
	want := []string{"s3://bucket/a.tif", "s3://bucket/b.tif"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAssetsForQuadkeyNoPrefix(t *testing.T) {
	d := baseDocument()
	got := d.AssetsForQuadkey("0123")
	if got[0] != "a.tif" || got[1] != "b.tif" {
		t.Fatalf("unexpected assets: %v", got)
	}
}

func TestStripPrefixBestEffort(t *testing.T) {
	d := baseDocument()
	d.AssetPrefix = "s3://bucket/"
	if got := d.stripPrefix("s3://bucket/a.tif"); got != "a.tif" {
		t.Fatalf("expected stripped prefix, got %q", got)
	}
	if got := d.stripPrefix("no-prefix.tif"); got != "no-prefix.tif" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestSupportsExtendedFields(t *testing.T) {
	d := baseDocument()
	if !d.SupportsExtendedFields() {
		t.Fatalf("0.0.3 document should support extended fields")
	}
	d.MosaicJSON = Version002
	if d.SupportsExtendedFields() {
		t.Fatalf("0.0.2 document should not support extended fields")
	}
}

func TestCloneIsDeepCopy(t *testing.T) {
	d := baseDocument()
	qz := 5
	d.QuadkeyZoom = &qz
	d.Colormap = map[string][4]int{"1": {255, 0, 0, 255}}
	d.Layers = map[string]Layer{"red": {Bidx: []int{1}}}

	clone := d.Clone()
	clone.Tiles["0123"][0] = "mutated.tif"
	*clone.QuadkeyZoom = 9
	clone.Colormap["1"] = [4]int{0, 0, 0, 0}

	if d.Tiles["0123"][0] != "a.tif" {
		t.Fatalf("mutating clone's tile list affected original")
	}
	if *d.QuadkeyZoom != 5 {
		t.Fatalf("mutating clone's quadkey_zoom affected original")
	}
	if d.Colormap["1"] != [4]int{255, 0, 0, 255} {
		t.Fatalf("mutating clone's colormap affected original")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	d := baseDocument()
	data, err := d.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Name != d.Name || back.Minzoom != d.Minzoom || back.Maxzoom != d.Maxzoom {
		t.Fatalf("round trip mismatch: %+v vs %+v", back, d)
	}
	if len(back.Tiles["0123"]) != 2 {
		t.Fatalf("expected tiles to round trip, got %v", back.Tiles)
	}
}

func TestValidateAcceptsWellFormedDocument(t *testing.T) {
	d := baseDocument()
	if err := Validate(d); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
}

func TestValidateRejectsBadZoomOrdering(t *testing.T) {
	d := baseDocument()
	d.Minzoom, d.Maxzoom = 10, 5
	if err := Validate(d); err == nil {
		t.Fatalf("expected error for minzoom > maxzoom")
	}
}

func TestValidateRejectsEmptyAssetList(t *testing.T) {
	d := baseDocument()
	d.Tiles["0123"] = []string{}
	if err := Validate(d); err == nil {
		t.Fatalf("expected error for empty asset list")
	}
}

func TestValidateRejectsExtendedFieldsOnOldVersion(t *testing.T) {
	d := baseDocument()
	d.MosaicJSON = Version002
	d.Layers = map[string]Layer{"red": {Bidx: []int{1}}}
	if err := Validate(d); err == nil {
		t.Fatalf("expected error for layers on mosaicjson 0.0.2")
	}
}

func TestMosaicIDIsStableAndExcludesTiles(t *testing.T) {
	d1 := baseDocument()
	d2 := baseDocument()
	d2.Tiles["0123"] = []string{"different.tif"}

	id1, err := MosaicID(d1)
	if err != nil {
		t.Fatalf("MosaicID: %v", err)
	}
	id2, err := MosaicID(d2)
	if err != nil {
		t.Fatalf("MosaicID: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected MosaicID to ignore tiles, got %q vs %q", id1, id2)
	}

	id1Again, err := MosaicID(d1)
	if err != nil {
		t.Fatalf("MosaicID: %v", err)
	}
	if id1 != id1Again {
		t.Fatalf("expected MosaicID to be deterministic across calls")
	}
}
