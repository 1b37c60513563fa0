package mosaic

import "testing"

func TestIncreaseVersionInitializesWhenEmpty(t *testing.T) {
	d := &Document{}
	d.IncreaseVersion()
	if d.Version != "1.0.0" {
		t.Fatalf("expected 1.0.0, got %q", d.Version)
	}
}

func TestIncreaseVersionBumpsPatch(t *testing.T) {
	d := &Document{Version: "1.2.3"}
	d.IncreaseVersion()
	if d.Version != "1.2.4" {
		t.Fatalf("expected 1.2.4, got %q", d.Version)
	}
}

func TestIncreaseVersionPadsShortVersion(t *testing.T) {
	d := &Document{Version: "2"}
	d.IncreaseVersion()
	if d.Version != "2.0.1" {
		t.Fatalf("expected 2.0.1, got %q", d.Version)
	}
}

func TestUpdateAddFirstOrdersNewAssetsFirst(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("old.tif", -10, -10, 10, 10)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	newFeature := squareFeature("new.tif", -10, -10, 10, 10)
	updated, err := Update(doc, []Feature{newFeature}, nil, true, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := updated.Tiles["0"]
	if len(got) != 2 || got[0] != "new.tif" || got[1] != "old.tif" {
		t.Fatalf("expected [new.tif old.tif], got %v", got)
	}
}

func TestUpdateAddLastOrdersNewAssetsLast(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("old.tif", -10, -10, 10, 10)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	newFeature := squareFeature("new.tif", -10, -10, 10, 10)
	updated, err := Update(doc, []Feature{newFeature}, nil, false, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := updated.Tiles["0"]
	if len(got) != 2 || got[0] != "old.tif" || got[1] != "new.tif" {
		t.Fatalf("expected [old.tif new.tif], got %v", got)
	}
}

func TestUpdateBumpsVersionAndPreservesOriginal(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("old.tif", -10, -10, 10, 10)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}
	originalVersion := doc.Version

	updated, err := Update(doc, []Feature{squareFeature("new.tif", -10, -10, 10, 10)}, nil, true, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Version == originalVersion {
		t.Fatalf("expected version to change from %q", originalVersion)
	}
	if doc.Version != originalVersion {
		t.Fatalf("Update must not mutate the original document's version")
	}
	if len(doc.Tiles["0"]) != 1 {
		t.Fatalf("Update must not mutate the original document's tiles")
	}
}

func TestUpdateUnionsBounds(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("old.tif", -5, -5, 5, 5)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	expanding := squareFeature("new.tif", -20, -20, 20, 20)
	updated, err := Update(doc, []Feature{expanding}, nil, true, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Bounds[0] > -20 || updated.Bounds[2] < 20 {
		t.Fatalf("expected bounds to expand to cover new feature, got %v", updated.Bounds)
	}
}

func TestUpdateStripsAssetPrefixFromMergedAssets(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("s3://bucket/old.tif", -10, -10, 10, 10)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
		AssetPrefix: "s3://bucket/",
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	newFeature := squareFeature("s3://bucket/new.tif", -10, -10, 10, 10)
	updated, err := Update(doc, []Feature{newFeature}, nil, false, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	got := updated.Tiles["0"]
	if len(got) != 2 || got[0] != "old.tif" || got[1] != "new.tif" {
		t.Fatalf("expected stored tiles to stay stripped of asset_prefix, got %v", got)
	}
	if assets := updated.AssetsForQuadkey("0"); len(assets) != 2 || assets[0] != "s3://bucket/old.tif" {
		t.Fatalf("expected AssetsForQuadkey to re-prepend asset_prefix, got %v", assets)
	}
}

func TestUpdateValidatesResult(t *testing.T) {
	qz := 0
	doc, err := FromFeatures([]Feature{squareFeature("old.tif", -10, -10, 10, 10)}, BuildOptions{
		Minzoom:     0,
		Maxzoom:     0,
		QuadkeyZoom: &qz,
	})
	if err != nil {
		t.Fatalf("FromFeatures: %v", err)
	}

	updated, err := Update(doc, []Feature{squareFeature("new.tif", -10, -10, 10, 10)}, nil, true, BuildOptions{QuadkeyZoom: &qz})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := Validate(updated); err != nil {
		t.Fatalf("expected updated document to validate, got %v", err)
	}
}
