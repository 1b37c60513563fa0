package backend

import "testing"

func TestHasGzipSuffix(t *testing.T) {
	if !HasGzipSuffix("s3://bucket/mosaic.json.gz") {
		t.Fatalf("expected .gz suffix to be detected")
	}
	if HasGzipSuffix("s3://bucket/mosaic.json") {
		t.Fatalf("expected non-.gz uri to report false")
	}
}

func TestMaybeGzipRoundTrips(t *testing.T) {
	original := []byte(`{"mosaicjson":"0.0.3"}`)

	compressed, err := MaybeGzip("mosaic.json.gz", original)
	if err != nil {
		t.Fatalf("MaybeGzip: %v", err)
	}
	if string(compressed) == string(original) {
		t.Fatalf("expected .gz-suffixed data to actually be compressed")
	}

	back, err := MaybeGunzip("mosaic.json.gz", compressed)
	if err != nil {
		t.Fatalf("MaybeGunzip: %v", err)
	}
	if string(back) != string(original) {
		t.Fatalf("round trip mismatch: got %s, want %s", back, original)
	}
}

func TestMaybeGzipNoSuffixPassesThrough(t *testing.T) {
	original := []byte(`{"mosaicjson":"0.0.3"}`)

	compressed, err := MaybeGzip("mosaic.json", original)
	if err != nil {
		t.Fatalf("MaybeGzip: %v", err)
	}
	if string(compressed) != string(original) {
		t.Fatalf("expected non-.gz uri to pass through unchanged")
	}

	back, err := MaybeGunzip("mosaic.json", original)
	if err != nil {
		t.Fatalf("MaybeGunzip: %v", err)
	}
	if string(back) != string(original) {
		t.Fatalf("expected non-.gz uri to pass through unchanged")
	}
}
