package gcs

import "testing"

func TestSplitURI(t *testing.T) {
	bucket, object, err := splitURI("gs://my-bucket/path/to/mosaic.json")
	if err != nil {
		t.Fatalf("splitURI: %v", err)
	}
	if bucket != "my-bucket" || object != "path/to/mosaic.json" {
		t.Fatalf("got bucket=%q object=%q", bucket, object)
	}
}

func TestSplitURIRejectsMissingObject(t *testing.T) {
	if _, _, err := splitURI("gs://bucket-only"); err == nil {
		t.Fatalf("expected error for uri with no object")
	}
}
