package s3

import "testing"

func TestSplitURI(t *testing.T) {
	bucket, key, err := splitURI("s3://my-bucket/path/to/mosaic.json")
	if err != nil {
		t.Fatalf("splitURI: %v", err)
	}
	if bucket != "my-bucket" || key != "path/to/mosaic.json" {
		t.Fatalf("got bucket=%q key=%q", bucket, key)
	}
}

func TestSplitURIRejectsMissingKey(t *testing.T) {
	if _, _, err := splitURI("s3://bucket-only"); err == nil {
		t.Fatalf("expected error for uri with no key")
	}
}
