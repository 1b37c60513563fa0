package backend

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
)

// GzipSuffix is the URI suffix spec.md §4.5 uses to opt a File/S3/GCS/
// Azure/HTTP backend into gzip framing.
const GzipSuffix = ".gz"

// HasGzipSuffix reports whether uri names a gzip-framed document.
func HasGzipSuffix(uri string) bool {
	return strings.HasSuffix(uri, GzipSuffix)
}

// MaybeGunzip decompresses data if uri ends in ".gz", leaving it untouched
// otherwise (spec.md §4.5 "gunzip if URI ends with .gz").
func MaybeGunzip(uri string, data []byte) ([]byte, error) {
	if !HasGzipSuffix(uri) {
		return data, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// MaybeGzip compresses data if uri ends in ".gz", leaving it untouched
// otherwise (spec.md §4.5 "gzip if .gz suffix").
func MaybeGzip(uri string, data []byte) ([]byte, error) {
	if !HasGzipSuffix(uri) {
		return data, nil
	}
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
