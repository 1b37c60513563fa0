package mosaicerr

import (
	"errors"
	"testing"
)

func TestMultiValidationErrorAccumulates(t *testing.T) {
	v := NewMultiValidationError()
	if v.AsError() != nil {
		t.Fatalf("expected nil error on empty accumulator")
	}

	v.Add("minzoom", "minzoom must be <= maxzoom")
	v.Add("quadkey_zoom", "quadkey_zoom must be in [0,30]")

	err := v.AsError()
	if err == nil {
		t.Fatalf("expected non-nil error after Add")
	}

	var mv *MultiValidationError
	if !errors.As(err, &mv) {
		t.Fatalf("expected errors.As to unwrap MultiValidationError")
	}
	if len(mv.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(mv.Errors))
	}
}

func TestBackendErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewBackendError("s3", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
}

func TestNewBackendErrorNilCause(t *testing.T) {
	if err := NewBackendError("s3", nil); err != nil {
		t.Fatalf("expected nil error for nil cause, got %v", err)
	}
}

func TestNotFoundAndExistsDistinguish(t *testing.T) {
	var notFound error = NewMosaicNotFoundError("foo")
	var exists error = NewMosaicExistsError("foo")

	var nf *MosaicNotFoundError
	if !errors.As(notFound, &nf) {
		t.Fatalf("expected MosaicNotFoundError")
	}
	var ex *MosaicExistsError
	if errors.As(notFound, &ex) {
		t.Fatalf("did not expect MosaicExistsError to match a MosaicNotFoundError")
	}
	if !errors.As(exists, &ex) {
		t.Fatalf("expected MosaicExistsError")
	}
}
