// Package mosaicerr defines the error taxonomy shared by every component
// of the mosaic core: document validation, backend I/O, and query
// resolution.
package mosaicerr

import "fmt"

// ValidationError reports a single invariant violation in a MosaicJSON
// document, naming the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError creates a single-field ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// MultiValidationError accumulates ValidationErrors found while checking a
// document so callers see every violation in one pass instead of failing on
// the first.
type MultiValidationError struct {
	Errors []*ValidationError
}

// NewMultiValidationError returns an empty accumulator.
func NewMultiValidationError() *MultiValidationError {
	return &MultiValidationError{}
}

// Add appends a field violation.
func (e *MultiValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, NewValidationError(field, message))
}

// HasErrors reports whether any violation was recorded.
func (e *MultiValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// AsError returns e as an error if it holds any violation, or nil otherwise
// so callers can `if err := v.AsError(); err != nil`.
func (e *MultiValidationError) AsError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *MultiValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d validation errors, first: %s", len(e.Errors), e.Errors[0].Error())
	}
}

// MosaicNotFoundError reports that a named mosaic is missing from a store.
type MosaicNotFoundError struct {
	Name string
}

func (e *MosaicNotFoundError) Error() string {
	return fmt.Sprintf("mosaic %q not found", e.Name)
}

// NewMosaicNotFoundError wraps the missing mosaic's name.
func NewMosaicNotFoundError(name string) *MosaicNotFoundError {
	return &MosaicNotFoundError{Name: name}
}

// MosaicExistsError reports an attempt to create a mosaic that already
// exists without passing overwrite=true.
type MosaicExistsError struct {
	Name string
}

func (e *MosaicExistsError) Error() string {
	return fmt.Sprintf("mosaic %q already exists", e.Name)
}

// NewMosaicExistsError wraps the conflicting mosaic's name.
func NewMosaicExistsError(name string) *MosaicExistsError {
	return &MosaicExistsError{Name: name}
}

// NoAssetFoundError reports that no asset intersects a query.
type NoAssetFoundError struct {
	Query string
}

func (e *NoAssetFoundError) Error() string {
	if e.Query == "" {
		return "no asset found for query"
	}
	return fmt.Sprintf("no asset found for %s", e.Query)
}

// NewNoAssetFoundError names the query that produced zero assets.
func NewNoAssetFoundError(query string) *NoAssetFoundError {
	return &NoAssetFoundError{Query: query}
}

// PointOutsideBounds reports that a queried point falls outside every
// candidate asset's extent.
type PointOutsideBounds struct {
	Lng, Lat float64
}

func (e *PointOutsideBounds) Error() string {
	return fmt.Sprintf("point (%f, %f) is outside the bounds of all candidate assets", e.Lng, e.Lat)
}

// NewPointOutsideBounds names the offending point.
func NewPointOutsideBounds(lng, lat float64) *PointOutsideBounds {
	return &PointOutsideBounds{Lng: lng, Lat: lat}
}

// BackendError tags an I/O, network, or auth failure with the backend kind
// that produced it, preserving the underlying cause for unwrapping.
type BackendError struct {
	Backend string
	Cause   error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// NewBackendError tags cause with the backend kind that raised it. Returns
// nil if cause is nil, so callers can write
// `return nil, mosaicerr.NewBackendError("s3", err)` without a separate nil
// check upstream.
func NewBackendError(backend string, cause error) error {
	if cause == nil {
		return nil
	}
	return &BackendError{Backend: backend, Cause: cause}
}

// ErrNotImplemented is returned unconditionally by write/update operations
// on read-only backends (HTTP, STAC).
type ErrNotImplemented struct {
	Op      string
	Backend string
}

func (e *ErrNotImplemented) Error() string {
	return fmt.Sprintf("%s is not implemented for the %s backend", e.Op, e.Backend)
}

// NewErrNotImplemented names the operation and backend kind.
func NewErrNotImplemented(op, backend string) *ErrNotImplemented {
	return &ErrNotImplemented{Op: op, Backend: backend}
}
