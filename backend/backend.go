// Package backend defines the storage abstraction MosaicJSON documents are
// read from and written to (spec.md §4.4), and a URI-scheme registry that
// dispatches to concrete implementations, mirroring the teacher pack's
// interfaces+services split (interfaces.PostGISService /
// services.PostGISService) collapsed into a single exported contract per
// backend kind.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
)

// State is the document lifecycle state a Backend handle tracks (spec.md
// §4.8 state machine).
type State int

const (
	StateFresh State = iota
	StateLoaded
	StateDirty
	StatePersisted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateLoaded:
		return "loaded"
	case StateDirty:
		return "dirty"
	case StatePersisted:
		return "persisted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Backend is the storage contract every concrete backend (file, HTTP, S3,
// GCS, Azure, DynamoDB, SQLite, STAC, Memory) implements (spec.md §4.4).
// A Backend is opened scoped to one mosaic URI/name and tracks its own
// lifecycle State; Close releases whatever resource the open acquired,
// mirroring services.PostGISService.Close and friends in the teacher pack.
type Backend interface {
	// URI returns the backend's canonical identifier for this mosaic.
	URI() string

	// State reports the handle's current lifecycle state.
	State() State

	// Get loads and returns the mosaic document, caching the in-memory
	// copy on the handle (FRESH/LOADED transition).
	Get(ctx context.Context) (*mosaic.Document, error)

	// Write persists doc as this backend's mosaic, creating it if absent.
	// existsOK false rejects overwriting an existing mosaic with
	// mosaicerr.MosaicExistsError (spec.md §4.4 Write semantics).
	Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error

	// Update merges features into the stored document via mosaic.Update
	// and persists the result (DIRTY -> PERSISTED transition).
	Update(ctx context.Context, features []mosaic.Feature, addFirst bool, opts mosaic.BuildOptions) (*mosaic.Document, error)

	// AssetsForTile returns the ordered asset list for one tile, resolved
	// through the document's quadkey_zoom (spec.md §4.4/§4.6).
	AssetsForTile(ctx context.Context, x, y, z int) ([]string, error)

	// AssetsForPoint returns the ordered asset list covering lng/lat.
	AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error)

	// AssetsForBbox returns the deduplicated, first-occurrence-ordered
	// union of assets covering the rectangle (spec.md §4.4).
	AssetsForBbox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error)

	// Info returns the document's metadata snapshot, including the full
	// quadkey list when withQuadkeys is true (spec.md §4.4 `info`).
	Info(ctx context.Context, withQuadkeys bool) (Info, error)

	// GetGeographicBounds returns the document bounds reprojected to crs
	// (spec.md §4.4 `get_geographic_bounds`); "" or "EPSG:4326" returns the
	// stored geographic bounds unchanged.
	GetGeographicBounds(ctx context.Context, crs string) ([4]float64, error)

	// Close releases the backend's resources. Close is idempotent.
	Close() error
}

// Constructor builds a Backend bound to uri. opts is backend-specific
// (e.g. AWS region override, SQLite busy timeout) and may be nil.
type Constructor func(ctx context.Context, uri string, opts map[string]any) (Backend, error)

// Registry maps a URI scheme to the Constructor that understands it
// (spec.md §6 "URI schemes"), grounded on the teacher pack's
// services.EventRegistry construction-time wiring pattern.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry. Concrete backend packages call
// Register from an init() or explicit setup call.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register associates scheme with a Constructor. An empty scheme means
// "no scheme, bare path" (the file backend's default).
func (r *Registry) Register(scheme string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[scheme] = ctor
}

// Schemes returns the registered schemes in sorted order, mainly for
// diagnostics and tests.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.constructors))
	for s := range r.constructors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open dispatches uri to its scheme's Constructor and returns a scoped
// Backend handle. Callers must Close it when done (spec.md §4.4 "scoped
// open/close lifecycle").
func (r *Registry) Open(ctx context.Context, uri string, opts map[string]any) (Backend, error) {
	scheme := schemeOf(uri)

	r.mu.RLock()
	ctor, ok := r.constructors[scheme]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend: no backend registered for scheme %q (uri %q)", scheme, uri)
	}

	b, err := ctor(ctx, uri, opts)
	if err != nil {
		return nil, mosaicerr.NewBackendError(scheme, err)
	}
	return b, nil
}

// schemeOf extracts the URI scheme, treating a schemeless path (e.g. a
// bare filesystem path or "mydb.sqlite") as scheme "".
func schemeOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if len(u.Scheme) == 1 {
		// Windows-style drive letters ("C:\...") parse as a one-letter
		// scheme; treat those as schemeless paths too.
		return ""
	}
	return u.Scheme
}

// Default is the process-wide registry concrete backend packages register
// themselves against via their init() functions.
var Default = NewRegistry()
