// Package stac implements the dynamic STAC-API-backed Backend (spec.md
// §4.5): "stac+https://api/search" names a STAC search endpoint, not a
// stored document. Every assets_for_* call builds a GeoJSON polygon for
// the query region, POSTs it merged with the configured query to the
// search endpoint, follows "next" links until max_items or
// stac_query_limit is reached, and applies the configured accessor to
// each returned feature. Grounded on the teacher pack's http.Get +
// status-check idiom (gpx_importer.go), extended to POST + JSON + paged
// link-following, which nothing in the teacher pack needed but which the
// spec's dynamic query path requires.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

const (
	defaultMaxItems       = 100
	defaultStacQueryLimit = 500
	defaultNextLinkKey    = "next"
)

// Options configures a STAC backend (spec.md §6 "configuration bag").
type Options struct {
	Query           map[string]any
	MaxItems        int
	StacQueryLimit  int
	StacNextLinkKey string
	Accessor        mosaic.Accessor
}

// Backend is the "stac+https://…" Backend implementation. It never stores
// a document: Get synthesizes a minimal one so minzoom/maxzoom/bounds
// stay consistent with the Backend contract (spec.md §4.5).
type Backend struct {
	backend.Base
	endpoint string
	client   *http.Client
	opts     Options
	tms      tms.TMS
}

// New opens a STAC backend handle for a "stac+https://…" or "stac+http://…"
// uri.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	endpoint := strings.TrimPrefix(uri, "stac+")
	if endpoint == uri {
		return nil, fmt.Errorf("stac: uri %q must be prefixed with stac+", uri)
	}

	o := Options{MaxItems: defaultMaxItems, StacQueryLimit: defaultStacQueryLimit, StacNextLinkKey: defaultNextLinkKey, Accessor: mosaic.PathAccessor}
	if q, ok := opts["query"].(map[string]any); ok {
		o.Query = q
	}
	if v, ok := opts["max_items"].(int); ok && v > 0 {
		o.MaxItems = v
	}
	if v, ok := opts["stac_query_limit"].(int); ok && v > 0 {
		o.StacQueryLimit = v
	}
	if v, ok := opts["stac_next_link_key"].(string); ok && v != "" {
		o.StacNextLinkKey = v
	}
	if a, ok := opts["accessor"].(mosaic.Accessor); ok {
		o.Accessor = a
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	return &Backend{Base: backend.NewBase(uri), endpoint: endpoint, client: http.DefaultClient, opts: o, tms: t}, nil
}

func init() {
	backend.Default.Register("stac+http", New)
	backend.Default.Register("stac+https", New)
}

// Get returns a synthetic empty document: the dynamic backend has no
// persisted tiles, only query-time resolution (spec.md §4.5).
func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}
	doc := &mosaic.Document{
		MosaicJSON: mosaic.Version003,
		Version:    "1.0.0",
		Minzoom:    0,
		Maxzoom:    30,
		Bounds:     [4]float64{-180, -90, 180, 90},
		Center:     [3]float64{0, 0, 0},
		Tiles:      map[string][]string{},
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	return mosaicerr.NewErrNotImplemented("write", "stac")
}

func (b *Backend) Update(ctx context.Context, features []mosaic.Feature, addFirst bool, opts mosaic.BuildOptions) (*mosaic.Document, error) {
	return nil, mosaicerr.NewErrNotImplemented("update", "stac")
}

func (b *Backend) AssetsForTile(ctx context.Context, x, y, z int) ([]string, error) {
	bound := b.tms.Bounds(x, y, z)
	polygon := orb.Polygon{orb.Ring{
		{bound.Min[0], bound.Min[1]},
		{bound.Max[0], bound.Min[1]},
		{bound.Max[0], bound.Max[1]},
		{bound.Min[0], bound.Max[1]},
		{bound.Min[0], bound.Min[1]},
	}}
	return b.search(ctx, polygon)
}

func (b *Backend) AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error) {
	return b.search(ctx, orb.Point{lng, lat})
}

func (b *Backend) AssetsForBbox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	polygon := orb.Polygon{orb.Ring{
		{xmin, ymin}, {xmax, ymin}, {xmax, ymax}, {xmin, ymax}, {xmin, ymin},
	}}
	return b.search(ctx, polygon)
}

// Info returns the synthetic header spec.md §4.5 calls for so that
// minzoom/maxzoom/bounds stay consistent with the Backend contract; a
// dynamic index has no quadkey table to enumerate, so withQuadkeys is
// always reported empty.
func (b *Backend) Info(ctx context.Context, withQuadkeys bool) (backend.Info, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return backend.Info{}, err
	}
	return backend.ResolveInfo(doc, false), nil
}

func (b *Backend) GetGeographicBounds(ctx context.Context, crs string) ([4]float64, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return [4]float64{}, err
	}
	return backend.ResolveGeographicBounds(doc, b.tms, crs)
}

// search performs the paginated POST search described in spec.md §6 "STAC
// query shape", returning asset identifiers resolved via the configured
// accessor, capped at MaxItems/StacQueryLimit.
func (b *Backend) search(ctx context.Context, geom orb.Geometry) ([]string, error) {
	body := map[string]any{"intersects": geojson.NewGeometry(geom)}
	for k, v := range b.opts.Query {
		body[k] = v
	}
	if _, ok := body["limit"]; !ok {
		body["limit"] = b.opts.StacQueryLimit
	}

	var assets []string
	seen := 0
	nextURL := b.endpoint

	for nextURL != "" && len(assets) < b.opts.MaxItems && seen < b.opts.StacQueryLimit {
		fc, next, err := b.fetchPage(ctx, nextURL, body)
		if err != nil {
			return nil, err
		}

		for _, feature := range fc.Features {
			if len(assets) >= b.opts.MaxItems || seen >= b.opts.StacQueryLimit {
				break
			}
			seen++
			asset, err := b.opts.Accessor(mosaic.Feature{
				Geometry:   feature.Geometry,
				Properties: map[string]any(feature.Properties),
			})
			if err != nil {
				continue
			}
			assets = append(assets, asset)
		}

		nextURL = next
		// Subsequent pages are GET against the "next" link; the body is
		// only POSTed on the first request.
		body = nil
	}

	return assets, nil
}

func (b *Backend) fetchPage(ctx context.Context, url string, postBody map[string]any) (*geojson.FeatureCollection, string, error) {
	var req *http.Request
	var err error

	if postBody != nil {
		data, merr := json.Marshal(postBody)
		if merr != nil {
			return nil, "", mosaicerr.NewBackendError("stac", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	if err != nil {
		return nil, "", mosaicerr.NewBackendError("stac", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", mosaicerr.NewBackendError("stac", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", mosaicerr.NewBackendError("stac", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	var raw struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
		Links    []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, "", mosaicerr.NewBackendError("stac", err)
	}

	fc := geojson.NewFeatureCollection()
	for _, rawFeature := range raw.Features {
		f, err := geojson.UnmarshalFeature(rawFeature)
		if err != nil {
			return nil, "", mosaicerr.NewBackendError("stac", err)
		}
		fc.Append(f)
	}

	next := ""
	linkKey := b.opts.StacNextLinkKey
	for _, link := range raw.Links {
		if link.Rel == linkKey {
			next = link.Href
			if base, err := neturl.Parse(url); err == nil {
				if ref, err := neturl.Parse(link.Href); err == nil {
					next = base.ResolveReference(ref).String()
				}
			}
			break
		}
	}

	return fc, next, nil
}

func (b *Backend) Close() error {
	b.MarkClosed()
	return nil
}
