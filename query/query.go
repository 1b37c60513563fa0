// Package query implements the read path spec.md §4.6 describes: resolve
// a mosaic's candidate assets for a tile/point/part/feature request,
// dispatch one raster read per asset concurrently (bounded by
// config.ReaderConfig.MaxThreads, mirroring the teacher pack's
// events.Dispatcher WaitGroup+error-channel fan-out), and apply the
// propagation policy -- per-asset "no data" outcomes are tolerated, and
// only surface as mosaicerr.NoAssetFoundError / mosaicerr.PointOutsideBounds
// once every candidate has failed that way.
package query

import (
	"context"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/config"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/reader"
)

// Options carries the per-request knobs spec.md §4.6 names for Tile,
// Point, Part, and Feature.
type Options struct {
	// MaxThreads bounds concurrent per-asset reads. Zero or negative
	// falls back to config.ReaderConfig.MaxThreads (MAX_THREADS, default
	// 10), or to 1 (sequential) if that is not positive either.
	MaxThreads int
	// PixelSelection is the compositing policy for Point samples.
	// Ignored by Tile/Part/Feature, which always return the
	// first-available asset's encoded bytes (see doc comment on Tile).
	PixelSelection PixelSelection
	// Reverse walks the candidate asset list back-to-front before
	// applying PixelSelection/first-available semantics.
	Reverse bool
	// ReaderOptions is forwarded opaquely to the injected reader.Reader.
	ReaderOptions reader.Options
}

// Querier is the read-path entry point: a Backend resolves candidate
// assets, a Reader fetches pixels from them.
type Querier struct {
	Backend backend.Backend
	Reader  reader.Reader
}

// New returns a Querier over b and r.
func New(b backend.Backend, r reader.Reader) *Querier {
	return &Querier{Backend: b, Reader: r}
}

func orderAssets(assets []string, reverse bool) []string {
	if !reverse {
		return assets
	}
	out := make([]string, len(assets))
	for i, a := range assets {
		out[len(assets)-1-i] = a
	}
	return out
}

func threads(n int) int {
	if n > 0 {
		return n
	}
	if m := config.Load().Reader.MaxThreads; m > 0 {
		return m
	}
	return 1
}

// ImageResult is what Tile/Part/Feature return: the encoded image bytes
// from the one asset actually read, plus the asset list the caller can
// report back (spec.md §4.6 "(image, [assets_actually_used])"). Blending
// pixels from more than one asset into a single output image is a
// non-goal (see SPEC_FULL.md §7); AssetsUsed is always a single-element
// slice naming whichever candidate produced the returned bytes.
type ImageResult struct {
	Data       []byte
	AssetsUsed []string
}

// Tile reads the XYZ tile at (x,y,z), trying candidate assets (in Reverse
// order if requested) until one returns data. Per-asset reader.ErrNoData
// is tolerated; if every candidate returns it, the mosaic-level
// mosaicerr.NoAssetFoundError is raised. Any other reader error aborts the
// request immediately.
//
// Unlike Point, Tile/Part/Feature return opaque encoded image bytes, so
// statistical PixelSelection policies (mean, median, ...) do not apply;
// these methods always use first-available-asset semantics, ordered by
// Reverse.
func (q *Querier) Tile(ctx context.Context, x, y, z int, opts Options) (ImageResult, error) {
	assets, err := q.Backend.AssetsForTile(ctx, x, y, z)
	if err != nil {
		return ImageResult{}, err
	}
	return q.firstAvailable(ctx, orderAssets(assets, opts.Reverse), opts, func(ctx context.Context, asset string) ([]byte, error) {
		return q.Reader.Tile(ctx, asset, x, y, z, opts.ReaderOptions)
	})
}

// Part reads the sub-region covering bbox, with the same first-available
// semantics as Tile.
func (q *Querier) Part(ctx context.Context, bbox orb.Bound, opts Options) (ImageResult, error) {
	assets, err := q.assetsForBound(ctx, bbox)
	if err != nil {
		return ImageResult{}, err
	}
	return q.firstAvailable(ctx, orderAssets(assets, opts.Reverse), opts, func(ctx context.Context, asset string) ([]byte, error) {
		return q.Reader.Part(ctx, asset, bbox, opts.ReaderOptions)
	})
}

// Feature reads the sub-region covering geometry, with the same
// first-available semantics as Tile.
func (q *Querier) Feature(ctx context.Context, geometry orb.Geometry, opts Options) (ImageResult, error) {
	bound := geometry.Bound()
	assets, err := q.assetsForBound(ctx, bound)
	if err != nil {
		return ImageResult{}, err
	}
	return q.firstAvailable(ctx, orderAssets(assets, opts.Reverse), opts, func(ctx context.Context, asset string) ([]byte, error) {
		return q.Reader.Feature(ctx, asset, geometry, opts.ReaderOptions)
	})
}

// assetsForBound resolves candidates for a bbox/geometry request via the
// backend's AssetsForBbox (spec.md §4.4), which runs the tile-cover kernel
// over the whole rectangle rather than just its corners.
func (q *Querier) assetsForBound(ctx context.Context, bound orb.Bound) ([]string, error) {
	assets, err := q.Backend.AssetsForBbox(ctx, bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1])
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, mosaicerr.NewNoAssetFoundError("")
	}
	return assets, nil
}

// PointResult is what Point returns: the composited sample plus the
// candidate assets that actually contributed to it (soft-failed assets
// excluded), mirroring spec.md §4.6's "(image, [assets_actually_used])"
// contract for the point case.
type PointResult struct {
	Value      reader.PixelValue
	AssetsUsed []string
}

// Point samples every candidate asset at (lng,lat) concurrently and
// composes the results per opts.PixelSelection. Per-asset soft failures
// (reader.ErrNoData, mosaicerr.PointOutsideBounds) are excluded from the
// composite; if every candidate fails that way, the point-level
// mosaicerr.PointOutsideBounds is raised. Any other reader error aborts
// the whole request and cancels in-flight reads.
func (q *Querier) Point(ctx context.Context, lng, lat float64, opts Options) (PointResult, error) {
	assets, err := q.Backend.AssetsForPoint(ctx, lng, lat)
	if err != nil {
		return PointResult{}, err
	}
	assets = orderAssets(assets, opts.Reverse)

	results := make([]reader.PixelValue, len(assets))
	softFailed := make([]bool, len(assets))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(threads(opts.MaxThreads))

	for i, asset := range assets {
		i, asset := i, asset
		group.Go(func() error {
			v, err := q.Reader.Point(gctx, asset, lng, lat, opts.ReaderOptions)
			if err != nil {
				if reader.IsSoftFailure(err) {
					softFailed[i] = true
					return nil
				}
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return PointResult{}, err
	}

	live := make([]reader.PixelValue, 0, len(results))
	usedAssets := make([]string, 0, len(results))
	for i, v := range results {
		if !softFailed[i] {
			live = append(live, v)
			usedAssets = append(usedAssets, assets[i])
		}
	}
	if len(live) == 0 {
		return PointResult{}, mosaicerr.NewPointOutsideBounds(lng, lat)
	}

	sel := opts.PixelSelection
	if sel == "" {
		sel = First
	}
	composite, err := Compose(live, sel)
	if err != nil {
		return PointResult{}, err
	}
	return PointResult{Value: composite, AssetsUsed: usedAssets}, nil
}

// firstAvailable tries read over assets in order, bounded by
// opts.MaxThreads workers racing ahead but returning the first result in
// asset-list order (not first-to-complete), so Reverse/ordering stays
// deterministic. Soft failures are skipped; if every asset soft-fails the
// mosaic-level NoAssetFoundError is raised.
func (q *Querier) firstAvailable(ctx context.Context, assets []string, opts Options, read func(context.Context, string) ([]byte, error)) (ImageResult, error) {
	if len(assets) == 0 {
		return ImageResult{}, mosaicerr.NewNoAssetFoundError("")
	}

	results := make([][]byte, len(assets))
	softFailed := make([]bool, len(assets))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(threads(opts.MaxThreads))

	for i, asset := range assets {
		i, asset := i, asset
		group.Go(func() error {
			data, err := read(gctx, asset)
			if err != nil {
				if reader.IsSoftFailure(err) {
					softFailed[i] = true
					return nil
				}
				return err
			}
			results[i] = data
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return ImageResult{}, err
	}

	for i, data := range results {
		if !softFailed[i] {
			return ImageResult{Data: data, AssetsUsed: []string{assets[i]}}, nil
		}
	}
	return ImageResult{}, mosaicerr.NewNoAssetFoundError("")
}
