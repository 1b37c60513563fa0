// Package s3 implements the S3 Backend (spec.md §4.5): "s3://bucket/key"
// names one MosaicJSON object. The teacher pack's own dependency graph
// already pulls in github.com/aws/aws-sdk-go-v2/service/s3 (transitively,
// via pocketbase's optional S3 file-storage backend); this package
// promotes it to a direct dependency and drives it with the idiomatic v2
// client API (config.LoadDefaultConfig, s3.NewFromConfig, GetObject/
// PutObject/HeadObject).
package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Backend is the "s3://bucket/key" Backend implementation.
type Backend struct {
	backend.Base
	client *s3.Client
	bucket string
	key    string
	tms    tms.TMS
}

// New opens an S3 backend handle for uri. opts["region"] overrides the
// region resolved from the default AWS credential chain.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	bucket, key, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region, ok := opts["region"].(string); ok && region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, mosaicerr.NewBackendError("s3", err)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{
		Base:   backend.NewBase(uri),
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		key:    key,
		tms:    t,
	}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("s3", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("s3", New)
}

func splitURI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	idx := strings.Index(trimmed, "/")
	if idx < 0 {
		return "", "", errNoKey(uri)
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

func errNoKey(uri string) error {
	return mosaicerr.NewBackendError("s3", errors.New("uri "+uri+" must be of the form s3://bucket/key"))
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, mosaicerr.NewMosaicNotFoundError(b.key)
		}
		return nil, mosaicerr.NewBackendError("s3", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, mosaicerr.NewBackendError("s3", err)
	}

	data, err = backend.MaybeGunzip(b.key, data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("s3", err)
	}

	doc, err := mosaic.Unmarshal(data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("s3", err)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) exists(ctx context.Context) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, mosaicerr.NewBackendError("s3", err)
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	already, err := b.exists(ctx)
	if err != nil {
		return err
	}
	if already && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.key)
	}

	data, err := doc.Marshal()
	if err != nil {
		return mosaicerr.NewBackendError("s3", err)
	}
	data, err = backend.MaybeGzip(b.key, data)
	if err != nil {
		return mosaicerr.NewBackendError("s3", err)
	}

	b.MarkDirty()
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return mosaicerr.NewBackendError("s3", err)
	}
	b.MarkPersisted(doc)
	return nil
}

func (b *Backend) Update(ctx context.Context, features []mosaic.Feature, addFirst bool, opts mosaic.BuildOptions) (*mosaic.Document, error) {
	current, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := mosaic.Update(current, features, b.tms, addFirst, opts)
	if err != nil {
		return nil, err
	}
	if err := b.Write(ctx, updated, true); err != nil {
		return nil, err
	}
	return updated, nil
}

func (b *Backend) AssetsForTile(ctx context.Context, x, y, z int) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForTile(doc, b.tms, x, y, z)
}

func (b *Backend) AssetsForPoint(ctx context.Context, lng, lat float64) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForPoint(doc, b.tms, lng, lat)
}

func (b *Backend) AssetsForBbox(ctx context.Context, xmin, ymin, xmax, ymax float64) ([]string, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return nil, err
	}
	return backend.ResolveAssetsForBbox(doc, b.tms, xmin, ymin, xmax, ymax)
}

func (b *Backend) Info(ctx context.Context, withQuadkeys bool) (backend.Info, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return backend.Info{}, err
	}
	return backend.ResolveInfo(doc, withQuadkeys), nil
}

func (b *Backend) GetGeographicBounds(ctx context.Context, crs string) ([4]float64, error) {
	doc, err := b.Get(ctx)
	if err != nil {
		return [4]float64{}, err
	}
	return backend.ResolveGeographicBounds(doc, b.tms, crs)
}

func (b *Backend) Close() error {
	b.MarkClosed()
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
