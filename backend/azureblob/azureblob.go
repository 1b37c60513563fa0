// Package azureblob implements the Azure Blob Storage Backend (spec.md
// §4.5): "az://container/blob" names one MosaicJSON blob, addressed
// against the storage account named by opts["account"] or the
// AZURE_STORAGE_ACCOUNT environment variable. Enriches the stack with
// azure-sdk-for-go's azblob + azidentity, authenticating with
// DefaultAzureCredential the same way the GCS/S3 backends lean on each
// cloud's ambient credential chain rather than embedding secrets. A blob
// name ending in ".gz" is transparently gunzipped on read and gzipped on
// write (spec.md §4.5).
package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

// Backend is the "az://container/blob" Backend implementation.
type Backend struct {
	backend.Base
	client    *azblob.Client
	container string
	blob      string
	tms       tms.TMS
}

// New opens an Azure Blob backend handle for uri.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	container, blob, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	account, _ := opts["account"].(string)
	if account == "" {
		account = os.Getenv("AZURE_STORAGE_ACCOUNT")
	}
	if account == "" {
		return nil, mosaicerr.NewBackendError("azureblob", errors.New("storage account not set (opts[\"account\"] or AZURE_STORAGE_ACCOUNT)"))
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{Base: backend.NewBase(uri), client: client, container: container, blob: blob, tms: t}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("azure", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("az", New)
}

func splitURI(uri string) (container, blob string, err error) {
	trimmed := strings.TrimPrefix(uri, "az://")
	idx := strings.Index(trimmed, "/")
	if idx < 0 {
		return "", "", mosaicerr.NewBackendError("azureblob", fmt.Errorf("uri %q must be of the form az://container/blob", uri))
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	resp, err := b.client.DownloadStream(ctx, b.container, b.blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, mosaicerr.NewMosaicNotFoundError(b.blob)
		}
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}

	data, err = backend.MaybeGunzip(b.blob, data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}

	doc, err := mosaic.Unmarshal(data)
	if err != nil {
		return nil, mosaicerr.NewBackendError("azureblob", err)
	}
	b.MarkLoaded(doc)
	return doc, nil
}

func (b *Backend) exists(ctx context.Context) (bool, error) {
	_, err := b.client.ServiceClient().NewContainerClient(b.container).NewBlobClient(b.blob).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, mosaicerr.NewBackendError("azureblob", err)
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	already, err := b.exists(ctx)
	if err != nil {
		return err
	}
	if already && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.blob)
	}

	data, err := doc.Marshal()
	if err != nil {
		return mosaicerr.NewBackendError("azureblob", err)
	}
	data, err = backend.MaybeGzip(b.blob, data)
	if err != nil {
		return mosaicerr.NewBackendError("azureblob", err)
	}

	b.MarkDirty()
	_, err = b.client.UploadBuffer(ctx, b.container, b.blob, data, nil)
	if err != nil {
		return mosaicerr.NewBackendError("azureblob", err)
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
