// Package dynamodb implements the DynamoDB Backend (spec.md §4.5): a
// single table stores many mosaics, each row keyed by (mosaic, quadkey);
// the header (everything but tiles) lives under the sentinel quadkey
// "-1". assets_for_tile is a single GetItem; write batches PutItems;
// update only rewrites changed items. Grounded on the teacher pack's
// transitively-required aws-sdk-go-v2 stack, driven here with
// feature/dynamodb/attributevalue for struct (un)marshaling, the same
// idiom the SDK itself documents for table item mapping.
package dynamodb

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/developmentseed/mosaicjson-go/backend"
	"github.com/developmentseed/mosaicjson-go/cache"
	"github.com/developmentseed/mosaicjson-go/mosaic"
	"github.com/developmentseed/mosaicjson-go/mosaicerr"
	"github.com/developmentseed/mosaicjson-go/tms"
)

const metaQuadkey = "-1"

// headerItem mirrors mosaic.Document minus Tiles, stored under quadkey
// "-1" (spec.md §4.5 DynamoDB backend).
type headerItem struct {
	Mosaic        string `dynamodbav:"mosaic"`
	Quadkey       string `dynamodbav:"quadkey"`
	MosaicJSON    string `dynamodbav:"mosaicjson"`
	Name          string `dynamodbav:"name,omitempty"`
	Description   string `dynamodbav:"description,omitempty"`
	Attribution   string `dynamodbav:"attribution,omitempty"`
	Version       string `dynamodbav:"version"`
	Minzoom       int    `dynamodbav:"minzoom"`
	Maxzoom       int    `dynamodbav:"maxzoom"`
	QuadkeyZoom   *int   `dynamodbav:"quadkey_zoom,omitempty"`
	Bounds        []float64 `dynamodbav:"bounds"`
	Center        []float64 `dynamodbav:"center"`
	TileMatrixSet string    `dynamodbav:"tilematrixset,omitempty"`
	AssetType     string    `dynamodbav:"asset_type,omitempty"`
	AssetPrefix   string    `dynamodbav:"asset_prefix,omitempty"`
	DataType      string    `dynamodbav:"data_type,omitempty"`
}

// tileItem is one non-header row: the asset list for a single quadkey.
type tileItem struct {
	Mosaic  string   `dynamodbav:"mosaic"`
	Quadkey string   `dynamodbav:"quadkey"`
	Assets  []string `dynamodbav:"assets"`
}

// Backend is the "dynamodb://[region]/table:mosaic_name" Backend
// implementation.
type Backend struct {
	backend.Base
	client *dynamodb.Client
	table  string
	mosaic string
	tms    tms.TMS
}

// New opens a DynamoDB backend handle for uri.
func New(ctx context.Context, uri string, opts map[string]any) (backend.Backend, error) {
	region, table, mosaicName, err := splitURI(uri)
	if err != nil {
		return nil, err
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	} else if r, ok := opts["region"].(string); ok && r != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(r))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}

	t := tms.Default()
	if v, ok := opts["tms"]; ok {
		if asTMS, ok := v.(tms.TMS); ok {
			t = asTMS
		}
	}

	b := &Backend{
		Base:   backend.NewBase(uri),
		client: dynamodb.NewFromConfig(cfg),
		table:  table,
		mosaic: mosaicName,
		tms:    t,
	}
	if c, ok := opts["cache"].(*cache.Cache); ok {
		b.EnableCache("dynamodb", c)
	}
	return b, nil
}

func init() {
	backend.Default.Register("dynamodb", New)
}

// splitURI parses "dynamodb://[region]/table:mosaic_name".
func splitURI(uri string) (region, table, mosaicName string, err error) {
	trimmed := strings.TrimPrefix(uri, "dynamodb://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 {
		return "", "", "", fmt.Errorf("dynamodb: uri %q must be dynamodb://[region]/table:mosaic_name", uri)
	}
	region = parts[0]
	rest := parts[1]

	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", "", "", fmt.Errorf("dynamodb: uri %q must name table:mosaic_name", uri)
	}
	return region, rest[:idx], rest[idx+1:], nil
}

func (b *Backend) Get(ctx context.Context) (*mosaic.Document, error) {
	if cached, ok := b.Cached(); ok {
		return cached, nil
	}

	doc, err := b.getHeader(ctx)
	if err != nil {
		return nil, err
	}

	tiles, err := b.scanTiles(ctx)
	if err != nil {
		return nil, err
	}
	doc.Tiles = tiles

	b.MarkLoaded(doc)
	return doc, nil
}

// getHeader issues a single GetItem for the sentinel header row and
// returns it as a Document with Tiles left nil.
func (b *Backend) getHeader(ctx context.Context) (*mosaic.Document, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"mosaic": b.mosaic, "quadkey": metaQuadkey})
	if err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}

	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(b.table), Key: key})
	if err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}
	if out.Item == nil {
		return nil, mosaicerr.NewMosaicNotFoundError(b.mosaic)
	}

	var header headerItem
	if err := attributevalue.UnmarshalMap(out.Item, &header); err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}
	return headerToDocument(header), nil
}

func headerToDocument(header headerItem) *mosaic.Document {
	doc := &mosaic.Document{
		MosaicJSON:  header.MosaicJSON,
		Name:        header.Name,
		Description: header.Description,
		Attribution: header.Attribution,
		Version:     header.Version,
		Minzoom:     header.Minzoom,
		Maxzoom:     header.Maxzoom,
		QuadkeyZoom: header.QuadkeyZoom,
		AssetType:   header.AssetType,
		AssetPrefix: header.AssetPrefix,
		DataType:    header.DataType,
	}
	if len(header.Bounds) == 4 {
		doc.Bounds = [4]float64{header.Bounds[0], header.Bounds[1], header.Bounds[2], header.Bounds[3]}
	}
	if len(header.Center) == 3 {
		doc.Center = [3]float64{header.Center[0], header.Center[1], header.Center[2]}
	}
	if header.TileMatrixSet != "" {
		doc.TileMatrixSet = []byte(header.TileMatrixSet)
	}
	return doc
}

// getTileAssets issues a single GetItem keyed by (mosaic, quadkey) and
// returns the stored (prefix-stripped) asset list, or nil if no row
// exists for that quadkey.
func (b *Backend) getTileAssets(ctx context.Context, quadkey string) ([]string, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"mosaic": b.mosaic, "quadkey": quadkey})
	if err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}

	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(b.table), Key: key})
	if err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var row tileItem
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, mosaicerr.NewBackendError("dynamodb", err)
	}
	return row.Assets, nil
}

// resolveTileAssets wraps getTileAssets with header's asset_prefix
// prepend, reusing mosaic.Document.AssetsForQuadkey rather than
// duplicating the prepend rule.
func (b *Backend) resolveTileAssets(ctx context.Context, header *mosaic.Document, quadkey string) ([]string, error) {
	assets, err := b.getTileAssets(ctx, quadkey)
	if err != nil {
		return nil, err
	}
	tmp := &mosaic.Document{AssetPrefix: header.AssetPrefix, Tiles: map[string][]string{quadkey: assets}}
	return tmp.AssetsForQuadkey(quadkey), nil
}

// scanTiles queries every non-header item for this mosaic. Production
// tables should use a GSI or partition scheme that avoids a full query
// fan-out; this uses DynamoDB's own Query-by-partition-key, which is
// efficient because mosaic is the table's partition key.
func (b *Backend) scanTiles(ctx context.Context) (map[string][]string, error) {
	tiles := make(map[string][]string)

	var startKey map[string]types.AttributeValue
	for {
		out, err := b.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(b.table),
			KeyConditionExpression: aws.String("mosaic = :m"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":m": &types.AttributeValueMemberS{Value: b.mosaic},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, mosaicerr.NewBackendError("dynamodb", err)
		}

		for _, item := range out.Items {
			var row tileItem
			if err := attributevalue.UnmarshalMap(item, &row); err != nil {
				return nil, mosaicerr.NewBackendError("dynamodb", err)
			}
			if row.Quadkey == metaQuadkey {
				continue
			}
			tiles[row.Quadkey] = row.Assets
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return tiles, nil
}

func (b *Backend) exists(ctx context.Context) (bool, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"mosaic": b.mosaic, "quadkey": metaQuadkey})
	if err != nil {
		return false, mosaicerr.NewBackendError("dynamodb", err)
	}
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(b.table), Key: key})
	if err != nil {
		return false, mosaicerr.NewBackendError("dynamodb", err)
	}
	return out.Item != nil, nil
}

func (b *Backend) Write(ctx context.Context, doc *mosaic.Document, existsOK bool) error {
	already, err := b.exists(ctx)
	if err != nil {
		return err
	}
	if already && !existsOK {
		return mosaicerr.NewMosaicExistsError(b.mosaic)
	}

	b.MarkDirty()
	if err := b.putHeader(ctx, doc); err != nil {
		return err
	}
	if err := b.batchPutTiles(ctx, doc.Tiles); err != nil {
		return err
	}
	b.MarkPersisted(doc)
	return nil
}

func (b *Backend) putHeader(ctx context.Context, doc *mosaic.Document) error {
	tmsBytes := ""
	if len(doc.TileMatrixSet) > 0 {
		tmsBytes = string(doc.TileMatrixSet)
	}
	header := headerItem{
		Mosaic:        b.mosaic,
		Quadkey:       metaQuadkey,
		MosaicJSON:    doc.MosaicJSON,
		Name:          doc.Name,
		Description:   doc.Description,
		Attribution:   doc.Attribution,
		Version:       doc.Version,
		Minzoom:       doc.Minzoom,
		Maxzoom:       doc.Maxzoom,
		QuadkeyZoom:   doc.QuadkeyZoom,
		Bounds:        doc.Bounds[:],
		Center:        doc.Center[:],
		TileMatrixSet: tmsBytes,
		AssetType:     doc.AssetType,
		AssetPrefix:   doc.AssetPrefix,
		DataType:      doc.DataType,
	}
	item, err := attributevalue.MarshalMap(header)
	if err != nil {
		return mosaicerr.NewBackendError("dynamodb", err)
	}
	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(b.table), Item: item})
	if err != nil {
		return mosaicerr.NewBackendError("dynamodb", err)
	}
	return nil
}

func (b *Backend) batchPutTiles(ctx context.Context, tiles map[string][]string) error {
	const batchSize = 25
	quadkeys := make([]string, 0, len(tiles))
	for qk := range tiles {
		quadkeys = append(quadkeys, qk)
	}

	for i := 0; i < len(quadkeys); i += batchSize {
		end := i + batchSize
		if end > len(quadkeys) {
			end = len(quadkeys)
		}

		var writeReqs []types.WriteRequest
		for _, qk := range quadkeys[i:end] {
			item, err := attributevalue.MarshalMap(tileItem{Mosaic: b.mosaic, Quadkey: qk, Assets: tiles[qk]})
			if err != nil {
				return mosaicerr.NewBackendError("dynamodb", err)
			}
			writeReqs = append(writeReqs, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
		}

		_, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{b.table: writeReqs},
		})
		if err != nil {
			return mosaicerr.NewBackendError("dynamodb", err)
		}
	}
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

	b.MarkDirty()
	if err := b.putHeader(ctx, updated); err != nil {
		return nil, err
	}

	changed := make(map[string][]string)
	for qk, assets := range updated.Tiles {
		old, existed := current.Tiles[qk]
		if !existed || !stringSliceEqual(old, assets) {
			changed[qk] = assets
		}
	}
	if err := b.batchPutTiles(ctx, changed); err != nil {
		return nil, err
	}

	b.MarkPersisted(updated)
	return updated, nil
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AssetsForTile follows spec.md §4.5's DynamoDB contract directly: a
// single GetItem keyed by (mosaic, quadkey) when the query tile sits at
// the indexing zoom, rather than loading the whole document through Get.
// Coarser/finer query tiles still need backend.ResolveAssetsForTile's
// branching, but each branch resolves through getTileAssets/
// resolveTileAssets (bounded per-quadkey GetItems) instead of a full
// table scan.
func (b *Backend) AssetsForTile(ctx context.Context, x, y, z int) ([]string, error) {
	if cached, ok := b.Cached(); ok {
		return backend.ResolveAssetsForTile(cached, b.tms, x, y, z)
	}

	header, err := b.getHeader(ctx)
	if err != nil {
		return nil, err
	}
	qz := header.EffectiveQuadkeyZoom()

	switch {
	case z == qz:
		qk := tms.Quadkey(x, y, z)
		return b.resolveTileAssets(ctx, header, qk)

	case z < qz:
		descendants := tms.Descendants(x, y, z, qz)
		seen := make(map[string]bool)
		var out []string
		for _, qk := range descendants {
			assets, err := b.resolveTileAssets(ctx, header, qk)
			if err != nil {
				return nil, err
			}
			for _, a := range assets {
				if seen[a] {
					continue
				}
				seen[a] = true
				out = append(out, a)
			}
		}
		return out, nil

	default: // z > qz: ancestor lookup
		qk := "0"
		if qz > 0 {
			full := tms.Quadkey(x, y, z)
			if len(full) < qz {
				return nil, nil
			}
			qk = full[:qz]
		}
		return b.resolveTileAssets(ctx, header, qk)
	}
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
