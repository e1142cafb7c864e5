// Package artwork layers image retrieval on the fetch deduplicator: full
// renditions come from the provider chain, thumbnails are derived locally by
// scaling the full rendition down. Each variant is cached under its own entry
// kind so a thumbnail never forces a full-size decode on later lookups.
package artwork

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"golang.org/x/image/draw"

	"aria/internal/cachekey"
	"aria/internal/dedup"
	"aria/internal/hotcache"
	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/providers"
	"aria/internal/taskqueue"
)

// defaultThumbnailEdge is the bounding box for derived thumbnails, in pixels.
const defaultThumbnailEdge = 192

// thumbnailQuality is the JPEG quality for derived thumbnails.
const thumbnailQuality = 85

// Pipeline resolves artwork and derived thumbnails.
type Pipeline struct {
	fetcher *dedup.Fetcher
	store   *metastore.Store
	hot     *hotcache.Cache
	logger  *slog.Logger
	edge    int
}

// New constructs a pipeline. edge bounds the longest thumbnail side; zero
// uses the default.
func New(fetcher *dedup.Fetcher, store *metastore.Store, hot *hotcache.Cache, edge int, logger *slog.Logger) *Pipeline {
	if edge <= 0 {
		edge = defaultThumbnailEdge
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		fetcher: fetcher,
		store:   store,
		hot:     hot,
		logger:  logging.NewComponentLogger(logger, "artwork"),
		edge:    edge,
	}
}

// Image resolves the full-size rendition for id through the deduplicator.
// query.Kind must be KindArt or KindAvatar.
func (p *Pipeline) Image(ctx context.Context, priority taskqueue.Priority, id string, query providers.Query) ([]byte, error) {
	token := cachekey.Token{Key: cachekey.Encode(id), Kind: query.Kind}
	return p.fetcher.Resolve(ctx, priority, token, query)
}

// Thumbnail resolves the scaled-down rendition for id, deriving and caching
// it from the full rendition on first use.
func (p *Pipeline) Thumbnail(ctx context.Context, priority taskqueue.Priority, id string, query providers.Query) ([]byte, error) {
	kind, err := thumbnailKind(query.Kind)
	if err != nil {
		return nil, err
	}
	key := cachekey.Encode(id)
	token := cachekey.Token{Key: key, Kind: kind}

	if value, ok := p.hot.Get(token); ok {
		if thumb, ok := value.([]byte); ok {
			return thumb, nil
		}
	}
	if entry, err := p.store.Get(ctx, key, kind); err == nil {
		p.hot.Add(token, entry.Document, int64(len(entry.Document)))
		return entry.Document, nil
	}

	full, err := p.Image(ctx, priority, id, query)
	if err != nil {
		return nil, err
	}
	thumb, err := p.scaleDown(full)
	if err != nil {
		return nil, fmt.Errorf("derive thumbnail for %s: %w", id, err)
	}

	hash := sha256.Sum256(thumb)
	if err := p.store.Put(ctx, key, kind, thumb, hex.EncodeToString(hash[:])); err != nil {
		p.logger.Warn("failed to persist thumbnail",
			logging.Error(err),
			logging.String(logging.FieldKey, string(key)),
		)
	}
	p.hot.Add(token, thumb, int64(len(thumb)))
	return thumb, nil
}

func (p *Pipeline) scaleDown(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("source image is empty")
	}

	scaledW, scaledH := fitWithin(width, height, p.edge)
	out := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	draw.CatmullRom.Scale(out, out.Bounds(), src, bounds, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin shrinks (width, height) proportionally so the longest side is at
// most edge. Images already small enough keep their dimensions.
func fitWithin(width, height, edge int) (int, int) {
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= edge {
		return width, height
	}
	scaledW := width * edge / longest
	scaledH := height * edge / longest
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}
	return scaledW, scaledH
}

func thumbnailKind(kind cachekey.Kind) (cachekey.Kind, error) {
	switch kind {
	case cachekey.KindArt:
		return cachekey.KindArtThumb, nil
	case cachekey.KindAvatar:
		return cachekey.KindAvatarThumb, nil
	default:
		return 0, fmt.Errorf("kind %s has no thumbnail variant", kind)
	}
}
