package artwork_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"

	"aria/internal/artwork"
	"aria/internal/cachekey"
	"aria/internal/dedup"
	"aria/internal/events"
	"aria/internal/hotcache"
	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/providers"
	"aria/internal/taskqueue"
	"aria/internal/testsupport"
)

type staticChain struct {
	calls int32
	data  []byte
	err   error
}

func (c *staticChain) Fetch(context.Context, providers.Query) (*providers.Document, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &providers.Document{Data: c.data, ContentType: "image/png"}, nil
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newPipeline(t *testing.T, chain *staticChain) (*artwork.Pipeline, *metastore.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	queue := taskqueue.New(2, 16, logging.NewNop())
	if err := queue.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(queue.Stop)

	hot := hotcache.New(1 << 20)
	fetcher := dedup.New(store, hot, chain, queue, events.NewBus(), time.Minute, logging.NewNop())
	return artwork.New(fetcher, store, hot, 64, logging.NewNop()), store
}

func TestThumbnailDerivedAndBounded(t *testing.T) {
	chain := &staticChain{data: encodePNG(t, 640, 480)}
	pipeline, _ := newPipeline(t, chain)

	thumb, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityInteractive, "album-1", providers.Query{
		Kind: cachekey.KindArt, Album: "Spirit of Eden", Artist: "Talk Talk",
	})
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected jpeg thumbnail, got %s", format)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("expected 64x48 (aspect preserved), got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailCachedAfterFirstDerivation(t *testing.T) {
	chain := &staticChain{data: encodePNG(t, 320, 320)}
	pipeline, store := newPipeline(t, chain)
	query := providers.Query{Kind: cachekey.KindArt, Album: "Laughing Stock", Artist: "Talk Talk"}

	first, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityInteractive, "album-2", query)
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	second, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityInteractive, "album-2", query)
	if err != nil {
		t.Fatalf("Thumbnail (cached): %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("expected identical cached thumbnail bytes")
	}
	if got := atomic.LoadInt32(&chain.calls); got != 1 {
		t.Errorf("expected one provider fetch, got %d", got)
	}

	// The derived variant lives under its own entry kind.
	entry, err := store.Get(context.Background(), cachekey.Encode("album-2"), cachekey.KindArtThumb)
	if err != nil {
		t.Fatalf("Get thumbnail entry: %v", err)
	}
	if !bytes.Equal(entry.Document, first) {
		t.Error("persisted thumbnail differs from returned bytes")
	}
}

func TestSmallImageKeepsDimensions(t *testing.T) {
	chain := &staticChain{data: encodePNG(t, 40, 30)}
	pipeline, _ := newPipeline(t, chain)

	thumb, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityAmbient, "album-3", providers.Query{
		Kind: cachekey.KindArt, Album: "Small", Artist: "Cover",
	})
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if bounds := decoded.Bounds(); bounds.Dx() != 40 || bounds.Dy() != 30 {
		t.Errorf("expected dimensions preserved, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestThumbnailRejectsNonImageKinds(t *testing.T) {
	chain := &staticChain{data: []byte("lyrics")}
	pipeline, _ := newPipeline(t, chain)

	_, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityInteractive, "song-1", providers.Query{
		Kind: cachekey.KindLyrics,
	})
	if err == nil {
		t.Fatal("expected error for a kind without a thumbnail variant")
	}
}

func TestThumbnailUndecodableSourceFails(t *testing.T) {
	chain := &staticChain{data: []byte("not an image")}
	pipeline, _ := newPipeline(t, chain)

	_, err := pipeline.Thumbnail(context.Background(), taskqueue.PriorityInteractive, "album-4", providers.Query{
		Kind: cachekey.KindArt, Album: "Corrupt",
	})
	if err == nil {
		t.Fatal("expected decode error to surface")
	}
}
