package mpdconn

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"aria/internal/events"
	"aria/internal/logging"
	"aria/internal/metastore"
)

// reconnectDelay paces watcher redials after a dropped idle connection.
const reconnectDelay = 2 * time.Second

// TrackFeed follows the daemon's player subsystem over an idle connection,
// publishes track-changed events, and appends finished transitions to the
// listening history.
type TrackFeed struct {
	client *Client
	store  *metastore.Store
	bus    *events.Bus
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastURI string
}

// NewTrackFeed constructs a feed over client's daemon address. store may be
// nil when history recording is not wanted.
func NewTrackFeed(client *Client, store *metastore.Store, bus *events.Bus, logger *slog.Logger) *TrackFeed {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TrackFeed{
		client: client,
		store:  store,
		bus:    bus,
		logger: logging.NewComponentLogger(logger, "trackfeed"),
	}
}

// Start begins following player events until ctx ends or Stop is called.
func (f *TrackFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.wg.Add(1)
	go f.run(runCtx)
	return nil
}

// Stop terminates the idle loop and waits for it to exit.
func (f *TrackFeed) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	cancel := f.cancel
	f.running = false
	f.cancel = nil
	f.mu.Unlock()

	cancel()
	f.wg.Wait()
}

func (f *TrackFeed) run(ctx context.Context) {
	defer f.wg.Done()
	for {
		if err := ctx.Err(); err != nil {
			return
		}
		watcher, err := mpd.NewWatcher("tcp", f.client.Addr(), f.client.password, "player")
		if err != nil {
			f.logger.Warn("idle connection failed, retrying",
				logging.Error(err),
				logging.String("addr", f.client.Addr()),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		f.follow(ctx, watcher)
		_ = watcher.Close()
	}
}

func (f *TrackFeed) follow(ctx context.Context, watcher *mpd.Watcher) {
	// Catch up on whatever is playing before the first idle event.
	f.observe(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Error:
			if !ok {
				return
			}
			f.logger.Warn("idle watcher error, reconnecting", logging.Error(err))
			return
		case subsystem, ok := <-watcher.Event:
			if !ok {
				return
			}
			if subsystem != "player" {
				continue
			}
			f.observe(ctx)
		}
	}
}

// observe reads the current song and records a transition when the URI
// changed since the last observation.
func (f *TrackFeed) observe(ctx context.Context) {
	var song mpd.Attrs
	err := f.client.withConn(func(conn *mpd.Client) error {
		var err error
		song, err = conn.CurrentSong()
		return err
	})
	if err != nil {
		f.logger.Warn("failed to read current song", logging.Error(err))
		return
	}

	uri := strings.TrimSpace(song["file"])
	f.mu.Lock()
	changed := uri != "" && uri != f.lastURI
	if changed {
		f.lastURI = uri
	}
	f.mu.Unlock()
	if !changed {
		return
	}

	f.bus.TrackChanged(uri)
	if f.store == nil {
		return
	}

	track := metastore.PlayedTrack{
		URI:     uri,
		Album:   song["Album"],
		Artists: splitArtists(song["Artist"]),
	}
	if err := f.store.AddToHistory(ctx, track); err != nil {
		f.logger.Warn("failed to record listening history",
			logging.Error(err),
			logging.String("uri", uri),
		)
	}
}

// splitArtists breaks a multi-artist tag on the common separators.
func splitArtists(tag string) []string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil
	}
	fields := strings.FieldsFunc(tag, func(r rune) bool {
		return r == ';' || r == ','
	})
	artists := make([]string, 0, len(fields))
	for _, field := range fields {
		if name := strings.TrimSpace(field); name != "" {
			artists = append(artists, name)
		}
	}
	return artists
}
