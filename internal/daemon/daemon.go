package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"aria/internal/artwork"
	"aria/internal/batcher"
	"aria/internal/blur"
	"aria/internal/config"
	"aria/internal/dedup"
	"aria/internal/events"
	"aria/internal/hotcache"
	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/mpdconn"
	"aria/internal/notifications"
	"aria/internal/providers"
	"aria/internal/taskqueue"
)

// Daemon owns the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *metastore.Store
	hot       *hotcache.Cache
	bus       *events.Bus
	queue     *taskqueue.Queue
	fetcher   *dedup.Fetcher
	artwork   *artwork.Pipeline
	blur      *blur.Pipeline
	batcher   *batcher.Batcher
	mpd       *mpdconn.Client
	feed      *mpdconn.TrackFeed
	notifier  notifications.Service
	sessionID string

	lockPath string
	lock     *flock.Flock

	running     atomic.Bool
	cancel      context.CancelFunc
	bridgeDone  chan struct{}
	bridgeClose func()
}

// New constructs a daemon with all subsystems wired but not started.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := metastore.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	chain, err := providers.BuildChain(cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build provider chain: %w", err)
	}

	hot := hotcache.New(cfg.HotCache.MaxBytes)
	bus := events.NewBus()
	queue := taskqueue.New(cfg.Workflow.Workers, cfg.Workflow.QueueDepth, logger)
	cooldown := time.Duration(cfg.Providers.NegativeCooldown) * time.Minute
	fetcher := dedup.New(store, hot, chain, queue, bus, cooldown, logger)
	art := artwork.New(fetcher, store, hot, 0, logger)
	blurPipeline := blur.New(queue, bus, cfg.Blur.Radius, time.Duration(cfg.Blur.CoalesceDelay)*time.Millisecond, logger)
	mpd := mpdconn.NewClient(cfg, logger)
	batch := batcher.New(mpd, time.Duration(cfg.MPD.BatchTick)*time.Millisecond, logger)
	feed := mpdconn.NewTrackFeed(mpd, store, bus, logger)

	lockPath := filepath.Join(cfg.Paths.CacheDir, "aria.lock")
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		hot:       hot,
		bus:       bus,
		queue:     queue,
		fetcher:   fetcher,
		artwork:   art,
		blur:      blurPipeline,
		batcher:   batch,
		mpd:       mpd,
		feed:      feed,
		notifier:  notifications.NewService(cfg),
		sessionID: uuid.NewString(),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// SessionID identifies this daemon run in logs and notifications.
func (d *Daemon) SessionID() string { return d.sessionID }

// Store exposes the persistent cache store.
func (d *Daemon) Store() *metastore.Store { return d.store }

// Fetcher exposes the fetch deduplicator.
func (d *Daemon) Fetcher() *dedup.Fetcher { return d.fetcher }

// Artwork exposes the artwork pipeline.
func (d *Daemon) Artwork() *artwork.Pipeline { return d.artwork }

// Blur exposes the blur pipeline.
func (d *Daemon) Blur() *blur.Pipeline { return d.blur }

// Batcher exposes the command batcher.
func (d *Daemon) Batcher() *batcher.Batcher { return d.batcher }

// Bus exposes the event bus for additional subscribers.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Start acquires the instance lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another aria daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.queue.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start task queue: %w", err)
	}
	if err := d.feed.Start(runCtx); err != nil {
		d.queue.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start track feed: %w", err)
	}
	d.startEventBridge(runCtx)

	d.running.Store(true)
	d.logger.Info("aria daemon started",
		logging.String("session_id", d.sessionID),
		logging.String("lock", d.lockPath),
	)
	_ = d.notifier.NotifyDaemonStarted(runCtx, d.sessionID)
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.bridgeClose != nil {
		d.bridgeClose()
		<-d.bridgeDone
		d.bridgeClose = nil
	}
	d.feed.Stop()
	d.blur.Close()
	d.batcher.Close()
	d.queue.Stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.mpd.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("aria daemon stopped", logging.String("session_id", d.sessionID))
	_ = d.notifier.NotifyDaemonStopped(context.Background(), d.sessionID)
}

// Close stops the daemon and closes the cache store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// startEventBridge forwards terminal fetch failures to the notifier.
func (d *Daemon) startEventBridge(ctx context.Context) {
	ch, cancel := d.bus.Subscribe()
	d.bridgeClose = cancel
	d.bridgeDone = make(chan struct{})
	go func() {
		defer close(d.bridgeDone)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				if event.Type != events.TypeEntryFailed {
					continue
				}
				_ = d.notifier.NotifyProviderExhausted(ctx, string(event.Key), event.Kind.String())
			}
		}
	}()
}
