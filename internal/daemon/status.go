package daemon

import (
	"context"
	"fmt"

	"aria/internal/batcher"
	"aria/internal/blur"
	"aria/internal/hotcache"
	"aria/internal/metastore"
	"aria/internal/taskqueue"
)

// Status aggregates runtime counters across the subsystems.
type Status struct {
	Running      bool
	SessionID    string
	DatabasePath string
	LockFilePath string
	Entries      []metastore.KindStats
	HotCache     hotcache.Stats
	Queue        taskqueue.Stats
	Blur         blur.Stats
	Batcher      batcher.Stats
	InFlight     int
	EventsLost   uint64
}

// Status reports the current daemon state.
func (d *Daemon) Status(ctx context.Context) (Status, error) {
	entries, err := d.store.Stats(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("read store stats: %w", err)
	}
	return Status{
		Running:      d.running.Load(),
		SessionID:    d.sessionID,
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		Entries:      entries,
		HotCache:     d.hot.Stats(),
		Queue:        d.queue.Stats(),
		Blur:         d.blur.Stats(),
		Batcher:      d.batcher.Stats(),
		InFlight:     d.fetcher.InFlight(),
		EventsLost:   d.bus.Dropped(),
	}, nil
}

// ClearCache drops every cached entry from the store and the hot cache, and
// reports how many rows were removed.
func (d *Daemon) ClearCache(ctx context.Context) (int64, error) {
	removed, err := d.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear cache store: %w", err)
	}
	d.hot.Clear()
	_ = d.notifier.NotifyCacheCleared(ctx, removed)
	return removed, nil
}
