// Package dedup turns "I need data for (key, kind)" into exactly one
// completion per caller while running at most one outbound fetch per token.
// Concurrent requests for a token attach as waiters to the in-flight fetch;
// results fan out to waiters in arrival order. Exhausted fetches are
// remembered as negative results for a cooldown so a missing entry cannot
// trigger a re-fetch storm.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aria/internal/cachekey"
	"aria/internal/events"
	"aria/internal/hotcache"
	"aria/internal/logging"
	"aria/internal/metastore"
	"aria/internal/providers"
	"aria/internal/taskqueue"
)

// ErrCoolingDown is returned while a token sits in the negative cache after
// every provider failed for it.
var ErrCoolingDown = errors.New("fetch suppressed by recent failure")

// ChainFetcher is the provider side of the deduplicator.
type ChainFetcher interface {
	Fetch(ctx context.Context, query providers.Query) (*providers.Document, error)
}

// Resolution is the single outcome delivered to every waiter of a token.
type Resolution struct {
	Document []byte
	Err      error
}

// Fetcher deduplicates fetches for cache tokens.
type Fetcher struct {
	store    *metastore.Store
	hot      *hotcache.Cache
	chain    ChainFetcher
	queue    *taskqueue.Queue
	bus      *events.Bus
	logger   *slog.Logger
	cooldown time.Duration

	mu       sync.Mutex
	inflight map[cachekey.Token][]chan Resolution
	negative map[cachekey.Token]time.Time
	learned  map[cachekey.Key]string
}

// New constructs a Fetcher. cooldown bounds how long an exhausted token stays
// suppressed.
func New(store *metastore.Store, hot *hotcache.Cache, chain ChainFetcher, queue *taskqueue.Queue, bus *events.Bus, cooldown time.Duration, logger *slog.Logger) *Fetcher {
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{
		store:    store,
		hot:      hot,
		chain:    chain,
		queue:    queue,
		bus:      bus,
		logger:   logging.NewComponentLogger(logger, "dedup"),
		cooldown: cooldown,
		inflight: make(map[cachekey.Token][]chan Resolution),
		negative: make(map[cachekey.Token]time.Time),
		learned:  make(map[cachekey.Key]string),
	}
}

// Request resolves a token. Cached entries resolve on the returned channel
// immediately; otherwise the caller is attached to the in-flight fetch for
// the token, creating one if none exists. The channel receives exactly one
// Resolution.
func (f *Fetcher) Request(ctx context.Context, priority taskqueue.Priority, token cachekey.Token, query providers.Query) (<-chan Resolution, error) {
	result := make(chan Resolution, 1)

	if value, ok := f.hot.Get(token); ok {
		if doc, ok := value.([]byte); ok {
			result <- Resolution{Document: doc}
			return result, nil
		}
	}

	entry, err := f.store.Get(ctx, token.Key, token.Kind)
	if err == nil {
		f.admit(token, entry.Document)
		result <- Resolution{Document: entry.Document}
		return result, nil
	}
	if !errors.Is(err, metastore.ErrNotFound) {
		// Store trouble degrades to a miss; the fetch path may still succeed.
		f.logger.Warn("cache store read failed, treating as miss",
			logging.Error(err),
			logging.String(logging.FieldKey, string(token.Key)),
			logging.String(logging.FieldKind, token.Kind.String()),
		)
	}

	f.mu.Lock()
	if expiry, ok := f.negative[token]; ok {
		if time.Now().Before(expiry) {
			f.mu.Unlock()
			result <- Resolution{Err: ErrCoolingDown}
			return result, nil
		}
		delete(f.negative, token)
	}

	if waiters, ok := f.inflight[token]; ok {
		f.inflight[token] = append(waiters, result)
		f.mu.Unlock()
		return result, nil
	}

	f.inflight[token] = []chan Resolution{result}
	if mbid, ok := f.learned[token.Key]; ok && query.MBID == "" {
		query.MBID = mbid
	}
	f.mu.Unlock()

	task := taskqueue.Task{
		Label: fmt.Sprintf("fetch %s/%s", token.Key, token.Kind),
		Run: func(taskCtx context.Context) error {
			f.execute(taskCtx, token, query)
			return nil
		},
	}
	if err := f.queue.Submit(ctx, priority, task); err != nil {
		f.resolve(token, Resolution{Err: err})
		return nil, fmt.Errorf("enqueue fetch task: %w", err)
	}
	return result, nil
}

// Resolve is the blocking form of Request.
func (f *Fetcher) Resolve(ctx context.Context, priority taskqueue.Priority, token cachekey.Token, query providers.Query) ([]byte, error) {
	result, err := f.Request(ctx, priority, token, query)
	if err != nil {
		return nil, err
	}
	select {
	case resolution := <-result:
		return resolution.Document, resolution.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops cached state for a token so the next request re-fetches.
func (f *Fetcher) Invalidate(ctx context.Context, token cachekey.Token) error {
	f.hot.Remove(token)
	f.mu.Lock()
	delete(f.negative, token)
	f.mu.Unlock()
	return f.store.Invalidate(ctx, token.Key, token.Kind)
}

// InFlight reports how many tokens currently have an executing fetch.
func (f *Fetcher) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

func (f *Fetcher) execute(ctx context.Context, token cachekey.Token, query providers.Query) {
	doc, err := f.chain.Fetch(ctx, query)
	if err != nil {
		var exhausted *providers.ErrExhausted
		if errors.As(err, &exhausted) {
			f.mu.Lock()
			f.negative[token] = time.Now().Add(f.cooldown)
			f.mu.Unlock()
			if allNotFound(exhausted.Failures) {
				// Every provider answered "no such thing". Register the miss
				// as an empty row so its freshness survives a restart.
				if perr := f.store.Put(ctx, token.Key, token.Kind, nil, ""); perr != nil {
					f.logger.Warn("miss registration failed",
						logging.Error(perr),
						logging.String(logging.FieldKey, string(token.Key)),
						logging.String(logging.FieldKind, token.Kind.String()),
					)
				}
			}
			f.bus.EntryFailed(token, "all providers failed")
		}
		f.resolve(token, Resolution{Err: err})
		return
	}

	hash := sha256.Sum256(doc.Data)
	if err := f.store.Put(ctx, token.Key, token.Kind, doc.Data, hex.EncodeToString(hash[:])); err != nil {
		// The fetch still succeeded; waiters get the document either way.
		f.logger.Warn("cache store write failed",
			logging.Error(err),
			logging.String(logging.FieldKey, string(token.Key)),
			logging.String(logging.FieldKind, token.Kind.String()),
		)
	}
	f.admit(token, doc.Data)

	if doc.MBID != "" {
		f.mu.Lock()
		f.learned[token.Key] = doc.MBID
		f.mu.Unlock()
	}

	f.bus.EntryReady(token)
	f.resolve(token, Resolution{Document: doc.Data})
}

func allNotFound(failures []error) bool {
	if len(failures) == 0 {
		return false
	}
	for _, failure := range failures {
		if providers.ClassOf(failure) != providers.ClassNotFound {
			return false
		}
	}
	return true
}

// resolve fans the outcome out to every waiter in arrival order and clears
// the token's bookkeeping.
func (f *Fetcher) resolve(token cachekey.Token, resolution Resolution) {
	f.mu.Lock()
	waiters := f.inflight[token]
	delete(f.inflight, token)
	f.mu.Unlock()

	for _, waiter := range waiters {
		waiter <- resolution
	}
}

// admit offers image payloads to the hot cache. Text kinds are cheap to
// re-read from the store and stay out of the byte budget.
func (f *Fetcher) admit(token cachekey.Token, document []byte) {
	switch token.Kind {
	case cachekey.KindArt, cachekey.KindArtThumb, cachekey.KindAvatar, cachekey.KindAvatarThumb:
		f.hot.Add(token, document, int64(len(document)))
	}
}
