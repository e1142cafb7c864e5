package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"aria/internal/cachekey"
	"aria/internal/logging"
)

// ErrNotFound indicates no entry exists for the requested (key, kind).
var ErrNotFound = errors.New("entry not found")

// Entry is one cached document row.
type Entry struct {
	Key         cachekey.Key
	Kind        cachekey.Kind
	Document    []byte
	ContentHash string
	Freshness   time.Time
}

// Get returns the entry stored for (key, kind), or ErrNotFound.
// A row whose freshness timestamp cannot be parsed is treated as a miss.
func (s *Store) Get(ctx context.Context, key cachekey.Key, kind cachekey.Kind) (Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT document, content_hash, freshness FROM entries WHERE key = ? AND kind = ?",
		key.String(), int(kind),
	)

	var (
		document  []byte
		hash      string
		freshness string
	)
	if err := row.Scan(&document, &hash, &freshness); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("read entry: %w", err)
	}

	// An empty document is a registered miss: a fetch ran, found nothing,
	// and the row only records when that happened.
	if len(document) == 0 {
		return Entry{}, ErrNotFound
	}

	ts, err := time.Parse(time.RFC3339Nano, freshness)
	if err != nil {
		s.logger.Warn("skipping corrupt entry row",
			logging.String(logging.FieldKey, key.String()),
			logging.String(logging.FieldKind, kind.String()),
			logging.Error(err),
		)
		return Entry{}, ErrNotFound
	}

	return Entry{
		Key:         key,
		Kind:        kind,
		Document:    document,
		ContentHash: hash,
		Freshness:   ts,
	}, nil
}

// Put upserts a document for (key, kind). When the stored content hash matches
// contentHash the write is skipped entirely: no disk I/O, no freshness bump.
func (s *Store) Put(ctx context.Context, key cachekey.Key, kind cachekey.Kind, document []byte, contentHash string) error {
	if !kind.Valid() {
		return fmt.Errorf("put entry: invalid kind %d", int(kind))
	}
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin put tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if contentHash != "" {
			var existing string
			err := tx.QueryRowContext(ctx,
				"SELECT content_hash FROM entries WHERE key = ? AND kind = ?",
				key.String(), int(kind),
			).Scan(&existing)
			switch {
			case err == nil:
				if existing == contentHash {
					return nil
				}
			case errors.Is(err, sql.ErrNoRows):
			default:
				return fmt.Errorf("check existing hash: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO entries (key, kind, document, content_hash, freshness)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT (key, kind) DO UPDATE SET
                 document = excluded.document,
                 content_hash = excluded.content_hash,
                 freshness = excluded.freshness`,
			key.String(), int(kind), document, contentHash,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit entry: %w", err)
		}
		return nil
	})
}

// Invalidate removes the entry for (key, kind). Removing an absent entry is not
// an error.
func (s *Store) Invalidate(ctx context.Context, key cachekey.Key, kind cachekey.Kind) error {
	if err := s.execWithRetry(ctx,
		"DELETE FROM entries WHERE key = ? AND kind = ?",
		key.String(), int(kind),
	); err != nil {
		return fmt.Errorf("invalidate entry: %w", err)
	}
	return nil
}

// InvalidateAll removes every entry kind stored for key.
func (s *Store) InvalidateAll(ctx context.Context, key cachekey.Key) error {
	if err := s.execWithRetry(ctx,
		"DELETE FROM entries WHERE key = ?",
		key.String(),
	); err != nil {
		return fmt.Errorf("invalidate key: %w", err)
	}
	return nil
}

// Iterate streams every entry of the given kind to fn in key order. A row that
// fails to scan is skipped and reported through the logger; fn returning an
// error stops iteration and propagates that error.
func (s *Store) Iterate(ctx context.Context, kind cachekey.Kind, fn func(Entry) error) error {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, document, content_hash, freshness FROM entries WHERE kind = ? ORDER BY key",
		int(kind),
	)
	if err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rawKey    string
			document  []byte
			hash      string
			freshness string
		)
		if err := rows.Scan(&rawKey, &document, &hash, &freshness); err != nil {
			s.logger.Warn("skipping corrupt entry row",
				logging.String(logging.FieldKind, kind.String()),
				logging.Error(err),
			)
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, freshness)
		if err != nil {
			s.logger.Warn("skipping corrupt entry row",
				logging.String(logging.FieldKey, rawKey),
				logging.String(logging.FieldKind, kind.String()),
				logging.Error(err),
			)
			continue
		}
		entry := Entry{
			Key:         cachekey.Key(rawKey),
			Kind:        kind,
			Document:    document,
			ContentHash: hash,
			Freshness:   ts,
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entries: %w", err)
	}
	return nil
}

// Clear wipes every cached entry and reports how many rows were removed.
// History tables are left alone; use ClearHistory for those.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM entries")
		if err != nil {
			return err
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	return removed, nil
}

// KindStats summarizes stored entries for one kind.
type KindStats struct {
	Kind    cachekey.Kind
	Entries int64
	Bytes   int64
}

// Stats reports per-kind entry counts and document byte totals.
func (s *Store) Stats(ctx context.Context) ([]KindStats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, COUNT(1), COALESCE(SUM(LENGTH(document)), 0) FROM entries GROUP BY kind ORDER BY kind",
	)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []KindStats
	for rows.Next() {
		var entry KindStats
		var kind int
		if err := rows.Scan(&kind, &entry.Entries, &entry.Bytes); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		entry.Kind = cachekey.Kind(kind)
		stats = append(stats, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}
