package metastore

import (
	"context"
	"fmt"
	"time"
)

// PlayedTrack describes one song for the listening history.
type PlayedTrack struct {
	URI     string
	Album   string
	Artists []string
}

// AddToHistory records one playback of the given track, along with its album
// and artists, in a single transaction.
func (s *Store) AddToHistory(ctx context.Context, track PlayedTrack) error {
	if track.URI == "" {
		return fmt.Errorf("add to history: empty track uri")
	}
	ctx = ensureContext(ctx)
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin history tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO songs_history (uri, timestamp) VALUES (?, ?)",
			track.URI, timestamp,
		); err != nil {
			return fmt.Errorf("record song: %w", err)
		}
		if track.Album != "" {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO albums_history (title, timestamp) VALUES (?, ?)",
				track.Album, timestamp,
			); err != nil {
				return fmt.Errorf("record album: %w", err)
			}
		}
		for _, artist := range track.Artists {
			if artist == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO artists_history (name, timestamp) VALUES (?, ?)",
				artist, timestamp,
			); err != nil {
				return fmt.Errorf("record artist: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit history: %w", err)
		}
		return nil
	})
}

// RecentSongs returns up to n distinct song URIs, most recently played first.
func (s *Store) RecentSongs(ctx context.Context, n int) ([]string, error) {
	return s.recentValues(ctx, n,
		"SELECT uri, MAX(timestamp) AS last_played FROM songs_history GROUP BY uri ORDER BY last_played DESC LIMIT ?")
}

// RecentAlbums returns up to n distinct album titles, most recently played first.
func (s *Store) RecentAlbums(ctx context.Context, n int) ([]string, error) {
	return s.recentValues(ctx, n,
		"SELECT title, MAX(timestamp) AS last_played FROM albums_history GROUP BY title ORDER BY last_played DESC LIMIT ?")
}

// RecentArtists returns up to n distinct artist names, most recently played first.
func (s *Store) RecentArtists(ctx context.Context, n int) ([]string, error) {
	return s.recentValues(ctx, n,
		"SELECT name, MAX(timestamp) AS last_played FROM artists_history GROUP BY name ORDER BY last_played DESC LIMIT ?")
}

func (s *Store) recentValues(ctx context.Context, n int, query string) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value, lastPlayed string
		if err := rows.Scan(&value, &lastPlayed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return values, nil
}

// ClearHistory wipes all listening history tables.
func (s *Store) ClearHistory(ctx context.Context) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin clear tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		for _, table := range []string{"songs_history", "albums_history", "artists_history"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit clear: %w", err)
		}
		return nil
	})
}
