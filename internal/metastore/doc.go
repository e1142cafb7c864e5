// Package metastore persists fetched metadata documents in SQLite.
//
// Each entry is addressed by (cache key, kind) and stores an opaque document
// blob, a content hash for idempotent overwrite detection, and a freshness
// timestamp. Documents are never interpreted here; callers own their schema.
// The store also keeps listening history (recently played songs, albums, and
// artists) in companion tables.
//
// All operations are safe for concurrent use. Row-level corruption is
// isolated: a bad row reads as a miss and iteration skips it.
package metastore
