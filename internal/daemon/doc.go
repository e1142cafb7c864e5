// Package daemon assembles the cache subsystem: persistent store, hot cache,
// provider chain, fetch deduplicator, task queue, blur pipeline, command
// batcher, and the MPD track feed. It enforces single-instance execution
// with a lock file and bridges failure events to notifications.
package daemon
