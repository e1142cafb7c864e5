// Package notifications pushes operational alerts to an ntfy topic when one
// is configured. Without a topic every notification is a no-op, so callers
// never need to check whether notifications are enabled.
package notifications
