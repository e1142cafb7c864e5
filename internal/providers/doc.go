// Package providers defines the external metadata provider contract and the
// fallback chain that tries providers in configured order. Each provider is
// an HTTP client for one service (MusicBrainz, Last.fm, LRCLIB) with its own
// request rate limit; the chain classifies failures and advances past them
// until a provider resolves the query or the chain is exhausted.
package providers
