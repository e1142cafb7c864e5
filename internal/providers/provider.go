package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"aria/internal/cachekey"
)

// Query describes the entity a fetch should resolve.
type Query struct {
	Kind     cachekey.Kind
	Title    string // track title, for lyrics
	Album    string
	Artist   string
	MBID     string // MusicBrainz ID once learned, refines later fetches
	Duration time.Duration
}

// Document is the result of a successful fetch: an opaque serialized payload
// plus any identifier the provider learned along the way.
type Document struct {
	Data        []byte
	ContentType string
	MBID        string
}

// Provider resolves queries against one external metadata service.
type Provider interface {
	Name() string
	Supports(kind cachekey.Kind) bool
	Fetch(ctx context.Context, query Query) (*Document, error)
}

// ErrorClass partitions provider failures by how the fallback chain treats
// them.
type ErrorClass int

const (
	// ClassNotFound means the service answered but has no data for the query.
	ClassNotFound ErrorClass = iota
	// ClassRateLimited means the service refused the request for pacing.
	ClassRateLimited
	// ClassTransient covers network failures and server-side errors.
	ClassTransient
	// ClassPermanent covers malformed requests and auth failures that a retry
	// cannot fix.
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNotFound:
		return "not-found"
	case ClassRateLimited:
		return "rate-limited"
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure. MBID carries an identifier the
// provider resolved before failing, so the chain can refine the query for
// the providers that follow.
type Error struct {
	Provider string
	Class    ErrorClass
	MBID     string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Class)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err as a classified failure attributed to provider.
func NewError(provider string, class ErrorClass, err error) *Error {
	return &Error{Provider: provider, Class: class, Err: err}
}

// withLearnedMBID stamps an identifier the provider resolved before err
// occurred. Failures that are not classified provider errors pass through
// unchanged.
func withLearnedMBID(err error, mbid string) error {
	if err == nil || mbid == "" {
		return err
	}
	var providerErr *Error
	if errors.As(err, &providerErr) && providerErr.MBID == "" {
		providerErr.MBID = mbid
	}
	return err
}

// LearnedMBID extracts an identifier a failed provider resolved along the
// way, or "" when the failure carries none.
func LearnedMBID(err error) string {
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.MBID
	}
	return ""
}

// ClassOf extracts the error class, defaulting to transient for unclassified
// failures so the chain keeps advancing.
func ClassOf(err error) ErrorClass {
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Class
	}
	return ClassTransient
}

var displayCaser = cases.Title(language.English)

// DisplayName renders a provider identifier for logs and stats output.
func DisplayName(name string) string {
	return displayCaser.String(strings.TrimSpace(name))
}
