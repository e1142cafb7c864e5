package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"aria/internal/cachekey"
	"aria/internal/logging"
)

// ErrExhausted terminates a fetch after every provider in the chain failed.
type ErrExhausted struct {
	Kind     cachekey.Kind
	Failures []error
}

func (e *ErrExhausted) Error() string {
	return fmt.Sprintf("all providers exhausted for kind %s (%d failures)", e.Kind, len(e.Failures))
}

// Chain tries providers in declared order until one resolves the query.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChain builds a fallback chain. timeout bounds each individual provider
// attempt, not the chain as a whole.
func NewChain(chain []Provider, timeout time.Duration, logger *slog.Logger) *Chain {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{
		providers: chain,
		timeout:   timeout,
		logger:    logging.NewComponentLogger(logger, "providers"),
	}
}

// Providers returns the configured providers in order.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Fetch resolves query through the chain. Providers that do not support the
// query's kind are skipped. A not-found, rate-limited, or transient failure
// advances silently; a permanent failure advances too but is logged loudly.
// When no provider succeeds, the combined failures come back as ErrExhausted.
func (c *Chain) Fetch(ctx context.Context, query Query) (*Document, error) {
	if !query.Kind.Valid() {
		return nil, fmt.Errorf("invalid entry kind %d", query.Kind)
	}

	var failures []error
	for _, provider := range c.providers {
		if !provider.Supports(query.Kind) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		doc, err := provider.Fetch(attemptCtx, query)
		cancel()
		if err == nil {
			return doc, nil
		}

		failures = append(failures, err)
		if query.MBID == "" {
			// A failed provider may still have resolved the entity's
			// identifier. Later providers in this pass get the refined query.
			if learned := LearnedMBID(err); learned != "" {
				query.MBID = learned
				c.logger.Debug("refined query with identifier from failed provider",
					logging.String(logging.FieldProvider, provider.Name()),
					logging.String("mbid", learned),
				)
			}
		}
		class := ClassOf(err)
		if class == ClassPermanent {
			c.logger.Warn("provider failed permanently, advancing chain",
				logging.Error(err),
				logging.String(logging.FieldProvider, provider.Name()),
				logging.String(logging.FieldKind, query.Kind.String()),
			)
			continue
		}
		c.logger.Debug("provider failed, advancing chain",
			logging.Error(err),
			logging.String(logging.FieldProvider, provider.Name()),
			logging.String(logging.FieldKind, query.Kind.String()),
			logging.String("class", class.String()),
		)
	}

	return nil, &ErrExhausted{Kind: query.Kind, Failures: failures}
}

// statusClass maps an HTTP response status to a provider error class.
func statusClass(status int) ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 500:
		return ClassTransient
	default:
		return ClassPermanent
	}
}
