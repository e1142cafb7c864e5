package providers

import (
	"fmt"
	"log/slog"
	"time"

	"aria/internal/config"
	"aria/internal/logging"
)

// BuildChain assembles the fallback chain from the configured provider order.
// Last.fm is skipped with a warning when no API key is configured; the other
// providers need no credentials.
func BuildChain(cfg *config.Config, logger *slog.Logger) (*Chain, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	chain := make([]Provider, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		switch name {
		case "musicbrainz":
			provider, err := NewMusicBrainz(cfg.Providers.MusicBrainzURL)
			if err != nil {
				return nil, fmt.Errorf("configure musicbrainz: %w", err)
			}
			chain = append(chain, provider)
		case "lastfm":
			if cfg.Providers.LastfmAPIKey == "" {
				logger.Warn("lastfm enabled but no API key configured, skipping provider",
					logging.String(logging.FieldProvider, "lastfm"),
				)
				continue
			}
			provider, err := NewLastfm(cfg.Providers.LastfmAPIKey, cfg.Providers.LastfmBaseURL)
			if err != nil {
				return nil, fmt.Errorf("configure lastfm: %w", err)
			}
			chain = append(chain, provider)
		case "lrclib":
			provider, err := NewLrclib(cfg.Providers.LrclibBaseURL)
			if err != nil {
				return nil, fmt.Errorf("configure lrclib: %w", err)
			}
			chain = append(chain, provider)
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}

	timeout := time.Duration(cfg.Providers.RequestTimeout) * time.Second
	return NewChain(chain, timeout, logger), nil
}
