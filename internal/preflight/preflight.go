package preflight

import (
	"context"

	"aria/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// minFreeBytes is the required headroom on the cache volume.
const minFreeBytes = 256 << 20

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckFreeSpace("Cache volume", cfg.Paths.CacheDir, minFreeBytes),
	}

	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckMPD(ctx, cfg.MPDAddr()))

	for _, provider := range cfg.Providers.Order {
		if provider == "lastfm" {
			results = append(results, CheckLastfmKey(cfg.Providers.LastfmAPIKey))
		}
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
