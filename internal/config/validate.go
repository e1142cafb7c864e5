package config

import (
	"errors"
	"fmt"
)

var knownProviders = map[string]bool{
	"musicbrainz": true,
	"lastfm":      true,
	"lrclib":      true,
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateHotCache(); err != nil {
		return err
	}
	if err := c.validateBlur(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProviders() error {
	seen := make(map[string]bool, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		if !knownProviders[name] {
			return fmt.Errorf("providers.order: unknown provider %q", name)
		}
		if seen[name] {
			return fmt.Errorf("providers.order: provider %q listed twice", name)
		}
		seen[name] = true
	}
	return ensurePositiveMap(map[string]int{
		"providers.negative_cooldown": c.Providers.NegativeCooldown,
		"providers.request_timeout":   c.Providers.RequestTimeout,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":     c.Workflow.Workers,
		"workflow.queue_depth": c.Workflow.QueueDepth,
		"mpd.timeout":          c.MPD.Timeout,
		"mpd.batch_tick":       c.MPD.BatchTick,
	})
}

func (c *Config) validateHotCache() error {
	if c.HotCache.MaxBytes <= 0 {
		return errors.New("hot_cache.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateBlur() error {
	if c.Blur.Radius < 0 {
		return errors.New("blur.radius must not be negative")
	}
	if c.Blur.CoalesceDelay < 0 {
		return errors.New("blur.coalesce_delay must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
