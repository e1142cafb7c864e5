package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeMPD()
	c.normalizeProviders()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeMPD() {
	c.MPD.Host = strings.TrimSpace(c.MPD.Host)
	if c.MPD.Host == "" {
		c.MPD.Host = defaultMPDHost
	}
	if c.MPD.Port <= 0 {
		c.MPD.Port = defaultMPDPort
	}
	if c.MPD.Timeout <= 0 {
		c.MPD.Timeout = defaultMPDTimeout
	}
	if c.MPD.BatchTick <= 0 {
		c.MPD.BatchTick = defaultMPDBatchTick
	}
	if c.MPD.Password == "" {
		if value, ok := os.LookupEnv("MPD_PASSWORD"); ok {
			c.MPD.Password = value
		}
	}
}

func (c *Config) normalizeProviders() {
	if c.Providers.LastfmAPIKey == "" {
		if value, ok := os.LookupEnv("LASTFM_API_KEY"); ok {
			c.Providers.LastfmAPIKey = value
		}
	}
	order := make([]string, 0, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			order = append(order, name)
		}
	}
	if len(order) == 0 {
		order = defaultProviderOrder()
	}
	c.Providers.Order = order
	c.Providers.LastfmBaseURL = normalizeBaseURL(c.Providers.LastfmBaseURL, defaultLastfmBaseURL)
	c.Providers.LrclibBaseURL = normalizeBaseURL(c.Providers.LrclibBaseURL, defaultLrclibBaseURL)
	c.Providers.MusicBrainzURL = normalizeBaseURL(c.Providers.MusicBrainzURL, defaultMusicBrainzURL)
}

func normalizeBaseURL(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return strings.TrimRight(value, "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
