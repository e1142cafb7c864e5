package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// MPD contains connection settings for the player daemon.
type MPD struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	// Timeout bounds every protocol round trip, in seconds.
	Timeout int `toml:"timeout"`
	// BatchTick is the command batching window in milliseconds.
	BatchTick int `toml:"batch_tick"`
}

// Providers contains configuration for external metadata providers.
type Providers struct {
	// Order lists enabled providers in fallback order.
	Order []string `toml:"order"`
	// NegativeCooldown is the retry suppression window after every provider
	// fails for a key, in minutes.
	NegativeCooldown int `toml:"negative_cooldown"`
	// RequestTimeout bounds a single provider request, in seconds.
	RequestTimeout int    `toml:"request_timeout"`
	LastfmAPIKey   string `toml:"lastfm_api_key"`
	LrclibBaseURL  string `toml:"lrclib_base_url"`
	LastfmBaseURL  string `toml:"lastfm_base_url"`
	MusicBrainzURL string `toml:"musicbrainz_base_url"`
}

// HotCache contains sizing for the in-memory image cache.
type HotCache struct {
	// MaxBytes bounds the total decoded byte cost held in memory.
	MaxBytes int64 `toml:"max_bytes"`
}

// Blur contains configuration for the background blur pipeline.
type Blur struct {
	Radius int `toml:"radius"`
	// CoalesceDelay debounces rapid resize triggers, in milliseconds.
	CoalesceDelay int `toml:"coalesce_delay"`
}

// Workflow contains worker pool sizing and queue bounds.
type Workflow struct {
	Workers int `toml:"workers"`
	// QueueDepth bounds pending tasks per priority band before producers block.
	QueueDepth int `toml:"queue_depth"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for Aria.
//
// Configuration sections by subsystem:
//   - Paths: cache and log directories
//   - MPD: player daemon connection and command batching
//   - Providers: external metadata source credentials and fallback order
//   - HotCache: in-memory image cache sizing
//   - Blur: background blur radius and debounce
//   - Workflow: worker pool sizing and queue bounds
//   - Logging: log format and level
//   - Notifications: ntfy push notification settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	MPD           MPD           `toml:"mpd"`
	Providers     Providers     `toml:"providers"`
	HotCache      HotCache      `toml:"hot_cache"`
	Blur          Blur          `toml:"blur"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aria/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The second return value is the
// resolved path; the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("aria.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the metadata cache database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.CacheDir, "metadata.db")
}

// MPDAddr returns the daemon address in host:port form.
func (c *Config) MPDAddr() string {
	return net.JoinHostPort(c.MPD.Host, strconv.Itoa(c.MPD.Port))
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
