package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aria/internal/config"
)

func TestLoadDefaultsUseEnvKeysAndExpandPaths(t *testing.T) {
	t.Setenv("LASTFM_API_KEY", "env-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "aria")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	if cfg.Providers.LastfmAPIKey != "env-key" {
		t.Fatalf("expected Last.fm key from env, got %q", cfg.Providers.LastfmAPIKey)
	}
	if cfg.MPD.Host != "127.0.0.1" || cfg.MPD.Port != 6600 {
		t.Fatalf("unexpected MPD defaults: %s:%d", cfg.MPD.Host, cfg.MPD.Port)
	}
	if got := cfg.Providers.Order; len(got) != 3 || got[0] != "musicbrainz" {
		t.Fatalf("unexpected provider order: %v", got)
	}
	if cfg.Providers.NegativeCooldown != 15 {
		t.Fatalf("unexpected negative cooldown: %d", cfg.Providers.NegativeCooldown)
	}
	if cfg.DatabasePath() != filepath.Join(wantCache, "metadata.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[providers]
order = ["Lastfm", " lrclib "]
lastfm_base_url = "https://example.com/api/"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if got := cfg.Providers.Order; len(got) != 2 || got[0] != "lastfm" || got[1] != "lrclib" {
		t.Fatalf("unexpected provider order: %v", got)
	}
	if cfg.Providers.LastfmBaseURL != "https://example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Providers.LastfmBaseURL)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging settings, got %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[providers]\norder = [\"spotify\"]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestValidateRejectsNonPositiveWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero workers")
	}
}

func TestSampleConfigMentionsEverySection(t *testing.T) {
	sample := config.SampleConfig()
	for _, section := range []string{"[paths]", "[mpd]", "[providers]", "[hot_cache]", "[blur]", "[workflow]", "[logging]", "[notifications]"} {
		if !strings.Contains(sample, section) {
			t.Fatalf("sample config missing %s", section)
		}
	}
}
