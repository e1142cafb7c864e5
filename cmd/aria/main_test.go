package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"aria/internal/cachekey"
	"aria/internal/config"
	"aria/internal/logging"
	"aria/internal/metastore"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeTestConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if mutate != nil {
		mutate(&cfg)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	requireContains(t, string(data), "[paths]")

	// A second init without --overwrite must refuse to clobber the file.
	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestConfigValidateWithDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := runCLI(t, []string{"config", "validate"})
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestStatsOnEmptyStore(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)

	out, err := runCLI(t, []string{"--config", cfgPath, "stats"})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	requireContains(t, out, "Cache entries")
	requireContains(t, out, "total")
	requireContains(t, out, "Musicbrainz -> Lastfm -> Lrclib")
}

func TestCacheClearRemovesEntries(t *testing.T) {
	cfgPath := writeTestConfig(t, nil)

	cfg, _, _, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := metastore.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put(context.Background(), cachekey.Encode("x"), cachekey.KindLyrics, []byte("words"), ""); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	out, err := runCLI(t, []string{"--config", cfgPath, "cache", "clear"})
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	requireContains(t, out, "Removed 1 cached entries")
}

func TestPreflightReportsUnreachableMPD(t *testing.T) {
	cfgPath := writeTestConfig(t, func(cfg *config.Config) {
		cfg.MPD.Port = 1
	})

	out, err := runCLI(t, []string{"--config", cfgPath, "preflight"})
	if err == nil {
		t.Fatal("expected preflight to fail with unreachable player daemon")
	}
	requireContains(t, out, "FAIL")
}
