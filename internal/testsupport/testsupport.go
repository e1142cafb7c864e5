// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"aria/internal/config"
	"aria/internal/logging"
	"aria/internal/metastore"
)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Providers.LastfmAPIKey = "test"
	return &cfg
}

// MustOpenStore opens a metastore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *metastore.Store {
	t.Helper()

	store, err := metastore.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("metastore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
