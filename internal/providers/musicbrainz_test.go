package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"aria/internal/cachekey"
	"aria/internal/providers"
)

func TestMusicBrainzAlbumSearchLearnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/2/release-group" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		if got := r.URL.Query().Get("fmt"); got != "json" {
			t.Errorf("expected fmt=json, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"release-groups": []map[string]any{{
				"id":                 "c31a5e2b-0bf8-32e0-8aeb-ef4ba9973932",
				"title":              "OK Computer",
				"primary-type":       "Album",
				"first-release-date": "1997-05-21",
			}},
		})
	}))
	defer server.Close()

	provider, err := providers.NewMusicBrainz(server.URL + "/ws/2")
	if err != nil {
		t.Fatalf("NewMusicBrainz: %v", err)
	}

	doc, err := provider.Fetch(context.Background(), providers.Query{
		Kind: cachekey.KindAlbumInfo, Album: "OK Computer", Artist: "Radiohead",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.MBID != "c31a5e2b-0bf8-32e0-8aeb-ef4ba9973932" {
		t.Errorf("expected learned MBID, got %q", doc.MBID)
	}
	var payload map[string]any
	if err := json.Unmarshal(doc.Data, &payload); err != nil {
		t.Fatalf("document is not JSON: %v", err)
	}
	if payload["title"] != "OK Computer" {
		t.Errorf("unexpected title %v", payload["title"])
	}
}

func TestMusicBrainzLookupWithKnownID(t *testing.T) {
	const mbid = "a74b1b7f-71a5-4011-9441-d0b5e4122711"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/2/artist/"+mbid {
			t.Errorf("expected direct lookup path, got %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": mbid, "name": "Radiohead"})
	}))
	defer server.Close()

	provider, err := providers.NewMusicBrainz(server.URL + "/ws/2")
	if err != nil {
		t.Fatalf("NewMusicBrainz: %v", err)
	}

	doc, err := provider.Fetch(context.Background(), providers.Query{
		Kind: cachekey.KindArtistInfo, Artist: "Radiohead", MBID: mbid,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.MBID != mbid {
		t.Errorf("expected MBID preserved, got %q", doc.MBID)
	}
}

func TestMusicBrainzEmptySearchIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"release-groups": []any{}})
	}))
	defer server.Close()

	provider, err := providers.NewMusicBrainz(server.URL + "/ws/2")
	if err != nil {
		t.Fatalf("NewMusicBrainz: %v", err)
	}

	_, err = provider.Fetch(context.Background(), providers.Query{
		Kind: cachekey.KindAlbumInfo, Album: "Nonexistent",
	})
	var providerErr *providers.Error
	if !errors.As(err, &providerErr) || providerErr.Class != providers.ClassNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestMusicBrainzServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider, err := providers.NewMusicBrainz(server.URL + "/ws/2")
	if err != nil {
		t.Fatalf("NewMusicBrainz: %v", err)
	}

	_, err = provider.Fetch(context.Background(), providers.Query{
		Kind: cachekey.KindArtistInfo, Artist: "Low",
	})
	var providerErr *providers.Error
	if !errors.As(err, &providerErr) || providerErr.Class != providers.ClassTransient {
		t.Fatalf("expected transient, got %v", err)
	}
}

func TestMusicBrainzRejectsUnsupportedKind(t *testing.T) {
	provider, err := providers.NewMusicBrainz("https://musicbrainz.org")
	if err != nil {
		t.Fatalf("NewMusicBrainz: %v", err)
	}
	if provider.Supports(cachekey.KindLyrics) {
		t.Error("expected lyrics to be unsupported")
	}
}
