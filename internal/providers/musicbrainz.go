package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"aria/internal/cachekey"
)

const musicBrainzUserAgent = "aria/1.0 (https://github.com/aria-player/aria)"

// MusicBrainz resolves album and artist metadata against the MusicBrainz web
// service. The service mandates at most one request per second per client, so
// Fetch waits on a limiter before every call.
type MusicBrainz struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// MusicBrainzOption configures a MusicBrainz client.
type MusicBrainzOption func(*MusicBrainz)

// WithMusicBrainzHTTPClient overrides the default HTTP client.
func WithMusicBrainzHTTPClient(client *http.Client) MusicBrainzOption {
	return func(m *MusicBrainz) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// NewMusicBrainz creates a MusicBrainz client.
func NewMusicBrainz(baseURL string, opts ...MusicBrainzOption) (*MusicBrainz, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("musicbrainz base url required")
	}
	client := &MusicBrainz{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements Provider.
func (m *MusicBrainz) Name() string { return "musicbrainz" }

// Supports implements Provider.
func (m *MusicBrainz) Supports(kind cachekey.Kind) bool {
	return kind == cachekey.KindAlbumInfo || kind == cachekey.KindArtistInfo
}

type musicBrainzReleaseGroup struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PrimaryType    string `json:"primary-type"`
	FirstRelease   string `json:"first-release-date"`
	Disambiguation string `json:"disambiguation"`
	ArtistCredit   []struct {
		Name string `json:"name"`
	} `json:"artist-credit"`
}

type musicBrainzArtist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"`
	Country        string `json:"country"`
	Disambiguation string `json:"disambiguation"`
}

// Fetch implements Provider. A learned MusicBrainz ID in the query skips the
// search step and goes straight to a lookup.
func (m *MusicBrainz) Fetch(ctx context.Context, query Query) (*Document, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, NewError(m.Name(), ClassTransient, err)
	}
	switch query.Kind {
	case cachekey.KindAlbumInfo:
		return m.fetchAlbum(ctx, query)
	case cachekey.KindArtistInfo:
		return m.fetchArtist(ctx, query)
	default:
		return nil, NewError(m.Name(), ClassPermanent, fmt.Errorf("unsupported kind %s", query.Kind))
	}
}

func (m *MusicBrainz) fetchAlbum(ctx context.Context, query Query) (*Document, error) {
	if query.MBID != "" {
		body, err := m.get(ctx, "/release-group/"+url.PathEscape(query.MBID), url.Values{"fmt": {"json"}})
		if err != nil {
			return nil, err
		}
		return &Document{Data: body, ContentType: "application/json", MBID: query.MBID}, nil
	}

	if query.Album == "" {
		return nil, NewError(m.Name(), ClassPermanent, errors.New("album title required"))
	}
	terms := fmt.Sprintf("releasegroup:%q", query.Album)
	if query.Artist != "" {
		terms += fmt.Sprintf(" AND artist:%q", query.Artist)
	}
	body, err := m.get(ctx, "/release-group", url.Values{
		"query": {terms},
		"limit": {"1"},
		"fmt":   {"json"},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		ReleaseGroups []musicBrainzReleaseGroup `json:"release-groups"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(m.Name(), ClassTransient, fmt.Errorf("decode search response: %w", err))
	}
	if len(payload.ReleaseGroups) == 0 {
		return nil, NewError(m.Name(), ClassNotFound, fmt.Errorf("no release group for %q", query.Album))
	}
	match := payload.ReleaseGroups[0]
	data, err := json.Marshal(match)
	if err != nil {
		return nil, NewError(m.Name(), ClassPermanent, fmt.Errorf("encode release group: %w", err))
	}
	return &Document{Data: data, ContentType: "application/json", MBID: match.ID}, nil
}

func (m *MusicBrainz) fetchArtist(ctx context.Context, query Query) (*Document, error) {
	if query.MBID != "" {
		body, err := m.get(ctx, "/artist/"+url.PathEscape(query.MBID), url.Values{"fmt": {"json"}})
		if err != nil {
			return nil, err
		}
		return &Document{Data: body, ContentType: "application/json", MBID: query.MBID}, nil
	}

	if query.Artist == "" {
		return nil, NewError(m.Name(), ClassPermanent, errors.New("artist name required"))
	}
	body, err := m.get(ctx, "/artist", url.Values{
		"query": {fmt.Sprintf("artist:%q", query.Artist)},
		"limit": {"1"},
		"fmt":   {"json"},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Artists []musicBrainzArtist `json:"artists"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(m.Name(), ClassTransient, fmt.Errorf("decode search response: %w", err))
	}
	if len(payload.Artists) == 0 {
		return nil, NewError(m.Name(), ClassNotFound, fmt.Errorf("no artist match for %q", query.Artist))
	}
	match := payload.Artists[0]
	data, err := json.Marshal(match)
	if err != nil {
		return nil, NewError(m.Name(), ClassPermanent, fmt.Errorf("encode artist: %w", err))
	}
	return &Document{Data: data, ContentType: "application/json", MBID: match.ID}, nil
}

func (m *MusicBrainz) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint, err := url.Parse(m.baseURL + path)
	if err != nil {
		return nil, NewError(m.Name(), ClassPermanent, fmt.Errorf("parse musicbrainz url: %w", err))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, NewError(m.Name(), ClassPermanent, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", musicBrainzUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, NewError(m.Name(), ClassTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(m.Name(), statusClass(resp.StatusCode), fmt.Errorf("musicbrainz returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(m.Name(), ClassTransient, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}
