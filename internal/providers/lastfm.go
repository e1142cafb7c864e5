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

// maxImageBytes bounds a downloaded artwork payload.
const maxImageBytes = 16 << 20

// Lastfm resolves album info, artist info, and artwork against the Last.fm
// API.
type Lastfm struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// LastfmOption configures a Lastfm client.
type LastfmOption func(*Lastfm)

// WithLastfmHTTPClient overrides the default HTTP client.
func WithLastfmHTTPClient(client *http.Client) LastfmOption {
	return func(l *Lastfm) {
		if client != nil {
			l.httpClient = client
		}
	}
}

// NewLastfm creates a Last.fm client.
func NewLastfm(apiKey, baseURL string, opts ...LastfmOption) (*Lastfm, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("lastfm api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("lastfm base url required")
	}
	client := &Lastfm{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements Provider.
func (l *Lastfm) Name() string { return "lastfm" }

// Supports implements Provider.
func (l *Lastfm) Supports(kind cachekey.Kind) bool {
	switch kind {
	case cachekey.KindAlbumInfo, cachekey.KindArtistInfo, cachekey.KindArt, cachekey.KindAvatar:
		return true
	default:
		return false
	}
}

type lastfmImage struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

type lastfmAlbum struct {
	Name   string        `json:"name"`
	Artist string        `json:"artist"`
	MBID   string        `json:"mbid"`
	URL    string        `json:"url"`
	Images []lastfmImage `json:"image"`
	Wiki   struct {
		Summary string `json:"summary"`
		Content string `json:"content"`
	} `json:"wiki"`
}

type lastfmArtist struct {
	Name   string        `json:"name"`
	MBID   string        `json:"mbid"`
	URL    string        `json:"url"`
	Images []lastfmImage `json:"image"`
	Bio    struct {
		Summary string `json:"summary"`
		Content string `json:"content"`
	} `json:"bio"`
}

// Fetch implements Provider. Artwork kinds resolve the entity first, then
// download the largest image the service lists for it.
func (l *Lastfm) Fetch(ctx context.Context, query Query) (*Document, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, NewError(l.Name(), ClassTransient, err)
	}
	switch query.Kind {
	case cachekey.KindAlbumInfo:
		album, err := l.albumInfo(ctx, query)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(album)
		if err != nil {
			return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("encode album: %w", err))
		}
		return &Document{Data: data, ContentType: "application/json", MBID: album.MBID}, nil
	case cachekey.KindArtistInfo:
		artist, err := l.artistInfo(ctx, query)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(artist)
		if err != nil {
			return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("encode artist: %w", err))
		}
		return &Document{Data: data, ContentType: "application/json", MBID: artist.MBID}, nil
	case cachekey.KindArt:
		album, err := l.albumInfo(ctx, query)
		if err != nil {
			return nil, err
		}
		doc, err := l.downloadImage(ctx, album.Images, album.MBID)
		if err != nil {
			// The album resolved even though its artwork did not, so hand the
			// identifier to whoever tries next.
			return nil, withLearnedMBID(err, album.MBID)
		}
		return doc, nil
	case cachekey.KindAvatar:
		artist, err := l.artistInfo(ctx, query)
		if err != nil {
			return nil, err
		}
		doc, err := l.downloadImage(ctx, artist.Images, artist.MBID)
		if err != nil {
			return nil, withLearnedMBID(err, artist.MBID)
		}
		return doc, nil
	default:
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("unsupported kind %s", query.Kind))
	}
}

func (l *Lastfm) albumInfo(ctx context.Context, query Query) (*lastfmAlbum, error) {
	params := url.Values{"method": {"album.getinfo"}}
	if query.MBID != "" {
		params.Set("mbid", query.MBID)
	} else {
		if query.Album == "" || query.Artist == "" {
			return nil, NewError(l.Name(), ClassPermanent, errors.New("album and artist required"))
		}
		params.Set("album", query.Album)
		params.Set("artist", query.Artist)
	}

	body, err := l.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Album *lastfmAlbum `json:"album"`
		Error int          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("decode album response: %w", err))
	}
	if payload.Album == nil || payload.Error != 0 {
		return nil, NewError(l.Name(), ClassNotFound, fmt.Errorf("no album info for %q", query.Album))
	}
	return payload.Album, nil
}

func (l *Lastfm) artistInfo(ctx context.Context, query Query) (*lastfmArtist, error) {
	params := url.Values{"method": {"artist.getinfo"}}
	if query.MBID != "" {
		params.Set("mbid", query.MBID)
	} else {
		if query.Artist == "" {
			return nil, NewError(l.Name(), ClassPermanent, errors.New("artist required"))
		}
		params.Set("artist", query.Artist)
	}

	body, err := l.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Artist *lastfmArtist `json:"artist"`
		Error  int           `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("decode artist response: %w", err))
	}
	if payload.Artist == nil || payload.Error != 0 {
		return nil, NewError(l.Name(), ClassNotFound, fmt.Errorf("no artist info for %q", query.Artist))
	}
	return payload.Artist, nil
}

// downloadImage fetches the largest listed rendition.
func (l *Lastfm) downloadImage(ctx context.Context, images []lastfmImage, mbid string) (*Document, error) {
	var imageURL string
	for i := len(images) - 1; i >= 0; i-- {
		if strings.TrimSpace(images[i].URL) != "" {
			imageURL = images[i].URL
			break
		}
	}
	if imageURL == "" {
		return nil, NewError(l.Name(), ClassNotFound, errors.New("entity has no image"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("build image request: %w", err))
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("download image: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(l.Name(), statusClass(resp.StatusCode), fmt.Errorf("image download returned %d", resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("read image: %w", err))
	}
	return &Document{Data: data, ContentType: resp.Header.Get("Content-Type"), MBID: mbid}, nil
}

func (l *Lastfm) get(ctx context.Context, params url.Values) ([]byte, error) {
	endpoint, err := url.Parse(l.baseURL)
	if err != nil {
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("parse lastfm url: %w", err))
	}
	params.Set("api_key", l.apiKey)
	params.Set("format", "json")
	params.Set("autocorrect", "1")
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("build request: %w", err))
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(l.Name(), statusClass(resp.StatusCode), fmt.Errorf("lastfm returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("read response: %w", err))
	}
	return body, nil
}
