package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"aria/internal/cachekey"
)

// Lrclib resolves synced and plain lyrics against the LRCLIB API.
type Lrclib struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// LrclibOption configures a Lrclib client.
type LrclibOption func(*Lrclib)

// WithLrclibHTTPClient overrides the default HTTP client.
func WithLrclibHTTPClient(client *http.Client) LrclibOption {
	return func(l *Lrclib) {
		if client != nil {
			l.httpClient = client
		}
	}
}

// NewLrclib creates a LRCLIB client.
func NewLrclib(baseURL string, opts ...LrclibOption) (*Lrclib, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("lrclib base url required")
	}
	client := &Lrclib{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements Provider.
func (l *Lrclib) Name() string { return "lrclib" }

// Supports implements Provider.
func (l *Lrclib) Supports(kind cachekey.Kind) bool {
	return kind == cachekey.KindLyrics
}

// Fetch implements Provider. The response body is stored verbatim; it carries
// both plain and synced lyrics and the caller chooses which to render.
func (l *Lrclib) Fetch(ctx context.Context, query Query) (*Document, error) {
	if query.Kind != cachekey.KindLyrics {
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("unsupported kind %s", query.Kind))
	}
	if query.Title == "" || query.Artist == "" {
		return nil, NewError(l.Name(), ClassPermanent, errors.New("track title and artist required"))
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, NewError(l.Name(), ClassTransient, err)
	}

	endpoint, err := url.Parse(l.baseURL + "/get")
	if err != nil {
		return nil, NewError(l.Name(), ClassPermanent, fmt.Errorf("parse lrclib url: %w", err))
	}
	params := url.Values{}
	params.Set("track_name", query.Title)
	params.Set("artist_name", query.Artist)
	if query.Album != "" {
		params.Set("album_name", query.Album)
	}
	if query.Duration > 0 {
		params.Set("duration", strconv.Itoa(int(query.Duration.Round(time.Second)/time.Second)))
	}
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
		return nil, NewError(l.Name(), statusClass(resp.StatusCode), fmt.Errorf("lrclib returned %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError(l.Name(), ClassTransient, fmt.Errorf("read response: %w", err))
	}
	return &Document{Data: body, ContentType: "application/json"}, nil
}
