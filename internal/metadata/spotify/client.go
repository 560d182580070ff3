// Package spotify resolves Spotify track IDs via the Web API using
// client-credentials authentication.
package spotify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jukebox/internal/httpx"
	"jukebox/internal/metadata"
	"jukebox/internal/services"
)

// expirySkew is subtracted from token lifetimes so a token is refreshed
// before it can expire mid-request.
const expirySkew = 30 * time.Second

type trackResponse struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Client talks to the Spotify Web API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	http         *httpx.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ metadata.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a Spotify client.
func New(clientID, clientSecret, baseURL, tokenURL string, httpClient *httpx.Client, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify credentials required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	tokenURL = strings.TrimSpace(tokenURL)
	if baseURL == "" || tokenURL == "" {
		return nil, errors.New("spotify base and token URLs required")
	}
	if httpClient == nil {
		return nil, errors.New("spotify http client required")
	}
	client := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		tokenURL:     tokenURL,
		http:         httpClient,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Resolve fetches track metadata for a 22-character Spotify track ID.
func (c *Client) Resolve(ctx context.Context, trackID string) (metadata.Track, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return metadata.Track{}, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var payload trackResponse
	endpoint := fmt.Sprintf("%s/v1/tracks/%s", c.baseURL, url.PathEscape(trackID))
	if err := c.http.GetJSON(ctx, endpoint, header, &payload); err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) && httpErr.Kind == httpx.KindStatus {
			switch httpErr.Status {
			case http.StatusNotFound:
				return metadata.Track{}, services.Wrap(services.ErrMetadataNotFound, "spotify", "resolve",
					fmt.Sprintf("track %s not found", trackID), err)
			case http.StatusUnauthorized:
				// Token may have been revoked; drop it and retry once.
				c.invalidateToken()
				return c.resolveWithFreshToken(ctx, trackID)
			}
		}
		return metadata.Track{}, services.Wrap(services.ErrProvider, "spotify", "resolve", "track lookup failed", err)
	}
	return c.toTrack(payload), nil
}

func (c *Client) resolveWithFreshToken(ctx context.Context, trackID string) (metadata.Track, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return metadata.Track{}, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	var payload trackResponse
	endpoint := fmt.Sprintf("%s/v1/tracks/%s", c.baseURL, url.PathEscape(trackID))
	if err := c.http.GetJSON(ctx, endpoint, header, &payload); err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) && httpErr.Kind == httpx.KindStatus && httpErr.Status == http.StatusNotFound {
			return metadata.Track{}, services.Wrap(services.ErrMetadataNotFound, "spotify", "resolve",
				fmt.Sprintf("track %s not found", trackID), err)
		}
		return metadata.Track{}, services.Wrap(services.ErrProvider, "spotify", "resolve", "track lookup failed", err)
	}
	return c.toTrack(payload), nil
}

func (c *Client) toTrack(payload trackResponse) metadata.Track {
	names := make([]string, 0, len(payload.Artists))
	for _, artist := range payload.Artists {
		if name := strings.TrimSpace(artist.Name); name != "" {
			names = append(names, name)
		}
	}

	// Prefer the largest cover image.
	cover := ""
	best := -1
	for _, img := range payload.Album.Images {
		area := img.Width * img.Height
		if area > best {
			best = area
			cover = img.URL
		}
	}

	return metadata.Track{
		Title:       payload.Name,
		Artist:      strings.Join(names, ", "),
		Album:       payload.Album.Name,
		DurationSec: payload.DurationMS / 1000,
		CoverURL:    cover,
	}
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}

// accessToken returns a cached token or requests a new one via the
// client-credentials grant.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}

	creds := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	header := http.Header{}
	header.Set("Authorization", "Basic "+creds)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	body, err := c.http.PostForm(ctx, c.tokenURL, form, header)
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "spotify", "token", "token request failed", err)
	}
	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrProvider, "spotify", "token", "decode token response", err)
	}
	if payload.AccessToken == "" || payload.ExpiresIn <= 0 {
		return "", services.Wrap(services.ErrProvider, "spotify", "token", "token response missing access token", nil)
	}

	c.token = payload.AccessToken
	c.expires = c.now().Add(time.Duration(payload.ExpiresIn)*time.Second - expirySkew)
	return c.token, nil
}
