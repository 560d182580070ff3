// Package youtube resolves YouTube video IDs via the Data API v3.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"jukebox/internal/httpx"
	"jukebox/internal/metadata"
	"jukebox/internal/services"
)

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type videosResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default *thumbnail `json:"default"`
				High    *thumbnail `json:"high"`
				MaxRes  *thumbnail `json:"maxres"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Client talks to the YouTube Data API.
type Client struct {
	apiKey  string
	baseURL string
	http    *httpx.Client
}

var _ metadata.Provider = (*Client)(nil)

// New creates a YouTube client.
func New(apiKey, baseURL string, httpClient *httpx.Client) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("youtube api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("youtube base url required")
	}
	if httpClient == nil {
		return nil, errors.New("youtube http client required")
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, http: httpClient}, nil
}

// Resolve fetches metadata for an 11-character YouTube video ID.
func (c *Client) Resolve(ctx context.Context, trackID string) (metadata.Track, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", trackID)
	params.Set("key", c.apiKey)

	var payload videosResponse
	endpoint := c.baseURL + "/videos?" + params.Encode()
	if err := c.http.GetJSON(ctx, endpoint, nil, &payload); err != nil {
		return metadata.Track{}, services.Wrap(services.ErrProvider, "youtube", "resolve", "video lookup failed", err)
	}
	// The API returns 200 with an empty items list for unknown IDs.
	if len(payload.Items) == 0 {
		return metadata.Track{}, services.Wrap(services.ErrMetadataNotFound, "youtube", "resolve",
			fmt.Sprintf("video %s not found", trackID), nil)
	}

	item := payload.Items[0]
	duration, err := parseISO8601Duration(item.ContentDetails.Duration)
	if err != nil {
		return metadata.Track{}, services.Wrap(services.ErrProvider, "youtube", "resolve", "parse video duration", err)
	}

	cover := ""
	thumbs := item.Snippet.Thumbnails
	for _, t := range []*thumbnail{thumbs.MaxRes, thumbs.High, thumbs.Default} {
		if t != nil && t.URL != "" {
			cover = t.URL
			break
		}
	}

	return metadata.Track{
		Title:       item.Snippet.Title,
		Artist:      item.Snippet.ChannelTitle,
		DurationSec: duration,
		CoverURL:    cover,
	}, nil
}

var durationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration converts the API's PT#H#M#S form to seconds.
func parseISO8601Duration(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	match := durationRE.FindStringSubmatch(raw)
	if match == nil {
		return 0, fmt.Errorf("unsupported duration %q", raw)
	}
	total := 0
	for i, unit := range []int{3600, 60, 1} {
		if match[i+1] == "" {
			continue
		}
		value, err := strconv.Atoi(match[i+1])
		if err != nil {
			return 0, fmt.Errorf("unsupported duration %q", raw)
		}
		total += value * unit
	}
	return total, nil
}
