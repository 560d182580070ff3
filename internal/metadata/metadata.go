// Package metadata resolves platform track identifiers into tag-ready
// track descriptions.
package metadata

import (
	"context"
	"fmt"
	"strings"

	"jukebox/internal/services"
	"jukebox/internal/urlcheck"
)

// Track is the normalized description of a single track, independent of
// which platform it came from.
type Track struct {
	Platform    urlcheck.Platform
	ID          string
	Title       string
	Artist      string
	Album       string
	DurationSec int
	CoverURL    string
}

// SearchQuery builds the source-search query used when no direct stream
// URL is known for the track.
func (t Track) SearchQuery() string {
	return strings.TrimSpace(fmt.Sprintf("%s %s audio", t.Artist, t.Title))
}

// DisplayName renders the track for logs and CLI output.
func (t Track) DisplayName() string {
	artist := strings.TrimSpace(t.Artist)
	title := strings.TrimSpace(t.Title)
	switch {
	case artist == "" && title == "":
		return t.ID
	case artist == "":
		return title
	default:
		return artist + " - " + title
	}
}

// Provider resolves track identifiers for a single platform.
type Provider interface {
	Resolve(ctx context.Context, trackID string) (Track, error)
}

// Registry routes resolution requests to the provider for each platform.
type Registry struct {
	providers map[urlcheck.Platform]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[urlcheck.Platform]Provider)}
}

// Register installs a provider for platform, replacing any previous one.
func (r *Registry) Register(platform urlcheck.Platform, provider Provider) {
	r.providers[platform] = provider
}

// Resolve dispatches to the provider registered for platform.
func (r *Registry) Resolve(ctx context.Context, platform urlcheck.Platform, trackID string) (Track, error) {
	provider, ok := r.providers[platform]
	if !ok {
		return Track{}, services.Wrap(services.ErrProvider, "metadata", "resolve",
			fmt.Sprintf("no provider registered for platform %q", platform), nil)
	}
	track, err := provider.Resolve(ctx, trackID)
	if err != nil {
		return Track{}, err
	}
	track.Platform = platform
	track.ID = trackID
	return track, nil
}
