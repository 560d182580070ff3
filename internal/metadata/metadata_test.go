package metadata_test

import (
	"context"
	"errors"
	"testing"

	"jukebox/internal/metadata"
	"jukebox/internal/services"
	"jukebox/internal/urlcheck"
)

type stubProvider struct {
	track metadata.Track
	err   error
	calls int
}

func (s *stubProvider) Resolve(ctx context.Context, trackID string) (metadata.Track, error) {
	s.calls++
	return s.track, s.err
}

func TestSearchQuery(t *testing.T) {
	track := metadata.Track{Title: "Bohemian Rhapsody", Artist: "Queen"}
	if got := track.SearchQuery(); got != "Queen Bohemian Rhapsody audio" {
		t.Fatalf("SearchQuery = %q", got)
	}

	noArtist := metadata.Track{Title: "Untitled"}
	if got := noArtist.SearchQuery(); got != "Untitled audio" {
		t.Fatalf("SearchQuery without artist = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name  string
		track metadata.Track
		want  string
	}{
		{"full", metadata.Track{Artist: "Queen", Title: "Bohemian Rhapsody"}, "Queen - Bohemian Rhapsody"},
		{"title only", metadata.Track{Title: "Some Upload"}, "Some Upload"},
		{"empty falls back to id", metadata.Track{ID: "dQw4w9WgXcQ"}, "dQw4w9WgXcQ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.track.DisplayName(); got != tc.want {
				t.Fatalf("DisplayName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRegistryDispatch(t *testing.T) {
	registry := metadata.NewRegistry()
	spotify := &stubProvider{track: metadata.Track{Title: "Song A"}}
	youtube := &stubProvider{track: metadata.Track{Title: "Song B"}}
	registry.Register(urlcheck.PlatformSpotify, spotify)
	registry.Register(urlcheck.PlatformYouTube, youtube)

	track, err := registry.Resolve(context.Background(), urlcheck.PlatformYouTube, "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if track.Title != "Song B" {
		t.Fatalf("wrong provider answered: %+v", track)
	}
	if track.Platform != urlcheck.PlatformYouTube || track.ID != "dQw4w9WgXcQ" {
		t.Fatalf("registry should stamp platform and id: %+v", track)
	}
	if spotify.calls != 0 || youtube.calls != 1 {
		t.Fatalf("calls: spotify=%d youtube=%d", spotify.calls, youtube.calls)
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	registry := metadata.NewRegistry()
	_, err := registry.Resolve(context.Background(), urlcheck.PlatformSpotify, "abc")
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRegistryPropagatesProviderError(t *testing.T) {
	registry := metadata.NewRegistry()
	registry.Register(urlcheck.PlatformSpotify, &stubProvider{
		err: services.Wrap(services.ErrMetadataNotFound, "spotify", "resolve", "gone", nil),
	})

	_, err := registry.Resolve(context.Background(), urlcheck.PlatformSpotify, "abc")
	if !errors.Is(err, services.ErrMetadataNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
