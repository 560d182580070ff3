package urlcheck_test

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
	"time"

	"jukebox/internal/services"
	"jukebox/internal/urlcheck"
)

func publicLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return []netip.Addr{netip.MustParseAddr("93.184.216.34")}, nil
}

func newValidator(t *testing.T, opts ...urlcheck.Option) *urlcheck.Validator {
	t.Helper()
	spotify := []string{"open.spotify.com"}
	youtube := []string{"youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be"}
	merged := append([]urlcheck.Option{urlcheck.WithLookup(publicLookup)}, opts...)
	return urlcheck.New(spotify, youtube, time.Second, merged...)
}

func TestValidateAcceptsSpotifyTrack(t *testing.T) {
	v := newValidator(t)
	parsed, err := v.Validate(context.Background(), "https://open.spotify.com/track/3n3Ppam7vgaVa1iaRUc9Lp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Platform != urlcheck.PlatformSpotify {
		t.Fatalf("unexpected platform: %s", parsed.Platform)
	}
	if parsed.TrackID != "3n3Ppam7vgaVa1iaRUc9Lp" {
		t.Fatalf("unexpected track id: %q", parsed.TrackID)
	}
}

func TestValidateAcceptsIntlSpotifyTrack(t *testing.T) {
	v := newValidator(t)
	parsed, err := v.Validate(context.Background(), "https://open.spotify.com/intl-de/track/3n3Ppam7vgaVa1iaRUc9Lp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.TrackID != "3n3Ppam7vgaVa1iaRUc9Lp" {
		t.Fatalf("unexpected track id: %q", parsed.TrackID)
	}
}

func TestValidateAcceptsYouTubeVariants(t *testing.T) {
	v := newValidator(t)
	cases := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
	}
	for _, raw := range cases {
		parsed, err := v.Validate(context.Background(), raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if parsed.Platform != urlcheck.PlatformYouTube || parsed.TrackID != "dQw4w9WgXcQ" {
			t.Fatalf("%s: unexpected result %+v", raw, parsed)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	v := newValidator(t)
	cases := []struct {
		name string
		raw  string
	}{
		{"disallowed host", "https://evil.com/track/x"},
		{"substring host", "https://open.spotify.com.evil.com/track/3n3Ppam7vgaVa1iaRUc9Lp"},
		{"metadata endpoint", "http://169.254.169.254/"},
		{"loopback literal", "http://127.0.0.1/watch?v=dQw4w9WgXcQ"},
		{"bad scheme", "ftp://open.spotify.com/track/3n3Ppam7vgaVa1iaRUc9Lp"},
		{"no host", "https:///track/3n3Ppam7vgaVa1iaRUc9Lp"},
		{"short spotify id", "https://open.spotify.com/track/short"},
		{"short youtube id", "https://youtu.be/short"},
		{"empty", ""},
		{"oversized", "https://open.spotify.com/track/" + strings.Repeat("a", 3000)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tc.raw)
			if err == nil {
				t.Fatalf("expected rejection for %q", tc.raw)
			}
			if !errors.Is(err, services.ErrInvalidURL) {
				t.Fatalf("expected InvalidURL, got %v", err)
			}
		})
	}
}

func TestValidateRejectsPrivateDNSAnswer(t *testing.T) {
	v := newValidator(t, urlcheck.WithLookup(func(ctx context.Context, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("127.0.0.1")}, nil
	}))
	_, err := v.Validate(context.Background(), "https://open.spotify.com/track/3n3Ppam7vgaVa1iaRUc9Lp")
	if !errors.Is(err, services.ErrInvalidURL) {
		t.Fatalf("expected InvalidURL for rebinding answer, got %v", err)
	}
}

func TestScreenHostRejectsPrivateRanges(t *testing.T) {
	v := newValidator(t)
	for _, host := range []string{"127.0.0.1", "10.0.0.8", "192.168.1.1", "172.16.0.1", "169.254.169.254", "::1", "0.0.0.0", "localhost"} {
		if err := v.ScreenHost(context.Background(), host); err == nil {
			t.Fatalf("expected %q to be screened", host)
		}
	}
	if err := v.ScreenHost(context.Background(), "93.184.216.34"); err != nil {
		t.Fatalf("expected public literal to pass: %v", err)
	}
}
