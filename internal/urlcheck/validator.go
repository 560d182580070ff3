package urlcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"jukebox/internal/services"
)

// Platform identifies the source service a URL belongs to.
type Platform string

const (
	PlatformSpotify Platform = "spotify"
	PlatformYouTube Platform = "youtube"
)

// MaxURLLength is enforced before any parsing happens.
const MaxURLLength = 2048

var (
	spotifyTrackRE = regexp.MustCompile(`open\.spotify\.com/(?:intl-[a-z]{2}/)?track/([A-Za-z0-9]{22})`)
	youtubePathRE  = regexp.MustCompile(`(?:youtu\.be/|/embed/|/shorts/|/live/)([A-Za-z0-9_-]{11})`)
	youtubeIDRE    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// Parsed is the validated form of a request URL.
type Parsed struct {
	Raw      string
	Platform Platform
	TrackID  string
}

// LookupFunc resolves a hostname to IP addresses. The seam exists so tests
// never perform real DNS queries.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Option configures a Validator.
type Option func(*Validator)

// WithLookup overrides the DNS lookup used for SSRF screening.
func WithLookup(lookup LookupFunc) Option {
	return func(v *Validator) {
		if lookup != nil {
			v.lookup = lookup
		}
	}
}

// Validator checks request URLs against the host allow-list and SSRF rules.
type Validator struct {
	spotifyHosts  map[string]struct{}
	youtubeHosts  map[string]struct{}
	lookupTimeout time.Duration
	lookup        LookupFunc
}

// New constructs a Validator. The lookup timeout bounds the DNS screening
// call and should match the HTTP client's timeout discipline.
func New(spotifyHosts, youtubeHosts []string, lookupTimeout time.Duration, opts ...Option) *Validator {
	v := &Validator{
		spotifyHosts:  hostSet(spotifyHosts),
		youtubeHosts:  hostSet(youtubeHosts),
		lookupTimeout: lookupTimeout,
		lookup:        defaultLookup,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func hostSet(hosts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			set[host] = struct{}{}
		}
	}
	return set
}

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// Validate parses and screens a raw URL, returning its platform and track ID.
// Every rejection wraps services.ErrInvalidURL.
func (v *Validator) Validate(ctx context.Context, raw string) (Parsed, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Parsed{}, invalid("parse", "empty input", nil)
	}
	if len(raw) > MaxURLLength {
		return Parsed{}, invalid("parse", fmt.Sprintf("input exceeds %d characters", MaxURLLength), nil)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, invalid("parse", "malformed url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Parsed{}, invalid("parse", fmt.Sprintf("scheme %q not allowed", parsed.Scheme), nil)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return Parsed{}, invalid("parse", "missing host", nil)
	}

	platform, ok := v.platformFor(host)
	if !ok {
		return Parsed{}, invalid("allowlist", fmt.Sprintf("host %q is not an allowed platform", host), nil)
	}

	if err := v.ScreenHost(ctx, host); err != nil {
		return Parsed{}, err
	}

	trackID, err := extractTrackID(platform, parsed, raw)
	if err != nil {
		return Parsed{}, err
	}

	return Parsed{Raw: raw, Platform: platform, TrackID: trackID}, nil
}

// platformFor matches exact hosts and subdomains of allow-listed hosts,
// never substrings.
func (v *Validator) platformFor(host string) (Platform, bool) {
	if matchHost(host, v.spotifyHosts) {
		return PlatformSpotify, true
	}
	if matchHost(host, v.youtubeHosts) {
		return PlatformYouTube, true
	}
	return "", false
}

func matchHost(host string, allowed map[string]struct{}) bool {
	if _, ok := allowed[host]; ok {
		return true
	}
	for candidate := range allowed {
		if strings.HasSuffix(host, "."+candidate) {
			return true
		}
	}
	return false
}

// ScreenHost rejects hosts that are, or resolve to, non-public addresses.
// It is shared with the HTTP client's redirect re-validation.
func (v *Validator) ScreenHost(ctx context.Context, host string) error {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return invalid("screen", "missing host", nil)
	}
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return screenAddr(addr)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return invalid("screen", "loopback host not allowed", nil)
	}

	lookupCtx := ctx
	if v.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, v.lookupTimeout)
		defer cancel()
	}
	addrs, err := v.lookup(lookupCtx, host)
	if err != nil {
		return invalid("screen", fmt.Sprintf("resolve %q", host), err)
	}
	if len(addrs) == 0 {
		return invalid("screen", fmt.Sprintf("host %q has no addresses", host), nil)
	}
	for _, addr := range addrs {
		if err := screenAddr(addr); err != nil {
			return err
		}
	}
	return nil
}

// ScreenAddr rejects loopback, private, link-local, multicast, and
// unspecified addresses.
func ScreenAddr(addr netip.Addr) error {
	return screenAddr(addr)
}

func screenAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	switch {
	case addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified():
		return invalid("screen", fmt.Sprintf("address %s is not publicly routable", addr), nil)
	}
	return nil
}

func extractTrackID(platform Platform, parsed *url.URL, raw string) (string, error) {
	switch platform {
	case PlatformSpotify:
		match := spotifyTrackRE.FindStringSubmatch(raw)
		if match == nil {
			return "", invalid("extract", "no spotify track id in url", nil)
		}
		return match[1], nil
	case PlatformYouTube:
		if vid := parsed.Query().Get("v"); vid != "" {
			if !youtubeIDRE.MatchString(vid) {
				return "", invalid("extract", "malformed youtube video id", nil)
			}
			return vid, nil
		}
		match := youtubePathRE.FindStringSubmatch(raw)
		if match == nil {
			return "", invalid("extract", "no youtube video id in url", nil)
		}
		return match[1], nil
	default:
		return "", invalid("extract", "unknown platform", nil)
	}
}

func invalid(op, message string, err error) error {
	return services.Wrap(services.ErrInvalidURL, "urlcheck", op, message, err)
}

// IsInvalid reports whether an error came from URL validation.
func IsInvalid(err error) bool {
	return errors.Is(err, services.ErrInvalidURL)
}
