package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jukebox/internal/logging"
	"jukebox/internal/services"
)

// ErrorKind classifies HTTP client failures.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindRedirect
	KindStatus
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRedirect:
		return "redirect_limit"
	case KindStatus:
		return "status"
	default:
		return "network"
	}
}

// HTTPError is the typed failure surfaced after the retry budget is spent.
type HTTPError struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("http %s (%d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("http %s: %s", e.Kind, e.Detail)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// Is maps error kinds onto the shared sentinel taxonomy so callers can use
// errors.Is(err, services.ErrTimeout) without importing this package's kinds.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case services.ErrTimeout:
		return e.Kind == KindTimeout
	case services.ErrNetwork:
		return e.Kind == KindNetwork || e.Kind == KindRedirect || e.Kind == KindStatus
	}
	return false
}

var errRedirectLimit = errors.New("redirect limit exceeded")

// HostScreener re-validates redirect targets against the SSRF rules.
// *urlcheck.Validator satisfies it.
type HostScreener interface {
	ScreenHost(ctx context.Context, host string) error
}

// Config captures the client's knobs; values come from the [http] config section.
type Config struct {
	Timeout       time.Duration
	MaxRedirects  int
	RetryAttempts int
	RetryBase     time.Duration
	RetryMax      time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying transport (primarily for tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// WithJitter overrides the jitter source (deterministic in tests).
func WithJitter(jitter func() float64) Option {
	return func(c *Client) {
		if jitter != nil {
			c.jitter = jitter
		}
	}
}

// Client wraps net/http with the shared timeout, redirect, and retry policy.
type Client struct {
	cfg        Config
	httpClient *http.Client
	screener   HostScreener
	logger     *slog.Logger
	sleeper    func(context.Context, time.Duration) error
	jitter     func() float64
}

// New constructs a Client. The screener may be nil only in tests that never
// follow redirects.
func New(cfg Config, screener HostScreener, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = 10 * time.Second
	}

	c := &Client{
		cfg:      cfg,
		screener: screener,
		logger:   logging.NewComponentLogger(logger, "httpx"),
		sleeper:  sleepWithContext,
		jitter:   rand.Float64,
	}
	c.httpClient = &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: c.checkRedirect,
	}
	for _, opt := range opts {
		opt(c)
	}
	// A caller-provided transport still gets the shared redirect policy.
	if c.httpClient.CheckRedirect == nil {
		c.httpClient.CheckRedirect = c.checkRedirect
	}
	return c
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > c.cfg.MaxRedirects {
		return errRedirectLimit
	}
	if c.screener != nil {
		if err := c.screener.ScreenHost(req.Context(), req.URL.Hostname()); err != nil {
			return fmt.Errorf("redirect target rejected: %w", err)
		}
	}
	return nil
}

// Request describes one call. Body is a byte slice so retries can replay it.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response carries the fully-read reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do performs the request with the retry policy: network errors, timeouts,
// 5xx, and 429 are retried with capped exponential backoff and jitter; other
// statuses surface immediately. All retry state is call-local.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		resp, err := c.once(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		delay, retry := c.retryDelay(ctx, err, attempt)
		if !retry {
			return nil, err
		}
		c.logger.Debug("retrying request",
			logging.String("url", req.URL),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err))
		if err := c.sleeper(ctx, delay); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &HTTPError{Kind: KindNetwork, Detail: "build request", Err: err}
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &HTTPError{
			Kind:   KindStatus,
			Status: resp.StatusCode,
			Detail: snippet(payload),
			Err:    retryAfterErr(resp.Header),
		}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: payload}, nil
}

// retryAfterError smuggles the Retry-After hint through the error chain.
type retryAfterError struct{ delay time.Duration }

func (e *retryAfterError) Error() string { return "retry after " + e.delay.String() }

func retryAfterErr(header http.Header) error {
	raw := strings.TrimSpace(header.Get("Retry-After"))
	if raw == "" {
		return nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return &retryAfterError{delay: time.Duration(seconds) * time.Second}
	}
	return nil
}

func classifyTransportError(err error) *HTTPError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if errors.Is(urlErr.Err, errRedirectLimit) || errors.Is(urlErr.Err, services.ErrInvalidURL) {
			return &HTTPError{Kind: KindRedirect, Detail: "redirect rejected", Err: urlErr.Err}
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &HTTPError{Kind: KindTimeout, Detail: "deadline exceeded", Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &HTTPError{Kind: KindTimeout, Detail: "request timed out", Err: err}
	}
	return &HTTPError{Kind: KindNetwork, Detail: "transport failure", Err: err}
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= c.cfg.RetryAttempts {
		return 0, false
	}
	if ctx.Err() != nil {
		return 0, false
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return 0, false
	}
	switch httpErr.Kind {
	case KindRedirect:
		return 0, false
	case KindStatus:
		if httpErr.Status != http.StatusTooManyRequests && httpErr.Status < http.StatusInternalServerError {
			return 0, false
		}
		var ra *retryAfterError
		if errors.As(httpErr.Err, &ra) && ra.delay > 0 {
			return c.capDelay(ra.delay), true
		}
	}
	return c.backoffDelay(attempt), true
}

// backoffDelay doubles the base per attempt, caps at the max, and applies
// jitter in [delay/2, delay] so concurrent callers fan out.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		if delay > c.cfg.RetryMax/2 {
			delay = c.cfg.RetryMax
			break
		}
		delay *= 2
	}
	delay = c.capDelay(delay)
	half := delay / 2
	return half + time.Duration(c.jitter()*float64(half))
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if delay > c.cfg.RetryMax {
		return c.cfg.RetryMax
	}
	if delay < 0 {
		return 0
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(payload []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(payload))
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
