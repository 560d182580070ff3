package services_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"jukebox/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDownloadFailed, "fetcher", "run", "tool exited", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDownloadFailed) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"fetcher", "run", "tool exited"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindMapping(t *testing.T) {
	cases := []struct {
		marker error
		kind   string
	}{
		{services.ErrInvalidURL, "invalid_url"},
		{services.ErrMetadataNotFound, "metadata_not_found"},
		{services.ErrProvider, "provider_error"},
		{services.ErrNoResults, "no_results_found"},
		{services.ErrDownloadFailed, "download_failed"},
		{services.ErrFileTooLarge, "file_too_large"},
		{services.ErrProcessingFailed, "processing_failed"},
		{services.ErrCacheWrite, "cache_write_failed"},
		{services.ErrTimeout, "timeout"},
		{services.ErrNetwork, "network_error"},
	}
	for _, tc := range cases {
		err := services.Wrap(tc.marker, "component", "op", "detail", nil)
		if got := services.Kind(err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q, want %q", tc.marker, got, tc.kind)
		}
	}
	if got := services.Kind(errors.New("unmarked")); got != "internal" {
		t.Fatalf("expected internal for unmarked error, got %q", got)
	}
	if got := services.Kind(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

func TestRateLimitedCarriesRetryAfter(t *testing.T) {
	err := services.NewRateLimited(42 * time.Second)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited marker, got %v", err)
	}
	wait, ok := services.RetryAfter(err)
	if !ok || wait != 42*time.Second {
		t.Fatalf("unexpected retry-after: %v %v", wait, ok)
	}
	msg := services.UserMessage(err)
	if !strings.Contains(msg, "42 seconds") {
		t.Fatalf("expected concrete wait in message, got %q", msg)
	}
}

func TestUserMessagesDoNotLeakDetail(t *testing.T) {
	err := services.Wrap(services.ErrProcessingFailed, "finisher", "ffmpeg", "/tmp/secret/path.mp3", errors.New("exit status 1"))
	msg := services.UserMessage(err)
	if strings.Contains(msg, "/tmp") || strings.Contains(msg, "exit status") {
		t.Fatalf("user message leaks internals: %q", msg)
	}
	if msg == "" {
		t.Fatal("expected a message for every kind")
	}
}
