package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrRateLimited      = errors.New("rate limited")
	ErrMetadataNotFound = errors.New("metadata not found")
	ErrProvider         = errors.New("provider error")
	ErrDownloadFailed   = errors.New("download failed")
	ErrNoResults        = errors.New("no results found")
	ErrProcessingFailed = errors.New("processing failed")
	ErrFileTooLarge     = errors.New("file too large")
	ErrCacheWrite       = errors.New("cache write failed")
	ErrTimeout          = errors.New("timeout")
	ErrNetwork          = errors.New("network error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later kind classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the stable kind string for an error. Unclassified errors map
// to "internal" so callers always have exactly one terminal kind to persist.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMetadataNotFound):
		return "metadata_not_found"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	case errors.Is(err, ErrNoResults):
		return "no_results_found"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, ErrProcessingFailed):
		return "processing_failed"
	case errors.Is(err, ErrCacheWrite):
		return "cache_write_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network_error"
	default:
		return "internal"
	}
}

// RateLimitedError carries the concrete wait a rejected requester must honor.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// NewRateLimited constructs the terminal error for an admission rejection.
func NewRateLimited(retryAfter time.Duration) error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &RateLimitedError{RetryAfter: retryAfter}
}

// RetryAfter extracts the wait carried by a rate-limit rejection.
func RetryAfter(err error) (time.Duration, bool) {
	var limited *RateLimitedError
	if errors.As(err, &limited) {
		return limited.RetryAfter, true
	}
	return 0, false
}

// UserMessage maps an error to the single stable human message for its kind.
// Messages never include raw tool output, provider payloads, or local paths.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrInvalidURL):
		return "That link is not a supported Spotify track or YouTube video URL."
	case errors.Is(err, ErrRateLimited):
		wait, _ := RetryAfter(err)
		seconds := int(wait.Round(time.Second).Seconds())
		if seconds < 1 {
			seconds = 1
		}
		return fmt.Sprintf("You are sending requests too quickly. Please wait %d seconds.", seconds)
	case errors.Is(err, ErrMetadataNotFound):
		return "That track could not be found. Check the link and try again."
	case errors.Is(err, ErrProvider):
		return "The music service is not responding right now. Please try again later."
	case errors.Is(err, ErrNoResults):
		return "No downloadable audio was found for that track."
	case errors.Is(err, ErrFileTooLarge):
		return "The resulting file exceeds the size limit."
	case errors.Is(err, ErrDownloadFailed):
		return "Download failed. Please try a different link."
	case errors.Is(err, ErrProcessingFailed):
		return "Audio processing failed. Please try again later."
	case errors.Is(err, ErrTimeout):
		return "The request took too long and was aborted. Please try again."
	default:
		return "Something went wrong. Please try again later."
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
