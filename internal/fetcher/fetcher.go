// Package fetcher downloads source audio with yt-dlp, either from a
// direct video URL or from a search query.
package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"jukebox/internal/logging"
	"jukebox/internal/metadata"
	"jukebox/internal/services"
)

// durationTolerance widens the duration match filter so remasters and
// slightly trimmed uploads still qualify.
const durationTolerance = 5

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) (stderr string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.exec = executor
		}
	}
}

// Client wraps yt-dlp invocations.
type Client struct {
	binary  string
	timeout time.Duration
	exec    Executor
	logger  *slog.Logger
}

// New constructs a yt-dlp client.
func New(binary string, timeoutSeconds int, logger *slog.Logger, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
		logger:  logging.NewComponentLogger(logger, "fetcher"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ByURL downloads the audio stream behind a known video URL into destDir
// and returns the downloaded file's path.
func (c *Client) ByURL(ctx context.Context, videoURL, destDir string) (string, error) {
	return c.download(ctx, destDir, videoURL, nil)
}

// ByQuery searches for the track and downloads the best match. When the
// track's duration is known, candidates outside a small tolerance are
// filtered out so covers and extended mixes are skipped.
func (c *Client) ByQuery(ctx context.Context, track metadata.Track, destDir string) (string, error) {
	var extra []string
	if track.DurationSec > 0 {
		extra = append(extra, "--match-filter",
			fmt.Sprintf("duration>%d & duration<%d", track.DurationSec-durationTolerance, track.DurationSec+durationTolerance))
	}
	target := fmt.Sprintf("ytsearch1:%s", track.SearchQuery())
	return c.download(ctx, destDir, target, extra)
}

func (c *Client) download(ctx context.Context, destDir, target string, extra []string) (string, error) {
	destDir = strings.TrimSpace(destDir)
	if destDir == "" {
		return "", errors.New("destination directory required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--format", "bestaudio/best",
		"--no-playlist",
		"--no-progress",
		"--output", filepath.Join(destDir, "source.%(ext)s"),
	}
	args = append(args, extra...)
	args = append(args, target)

	start := time.Now()
	stderr, err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		c.logger.DebugContext(ctx, "yt-dlp output", logging.String("line", line))
	})
	if err != nil {
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "fetcher", "download",
				fmt.Sprintf("yt-dlp exceeded %s", c.timeout), err)
		}
		return "", classifyFailure(stderr, err)
	}

	path, err := newestFile(destDir)
	if err != nil {
		return "", fmt.Errorf("locate downloaded file: %w", err)
	}
	if path == "" {
		// A clean exit without output means the search (or filter)
		// matched nothing.
		return "", services.Wrap(services.ErrNoResults, "fetcher", "download", "no matching source found", nil)
	}

	c.logger.InfoContext(ctx, "source downloaded",
		logging.String("file", filepath.Base(path)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return path, nil
}

// classifyFailure maps yt-dlp stderr output onto service errors.
func classifyFailure(stderr string, err error) error {
	lowered := strings.ToLower(stderr)
	switch {
	case strings.Contains(lowered, "no video results") ||
		strings.Contains(lowered, "did not match") ||
		strings.Contains(lowered, "no such playlist"):
		return services.Wrap(services.ErrNoResults, "fetcher", "download", "no matching source found", err)
	case strings.Contains(lowered, "private video"):
		return services.Wrap(services.ErrDownloadFailed, "fetcher", "download", "source video is private", err)
	case strings.Contains(lowered, "not available in your country") ||
		strings.Contains(lowered, "geo restriction"):
		return services.Wrap(services.ErrDownloadFailed, "fetcher", "download", "source video is geo-restricted", err)
	case strings.Contains(lowered, "video unavailable"):
		return services.Wrap(services.ErrDownloadFailed, "fetcher", "download", "source video is unavailable", err)
	default:
		detail := strings.TrimSpace(stderr)
		if len(detail) > 300 {
			detail = detail[:300]
		}
		if detail == "" {
			detail = "yt-dlp failed"
		}
		return services.Wrap(services.ErrDownloadFailed, "fetcher", "download", detail, err)
	}
}

// newestFile returns the most recently modified regular file in dir, or
// "" when the directory holds none.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var (
		newest     string
		newestTime time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = filepath.Join(dir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	return newest, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return stderr.String(), fmt.Errorf("run %s: %w", filepath.Base(binary), err)
	}
	return stderr.String(), nil
}
