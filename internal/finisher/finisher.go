// Package finisher normalizes downloaded audio into tagged MP3 files.
//
// It runs ffmpeg with a loudnorm filter and libmp3lame, enforces the
// output size cap, and writes ID3v2.3 tags including cover art.
package finisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bogem/id3v2"

	"jukebox/internal/httpx"
	"jukebox/internal/logging"
	"jukebox/internal/metadata"
	"jukebox/internal/services"
)

// Executor abstracts ffmpeg execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stderr string, err error)
}

// Option configures the finisher.
type Option func(*Finisher)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) Option {
	return func(f *Finisher) {
		if executor != nil {
			f.exec = executor
		}
	}
}

// Config carries the encoding parameters.
type Config struct {
	Binary         string
	Bitrate        string
	LoudnessTarget string
	MaxFileSize    int64
	Timeout        time.Duration
}

// Finisher converts source downloads into normalized, tagged MP3s.
type Finisher struct {
	cfg    Config
	http   *httpx.Client
	exec   Executor
	logger *slog.Logger
}

// New constructs a finisher. httpClient is used only for cover art and
// may be nil, in which case art embedding is skipped.
func New(cfg Config, httpClient *httpx.Client, logger *slog.Logger, opts ...Option) (*Finisher, error) {
	cfg.Binary = strings.TrimSpace(cfg.Binary)
	if cfg.Binary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "320k"
	}
	if cfg.LoudnessTarget == "" {
		cfg.LoudnessTarget = "I=-14:TP=-1.5:LRA=11"
	}
	f := &Finisher{
		cfg:    cfg,
		http:   httpClient,
		exec:   commandExecutor{},
		logger: logging.NewComponentLogger(logger, "finisher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Finish encodes srcPath into destPath and tags it from track. On any
// failure the partial output is removed.
func (f *Finisher) Finish(ctx context.Context, srcPath, destPath string, track metadata.Track) error {
	if err := f.encode(ctx, srcPath, destPath); err != nil {
		_ = os.Remove(destPath)
		return err
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return services.Wrap(services.ErrProcessingFailed, "finisher", "finish", "inspect encoded file", err)
	}
	if f.cfg.MaxFileSize > 0 && info.Size() > f.cfg.MaxFileSize {
		_ = os.Remove(destPath)
		return services.Wrap(services.ErrFileTooLarge, "finisher", "finish",
			fmt.Sprintf("encoded file is %d bytes, cap is %d", info.Size(), f.cfg.MaxFileSize), nil)
	}

	if err := f.tag(ctx, destPath, track); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	f.logger.InfoContext(ctx, "track finished",
		logging.String("track", track.DisplayName()),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

func (f *Finisher) encode(ctx context.Context, srcPath, destPath string) error {
	runCtx := ctx
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-i", srcPath,
		"-af", "loudnorm=" + f.cfg.LoudnessTarget,
		"-c:a", "libmp3lame",
		"-b:a", f.cfg.Bitrate,
		"-id3v2_version", "3",
		"-vn",
		destPath,
	}
	stderr, err := f.exec.Run(runCtx, f.cfg.Binary, args)
	if err != nil {
		if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "finisher", "encode",
				fmt.Sprintf("ffmpeg exceeded %s", f.cfg.Timeout), err)
		}
		detail := strings.TrimSpace(stderr)
		if len(detail) > 300 {
			detail = detail[len(detail)-300:]
		}
		if detail == "" {
			detail = "ffmpeg failed"
		}
		return services.Wrap(services.ErrProcessingFailed, "finisher", "encode", detail, err)
	}
	return nil
}

// tag writes ID3v2.3 frames. Cover art is best effort: a failed fetch
// leaves the file untagged with art but otherwise complete.
func (f *Finisher) tag(ctx context.Context, path string, track metadata.Track) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return services.Wrap(services.ErrProcessingFailed, "finisher", "tag", "open encoded file", err)
	}
	defer tag.Close()

	tag.SetVersion(3)
	tag.SetTitle(track.Title)
	tag.SetArtist(track.Artist)
	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}

	if art := f.coverArt(ctx, track.CoverURL); len(art) > 0 {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Picture:     art,
		})
	}

	if err := tag.Save(); err != nil {
		return services.Wrap(services.ErrProcessingFailed, "finisher", "tag", "save tags", err)
	}
	return nil
}

func (f *Finisher) coverArt(ctx context.Context, coverURL string) []byte {
	if f.http == nil || strings.TrimSpace(coverURL) == "" {
		return nil
	}
	art, err := f.http.FetchBytes(ctx, coverURL)
	if err != nil {
		f.logger.WarnContext(ctx, "cover art fetch failed, tagging without art",
			logging.String("url", coverURL),
			logging.Error(err),
		)
		return nil
	}
	return art
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("run %s: %w", filepath.Base(binary), err)
	}
	return stderr.String(), nil
}
