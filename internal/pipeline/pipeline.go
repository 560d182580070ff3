// Package pipeline orchestrates a music request from URL validation
// through download, normalization, and cache publication.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"jukebox/internal/cache"
	"jukebox/internal/journal"
	"jukebox/internal/logging"
	"jukebox/internal/metadata"
	"jukebox/internal/ratelimit"
	"jukebox/internal/services"
	"jukebox/internal/urlcheck"
)

// Validator screens raw URLs.
type Validator interface {
	Validate(ctx context.Context, raw string) (urlcheck.Parsed, error)
}

// Limiter admits or denies requests per identity.
type Limiter interface {
	Allow(identity string) ratelimit.Decision
}

// Resolver turns platform track IDs into track metadata.
type Resolver interface {
	Resolve(ctx context.Context, platform urlcheck.Platform, trackID string) (metadata.Track, error)
}

// Downloader fetches source audio into a working directory.
type Downloader interface {
	ByURL(ctx context.Context, videoURL, destDir string) (string, error)
	ByQuery(ctx context.Context, track metadata.Track, destDir string) (string, error)
}

// Processor converts a source download into the final tagged MP3.
type Processor interface {
	Finish(ctx context.Context, srcPath, destPath string, track metadata.Track) error
}

// Journal records request lifecycle events. All journal failures are
// logged and swallowed so history never blocks acquisition.
type Journal interface {
	Record(ctx context.Context, requestID, identity, url string) (*journal.Request, error)
	UpdateStatus(ctx context.Context, requestID string, status journal.Status) error
	SetTrack(ctx context.Context, requestID, platform, trackID, title, artist string) error
	MarkDone(ctx context.Context, requestID, filePath string, sizeBytes int64, fromCache bool) error
	MarkFailed(ctx context.Context, requestID, kind, message string) error
}

// Result is handed back for a completed request.
type Result struct {
	RequestID string
	Track     metadata.Track
	FilePath  string
	SizeBytes int64
	FromCache bool
}

// Config carries orchestrator settings.
type Config struct {
	WorkDir string
}

// Pipeline wires the acquisition stages together.
type Pipeline struct {
	cfg        Config
	validator  Validator
	limiter    Limiter
	cache      *cache.Cache
	resolver   Resolver
	downloader Downloader
	processor  Processor
	journal    Journal
	logger     *slog.Logger
}

// New assembles a pipeline. journal may be nil to disable history.
func New(cfg Config, validator Validator, limiter Limiter, store *cache.Cache, resolver Resolver, downloader Downloader, processor Processor, jrnl Journal, logger *slog.Logger) (*Pipeline, error) {
	if strings.TrimSpace(cfg.WorkDir) == "" {
		return nil, errors.New("pipeline: work directory required")
	}
	if validator == nil || limiter == nil || store == nil || resolver == nil || downloader == nil || processor == nil {
		return nil, errors.New("pipeline: missing stage dependency")
	}
	return &Pipeline{
		cfg:        cfg,
		validator:  validator,
		limiter:    limiter,
		cache:      store,
		resolver:   resolver,
		downloader: downloader,
		processor:  processor,
		journal:    jrnl,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Handle runs one request end to end. Every request gets a fresh ID so
// logs and journal rows correlate.
func (p *Pipeline) Handle(ctx context.Context, rawURL, identity string) (Result, error) {
	requestID := uuid.New().String()
	ctx = services.WithRequestID(ctx, requestID)
	logger := p.logger.With(logging.String(logging.FieldRequestID, requestID))

	p.record(ctx, logger, requestID, identity, rawURL)

	parsed, err := p.validator.Validate(ctx, rawURL)
	if err != nil {
		return Result{RequestID: requestID}, p.fail(ctx, logger, requestID, err)
	}
	ctx = services.WithPlatform(ctx, string(parsed.Platform))
	logger = logger.With(
		logging.String(logging.FieldPlatform, string(parsed.Platform)),
		logging.String(logging.FieldTrackID, parsed.TrackID),
	)

	if decision := p.limiter.Allow(identity); !decision.OK {
		err := services.NewRateLimited(decision.RetryAfter)
		return Result{RequestID: requestID}, p.fail(ctx, logger, requestID, err)
	}

	key := cache.Key(string(parsed.Platform), parsed.TrackID)
	logger = logger.With(logging.String(logging.FieldCacheKey, key))

	var workDir string
	entry, fromCache, err := p.cache.GetOrFill(ctx, key, func(ctx context.Context) (string, cache.Metadata, error) {
		dir, mkErr := os.MkdirTemp(p.cfg.WorkDir, "req-*")
		if mkErr != nil {
			return "", cache.Metadata{}, fmt.Errorf("pipeline: create working directory: %w", mkErr)
		}
		workDir = dir
		return p.fill(ctx, logger, requestID, parsed, dir)
	})
	// The working directory must outlive GetOrFill: the cache copies the
	// finished file out of it during publish.
	p.cleanupWork(ctx, logger, workDir, entry.Path)
	if err != nil {
		return Result{RequestID: requestID}, p.fail(ctx, logger, requestID, err)
	}

	result := Result{
		RequestID: requestID,
		Track: metadata.Track{
			Platform: urlcheck.Platform(entry.Meta.Platform),
			ID:       entry.Meta.TrackID,
			Title:    entry.Meta.Title,
			Artist:   entry.Meta.Artist,
		},
		FilePath:  entry.Path,
		SizeBytes: entry.Meta.SizeBytes,
		FromCache: fromCache,
	}
	if result.SizeBytes == 0 {
		if info, statErr := os.Stat(entry.Path); statErr == nil {
			result.SizeBytes = info.Size()
		}
	}

	if fromCache {
		p.journalSetTrack(ctx, logger, requestID, parsed, result.Track)
	}
	p.journalDone(ctx, logger, requestID, result)
	logger.InfoContext(ctx, "request completed",
		logging.String("track", result.Track.DisplayName()),
		logging.Bool("from_cache", fromCache),
		logging.Int64("size_bytes", result.SizeBytes),
	)
	return result, nil
}

// fill runs the miss path: resolve metadata, download source audio, and
// normalize it. The returned file lives in workDir; the caller owns the
// directory's cleanup.
func (p *Pipeline) fill(ctx context.Context, logger *slog.Logger, requestID string, parsed urlcheck.Parsed, workDir string) (string, cache.Metadata, error) {
	p.journalStatus(ctx, logger, requestID, journal.StatusResolving)
	ctx = services.WithStage(ctx, "resolve")

	track, err := p.resolver.Resolve(ctx, parsed.Platform, parsed.TrackID)
	if err != nil {
		return "", cache.Metadata{}, err
	}
	p.journalSetTrack(ctx, logger, requestID, parsed, track)
	logger.InfoContext(ctx, "metadata resolved", logging.String("track", track.DisplayName()))

	p.journalStatus(ctx, logger, requestID, journal.StatusDownloading)
	ctx = services.WithStage(ctx, "download")
	srcPath, err := p.download(ctx, logger, parsed, track, workDir)
	if err != nil {
		return "", cache.Metadata{}, err
	}

	p.journalStatus(ctx, logger, requestID, journal.StatusProcessing)
	ctx = services.WithStage(ctx, "process")
	finishedPath := filepath.Join(workDir, "finished.mp3")
	if err := p.processor.Finish(ctx, srcPath, finishedPath, track); err != nil {
		return "", cache.Metadata{}, err
	}

	meta := cache.Metadata{
		Platform: string(parsed.Platform),
		TrackID:  parsed.TrackID,
		Title:    track.Title,
		Artist:   track.Artist,
	}
	return finishedPath, meta, nil
}

// download prefers the direct URL for YouTube tracks and falls back to a
// search when the direct grab fails for a recoverable reason. Spotify has
// no downloadable stream, so it always goes through search.
func (p *Pipeline) download(ctx context.Context, logger *slog.Logger, parsed urlcheck.Parsed, track metadata.Track, workDir string) (string, error) {
	if parsed.Platform == urlcheck.PlatformYouTube {
		videoURL := "https://www.youtube.com/watch?v=" + parsed.TrackID
		path, err := p.downloader.ByURL(ctx, videoURL, workDir)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, services.ErrDownloadFailed) && !errors.Is(err, services.ErrNoResults) {
			return "", err
		}
		logger.WarnContext(ctx, "direct download failed, falling back to search", logging.Error(err))
	}
	return p.downloader.ByQuery(ctx, track, workDir)
}

// cleanupWork removes a per-request working directory. When the cache
// could not publish, the served file still lives inside the directory,
// so it is kept and a warning notes the leftover.
func (p *Pipeline) cleanupWork(ctx context.Context, logger *slog.Logger, workDir, served string) {
	if workDir == "" {
		return
	}
	if served != "" && strings.HasPrefix(served, workDir+string(os.PathSeparator)) {
		logger.WarnContext(ctx, "keeping working directory for uncached result",
			logging.String("path", served),
		)
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.WarnContext(ctx, "working directory cleanup failed", logging.Error(err))
	}
}

func (p *Pipeline) fail(ctx context.Context, logger *slog.Logger, requestID string, err error) error {
	kind := services.Kind(err)
	logger.ErrorContext(ctx, "request failed",
		logging.String("error_kind", kind),
		logging.Error(err),
	)
	if p.journal != nil {
		if jerr := p.journal.MarkFailed(ctx, requestID, kind, err.Error()); jerr != nil {
			logger.WarnContext(ctx, "journal update failed", logging.Error(jerr))
		}
	}
	return err
}

func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, requestID, identity, rawURL string) {
	if p.journal == nil {
		return
	}
	if _, err := p.journal.Record(ctx, requestID, identity, rawURL); err != nil {
		logger.WarnContext(ctx, "journal record failed", logging.Error(err))
	}
}

func (p *Pipeline) journalStatus(ctx context.Context, logger *slog.Logger, requestID string, status journal.Status) {
	if p.journal == nil {
		return
	}
	if err := p.journal.UpdateStatus(ctx, requestID, status); err != nil {
		logger.WarnContext(ctx, "journal update failed", logging.Error(err))
	}
}

func (p *Pipeline) journalSetTrack(ctx context.Context, logger *slog.Logger, requestID string, parsed urlcheck.Parsed, track metadata.Track) {
	if p.journal == nil {
		return
	}
	if err := p.journal.SetTrack(ctx, requestID, string(parsed.Platform), parsed.TrackID, track.Title, track.Artist); err != nil {
		logger.WarnContext(ctx, "journal update failed", logging.Error(err))
	}
}

func (p *Pipeline) journalDone(ctx context.Context, logger *slog.Logger, requestID string, result Result) {
	if p.journal == nil {
		return
	}
	if err := p.journal.MarkDone(ctx, requestID, result.FilePath, result.SizeBytes, result.FromCache); err != nil {
		logger.WarnContext(ctx, "journal update failed", logging.Error(err))
	}
}
