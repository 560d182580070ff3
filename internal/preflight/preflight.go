package preflight

import (
	"context"

	"jukebox/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every applicable check for the given config. Checks
// that depend on optional credentials report a failure with a hint
// rather than being skipped, so `jukebox config check` shows the full
// picture.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckBinary("yt-dlp", cfg.Downloader.Binary),
		CheckBinary("FFmpeg", cfg.Audio.FFmpegBinary),
		CheckSpotifyCredentials(cfg),
		CheckYouTubeCredentials(cfg),
		CheckJournal(ctx, cfg.Paths.JournalPath),
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
