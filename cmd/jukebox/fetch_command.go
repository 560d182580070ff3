package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jukebox/internal/cache"
	"jukebox/internal/config"
	"jukebox/internal/fetcher"
	"jukebox/internal/finisher"
	"jukebox/internal/httpx"
	"jukebox/internal/journal"
	"jukebox/internal/metadata"
	"jukebox/internal/metadata/spotify"
	"jukebox/internal/metadata/youtube"
	"jukebox/internal/pipeline"
	"jukebox/internal/ratelimit"
	"jukebox/internal/services"
	"jukebox/internal/urlcheck"
)

const lookupTimeout = 5 * time.Second

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var identity string

	cmd := &cobra.Command{
		Use:   "fetch <url> [url...]",
		Short: "Download and normalize one or more track URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, store, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			var failed int
			for _, rawURL := range args {
				result, err := pipe.Handle(cmd.Context(), rawURL, identity)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAILED  %s\n        %s\n", rawURL, services.UserMessage(err))
					continue
				}
				source := "downloaded"
				if result.FromCache {
					source = "cached"
				}
				fmt.Fprintf(out, "OK      %s\n        %s (%s, %s)\n        %s\n",
					rawURL, result.Track.DisplayName(), formatBytes(result.SizeBytes), source, result.FilePath)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d requests failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "cli", "Identity used for rate limiting and history")
	return cmd
}

// buildPipeline assembles the full acquisition stack from config. The
// caller owns closing the returned journal store.
func buildPipeline(ctx *commandContext) (*pipeline.Pipeline, *journal.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, err
	}

	validator := urlcheck.New(cfg.Validator.SpotifyHosts, cfg.Validator.YouTubeHosts, lookupTimeout)

	httpClient := httpx.New(httpx.Config{
		Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRedirects:  cfg.HTTP.MaxRedirects,
		RetryAttempts: cfg.HTTP.RetryAttempts,
		RetryBase:     time.Duration(cfg.HTTP.RetryBaseMS) * time.Millisecond,
		RetryMax:      time.Duration(cfg.HTTP.RetryMaxMS) * time.Millisecond,
	}, validator, logger)

	limiter := ratelimit.New(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	fsStore, err := cache.NewFSStore(cfg.Paths.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	cacheStore := cache.New(fsStore, logger)

	registry, err := buildRegistry(cfg, httpClient)
	if err != nil {
		return nil, nil, err
	}

	downloader, err := fetcher.New(cfg.Downloader.Binary, cfg.Downloader.TimeoutSeconds, logger)
	if err != nil {
		return nil, nil, err
	}
	processor, err := finisher.New(finisher.Config{
		Binary:         cfg.Audio.FFmpegBinary,
		Bitrate:        cfg.Audio.Bitrate,
		LoudnessTarget: cfg.Audio.LoudnessTarget,
		MaxFileSize:    cfg.MaxFileSizeBytes(),
		Timeout:        time.Duration(cfg.Audio.TimeoutSeconds) * time.Second,
	}, httpClient, logger)
	if err != nil {
		return nil, nil, err
	}

	store, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		return nil, nil, err
	}

	pipe, err := pipeline.New(
		pipeline.Config{WorkDir: cfg.Paths.WorkDir},
		validator, limiter, cacheStore, registry, downloader, processor, store, logger,
	)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return pipe, store, nil
}

// buildRegistry registers a provider per platform with configured
// credentials. At least one platform must be usable.
func buildRegistry(cfg *config.Config, httpClient *httpx.Client) (*metadata.Registry, error) {
	registry := metadata.NewRegistry()
	registered := 0

	if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		client, err := spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.BaseURL, cfg.Spotify.TokenURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("configure spotify provider: %w", err)
		}
		registry.Register(urlcheck.PlatformSpotify, client)
		registered++
	}
	if cfg.YouTube.APIKey != "" {
		client, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("configure youtube provider: %w", err)
		}
		registry.Register(urlcheck.PlatformYouTube, client)
		registered++
	}
	if registered == 0 {
		return nil, fmt.Errorf("no metadata providers configured (set SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET or YOUTUBE_API_KEY)")
	}
	return registry, nil
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
