package config

const (
	defaultCacheDir           = "~/.cache/jukebox/tracks"
	defaultWorkDir            = "~/.cache/jukebox/work"
	defaultJournalPath        = "~/.local/share/jukebox/journal.db"
	defaultHTTPTimeoutSeconds = 30
	defaultHTTPMaxRedirects   = 3
	defaultHTTPRetryAttempts  = 3
	defaultHTTPRetryBaseMS    = 500
	defaultHTTPRetryMaxMS     = 10000
	defaultRateLimitRequests  = 3
	defaultRateLimitWindow    = 60
	defaultSpotifyBaseURL     = "https://api.spotify.com/v1"
	defaultSpotifyTokenURL    = "https://accounts.spotify.com/api/token"
	defaultYouTubeBaseURL     = "https://www.googleapis.com/youtube/v3"
	defaultDownloaderBinary   = "yt-dlp"
	defaultDownloaderTimeout  = 120
	defaultFFmpegBinary       = "ffmpeg"
	defaultAudioBitrate       = "320k"
	defaultLoudnessTarget     = "I=-14:TP=-1.5:LRA=11"
	defaultMaxFileSizeMB      = 50
	defaultAudioTimeout       = 300
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:    defaultCacheDir,
			WorkDir:     defaultWorkDir,
			JournalPath: defaultJournalPath,
		},
		HTTP: HTTP{
			TimeoutSeconds: defaultHTTPTimeoutSeconds,
			MaxRedirects:   defaultHTTPMaxRedirects,
			RetryAttempts:  defaultHTTPRetryAttempts,
			RetryBaseMS:    defaultHTTPRetryBaseMS,
			RetryMaxMS:     defaultHTTPRetryMaxMS,
		},
		RateLimit: RateLimit{
			Requests:      defaultRateLimitRequests,
			WindowSeconds: defaultRateLimitWindow,
		},
		Spotify: Spotify{
			BaseURL:  defaultSpotifyBaseURL,
			TokenURL: defaultSpotifyTokenURL,
		},
		YouTube: YouTube{
			BaseURL: defaultYouTubeBaseURL,
		},
		Downloader: Downloader{
			Binary:         defaultDownloaderBinary,
			TimeoutSeconds: defaultDownloaderTimeout,
		},
		Audio: Audio{
			FFmpegBinary:   defaultFFmpegBinary,
			Bitrate:        defaultAudioBitrate,
			LoudnessTarget: defaultLoudnessTarget,
			MaxFileSizeMB:  defaultMaxFileSizeMB,
			TimeoutSeconds: defaultAudioTimeout,
		},
		Validator: Validator{
			SpotifyHosts: []string{"open.spotify.com"},
			YouTubeHosts: []string{
				"youtube.com",
				"www.youtube.com",
				"m.youtube.com",
				"music.youtube.com",
				"youtu.be",
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
