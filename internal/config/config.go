package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir    string `toml:"cache_dir"`
	WorkDir     string `toml:"work_dir"`
	JournalPath string `toml:"journal_path"`
}

// HTTP contains configuration for the shared retrying HTTP client.
type HTTP struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
	MaxRedirects   int `toml:"max_redirects"`
	RetryAttempts  int `toml:"retry_attempts"`
	RetryBaseMS    int `toml:"retry_base_ms"`
	RetryMaxMS     int `toml:"retry_max_ms"`
}

// RateLimit contains per-identity admission settings.
type RateLimit struct {
	Requests      int `toml:"requests"`
	WindowSeconds int `toml:"window_seconds"`
}

// Spotify contains configuration for the Spotify Web API.
type Spotify struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
	TokenURL     string `toml:"token_url"`
}

// YouTube contains configuration for the YouTube Data API.
type YouTube struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Downloader contains configuration for the external audio source tool.
type Downloader struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Audio contains configuration for transcoding and tagging.
type Audio struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	Bitrate        string `toml:"bitrate"`
	LoudnessTarget string `toml:"loudness_target"`
	MaxFileSizeMB  int    `toml:"max_file_size_mb"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Validator contains the URL allow-list.
type Validator struct {
	SpotifyHosts []string `toml:"spotify_hosts"`
	YouTubeHosts []string `toml:"youtube_hosts"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jukebox.
//
// Configuration sections by subsystem:
//   - Paths: cache root, per-request work directory, request journal
//   - HTTP: shared client timeout, redirect cap, retry budget
//   - RateLimit: sliding-window admission settings
//   - Spotify / YouTube: metadata provider endpoints and credentials
//   - Downloader: external source-fetch tool (yt-dlp)
//   - Audio: ffmpeg transcode, loudness target, size cap
//   - Validator: allow-listed hosts per platform
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	HTTP       HTTP       `toml:"http"`
	RateLimit  RateLimit  `toml:"rate_limit"`
	Spotify    Spotify    `toml:"spotify"`
	YouTube    YouTube    `toml:"youtube"`
	Downloader Downloader `toml:"downloader"`
	Audio      Audio      `toml:"audio"`
	Validator  Validator  `toml:"validator"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jukebox/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and provider secrets overlaid from the
// environment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("jukebox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// applyEnvOverrides lets provider secrets come from the environment so they
// never have to live in the config file.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_ID")); v != "" {
		c.Spotify.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("SPOTIFY_CLIENT_SECRET")); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY")); v != "" {
		c.YouTube.APIKey = v
	}
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.Paths.WorkDir}
	if c.Paths.JournalPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.JournalPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// AllowedHosts returns the combined host allow-list across platforms.
func (c *Config) AllowedHosts() []string {
	hosts := make([]string, 0, len(c.Validator.SpotifyHosts)+len(c.Validator.YouTubeHosts))
	hosts = append(hosts, c.Validator.SpotifyHosts...)
	hosts = append(hosts, c.Validator.YouTubeHosts...)
	return hosts
}

// MaxFileSizeBytes converts the configured megabyte cap to bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.Audio.MaxFileSizeMB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
