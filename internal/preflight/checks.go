package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"jukebox/internal/config"
	"jukebox/internal/journal"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies that the configured binary can be found on PATH
// (or at an absolute location).
func CheckBinary(name, binary string) Result {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return Result{Name: name, Detail: "binary not configured"}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found in PATH", binary)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSpotifyCredentials verifies the client-credentials pair is set.
// Reachability is not probed here; a bad secret surfaces on first use.
func CheckSpotifyCredentials(cfg *config.Config) Result {
	const name = "Spotify credentials"
	if strings.TrimSpace(cfg.Spotify.ClientID) == "" || strings.TrimSpace(cfg.Spotify.ClientSecret) == "" {
		return Result{Name: name, Detail: "client id or secret missing (set SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckYouTubeCredentials verifies the Data API key is set.
func CheckYouTubeCredentials(cfg *config.Config) Result {
	const name = "YouTube API key"
	if strings.TrimSpace(cfg.YouTube.APIKey) == "" {
		return Result{Name: name, Detail: "api key missing (set YOUTUBE_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "configured"}
}

// CheckJournal verifies the journal database opens and answers queries.
func CheckJournal(ctx context.Context, path string) Result {
	const name = "Journal database"
	store, err := journal.Open(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	if err := store.Health(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}
