package fetcher_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jukebox/internal/fetcher"
	"jukebox/internal/metadata"
	"jukebox/internal/services"
)

type fakeExecutor struct {
	args   []string
	stderr string
	err    error
	onRun  func(destDir string)
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
	f.args = args
	if f.onRun != nil {
		// The output template's directory is where real runs write files.
		for i, arg := range args {
			if arg == "--output" && i+1 < len(args) {
				f.onRun(filepath.Dir(args[i+1]))
			}
		}
	}
	return f.stderr, f.err
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestByQueryBuildsSearchTarget(t *testing.T) {
	executor := &fakeExecutor{onRun: func(dir string) {
		if err := os.WriteFile(filepath.Join(dir, "source.mp3"), []byte("audio"), 0o644); err != nil {
			t.Fatalf("write source: %v", err)
		}
	}}
	client, err := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(executor))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	track := metadata.Track{Title: "Bohemian Rhapsody", Artist: "Queen", DurationSec: 354}
	path, err := client.ByQuery(context.Background(), track, t.TempDir())
	if err != nil {
		t.Fatalf("ByQuery: %v", err)
	}
	if filepath.Base(path) != "source.mp3" {
		t.Fatalf("path = %s", path)
	}

	target := executor.args[len(executor.args)-1]
	if target != "ytsearch1:Queen Bohemian Rhapsody audio" {
		t.Fatalf("search target = %q", target)
	}
	if filter := argValue(executor.args, "--match-filter"); filter != "duration>349 & duration<359" {
		t.Fatalf("match filter = %q", filter)
	}
	if argValue(executor.args, "--audio-format") != "mp3" {
		t.Fatal("expected mp3 extraction")
	}
}

func TestByQueryOmitsFilterForUnknownDuration(t *testing.T) {
	executor := &fakeExecutor{onRun: func(dir string) {
		os.WriteFile(filepath.Join(dir, "source.mp3"), []byte("audio"), 0o644)
	}}
	client, _ := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(executor))

	if _, err := client.ByQuery(context.Background(), metadata.Track{Title: "X"}, t.TempDir()); err != nil {
		t.Fatalf("ByQuery: %v", err)
	}
	if filter := argValue(executor.args, "--match-filter"); filter != "" {
		t.Fatalf("unexpected match filter %q", filter)
	}
}

func TestByURLPassesURLThrough(t *testing.T) {
	executor := &fakeExecutor{onRun: func(dir string) {
		os.WriteFile(filepath.Join(dir, "source.mp3"), []byte("audio"), 0o644)
	}}
	client, _ := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(executor))

	url := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if _, err := client.ByURL(context.Background(), url, t.TempDir()); err != nil {
		t.Fatalf("ByURL: %v", err)
	}
	if got := executor.args[len(executor.args)-1]; got != url {
		t.Fatalf("target = %q", got)
	}
	found := false
	for _, arg := range executor.args {
		if arg == "--no-playlist" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected --no-playlist")
	}
}

func TestCleanExitWithoutOutputIsNoResults(t *testing.T) {
	client, _ := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(&fakeExecutor{}))

	_, err := client.ByQuery(context.Background(), metadata.Track{Title: "Obscure"}, t.TempDir())
	if !errors.Is(err, services.ErrNoResults) {
		t.Fatalf("expected no-results error, got %v", err)
	}
}

func TestStderrClassification(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   error
	}{
		{"no results", "ERROR: ytsearch1: No video results", services.ErrNoResults},
		{"filter mismatch", "video did not match filter duration>100", services.ErrNoResults},
		{"private", "ERROR: Private video. Sign in if you've been granted access", services.ErrDownloadFailed},
		{"geo", "ERROR: The uploader has not made this video available in your country", services.ErrDownloadFailed},
		{"unavailable", "ERROR: Video unavailable", services.ErrDownloadFailed},
		{"unknown", "something strange happened", services.ErrDownloadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			executor := &fakeExecutor{stderr: tc.stderr, err: errors.New("exit status 1")}
			client, _ := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(executor))

			_, err := client.ByQuery(context.Background(), metadata.Track{Title: "X"}, t.TempDir())
			if !errors.Is(err, tc.want) {
				t.Fatalf("stderr %q classified as %v, want %v", tc.stderr, err, tc.want)
			}
		})
	}
}

func TestTimeoutSurfacesAsTimeout(t *testing.T) {
	slowRun := executorFunc(func(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	client, _ := fetcher.New("yt-dlp", 1, nil, fetcher.WithExecutor(slowRun))
	start := time.Now()
	_, err := client.ByQuery(context.Background(), metadata.Track{Title: "X"}, t.TempDir())
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("returned before the deadline: %v", elapsed)
	}
}

type executorFunc func(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error)

func (f executorFunc) Run(ctx context.Context, binary string, args []string, onStdout func(string)) (string, error) {
	return f(ctx, binary, args, onStdout)
}

func TestNewestFilePicksLatest(t *testing.T) {
	dir := t.TempDir()
	executor := &fakeExecutor{onRun: func(string) {
		os.WriteFile(filepath.Join(dir, "older.mp3"), []byte("a"), 0o644)
		older := time.Now().Add(-time.Hour)
		os.Chtimes(filepath.Join(dir, "older.mp3"), older, older)
		os.WriteFile(filepath.Join(dir, "source.mp3"), []byte("b"), 0o644)
	}}
	client, _ := fetcher.New("yt-dlp", 120, nil, fetcher.WithExecutor(executor))

	path, err := client.ByQuery(context.Background(), metadata.Track{Title: "X"}, dir)
	if err != nil {
		t.Fatalf("ByQuery: %v", err)
	}
	if !strings.HasSuffix(path, "source.mp3") {
		t.Fatalf("expected newest file, got %s", path)
	}
}
