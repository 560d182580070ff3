package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"jukebox/internal/cache"
	"jukebox/internal/testsupport"
)

func writeSource(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finished.mp3")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func newCache(t *testing.T) (*cache.Cache, *cache.FSStore) {
	t.Helper()
	store, err := cache.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return cache.New(store, nil), store
}

func TestKeyIsStableAndPlatformScoped(t *testing.T) {
	a := cache.Key("spotify", "6rqhFgbbKwnb9MLmUQDhG6")
	b := cache.Key("spotify", "6rqhFgbbKwnb9MLmUQDhG6")
	if a != b {
		t.Fatalf("same track produced different keys: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("key should be sha-256 hex, got %q", a)
	}
	if cache.Key("youtube", "6rqhFgbbKwnb9MLmUQDhG6") == a {
		t.Fatal("same id on different platforms must not collide")
	}
}

func TestPublishAndGet(t *testing.T) {
	c, store := newCache(t)
	key := cache.Key("spotify", "track-1")

	if _, ok, err := c.Get(key); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	src := writeSource(t, "audio-bytes")
	meta, err := store.Publish(key, src, cache.Metadata{Platform: "spotify", TrackID: "track-1", Title: "Song", Artist: "Artist"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if meta.SizeBytes != int64(len("audio-bytes")) {
		t.Fatalf("size = %d, want %d", meta.SizeBytes, len("audio-bytes"))
	}
	if meta.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be stamped on publish")
	}

	entry, ok, err := c.Get(key)
	if err != nil || !ok {
		t.Fatalf("Get after publish: ok=%v err=%v", ok, err)
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		t.Fatalf("read cached payload: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("payload = %q", data)
	}
	if entry.Meta.Title != "Song" || entry.Meta.Artist != "Artist" {
		t.Fatalf("sidecar metadata lost: %+v", entry.Meta)
	}
}

func TestGetOrFillRunsFillOnceUnderConcurrency(t *testing.T) {
	c, _ := newCache(t)
	key := cache.Key("youtube", "dQw4w9WgXcQ")
	src := writeSource(t, "payload")

	var fills atomic.Int32
	fill := func(ctx context.Context) (string, cache.Metadata, error) {
		fills.Add(1)
		return src, cache.Metadata{Platform: "youtube", TrackID: "dQw4w9WgXcQ"}, nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	errs := make([]error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = c.GetOrFill(context.Background(), key, fill)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("waiter %d: %v", i, err)
		}
	}
	if got := fills.Load(); got != 1 {
		t.Fatalf("fill ran %d times, want 1", got)
	}
}

func TestGetOrFillHitSkipsFill(t *testing.T) {
	c, store := newCache(t)
	key := cache.Key("spotify", "track-2")
	if _, err := store.Publish(key, writeSource(t, "cached"), cache.Metadata{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	entry, fromCache, err := c.GetOrFill(context.Background(), key, func(ctx context.Context) (string, cache.Metadata, error) {
		t.Fatal("fill must not run on a hit")
		return "", cache.Metadata{}, nil
	})
	if err != nil {
		t.Fatalf("GetOrFill: %v", err)
	}
	if !fromCache {
		t.Fatal("expected a cache hit")
	}
	if entry.Path != store.Path(key) {
		t.Fatalf("entry path = %s, want %s", entry.Path, store.Path(key))
	}
}

func TestGetOrFillPropagatesFillError(t *testing.T) {
	c, _ := newCache(t)
	sentinel := errors.New("upstream broke")

	_, _, err := c.GetOrFill(context.Background(), cache.Key("spotify", "track-3"), func(ctx context.Context) (string, cache.Metadata, error) {
		return "", cache.Metadata{}, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected fill error, got %v", err)
	}

	// A failed fill leaves nothing behind; the next request retries.
	if _, ok, err := c.Get(cache.Key("spotify", "track-3")); err != nil || ok {
		t.Fatalf("failed fill should not create an entry: ok=%v err=%v", ok, err)
	}
}

func TestPublishFailureServesSourceFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	store, err := cache.NewFSStore(root)
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	c := cache.New(store, nil)
	key := cache.Key("spotify", "track-4")

	// Removing the cache root makes Publish fail after the fill succeeds.
	entry, fromCache, err := c.GetOrFill(context.Background(), key, func(ctx context.Context) (string, cache.Metadata, error) {
		if err := os.RemoveAll(root); err != nil {
			t.Fatalf("remove cache root: %v", err)
		}
		return writeSource(t, "survivor"), cache.Metadata{Title: "Song"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrFill: %v", err)
	}
	if fromCache {
		t.Fatal("fresh fill should not report a cache hit")
	}
	if _, statErr := os.Stat(entry.Path); statErr != nil {
		t.Fatalf("returned path must exist: %v", statErr)
	}
}

func TestRemoveAndList(t *testing.T) {
	c, store := newCache(t)
	keyA := cache.Key("spotify", "a")
	keyB := cache.Key("spotify", "b")
	if _, err := store.Publish(keyA, writeSource(t, "x"), cache.Metadata{}); err != nil {
		t.Fatalf("Publish %s: %v", keyA, err)
	}
	sized := filepath.Join(t.TempDir(), "big.mp3")
	testsupport.WriteFile(t, sized, 4096)
	if _, err := store.Publish(keyB, sized, cache.Metadata{}); err != nil {
		t.Fatalf("Publish %s: %v", keyB, err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	if err := store.Remove(keyA); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := c.Get(keyA); ok {
		t.Fatal("removed entry still resolves")
	}
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 || stats.TotalBytes != 4096 {
		t.Fatalf("stats = %+v", stats)
	}
}
