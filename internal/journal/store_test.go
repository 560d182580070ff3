package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"jukebox/internal/journal"
	"jukebox/internal/testsupport"
)

func newStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRecordAndGet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	req, err := store.Record(ctx, "req-1", "user-a", "https://open.spotify.com/track/6rqhFgbbKwnb9MLmUQDhG6")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if req.Status != journal.StatusReceived {
		t.Fatalf("status = %s, want received", req.Status)
	}
	if req.CreatedAt.IsZero() || req.UpdatedAt.IsZero() {
		t.Fatal("timestamps should be set")
	}
	if req.CompletedAt != nil {
		t.Fatal("new request must not have a completion time")
	}

	fetched, err := store.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Identity != "user-a" || fetched.URL != req.URL {
		t.Fatalf("fetched = %+v", fetched)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, "req-1", "user-a", "https://youtu.be/dQw4w9WgXcQ"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	for _, status := range []journal.Status{journal.StatusResolving, journal.StatusDownloading, journal.StatusProcessing} {
		if err := store.UpdateStatus(ctx, "req-1", status); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", status, err)
		}
	}
	if err := store.SetTrack(ctx, "req-1", "youtube", "dQw4w9WgXcQ", "Never Gonna Give You Up", "Rick Astley"); err != nil {
		t.Fatalf("SetTrack: %v", err)
	}
	if err := store.MarkDone(ctx, "req-1", "/cache/abc.mp3", 4096, false); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	req, err := store.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if req.Status != journal.StatusCompleted || !req.Status.Terminal() {
		t.Fatalf("status = %s", req.Status)
	}
	if req.TrackTitle != "Never Gonna Give You Up" || req.TrackArtist != "Rick Astley" {
		t.Fatalf("track fields = %q / %q", req.TrackTitle, req.TrackArtist)
	}
	if req.FilePath != "/cache/abc.mp3" || req.SizeBytes != 4096 || req.FromCache {
		t.Fatalf("completion fields = %+v", req)
	}
	if req.CompletedAt == nil {
		t.Fatal("completed request needs a completion time")
	}
}

func TestMarkFailedStoresClassification(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := store.Record(ctx, "req-1", "user-a", "https://example.com"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.MarkFailed(ctx, "req-1", "no_results", "no matching source found"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	req, err := store.Get(ctx, "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if req.Status != journal.StatusFailed || req.ErrorKind != "no_results" {
		t.Fatalf("failure fields = %+v", req)
	}
	if req.ErrorMessage != "no matching source found" {
		t.Fatalf("error message = %q", req.ErrorMessage)
	}
}

func TestUpdateUnknownRequest(t *testing.T) {
	store := newStore(t)

	err := store.UpdateStatus(context.Background(), "missing", journal.StatusResolving)
	if !errors.Is(err, journal.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		testsupport.MustRecord(t, store, id, "user-a", "https://example.com/"+id)
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].RequestID != "req-3" || recent[1].RequestID != "req-2" {
		t.Fatalf("order = %s, %s", recent[0].RequestID, recent[1].RequestID)
	}
}

func TestStats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seed := []struct {
		id        string
		done      bool
		failed    bool
		fromCache bool
	}{
		{id: "req-1", done: true},
		{id: "req-2", done: true, fromCache: true},
		{id: "req-3", failed: true},
		{id: "req-4"},
	}
	for _, row := range seed {
		testsupport.MustRecord(t, store, row.id, "user-a", "https://example.com")
		switch {
		case row.done:
			if err := store.MarkDone(ctx, row.id, "/f.mp3", 1, row.fromCache); err != nil {
				t.Fatalf("MarkDone: %v", err)
			}
		case row.failed:
			if err := store.MarkFailed(ctx, row.id, "timeout", "gave up"); err != nil {
				t.Fatalf("MarkFailed: %v", err)
			}
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := journal.Stats{Total: 4, Completed: 2, Failed: 1, CacheHits: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")

	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), "req-1", "user-a", "https://example.com"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "req-1"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if err := reopened.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}
