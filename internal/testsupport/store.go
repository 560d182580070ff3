package testsupport

import (
	"context"
	"testing"

	"jukebox/internal/config"
	"jukebox/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg.Paths.JournalPath)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustRecord inserts a journal row for tests using the provided store.
func MustRecord(t testing.TB, store *journal.Store, requestID, identity, url string) *journal.Request {
	t.Helper()

	req, err := store.Record(context.Background(), requestID, identity, url)
	if err != nil {
		t.Fatalf("store.Record: %v", err)
	}
	return req
}
