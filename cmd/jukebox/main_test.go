package main

import (
	"testing"
	"time"

	"jukebox/internal/journal"
)

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{int64(1.5 * 1024 * 1024 * 1024), "1.5 GiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.size); got != tc.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestHistoryTrackLabel(t *testing.T) {
	full := &journal.Request{TrackArtist: "Queen", TrackTitle: "Bohemian Rhapsody"}
	if got := historyTrackLabel(full); got != "Queen - Bohemian Rhapsody" {
		t.Fatalf("label = %q", got)
	}
	urlOnly := &journal.Request{URL: "https://youtu.be/x", CreatedAt: time.Now()}
	if got := historyTrackLabel(urlOnly); got != "https://youtu.be/x" {
		t.Fatalf("label = %q", got)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B"},
		[][]string{{"only-a"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if out == "" {
		t.Fatal("expected rendered table")
	}
}

func TestShortKey(t *testing.T) {
	if got := shortKey("abcdef"); got != "abcdef" {
		t.Fatalf("shortKey = %q", got)
	}
	long := "0123456789abcdef0123456789abcdef"
	if got := shortKey(long); got != "0123456789ab" {
		t.Fatalf("shortKey = %q", got)
	}
}
