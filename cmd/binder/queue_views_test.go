package main

import (
	"testing"
	"time"

	"binder/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	cases := map[string]string{
		"pending":     "Pending",
		"identifying": "Identifying",
		"not_found":   "Not Found",
		"":            "",
	}
	for input, want := range cases {
		if got := formatStatusLabel(input); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2026-03-14T09:26:53Z"); got != "2026-03-14 09:26" {
		t.Fatalf("unexpected display time %q", got)
	}
	if got := formatDisplayTime("2026-03-14T09:26:53.123456789Z"); got != "2026-03-14 09:26" {
		t.Fatalf("unexpected nano display time %q", got)
	}
	if got := formatDisplayTime("not-a-time"); got != "not-a-time" {
		t.Fatalf("expected raw value passthrough, got %q", got)
	}
	if got := formatDisplayTime(""); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestFormatFingerprint(t *testing.T) {
	if got := formatFingerprint("abcdef0123456789"); got != "abcdef012345" {
		t.Fatalf("expected 12-char prefix, got %q", got)
	}
	if got := formatFingerprint("short"); got != "short" {
		t.Fatalf("expected short value unchanged, got %q", got)
	}
	if got := formatFingerprint(""); got != "-" {
		t.Fatalf("expected dash for empty fingerprint, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Minute, "42m"},
		{3 * time.Hour, "3h"},
		{49 * time.Hour, "2d"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.in); got != tc.want {
			t.Fatalf("formatDuration(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := formatCents(1250, "USD"); got != "12.50 USD" {
		t.Fatalf("unexpected price %q", got)
	}
	if got := formatCents(99, ""); got != "0.99 USD" {
		t.Fatalf("expected USD default, got %q", got)
	}
	if got := formatCents(0, "EUR"); got != "-" {
		t.Fatalf("expected dash for zero price, got %q", got)
	}
}

func TestQueueItemTitle(t *testing.T) {
	if got := queueItemTitle(api.QueueItem{ScanTitle: "Snorlax 54/98"}); got != "Snorlax 54/98" {
		t.Fatalf("expected scan title, got %q", got)
	}
	if got := queueItemTitle(api.QueueItem{SourcePath: "/scans/snorlax.jpg"}); got != "snorlax.jpg" {
		t.Fatalf("expected source basename, got %q", got)
	}
	if got := queueItemTitle(api.QueueItem{}); got != "Unknown" {
		t.Fatalf("expected Unknown fallback, got %q", got)
	}
}

func TestBuildQueueListRowsOrdering(t *testing.T) {
	items := []api.QueueItem{
		{ID: 1, ScanTitle: "Oldest", CreatedAt: "2026-03-14T08:00:00Z"},
		{ID: 3, ScanTitle: "Newest", CreatedAt: "2026-03-14T10:00:00Z"},
		{ID: 2, ScanTitle: "Middle", CreatedAt: "2026-03-14T09:00:00Z"},
	}

	rows := buildQueueListRows(items)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "Newest" || rows[1][1] != "Middle" || rows[2][1] != "Oldest" {
		t.Fatalf("unexpected ordering: %v", rows)
	}
}

func TestBuildQueueListRowsTieBreaksOnID(t *testing.T) {
	created := "2026-03-14T09:00:00Z"
	items := []api.QueueItem{
		{ID: 4, ScanTitle: "Four", CreatedAt: created},
		{ID: 9, ScanTitle: "Nine", CreatedAt: created},
	}

	rows := buildQueueListRows(items)
	if rows[0][0] != "9" || rows[1][0] != "4" {
		t.Fatalf("expected higher id first on equal timestamps, got %v", rows)
	}
}

func TestBuildQueueStatusRowsSorted(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"review":  2,
		"failed":  1,
		"pending": 4,
	})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Failed" || rows[1][0] != "Pending" || rows[2][0] != "Review" {
		t.Fatalf("expected alphabetical status order, got %v", rows)
	}
	if rows[1][1] != "4" {
		t.Fatalf("expected pending count 4, got %v", rows[1])
	}
}
