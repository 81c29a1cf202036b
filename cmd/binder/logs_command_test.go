package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"binder/internal/api"
)

func TestFormatAPILogEvent(t *testing.T) {
	evt := api.LogEvent{
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Level:     "info",
		Message:   "Searching catalog",
		Component: "identifier",
		Stage:     "identifying",
		ItemID:    7,
		Details: []api.DetailField{
			{Label: "Query", Value: "Snorlax 54"},
			{Label: "Results", Value: "2"},
		},
	}
	got := formatAPILogEvent(evt)
	want := "2026-03-14 09:26:53 INFO [identifier] Item #7 (identifying) – Searching catalog\n    - Query: Snorlax 54\n    - Results: 2"
	if got != want {
		t.Fatalf("formatAPILogEvent mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatAPILogEventDefaultsLevel(t *testing.T) {
	evt := api.LogEvent{
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Message:   "Daemon started",
	}
	got := formatAPILogEvent(evt)
	if !strings.Contains(got, " INFO") {
		t.Fatalf("expected INFO default, got %q", got)
	}
	if !strings.HasSuffix(got, "Daemon started") {
		t.Fatalf("expected message suffix, got %q", got)
	}
}

func TestComposeSubject(t *testing.T) {
	if got := composeSubject(7, "identifying"); got != "Item #7 (identifying)" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := composeSubject(7, ""); got != "Item #7" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := composeSubject(0, "publishing"); got != "publishing" {
		t.Fatalf("unexpected subject %q", got)
	}
	if got := composeSubject(0, ""); got != "" {
		t.Fatalf("expected empty subject, got %q", got)
	}
}

func TestLogsTailsFileWhenAPIDown(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := filepath.Join(env.cfg.Paths.LogDir, "binder.log")
	content := "first line\nsecond line\nthird line\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	stdout, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	requireContains(t, stdout, "second line")
	requireContains(t, stdout, "third line")
	if strings.Contains(stdout, "first line") {
		t.Fatalf("expected only the last two lines, got %q", stdout)
	}
}

func TestLogsNoEntries(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs failed: %v", err)
	}
	requireContains(t, stdout, "No log entries available")
}

func TestLogsFiltersRequireAPI(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"logs", "--component", "identifier"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "log filters need the daemon API") {
		t.Fatalf("expected filter error, got %v", err)
	}
}

func TestTestNotifyNotConfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify failed: %v", err)
	}
	requireContains(t, stdout, "Notifications are not configured")
}
