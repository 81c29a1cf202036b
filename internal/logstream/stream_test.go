package logstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"binder/internal/api"
	"binder/internal/logs"
	"binder/internal/logstream"
)

func TestStreamPrefersAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []api.LogEvent{{Level: "info", Message: "from api"}},
			Next:   7,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}

	var events []api.LogEvent
	printed, err := logstream.Stream(context.Background(), client, logstream.Options{Lines: 10}, func(evt api.LogEvent) {
		events = append(events, evt)
	}, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !printed || len(events) != 1 || events[0].Message != "from api" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestStreamFallsBackToLogFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}

	logPath := filepath.Join(t.TempDir(), "binder.log")
	if err := os.WriteFile(logPath, []byte("first\nsecond\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	var lines []string
	printed, err := logstream.Stream(context.Background(), client, logstream.Options{
		Lines:   1,
		LogPath: logPath,
	}, nil, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !printed || len(lines) != 1 || lines[0] != "second" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestStreamFiltersRequireAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}

	_, err = logstream.Stream(context.Background(), client, logstream.Options{
		Filters: logstream.Filters{Level: "warn"},
		LogPath: filepath.Join(t.TempDir(), "binder.log"),
	}, nil, nil)
	if !errors.Is(err, logstream.ErrFiltersRequireAPI) {
		t.Fatalf("expected ErrFiltersRequireAPI, got %v", err)
	}
}
