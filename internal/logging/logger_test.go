package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"binder/internal/config"
	"binder/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Vision.APIKey = "test-key"
	cfg.Catalog.BaseURL = "https://cards.example.com"
	cfg.Paths.LogDir = t.TempDir()

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("daemon starting")

	logPath := filepath.Join(cfg.Paths.LogDir, "binder.log")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "daemon starting") {
		t.Errorf("expected message in log file, got: %s", data)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("plain message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(data), ".go:") {
		t.Errorf("info output should not include caller, got: %s", data)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("debug message")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), ".go:") {
		t.Errorf("debug output should include caller, got: %s", data)
	}
}

func TestNewJSONLoggerEmitsStructuredLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("scan enqueued", String("scan_label", "binder-0042"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(string(data))
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("unmarshal log line %q: %v", line, err)
	}
	if payload["level"] != "info" {
		t.Errorf("level = %v, want info", payload["level"])
	}
	if payload["msg"] != "scan enqueued" {
		t.Errorf("msg = %v, want 'scan enqueued'", payload["msg"])
	}
	if payload["scan_label"] != "binder-0042" {
		t.Errorf("scan_label = %v, want binder-0042", payload["scan_label"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Error("expected ts key in JSON output")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "yaml", OutputPaths: []string{filepath.Join(t.TempDir(), "out.log")}})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"  WARN  ", slog.LevelWarn},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := services.WithItemID(context.Background(), 7)
	ctx = services.WithStage(ctx, "identifying")
	ctx = services.WithLane(ctx, "identification")
	ctx = services.WithRequestID(ctx, "req-123")

	logger := WithContext(ctx, base)
	logger.Info("stage started")

	output := buf.String()
	for _, want := range []string{
		`"item_id":7`,
		`"stage":"identifying"`,
		`"lane":"identification"`,
		`"correlation_id":"req-123"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestWithContextNilLoggerReturnsNop(t *testing.T) {
	logger := WithContext(context.Background(), nil)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	// Should not panic
	logger.Info("ignored")
}
