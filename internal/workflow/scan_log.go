package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"binder/internal/config"
	"binder/internal/logging"
	"binder/internal/queue"
)

// ScanLogger manages dedicated log files for individual scans as they move
// through the processing lanes.
type ScanLogger struct {
	baseDir string
	hub     *logging.StreamHub
	cfg     *config.Config
}

// NewScanLogger creates a new scan logger.
func NewScanLogger(cfg *config.Config, hub *logging.StreamHub) *ScanLogger {
	dir := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		dir = filepath.Join(cfg.Paths.LogDir, "scans")
	}
	return &ScanLogger{
		baseDir: dir,
		hub:     hub,
		cfg:     cfg,
	}
}

// Ensure prepares the log directory and file path for an item.
func (s *ScanLogger) Ensure(item *queue.Item) (string, bool, error) {
	if item == nil {
		return "", false, fmt.Errorf("queue item is nil")
	}
	if strings.TrimSpace(s.baseDir) == "" {
		return "", false, fmt.Errorf("scan log directory not configured")
	}
	created := false
	if strings.TrimSpace(item.ScanLogPath) == "" {
		filename := s.filename(item)
		if filename == "" {
			filename = fmt.Sprintf("scan-%d.log", item.ID)
		}
		item.ScanLogPath = filepath.Join(s.baseDir, filename)
		created = true
	}
	if err := os.MkdirAll(filepath.Dir(item.ScanLogPath), 0o755); err != nil {
		return "", false, fmt.Errorf("ensure scan log directory: %w", err)
	}
	return item.ScanLogPath, created, nil
}

// CreateHandler builds a slog.Handler writing to the specified path.
func (s *ScanLogger) CreateHandler(path string) (slog.Handler, error) {
	level := "info"
	format := "json"
	if s.cfg != nil {
		if strings.TrimSpace(s.cfg.Logging.Level) != "" {
			level = s.cfg.Logging.Level
		}
		if strings.TrimSpace(s.cfg.Logging.Format) != "" {
			format = s.cfg.Logging.Format
		}
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{path},
		ErrorOutputPaths: []string{path},
		Development:      false,
		// Scan logs write to per-item files, but still publish to the daemon
		// stream so users can follow individual scans via the log API.
		Stream: s.hub,
	})
	if err != nil {
		return nil, err
	}
	return logger.Handler(), nil
}

func (s *ScanLogger) filename(item *queue.Item) string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	fingerprint := strings.TrimSpace(item.SourceFingerprint)
	if fingerprint == "" {
		fingerprint = fmt.Sprintf("scan-%d", item.ID)
	}
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	title := sanitizeSlug(item.ScanTitle)
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("%s-%s-%s.log", timestamp, fingerprint, title)
}

func sanitizeSlug(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	lastDash := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(unicode.ToLower(r))
			lastDash = false
		case unicode.IsDigit(r):
			builder.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(builder.String(), "-")
	if slug == "" {
		return ""
	}
	return slug
}
