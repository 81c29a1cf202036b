package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget names a directory whose files are pruned by age.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes files older than retentionDays from each target.
// Excluded names and non-matching files are left alone.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) {
	if retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, target := range targets {
		if target.Dir == "" {
			continue
		}
		entries, err := os.ReadDir(target.Dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if len(target.Exclude) > 0 {
				fullPath := filepath.Join(target.Dir, name)
				skip := false
				for _, excluded := range target.Exclude {
					if excluded == name || excluded == fullPath {
						skip = true
						break
					}
				}
				if skip {
					continue
				}
			}
			if target.Pattern != "" {
				matched, err := filepath.Match(target.Pattern, name)
				if err != nil || !matched {
					continue
				}
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			path := filepath.Join(target.Dir, name)
			if err := os.Remove(path); err != nil {
				if logger != nil {
					WarnWithContext(logger, "failed to prune old log", "log_retention_failed",
						String("path", path), Error(err))
				}
				continue
			}
			if logger != nil {
				logger.Info("log pruned",
					String("path", path),
					String("age", time.Since(info.ModTime()).Round(time.Hour).String()))
			}
		}
	}
}
