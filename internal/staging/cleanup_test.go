package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"binder/internal/logging"
)

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldScans(t *testing.T) {
	tmpDir := t.TempDir()

	oldFile := filepath.Join(tmpDir, "old-scan.jpg")
	if err := os.WriteFile(oldFile, []byte("image"), 0o644); err != nil {
		t.Fatalf("create old file: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldFile, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	recentFile := filepath.Join(tmpDir, "recent-scan.jpg")
	if err := os.WriteFile(recentFile, []byte("image"), 0o644); err != nil {
		t.Fatalf("create recent file: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %d", len(result.Removed))
	}
	if result.Removed[0] != oldFile {
		t.Errorf("expected %s to be removed, got %s", oldFile, result.Removed[0])
	}

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("old scan should have been removed")
	}

	if _, err := os.Stat(recentFile); err != nil {
		t.Error("recent scan should still exist")
	}
}

func TestCleanStaleIgnoresDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	oldDir := filepath.Join(tmpDir, "old-dir")
	if err := os.Mkdir(oldDir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}
	oldTime := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(oldDir, oldTime, oldTime); err != nil {
		t.Fatalf("set old time: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for directories, got %d", len(result.Removed))
	}

	if _, err := os.Stat(oldDir); err != nil {
		t.Error("directory should not have been removed")
	}
}

func TestCleanOrphanedEmptyDir(t *testing.T) {
	for _, dir := range []string{"", "   "} {
		result := CleanOrphaned(context.Background(), dir, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanOrphanedRemovesUnreferencedScans(t *testing.T) {
	tmpDir := t.TempDir()

	keptFile := filepath.Join(tmpDir, "queued-scan.jpg")
	if err := os.WriteFile(keptFile, []byte("image"), 0o644); err != nil {
		t.Fatalf("create kept file: %v", err)
	}

	orphanFile := filepath.Join(tmpDir, "orphan-scan.jpg")
	if err := os.WriteFile(orphanFile, []byte("image"), 0o644); err != nil {
		t.Fatalf("create orphan file: %v", err)
	}

	keep := map[string]struct{}{
		keptFile: {},
	}

	result := CleanOrphaned(context.Background(), tmpDir, keep, logging.NewNop())

	if len(result.Removed) != 1 {
		t.Fatalf("expected 1 removed, got %d", len(result.Removed))
	}
	if result.Removed[0] != orphanFile {
		t.Errorf("expected %s to be removed, got %s", orphanFile, result.Removed[0])
	}

	if _, err := os.Stat(orphanFile); !os.IsNotExist(err) {
		t.Error("orphan scan should have been removed")
	}

	if _, err := os.Stat(keptFile); err != nil {
		t.Error("referenced scan should still exist")
	}
}

func TestCleanOrphanedIgnoresDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	subDir := filepath.Join(tmpDir, "nested")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	result := CleanOrphaned(context.Background(), tmpDir, map[string]struct{}{}, logging.NewNop())

	if len(result.Removed) != 0 {
		t.Errorf("expected no removals for directories, got %d: %v", len(result.Removed), result.Removed)
	}

	if _, err := os.Stat(subDir); err != nil {
		t.Error("directory should still exist")
	}
}

func TestListFilesInvalidPaths(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		files, err := ListFiles(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if files != nil {
			t.Errorf("expected nil for path %q, got %v", path, files)
		}
	}
}

func TestListFiles(t *testing.T) {
	tmpDir := t.TempDir()

	scan1 := filepath.Join(tmpDir, "scan-1.jpg")
	if err := os.WriteFile(scan1, []byte("12345"), 0o644); err != nil {
		t.Fatalf("create scan1: %v", err)
	}

	scan2 := filepath.Join(tmpDir, "scan-2.png")
	if err := os.WriteFile(scan2, []byte("image"), 0o644); err != nil {
		t.Fatalf("create scan2: %v", err)
	}

	subDir := filepath.Join(tmpDir, "not-a-file")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	files, err := ListFiles(tmpDir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}

	var foundScan1 bool
	for _, f := range files {
		if f.Name == "scan-1.jpg" {
			foundScan1 = true
			if f.Size != 5 {
				t.Errorf("scan-1 size = %d, want 5", f.Size)
			}
			if f.Path != scan1 {
				t.Errorf("Path = %q, want %q", f.Path, scan1)
			}
			if f.ModTime.IsZero() {
				t.Error("ModTime should not be zero")
			}
		}
	}
	if !foundScan1 {
		t.Error("did not find scan-1.jpg in results")
	}
}
