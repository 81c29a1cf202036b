package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"binder/internal/queue"
)

func writeScanImage(t *testing.T, dir, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write scan image: %v", err)
	}
	return path
}

func TestScanQueuesImage(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	image := writeScanImage(t, t.TempDir(), "snorlax-front.jpg", []byte("jpeg-bytes"))

	out, _, err := runCLI(t, []string{"scan", image}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "Queued scan as item #1 (snorlax-front.jpg)")

	item, err := env.store.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("lookup item: %v", err)
	}
	if item == nil {
		t.Fatal("expected queued item")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", item.Status)
	}
	if item.MimeType != "image/jpeg" {
		t.Fatalf("expected jpeg mime type, got %q", item.MimeType)
	}
	if item.SideHint != "front" {
		t.Fatalf("expected front side hint, got %q", item.SideHint)
	}
	if !strings.HasPrefix(item.StagedFile, env.cfg.Paths.StagingDir) {
		t.Fatalf("expected staged copy under %s, got %s", env.cfg.Paths.StagingDir, item.StagedFile)
	}
	if _, err := os.Stat(item.StagedFile); err != nil {
		t.Fatalf("staged copy missing: %v", err)
	}
}

func TestScanSkipsDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)

	image := writeScanImage(t, t.TempDir(), "snorlax-front.jpg", []byte("jpeg-bytes"))

	if _, _, err := runCLI(t, []string{"scan", image}, env.configPath); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	out, _, err := runCLI(t, []string{"scan", image}, env.configPath)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	requireContains(t, out, "Skipped snorlax-front.jpg: already queued as item 1 (status pending)")
}

func TestScanAllowDuplicate(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	image := writeScanImage(t, t.TempDir(), "snorlax-front.jpg", []byte("jpeg-bytes"))

	if _, _, err := runCLI(t, []string{"scan", image}, env.configPath); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	out, _, err := runCLI(t, []string{"scan", image, "--allow-duplicate"}, env.configPath)
	if err != nil {
		t.Fatalf("duplicate scan: %v", err)
	}
	requireContains(t, out, "Queued scan as item #2")

	second, err := env.store.GetByID(ctx, 2)
	if err != nil {
		t.Fatalf("lookup duplicate: %v", err)
	}
	if second == nil {
		t.Fatal("expected second queue item")
	}
}

func TestScanRejectsUnsupportedType(t *testing.T) {
	env := setupCLITestEnv(t)

	image := writeScanImage(t, t.TempDir(), "notes.txt", []byte("not an image"))

	_, _, err := runCLI(t, []string{"scan", image}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unsupported image type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestScanRejectsInvalidSide(t *testing.T) {
	env := setupCLITestEnv(t)

	image := writeScanImage(t, t.TempDir(), "snorlax.jpg", []byte("jpeg-bytes"))

	_, _, err := runCLI(t, []string{"scan", image, "--side", "sideways"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid side") {
		t.Fatalf("expected side validation error, got %v", err)
	}
}

func TestScanBatchSummary(t *testing.T) {
	env := setupCLITestEnv(t)

	dir := t.TempDir()
	first := writeScanImage(t, dir, "one.jpg", []byte("jpeg-one"))
	second := writeScanImage(t, dir, "two.jpg", []byte("jpeg-two"))

	out, _, err := runCLI(t, []string{"scan", first, second, "--batch", "box-42"}, env.configPath)
	if err != nil {
		t.Fatalf("batch scan: %v", err)
	}
	requireContains(t, out, "Queued scan as item #1 (one.jpg)")
	requireContains(t, out, "Queued scan as item #2 (two.jpg)")
	requireContains(t, out, "Batch box-42: 2 submitted, 0 skipped")
}

func TestScanJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	image := writeScanImage(t, t.TempDir(), "snorlax.jpg", []byte("jpeg-bytes"))

	out, _, err := runCLI(t, []string{"scan", image, "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("scan --json: %v", err)
	}

	var payload struct {
		BatchID   string `json:"batchId"`
		Submitted []struct {
			Path string `json:"path"`
			ID   int64  `json:"id"`
		} `json:"submitted"`
		Skipped []any `json:"skipped"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if payload.BatchID == "" {
		t.Fatal("expected generated batch id")
	}
	if len(payload.Submitted) != 1 || payload.Submitted[0].ID != 1 {
		t.Fatalf("expected one submitted item with id 1, got %+v", payload.Submitted)
	}
	if len(payload.Skipped) != 0 {
		t.Fatalf("expected no skipped entries, got %d", len(payload.Skipped))
	}
}
