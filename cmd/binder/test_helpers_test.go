package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/identification/catalog"
	"binder/internal/queue"
	"binder/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
}

// setupCLITestEnv builds a temp config whose api_bind can never be
// dialed, so every command exercises the direct store fallback.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)

	return &cliTestEnv{cfg: cfg, store: store, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
staging_dir = %q
intake_dir = %q
archive_dir = %q
log_dir = %q
api_bind = %q

[vision]
api_key = %q

[catalog]
api_key = %q
base_url = %q
`,
		cfg.Paths.StagingDir,
		cfg.Paths.IntakeDir,
		cfg.Paths.ArchiveDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Vision.APIKey,
		cfg.Catalog.APIKey,
		cfg.Catalog.BaseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seedReviewItem parks a scan in review with two catalog candidates.
func seedReviewItem(t *testing.T, store *queue.Store, name string) *queue.Item {
	t.Helper()

	item := testsupport.NewScan(t, store, "/scans/"+strings.ToLower(name)+".jpg", "fp-"+strings.ToLower(name))
	item.ScanTitle = name
	item.Status = queue.StatusReview
	item.NeedsReview = true
	item.ReviewReason = "Multiple candidates matched"

	number := "54"
	setHint := "Ancient Origins"
	if err := cards.SetItemDetectedFields(item, &cards.DetectedCardFields{
		Name:    &name,
		Number:  &number,
		SetHint: &setHint,
	}); err != nil {
		t.Fatalf("set detected fields: %v", err)
	}
	if err := cards.SetItemCandidates(item, cards.CandidateSet{
		Candidates: []catalog.Candidate{
			{
				ID:            "xy7-54",
				Name:          name,
				Number:        "54",
				NumberDisplay: "54/98",
				SetName:       "Ancient Origins",
				SetCode:       "xy7",
				Rarity:        "Rare",
				PriceCents:    1250,
				Currency:      "USD",
			},
			{
				ID:            "xy7-55",
				Name:          name,
				Number:        "55",
				NumberDisplay: "55/98",
				SetName:       "Ancient Origins",
				SetCode:       "xy7",
				Rarity:        "Rare Holo",
				PriceCents:    4400,
				Currency:      "USD",
			},
		},
		Attempts: []cards.SearchAttempt{
			{Mode: "exact", Query: name + " 54", Results: 2, Elapsed: 120},
		},
	}); err != nil {
		t.Fatalf("set candidates: %v", err)
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("update item: %v", err)
	}
	return item
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
