package taxonomy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"binder/internal/taxonomy"
)

const sampleSnapshotJSON = `{
  "groups": [
    {"id": "rarity", "name": "Rarity", "options": [{"id": "common", "label": "Common"}, {"id": "rare", "label": "Rare"}]},
    {"id": "finish", "name": "Finish", "options": [{"id": "normal", "label": "Normal"}]},
    {"id": "card-type", "name": "Card type", "options": [{"id": "not-applicable", "label": "Not applicable"}]},
    {"id": "energy", "name": "Energy", "options": [{"id": "not-applicable", "label": "Not applicable"}]},
    {"id": "language", "name": "Language", "options": [{"id": "english", "label": "English"}]},
    {"id": "condition", "name": "Condition", "options": [{"id": "near-mint", "label": "Near Mint"}]}
  ]
}`

func TestDefaultSnapshotCoversMandatoryGroups(t *testing.T) {
	snapshot, err := taxonomy.DefaultSnapshot()
	if err != nil {
		t.Fatalf("DefaultSnapshot returned error: %v", err)
	}
	for _, name := range taxonomy.MandatoryGroups {
		if _, ok := snapshot.Group(name); !ok {
			t.Fatalf("built-in snapshot missing group %q", name)
		}
	}
	if _, ok := snapshot.OptionByID("rarity", "ace-spec"); !ok {
		t.Fatal("built-in snapshot missing ace-spec rarity option")
	}
}

func TestLoaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	if err := os.WriteFile(path, []byte(sampleSnapshotJSON), 0o644); err != nil {
		t.Fatalf("write snapshot file: %v", err)
	}

	loader := taxonomy.NewLoader(path, nil)
	snapshot, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if snapshot.Source != path {
		t.Fatalf("expected source %q, got %q", path, snapshot.Source)
	}
	if snapshot.FetchedAt.IsZero() {
		t.Fatal("expected fetched timestamp")
	}
	if loader.Current() != snapshot {
		t.Fatal("expected Current to return the loaded snapshot")
	}
}

func TestLoaderFetchesRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleSnapshotJSON))
	}))
	t.Cleanup(server.Close)

	loader := taxonomy.NewLoader(server.URL, nil)
	snapshot, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if _, ok := snapshot.Group("Rarity"); !ok {
		t.Fatal("expected rarity group in remote snapshot")
	}
}

func TestLoaderKeepsCurrentOnFailedRefresh(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleSnapshotJSON))
	}))
	t.Cleanup(server.Close)

	loader := taxonomy.NewLoader(server.URL, nil)
	first, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("first Load returned error: %v", err)
	}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatal("expected refresh failure")
	}
	if loader.Current() != first {
		t.Fatal("expected failed refresh to keep the previous snapshot")
	}
}

func TestLoaderRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.json")
	payload := `{"groups": [], "vendor": "someshop"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write snapshot file: %v", err)
	}
	if _, err := taxonomy.NewLoader(path, nil).Load(context.Background()); err == nil {
		t.Fatal("expected unknown key to fail strict decode")
	}
}

func TestLoaderEnsureLoadsOnce(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(sampleSnapshotJSON))
	}))
	t.Cleanup(server.Close)

	loader := taxonomy.NewLoader(server.URL, nil)
	first, err := loader.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	second, err := loader.Ensure(context.Background())
	if err != nil {
		t.Fatalf("second Ensure returned error: %v", err)
	}
	if first != second {
		t.Fatal("expected Ensure to reuse the loaded snapshot")
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}
}
