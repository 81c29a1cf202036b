package testsupport

import (
	"context"
	"testing"

	"binder/internal/config"
	"binder/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewScan creates a new scan item for tests using the provided store.
func NewScan(t testing.TB, store *queue.Store, sourcePath, fingerprint string) *queue.Item {
	t.Helper()

	item, err := store.NewScan(context.Background(), sourcePath, fingerprint)
	if err != nil {
		t.Fatalf("store.NewScan: %v", err)
	}
	return item
}
