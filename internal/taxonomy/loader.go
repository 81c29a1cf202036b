package taxonomy

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"binder/internal/logging"
)

//go:embed default_snapshot.json
var defaultSnapshotJSON []byte

const fetchTimeout = 15 * time.Second

// Loader fetches vocabulary snapshots from an HTTP endpoint, a local JSON
// file, or the built-in snapshot when no source is configured. The
// current snapshot swaps atomically, so in-flight scans keep the value
// they started with while refreshes land between scans.
type Loader struct {
	source     string
	httpClient *http.Client
	logger     *slog.Logger
	current    atomic.Pointer[Snapshot]
}

// NewLoader builds a loader for the configured source. An empty source
// selects the built-in snapshot.
func NewLoader(source string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loader{
		source:     strings.TrimSpace(source),
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// Source reports where snapshots come from.
func (l *Loader) Source() string {
	if l.source == "" {
		return "builtin"
	}
	return l.source
}

// Current returns the most recently loaded snapshot, or nil before the
// first Load.
func (l *Loader) Current() *Snapshot {
	if l == nil {
		return nil
	}
	return l.current.Load()
}

// Ensure returns the current snapshot, loading one first if needed.
func (l *Loader) Ensure(ctx context.Context) (*Snapshot, error) {
	if snapshot := l.Current(); snapshot != nil {
		return snapshot, nil
	}
	return l.Load(ctx)
}

// Load fetches, validates, and installs a fresh snapshot. A failed load
// leaves the previous snapshot in place.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	snapshot, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	snapshot.Source = l.Source()
	snapshot.FetchedAt = time.Now().UTC()
	l.current.Store(snapshot)
	l.logger.Info("taxonomy snapshot loaded",
		logging.String("source", snapshot.Source),
		logging.Int("groups", len(snapshot.Groups)))
	return snapshot, nil
}

func (l *Loader) fetch(ctx context.Context) (*Snapshot, error) {
	switch {
	case l.source == "":
		return DecodeSnapshot(bytes.NewReader(defaultSnapshotJSON))
	case strings.HasPrefix(l.source, "http://"), strings.HasPrefix(l.source, "https://"):
		return l.fetchRemote(ctx)
	default:
		file, err := os.Open(l.source)
		if err != nil {
			return nil, fmt.Errorf("open taxonomy source: %w", err)
		}
		defer file.Close()
		return DecodeSnapshot(file)
	}
}

func (l *Loader) fetchRemote(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.source, nil)
	if err != nil {
		return nil, fmt.Errorf("build taxonomy request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch taxonomy snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("taxonomy source returned %d", resp.StatusCode)
	}
	return DecodeSnapshot(resp.Body)
}

// DefaultSnapshot returns the built-in vocabulary snapshot.
func DefaultSnapshot() (*Snapshot, error) {
	snapshot, err := DecodeSnapshot(bytes.NewReader(defaultSnapshotJSON))
	if err != nil {
		return nil, err
	}
	snapshot.Source = "builtin"
	snapshot.FetchedAt = time.Now().UTC()
	return snapshot, nil
}
