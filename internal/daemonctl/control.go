package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"binder/internal/api"
	"binder/internal/apiclient"
	"binder/internal/config"
	"binder/internal/preflight"
	"binder/internal/queue"
)

// Snapshot aggregates daemon state for status output. Reachable reports
// whether the daemon API answered; when it did not, the remaining fields
// are reconstructed from the lock file, the pid file, and the queue
// database directly.
type Snapshot struct {
	Status    api.DaemonStatus
	Reachable bool
}

// ProcessInfo reports whether a daemon holds the lock for this
// configuration, and its pid when the pid file is readable. A held lock
// is the authoritative running signal; the pid file is advisory.
func ProcessInfo(cfg *config.Config) (bool, int, error) {
	if cfg == nil {
		return false, 0, errors.New("configuration not available")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "binder.lock")
	lock := flock.New(lockPath)
	acquired, err := lock.TryLock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("probe daemon lock %q: %w", lockPath, err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, 0, nil
	}
	return true, readPIDFile(filepath.Join(cfg.Paths.LogDir, "binder.pid")), nil
}

func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// BuildStatusSnapshot collects daemon status over the API, falling back
// to direct queue and config inspection when the daemon is unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config, client *apiclient.Client) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	if client != nil {
		if status, err := client.Status(ctx); err == nil && status != nil {
			return &Snapshot{Status: *status, Reachable: true}, nil
		}
	}

	running, pid, err := ProcessInfo(cfg)
	if err != nil {
		running, pid = false, 0
	}
	snapshot := &Snapshot{
		Status: api.DaemonStatus{
			Running:      running,
			PID:          pid,
			QueueDBPath:  filepath.Join(cfg.Paths.LogDir, "queue.db"),
			LockFilePath: filepath.Join(cfg.Paths.LogDir, "binder.lock"),
			Dependencies: offlineDependencies(cfg),
		},
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if store, openErr := queue.Open(cfg); openErr == nil {
		stats, statsErr := store.Stats(queryCtx)
		_ = store.Close()
		if statsErr == nil {
			snapshot.Status.Workflow.QueueStats = api.MergeQueueStats(stats)
		}
	}
	return snapshot, nil
}

func offlineDependencies(cfg *config.Config) []api.DependencyStatus {
	results := []preflight.Result{
		preflight.CheckVisionFromConfig(cfg),
		preflight.CheckCatalogFromConfig(cfg),
		preflight.CheckPublishingFromConfig(cfg),
	}
	return api.FromPreflightResults(results)
}

// DependencySummary condenses dependency readiness into one status line.
type DependencySummary struct {
	Total     int
	Available int
	Severity  string
	Detail    string
}

// SummarizeDependencies computes aggregate dependency readiness.
func SummarizeDependencies(deps []api.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	available := 0
	for _, dep := range deps {
		if dep.Available {
			available++
		}
	}
	missing := len(deps) - available
	severity := "ok"
	detail := fmt.Sprintf("%d/%d available", available, len(deps))
	if missing > 0 {
		severity = "warn"
		detail = fmt.Sprintf("%d/%d available (%d unavailable)", available, len(deps), missing)
	}
	return DependencySummary{
		Total:     len(deps),
		Available: available,
		Severity:  severity,
		Detail:    detail,
	}
}
