package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"binder/internal/config"
	"binder/internal/intake"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/preflight"
	"binder/internal/queue"
	"binder/internal/taxonomy"
	"binder/internal/workflow"
)

// Daemon coordinates the background processing services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	notifier notifications.Service

	logPath    string
	logHub     *logging.StreamHub
	logArchive *logging.EventArchive

	taxonomy *taxonomy.Loader
	intake   *intake.Monitor
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
	Dependencies []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	wf *workflow.Manager,
	logPath string,
	logHub *logging.StreamHub,
	logArchive *logging.EventArchive,
	notifier notifications.Service,
) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "binder.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		workflow:   wf,
		notifier:   notifier,
		logPath:    logPath,
		logHub:     logHub,
		logArchive: logArchive,
		taxonomy:   taxonomy.NewLoader(cfg.Taxonomy.SourcePath, logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.intake = intake.NewMonitor(cfg, store, logger, func() bool {
		return !d.running.Load()
	})

	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start launches the workflow manager, intake monitor, and API server, and
// acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another binder daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.teardown()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)

	if d.intake != nil {
		if err := d.intake.Start(d.ctx); err != nil {
			d.logger.Warn("intake monitor failed to start; relying on API submissions",
				logging.Error(err),
				logging.String(logging.FieldEventType, "intake_monitor_start_failed"),
			)
		}
	}
	d.startTaxonomyRefresh()

	d.logger.Info("binder daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	if d.intake != nil {
		d.intake.Stop()
	}
	d.workflow.Stop()
	d.api.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.cancel = nil
	d.running.Store(false)
	d.logger.Info("binder daemon stopped")
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.ctx = nil
	_ = d.lock.Unlock()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// startTaxonomyRefresh warms the taxonomy snapshot and keeps it fresh so
// review selections resolve against current attribute vocabularies.
func (d *Daemon) startTaxonomyRefresh() {
	interval := time.Duration(d.cfg.Taxonomy.RefreshMinutes) * time.Minute
	ctx := d.ctx

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if _, err := d.taxonomy.Ensure(ctx); err != nil {
			d.logger.Warn("taxonomy snapshot unavailable; selections fall back to builtin",
				logging.Error(err),
				logging.String(logging.FieldEventType, "taxonomy_load_failed"),
			)
		}
		if interval <= 0 {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.taxonomy.Load(ctx); err != nil {
					d.logger.Warn("taxonomy refresh failed; keeping previous snapshot",
						logging.Error(err),
						logging.String(logging.FieldEventType, "taxonomy_refresh_failed"),
					)
				}
			}
		}
	}()
}

// Taxonomy exposes the shared snapshot loader.
func (d *Daemon) Taxonomy() *taxonomy.Loader {
	return d.taxonomy
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// LogStream returns the in-memory log hub backing the logs API.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logHub
}

// LogArchive returns the on-disk event archive backing historical log reads.
func (d *Daemon) LogArchive() *logging.EventArchive {
	return d.logArchive
}

// Addr reports the address the API server is listening on, empty when the
// server is not running.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     summary,
		QueueDBPath:  filepath.Join(d.cfg.Paths.LogDir, "queue.db"),
		LockFilePath: d.lockPath,
		Dependencies: []preflight.Result{
			preflight.CheckVisionFromConfig(d.cfg),
			preflight.CheckCatalogFromConfig(d.cfg),
			preflight.CheckPublishingFromConfig(d.cfg),
		},
	}
}
