package intake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"binder/internal/config"
	"binder/internal/fileutil"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
)

// Monitor polls the intake directory for dropped scan images and feeds
// them into the queue. Files are staged once their size stops changing,
// so half-uploaded images never enter the pipeline.
type Monitor struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service

	dir          string
	pollInterval time.Duration
	settle       time.Duration
	isPaused     func() bool
	now          func() time.Time

	mu      sync.Mutex
	running bool
	pending map[string]fileTrack
	handled map[string]string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type fileTrack struct {
	size        int64
	stableSince time.Time
}

// NewMonitor builds the intake monitor. Returns nil when the intake
// directory is not configured; the daemon then runs on API submissions
// alone.
func NewMonitor(cfg *config.Config, store *queue.Store, logger *slog.Logger, isPaused func() bool) *Monitor {
	if cfg == nil || store == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.IntakeDir)
	if dir == "" {
		return nil
	}

	poll := time.Duration(cfg.Workflow.IntakePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	settle := time.Duration(cfg.Workflow.IntakeSettleSeconds) * time.Second
	if settle < 0 {
		settle = 0
	}

	monitorLogger := logger
	if monitorLogger != nil {
		monitorLogger = monitorLogger.With(logging.String("component", "intake-monitor"))
	} else {
		monitorLogger = logging.NewNop()
	}

	return &Monitor{
		cfg:          cfg,
		store:        store,
		logger:       monitorLogger,
		notifier:     notifications.NewService(cfg),
		dir:          dir,
		pollInterval: poll,
		settle:       settle,
		isPaused:     isPaused,
		now:          time.Now,
		pending:      make(map[string]fileTrack),
		handled:      make(map[string]string),
	}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("intake monitor unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("intake monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}
	if m.isPaused != nil && m.isPaused() {
		return
	}
	if _, err := m.Sweep(ctx); err != nil {
		m.logger.Warn("intake sweep failed; will retry",
			logging.Error(err),
			logging.String(logging.FieldEventType, "intake_sweep_failed"),
			logging.String(logging.FieldErrorHint, "check intake directory path and permissions"),
		)
	}
}

// Sweep scans the intake directory once and enqueues every settled
// image. All images staged by one sweep share a batch id so they bin
// together at publication. Returns the queue ids of the scans enqueued.
func (m *Monitor) Sweep(ctx context.Context) ([]int64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	now := m.now()

	m.mu.Lock()
	present := make(map[string]struct{}, len(entries))
	var ready []string
	for _, entry := range entries {
		if entry.IsDir() || !isScanImage(entry.Name()) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		present[path] = struct{}{}
		if _, done := m.handled[path]; done {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		track, seen := m.pending[path]
		if !seen || track.size != info.Size() {
			m.pending[path] = fileTrack{size: info.Size(), stableSince: now}
			continue
		}
		if now.Sub(track.stableSince) < m.settle {
			continue
		}
		ready = append(ready, path)
	}
	for path := range m.pending {
		if _, ok := present[path]; !ok {
			delete(m.pending, path)
		}
	}
	for path := range m.handled {
		if _, ok := present[path]; !ok {
			delete(m.handled, path)
		}
	}
	m.mu.Unlock()

	if len(ready) == 0 {
		return nil, nil
	}
	sort.Strings(ready)

	batchID := uuid.NewString()
	queued := make([]int64, 0, len(ready))
	for _, path := range ready {
		m.mu.Lock()
		delete(m.pending, path)
		m.mu.Unlock()
		if id, ok := m.enqueue(ctx, path, batchID); ok {
			queued = append(queued, id)
		}
	}
	return queued, nil
}

// enqueue fingerprints a settled file, stages it, and records the scan.
// A failure leaves the file in intake for the next sweep.
func (m *Monitor) enqueue(ctx context.Context, path, batchID string) (int64, bool) {
	logger := logging.WithContext(ctx, m.logger).With(logging.String("source_file", path))

	fingerprint, err := fileutil.FingerprintFile(path)
	if err != nil {
		logger.Warn("failed to fingerprint scan image",
			logging.Error(err),
			logging.String(logging.FieldEventType, "intake_fingerprint_failed"),
		)
		return 0, false
	}

	existing, err := m.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		logger.Warn("fingerprint lookup failed", logging.Error(err))
		return 0, false
	}
	if existing != nil && existing.IsInWorkflow() {
		logger.Debug("scan already in workflow, leaving file in intake",
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String("fingerprint", fingerprint),
		)
		m.mu.Lock()
		m.handled[path] = fingerprint
		m.mu.Unlock()
		return 0, false
	}

	item, err := m.store.NewScan(ctx, path, fingerprint)
	if err != nil {
		logger.Warn("failed to enqueue scan", logging.Error(err))
		return 0, false
	}

	staged := m.stagingTarget(path, fingerprint)
	if err := fileutil.MoveFile(path, staged); err != nil {
		logger.Warn("failed to stage scan image; processing from intake",
			logging.Error(err),
			logging.String("staged_file", staged),
		)
		m.mu.Lock()
		m.handled[path] = fingerprint
		m.mu.Unlock()
	} else {
		item.StagedFile = staged
	}

	item.BatchID = batchID
	item.MimeType = mimeTypeFor(path)
	item.SideHint = sideHintFor(path)
	if err := m.store.Update(ctx, item); err != nil {
		logger.Warn("failed to persist intake metadata", logging.Error(err))
	}

	logger.Info("scan detected",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("fingerprint", fingerprint),
		logging.String("batch_id", batchID),
		logging.String("mime_type", item.MimeType),
		logging.String("side_hint", item.SideHint),
		logging.String(logging.FieldEventType, "scan_detected"),
	)
	m.notifyDetected(ctx, path)
	return item.ID, true
}

// stagingTarget keeps the original file name unless it would collide
// with an earlier staged scan.
func (m *Monitor) stagingTarget(path, fingerprint string) string {
	base := filepath.Base(path)
	target := filepath.Join(m.cfg.Paths.StagingDir, base)
	if _, err := os.Stat(target); err == nil && len(fingerprint) >= 12 {
		target = filepath.Join(m.cfg.Paths.StagingDir, fingerprint[:12]+"-"+base)
	}
	return target
}

func (m *Monitor) notifyDetected(ctx context.Context, path string) {
	if m.notifier == nil {
		return
	}
	payload := notifications.Payload{"title": filepath.Base(path)}
	if err := m.notifier.Publish(ctx, notifications.EventScanDetected, payload); err != nil {
		m.logger.Debug("scan detected notification failed", logging.Error(err))
	}
}

func isScanImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp":
		return true
	default:
		return false
	}
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

// sideHintFor reads a trailing front/back token from the file name, the
// convention batch capture rigs use ("pikachu-front.jpg").
func sideHintFor(path string) string {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	fields := strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	if len(fields) == 0 {
		return ""
	}
	switch fields[len(fields)-1] {
	case "front":
		return "front"
	case "back":
		return "back"
	default:
		return ""
	}
}
