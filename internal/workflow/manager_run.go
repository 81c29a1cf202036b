package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"binder/internal/logging"
	"binder/internal/queue"
)

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	lanes := make([]*laneState, 0, len(m.laneOrder))
	workerCount := 0
	for _, kind := range m.laneOrder {
		lane := m.lanes[kind]
		if lane == nil || len(lane.stages) == 0 {
			continue
		}
		lanes = append(lanes, lane)
		workerCount += lane.workers
	}
	if len(lanes) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, lane := range lanes {
		lane.logger = m.laneLogger(lane)
	}
	m.wg.Add(workerCount)
	m.mu.Unlock()

	for _, lane := range lanes {
		for worker := 0; worker < lane.workers; worker++ {
			go m.runLane(runCtx, lane, worker)
		}
	}

	// External service checks run in the background so startup is not
	// held hostage by a slow endpoint. Failures are logged, not fatal.
	go func() {
		if err := m.runPreflightChecks(runCtx, m.logger); err != nil {
			m.logger.Warn("service preflight reported failures", logging.Error(err))
		}
	}()

	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runLane(ctx context.Context, lane *laneState, worker int) {
	defer m.wg.Done()
	if lane == nil {
		return
	}
	logger := lane.logger
	if logger == nil {
		logger = m.logger
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if lane.workers > 1 {
		logger = logger.With(logging.Int("worker", worker))
	}
	reclaim := lane.runReclaimer && worker == 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reclaim {
			if err := m.heartbeat.ReclaimStaleItems(ctx, logger, lane.processingStatuses); err != nil {
				logger.Warn("reclaim stale processing failed; stuck items may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
				)
			}
		}

		item, stg, err := m.claimNextForLane(ctx, lane)
		if err != nil {
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if item == nil {
			m.waitForItemOrShutdown(ctx)
			continue
		}

		if err := m.processItem(ctx, lane, logger, stg, item); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

// claimNextForLane atomically moves the oldest eligible item into its stage's
// processing status. The compare-and-set inside Claim keeps two workers from
// picking up the same scan.
func (m *Manager) claimNextForLane(ctx context.Context, lane *laneState) (*queue.Item, pipelineStage, error) {
	if lane == nil {
		return nil, pipelineStage{}, nil
	}
	for _, stg := range lane.stages {
		item, err := m.store.Claim(ctx, stg.startStatus, stg.processingStatus)
		if err != nil {
			return nil, pipelineStage{}, err
		}
		if item != nil {
			return item, stg, nil
		}
	}
	return nil, pipelineStage{}, nil
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to claim next queue item",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_claim_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Duration(m.cfg.Workflow.ErrorRetryInterval) * time.Second):
	}
}

func (m *Manager) waitForItemOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.pollInterval):
	}
}
