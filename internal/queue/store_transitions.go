package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// rollbackCase renders a CASE expression mapping each processing status back
// to the start of its stage, with the matching argument list.
func rollbackCase() (string, []any) {
	var b strings.Builder
	b.WriteString("CASE status")
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	for _, tr := range stageRollbackTransitions {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, tr.from, tr.to)
	}
	b.WriteString(" ELSE status END")
	return b.String(), args
}

func rollbackSources(filter []Status) []Status {
	if len(filter) == 0 {
		sources := make([]Status, 0, len(stageRollbackTransitions))
		for _, tr := range stageRollbackTransitions {
			sources = append(sources, tr.from)
		}
		return sources
	}
	var sources []Status
	for _, status := range filter {
		if IsProcessingStatus(status) {
			sources = append(sources, status)
		}
	}
	return sources
}

// ResetStuckProcessing resets items in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseSQL, caseArgs := rollbackCase()
	sources := rollbackSources(nil)

	args := make([]any, 0, len(caseArgs)+1+len(sources))
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range sources {
		args = append(args, status)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = `+caseSQL+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(sources))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight item.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns items stuck in processing back to the start
// of their current stage when heartbeats expire. When statuses are provided
// only those processing states are considered.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	caseSQL, caseArgs := rollbackCase()
	sources := rollbackSources(statuses)
	if len(sources) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(caseArgs)+2+len(sources))
	args = append(args, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, status := range sources {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = `+caseSQL+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(sources))+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	return res.RowsAffected()
}

// StopItems marks non-terminal items failed with the user-stop reason so
// they can be distinguished from genuine failures and retried later.
func (s *Store) StopItems(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+5)
	args = append(args,
		UserStopReason,
		UserStopReason,
		UserStopReason,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusCompleted, StatusFailed)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
        SET status = '`+string(StatusFailed)+`', error_message = ?, review_reason = ?, needs_review = 1,
            progress_stage = 'Stopped', progress_percent = 100, progress_message = ?,
            last_heartbeat = NULL, updated_at = ?
        WHERE id IN (`+placeholders+`) AND status NOT IN (?, ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("stop items: %w", err)
	}
	return res.RowsAffected()
}

// ActiveStagedFiles returns the staged image paths referenced by any queue
// row. Staging cleanup keeps these and removes the rest; failed scans stay
// in the set because retry re-reads their staged image.
func (s *Store) ActiveStagedFiles(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT staged_file FROM queue_items
        WHERE staged_file IS NOT NULL AND staged_file != ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active staged files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var staged string
		if err := rows.Scan(&staged); err != nil {
			return nil, fmt.Errorf("scan staged file: %w", err)
		}
		out[staged] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staged files: %w", err)
	}
	return out, nil
}

// RetryFailed moves failed items back to the start of their lane. Scans
// that already carry a confirmed selection return to confirmed so publishing
// retries without discarding review work; everything else returns to pending
// for a fresh identification pass.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	const retryCase = `CASE WHEN selected_json IS NOT NULL THEN ? ELSE ? END`
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items
            SET status = `+retryCase+`, progress_stage = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, updated_at = ?
            WHERE status = ?`,
			StatusConfirmed,
			StatusPending,
			time.Now().UTC().Format(time.RFC3339Nano),
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed items: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StatusConfirmed, StatusPending, time.Now().UTC().Format(time.RFC3339Nano))
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE queue_items
        SET status = ` + retryCase + `, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected items: %w", err)
	}
	return res.RowsAffected()
}
