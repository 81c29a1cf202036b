package identification

import (
	"context"
	"fmt"
	"strings"

	"binder/internal/cards"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
	"binder/internal/services"
)

// reviewReasonConfirm marks the routine post-identification pause. Every
// other reason string flags a problem the operator must untangle first.
const reviewReasonConfirm = "Awaiting candidate confirmation"

func (i *Identifier) handleDuplicateFingerprint(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	found, err := i.store.FindByFingerprint(ctx, item.SourceFingerprint)
	if err != nil {
		return services.Wrap(services.ErrTransient, "identification", "lookup fingerprint", "Failed to query existing scan fingerprint", err)
	}
	if found != nil && found.ID != item.ID {
		logger.Info(
			"duplicate scan fingerprint detected",
			logging.Int64("existing_item_id", found.ID),
			logging.String("fingerprint", item.SourceFingerprint),
		)
		i.scheduleReview(ctx, item, "Duplicate scan image")
	}
	return nil
}

// scheduleReview parks the scan in review with a problem reason. The
// operator resolves it by hand; nothing downstream runs until then.
func (i *Identifier) scheduleReview(ctx context.Context, item *queue.Item, message string) {
	logger := logging.WithContext(ctx, i.logger).With(logging.Int64(logging.FieldItemID, item.ID))
	logger.Warn(
		"flagging scan for manual review",
		logging.String("reason", message),
		logging.Alert("review"),
	)
	item.NeedsReview = true
	item.ReviewReason = message
	if strings.TrimSpace(item.ProgressStage) == "" || item.ProgressStage == "Identifying" {
		item.ProgressStage = "Needs review"
	}
	item.ProgressPercent = 100
	item.ProgressMessage = message
	item.ErrorMessage = message
	item.Status = queue.StatusReview
	i.notifyReview(ctx, item, message, 0)
}

// markReviewReady records a successful identification and hands the scan
// to the operator for candidate confirmation.
func (i *Identifier) markReviewReady(ctx context.Context, item *queue.Item, set cards.CandidateSet) {
	logger := logging.WithContext(ctx, i.logger)
	if label := identityLabel(cards.ItemIdentity(item)); label != "" {
		item.ScanTitle = label
	}
	item.NeedsReview = true
	item.ReviewReason = reviewReasonConfirm
	item.ErrorMessage = ""
	item.SetProgressComplete("Identified", fmt.Sprintf("Found %d candidates; awaiting confirmation", len(set.Candidates)))
	item.Status = queue.StatusReview
	logger.Info(
		"scan identified",
		logging.String("scan_title", item.ScanTitle),
		logging.Int("candidates", len(set.Candidates)),
		logging.Int("attempts", len(set.Attempts)),
		logging.Bool("unfiltered", set.Unfiltered),
		logging.String(logging.FieldDecisionType, "candidate_search"),
		logging.String("decision_result", "candidates_found"),
		logging.String("decision_reason", "awaiting_confirmation"),
	)
	i.notifyReview(ctx, item, "", len(set.Candidates))
}

// notifyReview publishes the review-ready event. A non-empty reason
// renders the needs-attention variant; otherwise the payload carries the
// candidate count for the routine confirmation message.
func (i *Identifier) notifyReview(ctx context.Context, item *queue.Item, reason string, candidates int) {
	if i.notifier == nil {
		return
	}
	logger := logging.WithContext(ctx, i.logger)
	label := strings.TrimSpace(item.ScanTitle)
	if label == "" {
		label = strings.TrimSpace(item.SourceFingerprint)
	}
	if label == "" {
		label = "Untitled Scan"
	}
	payload := notifications.Payload{"title": label}
	if reason != "" {
		payload["reason"] = reason
	} else {
		payload["candidates"] = candidates
	}
	if err := i.notifier.Publish(ctx, notifications.EventReviewReady, payload); err != nil {
		logger.Debug("review notification failed", logging.Error(err))
	}
}
