package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/fileutil"
	"binder/internal/identification"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/stageexec"
)

type SubmitScansRequest struct {
	Config *config.Config
	Paths  []string
	// Side forces the front/back hint for every image; empty falls back
	// to the filename suffix convention.
	Side           string
	BatchID        string
	AllowDuplicate bool
	// Direct runs identification inline instead of leaving the scans
	// for the daemon to pick up.
	Direct bool
	Logger *slog.Logger
}

type SubmittedScan struct {
	Path string
	Item *queue.Item
}

type SkippedScan struct {
	Path       string
	Reason     string
	ExistingID int64
}

type SubmitScansResult struct {
	BatchID   string
	Submitted []SubmittedScan
	Skipped   []SkippedScan
}

type IdentifyScanAssessment struct {
	CardName       string
	CardNumber     string
	SetName        string
	CandidateCount int
	FieldsPresent  bool
	ReviewRequired bool
	ReviewReason   string
	Outcome        string
	OutcomeMessage string
}

// AssessIdentifyScan derives CLI-facing identification outcomes from queue state.
func AssessIdentifyScan(item *queue.Item) IdentifyScanAssessment {
	if item == nil {
		return IdentifyScanAssessment{
			CardName:       "Unknown",
			Outcome:        "failed",
			OutcomeMessage: "❌ Identification failed. Check the logs above for details.",
		}
	}

	identity := cards.ItemIdentity(item)
	assessment := IdentifyScanAssessment{
		CardName:       identity.Name,
		CardNumber:     identity.Number,
		SetName:        identity.SetName,
		ReviewRequired: item.NeedsReview,
		ReviewReason:   strings.TrimSpace(item.ReviewReason),
	}
	if assessment.CardName == "" {
		assessment.CardName = "Unknown"
	}
	if fields := cards.DetectedFieldsFromJSON(item.FieldsJSON); fields != nil {
		assessment.FieldsPresent = !fields.AllNull()
	}
	assessment.CandidateCount = len(cards.CandidateSetFromJSON(item.CandidatesJSON).Candidates)

	switch {
	case item.Status == queue.StatusFailed:
		assessment.Outcome = "failed"
		assessment.OutcomeMessage = "❌ Identification failed. Check the logs above for details."
	case assessment.CandidateCount > 0:
		assessment.Outcome = "success"
		assessment.OutcomeMessage = fmt.Sprintf("🎴 Identification successful! %d candidate(s) await confirmation.", assessment.CandidateCount)
	case assessment.ReviewRequired:
		assessment.Outcome = "review"
		assessment.OutcomeMessage = "⚠️  Identification needs manual review. Check the logs above for details."
	default:
		assessment.Outcome = "failed"
		assessment.OutcomeMessage = "❌ Identification failed. Check the logs above for details."
	}

	return assessment
}

// SubmitScans stages card images and enqueues them for identification.
// With Direct set it also runs the identifier inline per scan, so the
// caller can report outcomes without a daemon running.
func SubmitScans(ctx context.Context, req SubmitScansRequest) (SubmitScansResult, error) {
	cfg := req.Config
	if cfg == nil {
		return SubmitScansResult{}, fmt.Errorf("configuration is required")
	}
	logger := req.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if len(req.Paths) == 0 {
		return SubmitScansResult{}, fmt.Errorf("at least one image path is required")
	}
	stagingDir := strings.TrimSpace(cfg.Paths.StagingDir)
	if stagingDir == "" {
		return SubmitScansResult{}, fmt.Errorf("staging directory is not configured")
	}

	side := normalizeSide(req.Side)
	if strings.TrimSpace(req.Side) != "" && side == "" {
		return SubmitScansResult{}, fmt.Errorf("invalid side %q (expected front or back)", req.Side)
	}

	paths := make([]string, 0, len(req.Paths))
	for _, raw := range req.Paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return SubmitScansResult{}, fmt.Errorf("image %q not found", path)
			}
			return SubmitScansResult{}, fmt.Errorf("stat image: %w", err)
		}
		if info.IsDir() {
			return SubmitScansResult{}, fmt.Errorf("path %q is a directory", path)
		}
		if mimeTypeForScan(path) == "" {
			return SubmitScansResult{}, fmt.Errorf("unsupported image type %q (expected jpg, png, or webp)", filepath.Ext(path))
		}
		paths = append(paths, path)
	}
	if len(paths) == 0 {
		return SubmitScansResult{}, fmt.Errorf("at least one image path is required")
	}

	batchID := strings.TrimSpace(req.BatchID)
	if batchID == "" {
		batchID = uuid.NewString()
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return SubmitScansResult{}, fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return SubmitScansResult{}, fmt.Errorf("ensure staging directory: %w", err)
	}

	notifier := notifications.NewService(cfg)
	result := SubmitScansResult{BatchID: batchID}

	for _, path := range paths {
		fingerprint, err := fileutil.FingerprintFile(path)
		if err != nil {
			return result, fmt.Errorf("fingerprint %s: %w", filepath.Base(path), err)
		}

		existing, err := store.FindByFingerprint(ctx, fingerprint)
		if err != nil {
			return result, fmt.Errorf("check existing queue item: %w", err)
		}
		if existing != nil && existing.IsInWorkflow() && !req.AllowDuplicate {
			result.Skipped = append(result.Skipped, SkippedScan{
				Path:       path,
				Reason:     fmt.Sprintf("already queued as item %d (status %s)", existing.ID, existing.Status),
				ExistingID: existing.ID,
			})
			continue
		}

		staged := stagingTargetFor(stagingDir, path, fingerprint)
		if err := fileutil.CopyFileVerified(path, staged); err != nil {
			return result, fmt.Errorf("stage %s: %w", filepath.Base(path), err)
		}

		item, err := store.NewScan(ctx, path, fingerprint)
		if err != nil {
			return result, fmt.Errorf("create queue item: %w", err)
		}
		item.StagedFile = staged
		item.MimeType = mimeTypeForScan(path)
		item.BatchID = batchID
		item.SideHint = side
		if item.SideHint == "" {
			item.SideHint = sideHintForScan(path)
		}
		if err := store.Update(ctx, item); err != nil {
			return result, fmt.Errorf("persist scan metadata: %w", err)
		}

		logger.Info("scan submitted",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("source_file", path),
			logging.String("fingerprint", fingerprint),
			logging.String(logging.FieldBatchID, batchID),
			logging.String(logging.FieldEventType, "scan_submitted"),
		)
		if err := notifier.Publish(ctx, notifications.EventScanDetected, notifications.Payload{
			"title": filepath.Base(path),
		}); err != nil {
			logger.Debug("scan detected notification failed", logging.Error(err))
		}

		result.Submitted = append(result.Submitted, SubmittedScan{Path: path, Item: item})
	}

	if !req.Direct || len(result.Submitted) == 0 {
		return result, nil
	}

	identifier := identification.NewIdentifier(cfg, store, logger)
	for _, entry := range result.Submitted {
		itemCtx := services.WithItemID(ctx, entry.Item.ID)
		if err := stageexec.Run(itemCtx, stageexec.Options{
			Logger:     logger,
			Store:      store,
			Notifier:   notifier,
			Handler:    identifier,
			StageName:  "identifier",
			Processing: queue.StatusIdentifying,
			Done:       queue.StatusReview,
			Item:       entry.Item,
		}); err != nil {
			logger.Warn("direct identification failed; scan kept for retry",
				logging.Error(err),
				logging.Int64(logging.FieldItemID, entry.Item.ID),
			)
		}
	}

	return result, nil
}

// stagingTargetFor keeps the original file name unless it would collide
// with an earlier staged scan.
func stagingTargetFor(stagingDir, path, fingerprint string) string {
	base := filepath.Base(path)
	target := filepath.Join(stagingDir, base)
	if _, err := os.Stat(target); err == nil && len(fingerprint) >= 12 {
		target = filepath.Join(stagingDir, fingerprint[:12]+"-"+base)
	}
	return target
}

func mimeTypeForScan(path string) string {
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

// sideHintForScan reads a trailing front/back token from the file name,
// the convention batch capture rigs use ("pikachu-front.jpg").
func sideHintForScan(path string) string {
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
