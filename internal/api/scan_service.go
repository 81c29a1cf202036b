package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/fileutil"
	"binder/internal/identification/catalog"
	"binder/internal/logging"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/taxonomy"
)

// ManualCandidateID routes a selection down the manual path instead of
// confirming a catalog candidate.
const ManualCandidateID = "none"

// SnapshotSource supplies the taxonomy snapshot selections resolve against.
type SnapshotSource interface {
	Ensure(ctx context.Context) (*taxonomy.Snapshot, error)
}

// ScanService applies scan submissions and review decisions against the
// queue store, so the CLI and HTTP handlers share one view of the rules.
type ScanService struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	snapshots SnapshotSource
	resolver  *taxonomy.Resolver
}

// NewScanService builds the facade with a live taxonomy loader.
func NewScanService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *ScanService {
	source := ""
	if cfg != nil {
		source = cfg.Taxonomy.SourcePath
	}
	return NewScanServiceWithSnapshots(cfg, store, logger, taxonomy.NewLoader(source, logger))
}

// NewScanServiceWithSnapshots allows injecting the snapshot source (used
// in tests).
func NewScanServiceWithSnapshots(cfg *config.Config, store *queue.Store, logger *slog.Logger, snapshots SnapshotSource) *ScanService {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	serviceLogger := logging.NewComponentLogger(logger, "scan-service")
	defaults := taxonomy.Defaults{}
	if cfg != nil {
		defaults = taxonomy.Defaults{
			Condition: cfg.Taxonomy.DefaultCondition,
			Language:  cfg.Taxonomy.DefaultLanguage,
		}
	}
	return &ScanService{
		store:     store,
		cfg:       cfg,
		logger:    serviceLogger,
		snapshots: snapshots,
		resolver:  taxonomy.NewResolver(serviceLogger, defaults),
	}
}

type SelectOutcome string

const (
	SelectApplied          SelectOutcome = "applied"
	SelectNotFound         SelectOutcome = "not_found"
	SelectNotReviewable    SelectOutcome = "not_reviewable"
	SelectUnknownCandidate SelectOutcome = "unknown_candidate"
)

type SelectResult struct {
	Outcome SelectOutcome `json:"outcome"`
	Item    *QueueItem    `json:"item,omitempty"`
}

// Select confirms a candidate (or the manual path) for a reviewed scan.
// Identity and attributes are rebuilt from the chosen candidate alone; a
// hand-edited price survives the change. The scan moves to confirmed so
// the publishing lane can claim it.
func (s *ScanService) Select(ctx context.Context, id int64, req SelectRequest) (SelectResult, error) {
	if s == nil || s.store == nil {
		return SelectResult{}, fmt.Errorf("scan service unavailable")
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return SelectResult{}, err
	}
	if item == nil {
		return SelectResult{Outcome: SelectNotFound}, nil
	}
	if item.Status != queue.StatusReview && item.Status != queue.StatusConfirmed {
		dto := FromQueueItem(item)
		return SelectResult{Outcome: SelectNotReviewable, Item: &dto}, nil
	}

	state := cards.ItemScanState(item)
	candidateID := strings.TrimSpace(req.CandidateID)
	manual := candidateID == "" || strings.EqualFold(candidateID, ManualCandidateID)
	if manual {
		state = cards.ApplyManualPath(state)
	} else {
		candidate, ok := findCandidate(state.Candidates.Candidates, candidateID)
		if !ok {
			dto := FromQueueItem(item)
			return SelectResult{Outcome: SelectUnknownCandidate, Item: &dto}, nil
		}
		snapshot, err := s.snapshot(ctx)
		if err != nil {
			return SelectResult{}, err
		}
		state, err = cards.ApplySelection(state, candidate, s.resolver, snapshot)
		if err != nil {
			return SelectResult{}, fmt.Errorf("resolve selection attributes: %w", err)
		}
	}
	if req.PriceCents != nil {
		state = cards.SetManualPrice(state, *req.PriceCents, s.currencyFor(req.Currency, state))
	}
	if err := cards.ApplyItemScanState(item, state); err != nil {
		return SelectResult{}, fmt.Errorf("apply selection: %w", err)
	}

	item.NeedsReview = false
	item.ReviewReason = ""
	item.Status = queue.StatusConfirmed
	if identity := cards.ItemIdentity(item); identity.Name != "" {
		item.ScanTitle = strings.TrimSpace(identity.Name + " " + identity.Number)
	}
	if manual {
		item.SetProgressComplete("Confirmed", "Manual path; completing downstream by hand")
	} else {
		item.SetProgressComplete("Confirmed", "Candidate confirmed; awaiting publication")
	}
	if err := s.store.Update(ctx, item); err != nil {
		return SelectResult{}, fmt.Errorf("persist selection: %w", err)
	}

	s.logger.Info("selection applied",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Bool("manual", manual),
		logging.String("candidate_id", candidateID),
		logging.String(logging.FieldEventType, "selection_applied"),
	)
	dto := FromQueueItem(item)
	return SelectResult{Outcome: SelectApplied, Item: &dto}, nil
}

type PriceOutcome string

const (
	PriceApplied     PriceOutcome = "applied"
	PriceNotFound    PriceOutcome = "not_found"
	PriceNotEditable PriceOutcome = "not_editable"
)

type PriceResult struct {
	Outcome PriceOutcome `json:"outcome"`
	Item    *QueueItem   `json:"item,omitempty"`
}

// SetPrice records a hand-edited price that survives candidate
// reselection. Scans mid-stage or already published are rejected.
func (s *ScanService) SetPrice(ctx context.Context, id int64, req PriceRequest) (PriceResult, error) {
	if s == nil || s.store == nil {
		return PriceResult{}, fmt.Errorf("scan service unavailable")
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return PriceResult{}, err
	}
	if item == nil {
		return PriceResult{Outcome: PriceNotFound}, nil
	}
	if item.IsProcessing() || item.Status == queue.StatusCompleted {
		dto := FromQueueItem(item)
		return PriceResult{Outcome: PriceNotEditable, Item: &dto}, nil
	}

	state := cards.SetManualPrice(cards.ItemScanState(item), req.Cents, s.currencyFor(req.Currency, cards.ItemScanState(item)))
	if err := cards.ApplyItemScanState(item, state); err != nil {
		return PriceResult{}, fmt.Errorf("apply price: %w", err)
	}
	if err := s.store.Update(ctx, item); err != nil {
		return PriceResult{}, fmt.Errorf("persist price: %w", err)
	}

	s.logger.Info("manual price recorded",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int64("cents", req.Cents),
		logging.String(logging.FieldEventType, "manual_price_recorded"),
	)
	dto := FromQueueItem(item)
	return PriceResult{Outcome: PriceApplied, Item: &dto}, nil
}

type SubmitOutcome string

const (
	SubmitCreated   SubmitOutcome = "created"
	SubmitDuplicate SubmitOutcome = "duplicate"
)

type SubmitResult struct {
	Outcome SubmitOutcome `json:"outcome"`
	Item    *QueueItem    `json:"item,omitempty"`
}

// Submit decodes an uploaded scan image, stages it, and enqueues it for
// identification. An image already moving through the workflow reports
// the existing item instead of creating a second one.
func (s *ScanService) Submit(ctx context.Context, req ScanSubmitRequest) (SubmitResult, error) {
	if s == nil || s.store == nil {
		return SubmitResult{}, fmt.Errorf("scan service unavailable")
	}
	if s.cfg == nil || strings.TrimSpace(s.cfg.Paths.StagingDir) == "" {
		return SubmitResult{}, fmt.Errorf("staging directory not configured")
	}

	ext, err := extensionForMime(req.MimeType)
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "api", "submit scan", err.Error(), nil)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.ImageBase64))
	if err != nil {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "api", "submit scan", "image payload is not valid base64", err)
	}
	if len(data) == 0 {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "api", "submit scan", "image payload is empty", nil)
	}
	if max := s.maxImageBytes(); max > 0 && int64(len(data)) > max {
		return SubmitResult{}, services.Wrap(services.ErrValidation, "api", "submit scan",
			fmt.Sprintf("image payload exceeds %d bytes", max), nil)
	}

	fingerprint := fileutil.FingerprintBytes(data)
	if existing, err := s.store.FindByFingerprint(ctx, fingerprint); err != nil {
		return SubmitResult{}, fmt.Errorf("check existing scan: %w", err)
	} else if existing != nil && existing.IsInWorkflow() {
		dto := FromQueueItem(existing)
		return SubmitResult{Outcome: SubmitDuplicate, Item: &dto}, nil
	}

	target := s.submitTarget(req.Filename, fingerprint, ext)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return SubmitResult{}, fmt.Errorf("ensure staging directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return SubmitResult{}, fmt.Errorf("write staged image: %w", err)
	}

	item, err := s.store.NewScan(ctx, target, fingerprint)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create queue item: %w", err)
	}
	item.StagedFile = target
	item.MimeType = normalizeMime(req.MimeType)
	item.SideHint = normalizeSide(req.Side)
	item.BatchID = strings.TrimSpace(req.BatchID)
	if item.BatchID == "" {
		item.BatchID = uuid.NewString()
	}
	if err := s.store.Update(ctx, item); err != nil {
		return SubmitResult{}, fmt.Errorf("persist scan metadata: %w", err)
	}

	s.logger.Info("scan submitted",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String("fingerprint", fingerprint),
		logging.String("staged_file", target),
		logging.String(logging.FieldEventType, "scan_submitted"),
	)
	dto := FromQueueItem(item)
	return SubmitResult{Outcome: SubmitCreated, Item: &dto}, nil
}

func (s *ScanService) snapshot(ctx context.Context) (*taxonomy.Snapshot, error) {
	if s.snapshots == nil {
		return nil, fmt.Errorf("taxonomy source unavailable")
	}
	snapshot, err := s.snapshots.Ensure(ctx)
	if err != nil {
		return nil, fmt.Errorf("load taxonomy snapshot: %w", err)
	}
	return snapshot, nil
}

// currencyFor picks the currency for a hand-edited price: the request's,
// then the existing price's, then the configured publishing currency.
func (s *ScanService) currencyFor(requested string, state cards.ScanState) string {
	if currency := strings.ToUpper(strings.TrimSpace(requested)); currency != "" {
		return currency
	}
	if state.Price != nil && state.Price.Currency != "" {
		return state.Price.Currency
	}
	if s.cfg != nil && strings.TrimSpace(s.cfg.Publishing.Currency) != "" {
		return strings.ToUpper(strings.TrimSpace(s.cfg.Publishing.Currency))
	}
	return "USD"
}

func (s *ScanService) maxImageBytes() int64 {
	if s.cfg == nil {
		return 0
	}
	return s.cfg.Vision.MaxImageBytes
}

// submitTarget names the staged copy of an uploaded image, keeping the
// client's file name unless it would collide with an earlier scan.
func (s *ScanService) submitTarget(filename, fingerprint, ext string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "scan-" + fingerprint[:12] + ext
	}
	if filepath.Ext(base) == "" {
		base += ext
	}
	target := filepath.Join(s.cfg.Paths.StagingDir, base)
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(s.cfg.Paths.StagingDir, fingerprint[:12]+"-"+base)
	}
	return target
}

func findCandidate(candidates []catalog.Candidate, id string) (catalog.Candidate, bool) {
	for _, candidate := range candidates {
		if strings.EqualFold(strings.TrimSpace(candidate.ID), id) {
			return candidate, true
		}
	}
	return catalog.Candidate{}, false
}

func extensionForMime(mimeType string) (string, error) {
	switch normalizeMime(mimeType) {
	case "image/jpeg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/webp":
		return ".webp", nil
	default:
		return "", fmt.Errorf("unsupported image MIME type %q", strings.TrimSpace(mimeType))
	}
}

func normalizeMime(mimeType string) string {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if mime == "image/jpg" {
		mime = "image/jpeg"
	}
	return mime
}

func normalizeSide(side string) string {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "front":
		return "front"
	case "back":
		return "back"
	default:
		return ""
	}
}
