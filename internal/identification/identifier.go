package identification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/identification/catalog"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/services/vision"
	"binder/internal/stage"
	"binder/internal/taxonomy"
)

// Identifier is the identification stage handler. It reads card fields
// from the staged image, gathers ranked catalog candidates, resolves the
// attribute vocabulary, and parks the scan in review for confirmation.
type Identifier struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	extractor vision.Extractor
	searcher  catalog.Searcher
	engine    *Engine
	snapshots SnapshotSource
	resolver  *taxonomy.Resolver
	notifier  notifications.Service
}

// SnapshotSource supplies the taxonomy snapshot scans resolve against.
type SnapshotSource interface {
	Ensure(ctx context.Context) (*taxonomy.Snapshot, error)
}

// NewIdentifier creates the identification stage handler with live clients.
func NewIdentifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Identifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := []catalog.Option{
		catalog.WithPageSize(cfg.Catalog.PageSize),
		catalog.WithRateLimit(cfg.Catalog.RatePerSecond, cfg.Catalog.RateBurst),
		catalog.WithRetryMaxAttempts(cfg.Catalog.RetryAttempts),
	}
	if cfg.Catalog.TimeoutSeconds > 0 {
		opts = append(opts, catalog.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
		}))
	}
	var searcher catalog.Searcher
	client, err := catalog.New(cfg.Catalog.APIKey, cfg.Catalog.BaseURL, cfg.Catalog.Language, opts...)
	if err != nil {
		logger.Warn("catalog client initialization failed", logging.Error(err))
	} else {
		searcher = client
	}
	extractor := vision.NewClient(vision.Config{
		APIKey:         cfg.Vision.APIKey,
		Model:          cfg.Vision.Model,
		TimeoutSeconds: cfg.Vision.TimeoutSeconds,
		MaxImageBytes:  cfg.Vision.MaxImageBytes,
	}, vision.WithRetryMaxAttempts(cfg.Vision.RetryAttempts))
	snapshots := taxonomy.NewLoader(cfg.Taxonomy.SourcePath, logger)
	return NewIdentifierWithDependencies(cfg, store, logger, extractor, searcher, snapshots, notifications.NewService(cfg))
}

// NewIdentifierWithDependencies allows injecting the extractor, catalog
// searcher, and snapshot source (used in tests).
func NewIdentifierWithDependencies(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	extractor vision.Extractor,
	searcher catalog.Searcher,
	snapshots SnapshotSource,
	notifier notifications.Service,
) *Identifier {
	stageLogger := logging.NewComponentLogger(logger, "identifier")
	identifier := &Identifier{
		store:     store,
		cfg:       cfg,
		logger:    stageLogger,
		extractor: extractor,
		searcher:  searcher,
		snapshots: snapshots,
		notifier:  notifier,
	}
	maxCandidates := 0
	defaults := taxonomy.Defaults{}
	if cfg != nil {
		maxCandidates = cfg.Catalog.MaxCandidates
		defaults = taxonomy.Defaults{
			Condition: cfg.Taxonomy.DefaultCondition,
			Language:  cfg.Taxonomy.DefaultLanguage,
		}
	}
	if searcher != nil {
		identifier.engine = NewEngine(searcher, stageLogger, maxCandidates)
	}
	identifier.resolver = taxonomy.NewResolver(stageLogger, defaults)
	return identifier
}

// SetLogger updates the identifier's logging destination while preserving
// component labeling. The workflow manager uses this to route stage logs
// into the per-scan log file.
func (i *Identifier) SetLogger(logger *slog.Logger) {
	i.logger = logging.NewComponentLogger(logger, "identifier")
	if i.engine != nil {
		i.engine.SetLogger(i.logger)
	}
	if i.resolver != nil {
		i.resolver.SetLogger(i.logger)
	}
}

// Prepare validates the staged image, warms the taxonomy snapshot, and
// primes progress messaging prior to Execute.
func (i *Identifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	if item.ProgressStage == "" {
		item.ProgressStage = "Identifying"
	}
	item.ProgressMessage = "Reading card fields"
	item.ProgressPercent = 0

	if _, err := stage.RequireScanImage(item); err != nil {
		return err
	}
	if _, err := i.loadSnapshot(ctx); err != nil {
		return err
	}

	logger.Info("starting scan identification",
		logging.String("scan_title", strings.TrimSpace(item.ScanTitle)),
		logging.String("source_path", strings.TrimSpace(item.SourcePath)))
	return nil
}

// Execute runs recognition, candidate search, and attribute resolution.
// Every outcome short of a transport or validation failure lands the scan
// in review; confirmation is always a human action.
func (i *Identifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	imagePath, err := stage.RequireScanImage(item)
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.SourceFingerprint) == "" {
		return services.Wrap(
			services.ErrValidation, "identification", "validate fingerprint",
			"Scan fingerprint missing; should have been set at enqueue time", nil)
	}
	if err := i.handleDuplicateFingerprint(ctx, item); err != nil {
		return err
	}
	if item.Status == queue.StatusReview {
		return nil
	}

	snapshot, err := i.loadSnapshot(ctx)
	if err != nil {
		return err
	}

	item.SetProgress("Identifying", "Reading card fields", 10)
	extractStart := time.Now()
	extraction, err := i.extractor.ExtractFields(ctx, imagePath, item.SideHint)
	if err != nil {
		return i.handleExtractionFailure(ctx, logger, item, snapshot, err)
	}
	fields := extraction.Fields
	if err := i.persistFieldsAndAttributes(item, snapshot, fields); err != nil {
		return err
	}
	logger.Debug("card fields extracted",
		logging.String("name", fieldValue(fields.Name)),
		logging.String("number", fieldValue(fields.Number)),
		logging.String("set_hint", fieldValue(fields.SetHint)),
		logging.Bool("all_null", fields.AllNull()),
		logging.Duration("extract_duration", time.Since(extractStart)),
		logging.String(logging.FieldEventType, "fields_extracted"))

	if fields.AllNull() {
		logger.Info("scan produced no readable fields",
			logging.String(logging.FieldDecisionType, "field_extraction"),
			logging.String("decision_result", "unreadable"),
			logging.String("decision_reason", "all_fields_null"),
			logging.String("decision_options", "search, review"))
		i.scheduleReview(ctx, item, "No card fields detected; identify manually")
		return nil
	}

	item.SetProgress("Identifying", "Searching the catalog", 55)
	set, err := i.searchCandidates(ctx, fields)
	if err != nil {
		return err
	}
	if err := cards.SetItemCandidates(item, set); err != nil {
		return services.Wrap(
			services.ErrTransient, "identification", "persist candidates",
			"Failed to encode candidate set", err)
	}

	if len(set.Candidates) == 0 {
		logger.Info("catalog search produced no candidates",
			logging.Int("attempts", len(set.Attempts)),
			logging.String(logging.FieldDecisionType, "candidate_search"),
			logging.String("decision_result", "empty"),
			logging.String("decision_reason", "no_catalog_matches"),
			logging.String("decision_options", "review"))
		i.scheduleReview(ctx, item, "No catalog matches; identify manually")
		return nil
	}

	i.markReviewReady(ctx, item, set)
	return nil
}

// HealthCheck verifies identifier dependencies required for successful
// execution. Live service pings are left to preflight.
func (i *Identifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "identifier"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.Vision.APIKey) == "" {
		return stage.Unhealthy(name, "vision api key missing")
	}
	if i.extractor == nil {
		return stage.Unhealthy(name, "vision client unavailable")
	}
	if i.engine == nil {
		return stage.Unhealthy(name, "catalog client unavailable")
	}
	if i.snapshots == nil {
		return stage.Unhealthy(name, "taxonomy source unavailable")
	}
	if _, err := i.snapshots.Ensure(ctx); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("taxonomy snapshot unavailable: %v", err))
	}
	return stage.Healthy(name)
}

func (i *Identifier) loadSnapshot(ctx context.Context) (*taxonomy.Snapshot, error) {
	if i.snapshots == nil {
		return nil, services.Wrap(
			services.ErrConfiguration, "identification", "load taxonomy",
			"Taxonomy source unavailable; check taxonomy configuration", nil)
	}
	snapshot, err := i.snapshots.Ensure(ctx)
	if err != nil {
		return nil, services.Wrap(
			services.ErrConfiguration, "identification", "load taxonomy",
			"Taxonomy snapshot unavailable; check the configured taxonomy source", err)
	}
	return snapshot, nil
}

// persistFieldsAndAttributes stores the recognition payload and the
// attribute map resolved from it. The resolver covers every mandatory
// group even for an all-null record, so the manual review path starts
// from the configured defaults.
func (i *Identifier) persistFieldsAndAttributes(item *queue.Item, snapshot *taxonomy.Snapshot, fields cards.DetectedCardFields) error {
	if err := cards.SetItemDetectedFields(item, &fields); err != nil {
		return services.Wrap(
			services.ErrTransient, "identification", "persist fields",
			"Failed to encode detected fields", err)
	}
	attributes, err := i.resolver.Resolve(snapshot, fields.ResolverInputs())
	if err != nil {
		return services.Wrap(
			services.ErrConfiguration, "identification", "resolve attributes",
			"Taxonomy snapshot rejected attribute resolution", err)
	}
	if err := cards.SetItemAttributes(item, attributes); err != nil {
		return services.Wrap(
			services.ErrTransient, "identification", "persist attributes",
			"Failed to encode resolved attributes", err)
	}
	return nil
}

// handleExtractionFailure classifies a recognition error. Content-level
// failures reach review with an all-null payload so the scan stays
// workable by hand; transport failures surface as retryable errors.
func (i *Identifier) handleExtractionFailure(ctx context.Context, logger *slog.Logger, item *queue.Item, snapshot *taxonomy.Snapshot, err error) error {
	switch {
	case errors.Is(err, vision.ErrBadPayload):
		logger.Warn("recognition payload unusable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "vision_payload_rejected"),
			logging.String(logging.FieldErrorHint, "inspect the raw model output in the logs"),
			logging.String(logging.FieldImpact, "scan moved to review for manual identification"))
		if persistErr := i.persistFieldsAndAttributes(item, snapshot, cards.DetectedCardFields{}); persistErr != nil {
			return persistErr
		}
		i.scheduleReview(ctx, item, "Recognition output unreadable; identify manually")
		return nil
	case errors.Is(err, vision.ErrBadImage):
		return services.Wrap(
			services.ErrValidation, "identification", "read scan image",
			"Scan image unreadable or unsupported; re-stage the file", err)
	default:
		return services.Wrap(
			services.ErrExternalService, "identification", "vision extract",
			"Card recognition request failed", err)
	}
}

func (i *Identifier) searchCandidates(ctx context.Context, fields cards.DetectedCardFields) (cards.CandidateSet, error) {
	if i.engine == nil {
		return cards.CandidateSet{}, services.Wrap(
			services.ErrConfiguration, "identification", "initialize catalog",
			"Catalog client unavailable; check catalog base_url and api_key", nil)
	}
	set, err := i.engine.Search(ctx, fields)
	if err != nil {
		return cards.CandidateSet{}, services.Wrap(
			services.ErrExternalService, "identification", "catalog search",
			"Catalog search failed", err)
	}
	return set, nil
}

// identityLabel renders the display title for a scan, "Name Number" when
// both are known.
func identityLabel(identity cards.Identity) string {
	name := strings.TrimSpace(identity.Name)
	number := strings.TrimSpace(identity.Number)
	switch {
	case name == "":
		return ""
	case number == "":
		return name
	default:
		return name + " " + number
	}
}
