package publishing

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/fileutil"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/services/listing"
	"binder/internal/services/pricing"
	"binder/internal/services/warehouse"
	"binder/internal/stage"
)

// Publisher is the publishing stage handler. It prices confirmed scans,
// allocates a storage location for the batch, commits the listing
// downstream, and archives the scan image.
type Publisher struct {
	store     *queue.Store
	cfg       *config.Config
	logger    *slog.Logger
	estimator pricing.Estimator
	allocator warehouse.Allocator
	outbound  listing.Publisher
	notifier  notifications.Service
}

// NewPublisher constructs the publishing stage handler with the
// collaborators the config selects. Deployments without real pricing or
// marketplace backends get no-op collaborators that keep the lane
// flowing.
func NewPublisher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	var allocator warehouse.Allocator = warehouse.NewNoop()
	if cfg != nil && strings.TrimSpace(cfg.Publishing.WarehouseCode) != "" {
		allocator = warehouse.NewStatic(cfg.Publishing.WarehouseCode, logger)
	}
	return NewPublisherWithDependencies(
		cfg,
		store,
		logger,
		pricing.NewNoop(logger),
		allocator,
		listing.NewNoop(logger),
		notifications.NewService(cfg),
	)
}

// NewPublisherWithDependencies allows injecting the pricing, warehouse,
// and listing collaborators (used in tests).
func NewPublisherWithDependencies(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	estimator pricing.Estimator,
	allocator warehouse.Allocator,
	outbound listing.Publisher,
	notifier notifications.Service,
) *Publisher {
	return &Publisher{
		store:     store,
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "publisher"),
		estimator: estimator,
		allocator: allocator,
		outbound:  outbound,
		notifier:  notifier,
	}
}

// SetLogger updates the publisher's logging destination while preserving
// component labeling.
func (p *Publisher) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "publisher")
}

// Prepare verifies the scan carries a confirmed identity before the
// lane commits anything downstream.
func (p *Publisher) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	item.InitProgress("Publishing", "Preparing listing")
	identity := cards.ItemIdentity(item)
	if strings.TrimSpace(identity.Name) == "" {
		return services.Wrap(
			services.ErrValidation,
			"publishing",
			"validate inputs",
			"Scan has no confirmed identity; confirm a candidate or record the card by hand before publishing",
			nil,
		)
	}
	logger.Info("starting publish preparation",
		logging.String("card", identity.Name),
		logging.String("set", identity.SetName),
		logging.String("batch_id", strings.TrimSpace(item.BatchID)),
	)
	return nil
}

// Execute runs pricing, allocation, and listing publication, then
// archives the published scan image.
func (p *Publisher) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, p.logger)
	state := cards.ItemScanState(item)
	identity := state.Identity()

	price, err := p.resolvePrice(ctx, item, state, identity)
	if err != nil {
		return err
	}
	if price != nil {
		if err := cards.SetItemPrice(item, price); err != nil {
			return services.Wrap(services.ErrTransient, "publishing", "persist price", "Failed to store listing price", err)
		}
	}

	p.updateProgress(ctx, item, "Allocating storage location", 40)
	location, err := p.allocator.Allocate(ctx, item.BatchID)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "publishing", "allocate location", "Warehouse allocation failed", err)
	}
	if location != "" {
		item.LocationCode = location
		logger.Info("storage location allocated", logging.String("location", location))
	}

	p.updateProgress(ctx, item, "Publishing listing", 70)
	out := listing.Outbound{
		ScanID:       item.ID,
		Identity:     identity,
		Attributes:   state.Attributes,
		Price:        price,
		LocationCode: item.LocationCode,
		ImagePaths:   []string{item.ImagePath()},
	}
	ref, err := p.outbound.Publish(ctx, out)
	if err != nil {
		return services.Wrap(services.ErrExternalService, "publishing", "publish listing", "Listing publication failed", err)
	}
	if err := item.SetListing(&queue.Listing{
		ID:          ref.ID,
		URL:         ref.URL,
		SKU:         ref.SKU,
		PublishedAt: time.Now().UTC(),
	}); err != nil {
		return services.Wrap(services.ErrTransient, "publishing", "persist listing", "Failed to store listing reference", err)
	}
	logger.Info("listing published",
		logging.String("listing_id", ref.ID),
		logging.String("card", identity.Name),
	)

	p.archiveImage(ctx, item)

	item.SetProgressComplete("Published", fmt.Sprintf("Listed as %s", identity.Name))
	p.notifyPublished(ctx, item, identity, ref)
	return nil
}

// resolvePrice returns the price the listing publishes under. A manual
// price always wins. Otherwise the estimator runs, and the configured
// floor backstops both a declined estimate and one below the floor.
func (p *Publisher) resolvePrice(ctx context.Context, item *queue.Item, state cards.ScanState, identity cards.Identity) (*cards.Price, error) {
	logger := logging.WithContext(ctx, p.logger)
	if state.Price != nil && state.Price.Manual {
		logger.Info("manual price set, skipping estimation",
			logging.Int64("price_cents", state.Price.Cents))
		return state.Price, nil
	}

	p.updateProgress(ctx, item, "Estimating price", 10)
	estimate, err := p.estimator.EstimateCard(ctx, identity, state.Attributes)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "publishing", "estimate price", "Price estimation failed", err)
	}

	currency := "USD"
	floor := int64(0)
	if p.cfg != nil {
		if c := strings.TrimSpace(p.cfg.Publishing.Currency); c != "" {
			currency = c
		}
		floor = int64(p.cfg.Publishing.PriceFloorCents)
	}

	switch {
	case estimate.OK:
		cents := estimate.Cents
		if floor > 0 && cents < floor {
			logger.Info("estimate below floor, clamping",
				logging.Int64("estimate_cents", cents),
				logging.Int64("floor_cents", floor))
			cents = floor
		}
		resolved := currency
		if strings.TrimSpace(estimate.Currency) != "" {
			resolved = estimate.Currency
		}
		return &cards.Price{Cents: cents, Currency: resolved, Manual: false}, nil
	case state.Price != nil:
		return state.Price, nil
	case floor > 0:
		logger.Info("no estimate available, pricing at floor",
			logging.Int64("floor_cents", floor))
		return &cards.Price{Cents: floor, Currency: currency, Manual: false}, nil
	default:
		logger.Info("no price available, listing ships unpriced")
		return nil, nil
	}
}

// archiveImage moves the published scan into the archive directory.
// Archival failure never blocks publication.
func (p *Publisher) archiveImage(ctx context.Context, item *queue.Item) {
	logger := logging.WithContext(ctx, p.logger)
	if p.cfg == nil || strings.TrimSpace(p.cfg.Paths.ArchiveDir) == "" {
		return
	}
	source := strings.TrimSpace(item.StagedFile)
	if source == "" {
		return
	}
	target := filepath.Join(p.cfg.Paths.ArchiveDir, filepath.Base(source))
	if err := fileutil.MoveFile(source, target); err != nil {
		logger.Warn("failed to archive scan image", logging.Error(err))
		return
	}
	item.StagedFile = target
	logger.Info("scan image archived", logging.String("archived_file", target))
}

func (p *Publisher) notifyPublished(ctx context.Context, item *queue.Item, identity cards.Identity, ref listing.Ref) {
	if p.notifier == nil {
		return
	}
	logger := logging.WithContext(ctx, p.logger)
	title := strings.TrimSpace(identity.Name)
	if title == "" {
		title = strings.TrimSpace(item.ScanTitle)
	}
	if err := p.notifier.Publish(ctx, notifications.EventScanPublished, notifications.Payload{
		"title": title,
		"url":   ref.URL,
	}); err != nil {
		logger.Warn("publish notification failed", logging.Error(err))
	}
}

// HealthCheck verifies publishing collaborators are wired.
func (p *Publisher) HealthCheck(context.Context) stage.Health {
	const name = "publisher"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if p.outbound == nil {
		return stage.Unhealthy(name, "listing publisher unavailable")
	}
	if p.estimator == nil || p.allocator == nil {
		return stage.Unhealthy(name, "pricing or warehouse collaborator unavailable")
	}
	return stage.Healthy(name)
}

func (p *Publisher) updateProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, p.logger)
	copy := *item
	copy.ProgressMessage = message
	copy.ProgressPercent = percent
	if err := p.store.UpdateProgress(ctx, &copy); err != nil {
		logger.Warn("failed to persist publish progress", logging.Error(err))
		return
	}
	item.ProgressMessage = message
	item.ProgressPercent = percent
}
