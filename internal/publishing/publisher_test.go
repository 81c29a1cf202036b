package publishing_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/identification/catalog"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/publishing"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/services/listing"
	"binder/internal/services/pricing"
	"binder/internal/services/warehouse"
	"binder/internal/taxonomy"
	"binder/internal/testsupport"
)

func newTestPublisher(
	t *testing.T,
	cfg *config.Config,
	store *queue.Store,
	estimator pricing.Estimator,
	allocator warehouse.Allocator,
	outbound listing.Publisher,
	notifier notifications.Service,
) *publishing.Publisher {
	t.Helper()
	return publishing.NewPublisherWithDependencies(cfg, store, logging.NewNop(), estimator, allocator, outbound, notifier)
}

func newConfirmedScan(t *testing.T, cfg *config.Config, store *queue.Store, fingerprint string) *queue.Item {
	t.Helper()
	source := filepath.Join(testsupport.BaseDir(cfg), "intake", "scan.jpg")
	testsupport.WriteScanImage(t, source)
	item := testsupport.NewScan(t, store, source, fingerprint)

	staged := filepath.Join(cfg.Paths.StagingDir, filepath.Base(source))
	testsupport.WriteScanImage(t, staged)
	item.StagedFile = staged
	item.Status = queue.StatusConfirmed
	item.BatchID = "B-20260822-0900"
	if err := cards.SetItemSelectedCandidate(item, &catalog.Candidate{
		ID:            "swsh12-92",
		Name:          "Skwovet",
		Number:        "092",
		NumberDisplay: "092/195",
		SetName:       "Silver Tempest",
		SetCode:       "swsh12",
		Rarity:        "Common",
	}); err != nil {
		t.Fatalf("SetSelectedCandidate: %v", err)
	}
	if err := cards.SetItemAttributes(item, taxonomy.Resolved{
		"condition": "near_mint",
		"language":  "english",
		"finish":    "nonholo",
		"rarity":    "common",
	}); err != nil {
		t.Fatalf("SetAttributes: %v", err)
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestPublisherPublishesConfirmedScan(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	cfg.Publishing.Currency = "USD"
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-publish")

	estimator := &fakeEstimator{estimate: pricing.Estimate{Cents: 450, Currency: "USD", OK: true}}
	allocator := &fakeAllocator{location: "WH1/B-20260822-0900"}
	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-1", URL: "https://market.test/lst-1", SKU: "SKU-1"}}
	notifier := &recordingNotifier{}
	handler := newTestPublisher(t, cfg, store, estimator, allocator, outbound, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	price := cards.PriceFromJSON(item.PriceJSON)
	if price == nil || price.Cents != 450 || price.Currency != "USD" || price.Manual {
		t.Fatalf("price = %+v, want the estimate", price)
	}
	if item.LocationCode != "WH1/B-20260822-0900" {
		t.Fatalf("location = %q, want the allocated code", item.LocationCode)
	}
	if allocator.batchID != "B-20260822-0900" {
		t.Fatalf("allocator saw batch %q", allocator.batchID)
	}
	ref := item.Listing()
	if ref == nil || ref.ID != "lst-1" || ref.URL != "https://market.test/lst-1" || ref.SKU != "SKU-1" {
		t.Fatalf("listing = %+v, want the published reference", ref)
	}
	if ref.PublishedAt.IsZero() {
		t.Fatal("expected a publication timestamp")
	}
	if len(outbound.records) != 1 {
		t.Fatalf("published %d listings, want 1", len(outbound.records))
	}
	record := outbound.records[0]
	if record.Identity.Name != "Skwovet" || record.Identity.Number != "092/195" {
		t.Fatalf("outbound identity = %+v", record.Identity)
	}
	if record.LocationCode != "WH1/B-20260822-0900" {
		t.Fatalf("outbound location = %q", record.LocationCode)
	}
	if record.Attributes["condition"] != "near_mint" {
		t.Fatalf("outbound attributes = %v", record.Attributes)
	}
	if len(record.ImagePaths) != 1 {
		t.Fatalf("outbound images = %v, want the staged scan", record.ImagePaths)
	}

	archived := filepath.Join(cfg.Paths.ArchiveDir, "scan.jpg")
	if _, err := os.Stat(archived); err != nil {
		t.Fatalf("archived image missing: %v", err)
	}
	if item.StagedFile != archived {
		t.Fatalf("staged file = %q, want the archive path", item.StagedFile)
	}
	if item.ProgressStage != "Published" || item.ProgressPercent != 100 {
		t.Fatalf("progress = %s %.0f, want Published 100", item.ProgressStage, item.ProgressPercent)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventScanPublished {
		t.Fatalf("events = %v, want one publish notification", notifier.events)
	}
	if notifier.payloads[0]["url"] != "https://market.test/lst-1" {
		t.Fatalf("notification payload = %v", notifier.payloads[0])
	}
}

func TestPublisherKeepsManualPrice(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-manual")
	if err := cards.SetItemPrice(item, &cards.Price{Cents: 1200, Currency: "USD", Manual: true}); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	estimator := &fakeEstimator{estimate: pricing.Estimate{Cents: 300, Currency: "USD", OK: true}}
	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-2"}}
	handler := newTestPublisher(t, cfg, store, estimator, warehouse.NewNoop(), outbound, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if estimator.calls != 0 {
		t.Fatalf("estimator called %d times, want manual price to short-circuit", estimator.calls)
	}
	price := cards.PriceFromJSON(item.PriceJSON)
	if price == nil || price.Cents != 1200 || !price.Manual {
		t.Fatalf("price = %+v, want the manual value preserved", price)
	}
}

func TestPublisherClampsEstimateToFloor(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	cfg.Publishing.PriceFloorCents = 200
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-floor-clamp")

	estimator := &fakeEstimator{estimate: pricing.Estimate{Cents: 50, Currency: "USD", OK: true}}
	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-3"}}
	handler := newTestPublisher(t, cfg, store, estimator, warehouse.NewNoop(), outbound, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	price := cards.PriceFromJSON(item.PriceJSON)
	if price == nil || price.Cents != 200 {
		t.Fatalf("price = %+v, want the floor", price)
	}
}

func TestPublisherPricesAtFloorWhenEstimatorDeclines(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	cfg.Publishing.PriceFloorCents = 150
	cfg.Publishing.Currency = "EUR"
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-floor-only")

	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-4"}}
	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), outbound, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	price := cards.PriceFromJSON(item.PriceJSON)
	if price == nil || price.Cents != 150 || price.Currency != "EUR" || price.Manual {
		t.Fatalf("price = %+v, want the configured floor", price)
	}
}

func TestPublisherShipsUnpricedWithoutEstimateOrFloor(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-unpriced")

	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-5"}}
	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), outbound, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if price := cards.PriceFromJSON(item.PriceJSON); price != nil {
		t.Fatalf("price = %+v, want none", price)
	}
	if len(outbound.records) != 1 || outbound.records[0].Price != nil {
		t.Fatal("expected the listing to publish without a price")
	}
}

func TestPublisherRequiresConfirmedIdentity(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	source := filepath.Join(testsupport.BaseDir(cfg), "intake", "anon.jpg")
	testsupport.WriteScanImage(t, source)
	item := testsupport.NewScan(t, store, source, "fp-anon")

	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), &fakePublisher{}, &recordingNotifier{})

	err := handler.Prepare(context.Background(), item)
	if err == nil {
		t.Fatal("expected a validation error for a scan without identity")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("failure status = %s, want review", services.FailureStatus(err))
	}
}

func TestPublisherWrapsListingFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-listing-fail")

	outbound := &fakePublisher{err: errors.New("marketplace 503")}
	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), outbound, &recordingNotifier{})

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected the listing failure to surface")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("error = %v, want external service", err)
	}
	if item.Listing() != nil {
		t.Fatal("no listing reference should be stored on failure")
	}
}

func TestPublisherWrapsAllocationFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-alloc-fail")

	allocator := &fakeAllocator{err: errors.New("slotting offline")}
	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, allocator, &fakePublisher{}, &recordingNotifier{})

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected the allocation failure to surface")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("error = %v, want external service", err)
	}
}

func TestPublisherArchiveFailureDoesNotBlockPublication(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-archive")
	if err := os.Remove(item.StagedFile); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	outbound := &fakePublisher{ref: listing.Ref{ID: "lst-6"}}
	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), outbound, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Listing() == nil {
		t.Fatal("listing should publish even when archival fails")
	}
}

func TestPublisherHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), &fakePublisher{}, &recordingNotifier{})
	if health := handler.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("health = %+v, want ready", health)
	}

	broken := newTestPublisher(t, cfg, store, &fakeEstimator{}, warehouse.NewNoop(), nil, &recordingNotifier{})
	if health := broken.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected missing listing publisher to report unhealthy")
	}
}

func TestNewPublisherSelectsAllocatorFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithPublishingEnabled())
	cfg.Publishing.WarehouseCode = "WH1"
	store := testsupport.MustOpenStore(t, cfg)
	item := newConfirmedScan(t, cfg, store, "fp-static-alloc")

	handler := publishing.NewPublisher(cfg, store, logging.NewNop())
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.LocationCode != "WH1/B-20260822-0900" {
		t.Fatalf("location = %q, want warehouse/batch", item.LocationCode)
	}
	if item.Listing() == nil {
		t.Fatal("expected the noop publisher to mint a local reference")
	}
}

type fakeEstimator struct {
	estimate pricing.Estimate
	err      error
	calls    int
}

func (f *fakeEstimator) EstimateCard(context.Context, cards.Identity, taxonomy.Resolved) (pricing.Estimate, error) {
	f.calls++
	if f.err != nil {
		return pricing.Estimate{}, f.err
	}
	return f.estimate, nil
}

type fakeAllocator struct {
	location string
	err      error
	batchID  string
}

func (f *fakeAllocator) Allocate(_ context.Context, batchID string) (string, error) {
	f.batchID = batchID
	if f.err != nil {
		return "", f.err
	}
	return f.location, nil
}

type fakePublisher struct {
	ref     listing.Ref
	err     error
	records []listing.Outbound
}

func (f *fakePublisher) Publish(_ context.Context, out listing.Outbound) (listing.Ref, error) {
	f.records = append(f.records, out)
	if f.err != nil {
		return listing.Ref{}, f.err
	}
	return f.ref, nil
}

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}
