package identification_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"binder/internal/cards"
	"binder/internal/config"
	"binder/internal/identification"
	"binder/internal/identification/catalog"
	"binder/internal/logging"
	"binder/internal/notifications"
	"binder/internal/queue"
	"binder/internal/services"
	"binder/internal/services/vision"
	"binder/internal/taxonomy"
	"binder/internal/testsupport"
)

func newTestIdentifier(
	t *testing.T,
	cfg *config.Config,
	store *queue.Store,
	extractor vision.Extractor,
	searcher catalog.Searcher,
	notifier notifications.Service,
) *identification.Identifier {
	t.Helper()
	loader := taxonomy.NewLoader("", logging.NewNop())
	return identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), extractor, searcher, loader, notifier)
}

func newScanItem(t *testing.T, store *queue.Store, fingerprint string) *queue.Item {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.png")
	testsupport.WriteScanImage(t, path)
	return testsupport.NewScan(t, store, path, fingerprint)
}

func detected(name, number, setHint, rarity string) vision.Extraction {
	fields := cards.DetectedCardFields{}
	if name != "" {
		fields.Name = &name
	}
	if number != "" {
		fields.Number = &number
	}
	if setHint != "" {
		fields.SetHint = &setHint
	}
	if rarity != "" {
		fields.RarityText = &rarity
	}
	return vision.Extraction{Fields: fields, Raw: "{}"}
}

func TestIdentifierMarksScanReadyForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-ready")

	extractor := &stubExtractor{extraction: detected("Skwovet", "092", "Silver Tempest", "Common")}
	searcher := &stubSearcher{results: []catalog.Candidate{{
		ID:            "swsh12-92",
		Name:          "Skwovet",
		Number:        "092",
		NumberDisplay: "092/195",
		SetName:       "Silver Tempest",
		SetCode:       "swsh12",
	}}}
	notifier := &recordingNotifier{}
	handler := newTestIdentifier(t, cfg, store, extractor, searcher, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", updated.Status)
	}
	if !updated.NeedsReview {
		t.Fatal("expected the scan to require confirmation")
	}
	if updated.ReviewReason != "Awaiting candidate confirmation" {
		t.Fatalf("review reason = %q", updated.ReviewReason)
	}
	if updated.ScanTitle != "Skwovet 092" {
		t.Fatalf("scan title = %q, want identity label", updated.ScanTitle)
	}
	if updated.ProgressStage != "Identified" || updated.ProgressPercent != 100 {
		t.Fatalf("progress = %s %.0f, want Identified 100", updated.ProgressStage, updated.ProgressPercent)
	}
	fields := cards.DetectedFieldsFromJSON(updated.FieldsJSON)
	if fields == nil || fields.Name == nil || *fields.Name != "Skwovet" {
		t.Fatalf("detected fields = %+v, want stored recognition output", fields)
	}
	set := cards.CandidateSetFromJSON(updated.CandidatesJSON)
	if len(set.Candidates) != 1 || set.Candidates[0].ID != "swsh12-92" {
		t.Fatalf("candidates = %+v, want the catalog match stored", set.Candidates)
	}
	attrs := cards.AttributesFromJSON(updated.AttributesJSON)
	if len(attrs) != len(taxonomy.MandatoryGroups) {
		t.Fatalf("attributes = %v, want every mandatory group covered", attrs)
	}
	if attrs["rarity"] != "common" {
		t.Errorf("rarity = %q, want common", attrs["rarity"])
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventReviewReady {
		t.Fatalf("events = %v, want one review_ready", notifier.events)
	}
	if got := notifier.payloads[0]["candidates"]; got != 1 {
		t.Errorf("payload candidates = %v, want 1", got)
	}
}

func TestIdentifierForwardsSideHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	item := newScanItem(t, store, "fp-side")
	item.SideHint = "back"
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	extractor := &stubExtractor{extraction: detected("Skwovet", "092", "", "Common")}
	searcher := &stubSearcher{results: []catalog.Candidate{{ID: "swsh12-92", Name: "Skwovet", Number: "092"}}}
	handler := newTestIdentifier(t, cfg, store, extractor, searcher, &recordingNotifier{})

	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(extractor.sideHints) != 1 || extractor.sideHints[0] != "back" {
		t.Fatalf("side hints = %v, want the scan's back hint passed through", extractor.sideHints)
	}
}

func TestIdentifierAllNullFieldsScheduleReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-unreadable")

	extractor := &stubExtractor{extraction: vision.Extraction{Fields: cards.DetectedCardFields{}, Raw: "{}"}}
	searcher := &stubSearcher{}
	notifier := &recordingNotifier{}
	handler := newTestIdentifier(t, cfg, store, extractor, searcher, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if item.ReviewReason != "No card fields detected; identify manually" {
		t.Fatalf("review reason = %q", item.ReviewReason)
	}
	if len(searcher.queries) != 0 {
		t.Fatalf("queries = %v, want no search for an unreadable scan", searcher.queries)
	}
	attrs := cards.AttributesFromJSON(item.AttributesJSON)
	if attrs["condition"] != "near-mint" || attrs["language"] != "english" {
		t.Fatalf("attributes = %v, want configured defaults for the manual path", attrs)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("events = %v, want one review notification", notifier.events)
	}
	if got := notifier.payloads[0]["reason"]; got != "No card fields detected; identify manually" {
		t.Errorf("payload reason = %v", got)
	}
}

func TestIdentifierBadPayloadSchedulesReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-badpayload")

	extractor := &stubExtractor{err: fmt.Errorf("%w: missing key \"name\"", vision.ErrBadPayload)}
	notifier := &recordingNotifier{}
	handler := newTestIdentifier(t, cfg, store, extractor, &stubSearcher{}, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if item.ReviewReason != "Recognition output unreadable; identify manually" {
		t.Fatalf("review reason = %q", item.ReviewReason)
	}
	fields := cards.DetectedFieldsFromJSON(item.FieldsJSON)
	if fields == nil || !fields.AllNull() {
		t.Fatalf("detected fields = %+v, want an explicit all-null record", fields)
	}
	if attrs := cards.AttributesFromJSON(item.AttributesJSON); attrs["condition"] != "near-mint" {
		t.Fatalf("attributes = %v, want defaults persisted", attrs)
	}
}

func TestIdentifierBadImageFailsValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-badimage")

	extractor := &stubExtractor{err: fmt.Errorf("%w: unsupported type text/plain", vision.ErrBadImage)}
	handler := newTestIdentifier(t, cfg, store, extractor, &stubSearcher{}, nil)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("Execute() should fail for an unreadable image")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation marker", err)
	}
	if services.FailureStatus(err) != queue.StatusReview {
		t.Fatalf("failure status = %s, want review", services.FailureStatus(err))
	}
}

func TestIdentifierTransportFailureIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-visionfail")

	extractor := &stubExtractor{err: errors.New("gemini: 500 backend error")}
	handler := newTestIdentifier(t, cfg, store, extractor, &stubSearcher{}, nil)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("Execute() should surface the transport failure")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("error = %v, want external service marker", err)
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Fatalf("failure status = %s, want failed", services.FailureStatus(err))
	}
}

func TestIdentifierCatalogFailureIsRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-catalogfail")

	extractor := &stubExtractor{extraction: detected("Skwovet", "092", "", "")}
	searcher := &stubSearcher{err: errors.New("connection refused")}
	handler := newTestIdentifier(t, cfg, store, extractor, searcher, nil)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("Execute() should surface the catalog failure")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("error = %v, want external service marker", err)
	}
	if services.FailureStatus(err) != queue.StatusFailed {
		t.Fatalf("failure status = %s, want failed for retry", services.FailureStatus(err))
	}
}

func TestIdentifierNoMatchesSchedulesReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-nomatch")

	extractor := &stubExtractor{extraction: detected("Taperobbin", "901", "", "")}
	searcher := &stubSearcher{}
	notifier := &recordingNotifier{}
	handler := newTestIdentifier(t, cfg, store, extractor, searcher, notifier)

	ctx := context.Background()
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if item.ReviewReason != "No catalog matches; identify manually" {
		t.Fatalf("review reason = %q", item.ReviewReason)
	}
	if set := cards.CandidateSetFromJSON(item.CandidatesJSON); len(set.Attempts) == 0 {
		t.Fatal("expected search attempts recorded for the empty result")
	}
}

func TestIdentifierMarksDuplicateForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := newScanItem(t, store, "fp-dup")
	first.Status = queue.StatusCompleted
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second := newScanItem(t, store, "fp-dup")

	extractor := &stubExtractor{extraction: detected("Skwovet", "092", "", "")}
	handler := newTestIdentifier(t, cfg, store, extractor, &stubSearcher{}, nil)

	if err := handler.Execute(ctx, second); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second.Status != queue.StatusReview {
		t.Fatalf("status = %s, want review", second.Status)
	}
	if !second.NeedsReview {
		t.Fatal("expected duplicate to require review")
	}
	if second.ReviewReason != "Duplicate scan image" {
		t.Fatalf("review reason = %q", second.ReviewReason)
	}
	if extractor.calls != 0 {
		t.Fatalf("extractor calls = %d, want recognition skipped for duplicates", extractor.calls)
	}
}

func TestIdentifierExecuteRequiresFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newScanItem(t, store, "fp-blank")
	item.SourceFingerprint = ""

	handler := newTestIdentifier(t, cfg, store, &stubExtractor{}, &stubSearcher{}, nil)

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("Execute() should reject a scan without a fingerprint")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation marker", err)
	}
}

func TestIdentifierPrepareRequiresImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewScan(t, store, filepath.Join(t.TempDir(), "missing.png"), "fp-missing")

	handler := newTestIdentifier(t, cfg, store, &stubExtractor{}, &stubSearcher{}, nil)

	err := handler.Prepare(context.Background(), item)
	if err == nil {
		t.Fatal("Prepare() should fail when the staged image is gone")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want validation marker", err)
	}
}

func TestIdentifierHealthReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestIdentifier(t, cfg, store, &stubExtractor{}, &stubSearcher{}, nil)
	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected health ready, got %+v", health)
	}
	if health.Detail != "" {
		t.Fatalf("expected empty detail, got %q", health.Detail)
	}
}

func TestIdentifierHealthMissingAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithVisionKey(""))
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestIdentifier(t, cfg, store, &stubExtractor{}, &stubSearcher{}, nil)
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatalf("expected health not ready, got %+v", health)
	}
	if !strings.Contains(health.Detail, "api key") {
		t.Fatalf("expected detail to mention api key, got %q", health.Detail)
	}
}

func TestIdentifierHealthMissingCatalog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	handler := newTestIdentifier(t, cfg, store, &stubExtractor{}, nil, nil)
	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatalf("expected health not ready, got %+v", health)
	}
	if !strings.Contains(health.Detail, "catalog") {
		t.Fatalf("expected detail to mention catalog, got %q", health.Detail)
	}
}

type stubExtractor struct {
	extraction vision.Extraction
	err        error
	calls      int
	sideHints  []string
}

func (s *stubExtractor) ExtractFields(_ context.Context, _ string, sideHint string) (vision.Extraction, error) {
	s.calls++
	s.sideHints = append(s.sideHints, sideHint)
	if s.err != nil {
		return vision.Extraction{}, s.err
	}
	return s.extraction, nil
}

func (s *stubExtractor) HealthCheck(context.Context) error { return nil }

type stubSearcher struct {
	results []catalog.Candidate
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string) ([]catalog.Candidate, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSearcher) Ping(context.Context) error { return nil }

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}
