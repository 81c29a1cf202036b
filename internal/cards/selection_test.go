package cards_test

import (
	"encoding/json"
	"testing"

	"binder/internal/cards"
	"binder/internal/identification/catalog"
	"binder/internal/taxonomy"
)

func selectionFixtures(t *testing.T) (*taxonomy.Snapshot, *taxonomy.Resolver) {
	t.Helper()
	snapshot, err := taxonomy.DefaultSnapshot()
	if err != nil {
		t.Fatalf("DefaultSnapshot() error = %v", err)
	}
	resolver := taxonomy.NewResolver(nil, taxonomy.Defaults{Condition: "Near Mint", Language: "English"})
	return snapshot, resolver
}

func detectedState(t *testing.T, snapshot *taxonomy.Snapshot, resolver *taxonomy.Resolver) cards.ScanState {
	t.Helper()
	name := "Charizord"
	number := "4"
	setHint := "Base"
	rarity := "Common"
	fields := &cards.DetectedCardFields{Name: &name, Number: &number, SetHint: &setHint, RarityText: &rarity}
	resolved, err := resolver.Resolve(snapshot, fields.ResolverInputs())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return cards.ScanState{Fields: fields, Attributes: resolved}
}

func sampleCandidate() catalog.Candidate {
	return catalog.Candidate{
		ID:            "swsh12-92",
		Name:          "Skwovet",
		Number:        "092",
		NumberDisplay: "092/195",
		SetName:       "Silver Tempest",
		SetCode:       "swsh12",
		Rarity:        "Rare Holo",
		PriceCents:    125,
		Currency:      "USD",
	}
}

func TestApplySelectionOverwritesIdentityAndAttributes(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	if got := state.Attributes["rarity"]; got != "common" {
		t.Fatalf("precondition rarity = %q, want common", got)
	}

	next, err := cards.ApplySelection(state, sampleCandidate(), resolver, snapshot)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}

	identity := next.Identity()
	want := cards.Identity{
		Name:    "Skwovet",
		Number:  "092/195",
		SetName: "Silver Tempest",
		SetCode: "swsh12",
		Rarity:  "Rare Holo",
	}
	if identity != want {
		t.Errorf("Identity() = %+v, want %+v", identity, want)
	}
	if got := next.Attributes["rarity"]; got != "rare" {
		t.Errorf("rarity = %q, want rare", got)
	}
	if got := next.Attributes["finish"]; got != "holo" {
		t.Errorf("finish = %q, want holo", got)
	}
	if next.Fields == nil || next.Fields.Name == nil || *next.Fields.Name != "Charizord" {
		t.Error("recognition output should stay on the state for audit")
	}
}

func TestApplySelectionSetsCandidatePrice(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	state.Price = &cards.Price{Cents: 50, Currency: "USD"}

	next, err := cards.ApplySelection(state, sampleCandidate(), resolver, snapshot)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}
	if next.Price == nil || next.Price.Cents != 125 || next.Price.Manual {
		t.Errorf("Price = %+v, want automatic 125", next.Price)
	}
}

func TestApplySelectionKeepsManualPrice(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	state = cards.SetManualPrice(state, 999, "USD")

	next, err := cards.ApplySelection(state, sampleCandidate(), resolver, snapshot)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}
	if next.Price == nil || next.Price.Cents != 999 || !next.Price.Manual {
		t.Errorf("Price = %+v, want manual 999 preserved", next.Price)
	}
	if next.Selected == nil || next.Selected.ID != "swsh12-92" {
		t.Errorf("Selected = %+v, want swsh12-92", next.Selected)
	}
}

func TestApplySelectionWithoutCandidatePrice(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	state.Price = &cards.Price{Cents: 50, Currency: "USD"}

	candidate := sampleCandidate()
	candidate.PriceCents = 0
	next, err := cards.ApplySelection(state, candidate, resolver, snapshot)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}
	if next.Price != nil {
		t.Errorf("Price = %+v, want nil when the candidate has no price hint", next.Price)
	}
}

func TestApplyManualPathClearsSelection(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	selected, err := cards.ApplySelection(state, sampleCandidate(), resolver, snapshot)
	if err != nil {
		t.Fatalf("ApplySelection() error = %v", err)
	}

	manual := cards.ApplyManualPath(selected)
	if manual.Selected != nil {
		t.Error("Selected should be cleared on the manual path")
	}
	if manual.Price != nil {
		t.Errorf("Price = %+v, want candidate-derived price dropped", manual.Price)
	}
	if manual.Fields == nil || len(manual.Attributes) == 0 {
		t.Error("recognition output and attributes should survive the manual path")
	}
}

func TestApplyManualPathKeepsManualPrice(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)
	state = cards.SetManualPrice(state, 250, "USD")

	manual := cards.ApplyManualPath(state)
	if manual.Price == nil || manual.Price.Cents != 250 || !manual.Price.Manual {
		t.Errorf("Price = %+v, want manual 250 preserved", manual.Price)
	}
}

func TestIdentityFallsBackToDetectedFields(t *testing.T) {
	snapshot, resolver := selectionFixtures(t)
	state := detectedState(t, snapshot, resolver)

	identity := state.Identity()
	if identity.Name != "Charizord" || identity.Number != "4" || identity.SetName != "Base" {
		t.Errorf("Identity() = %+v, want detected fields", identity)
	}
	if identity.SetCode != "" || identity.Rarity != "" {
		t.Errorf("Identity() = %+v, want empty set code and rarity before selection", identity)
	}

	if got := (cards.ScanState{}).Identity(); got != (cards.Identity{}) {
		t.Errorf("zero state Identity() = %+v, want zero", got)
	}
}

func TestCandidateSetRoundTrip(t *testing.T) {
	set := cards.CandidateSet{
		Candidates: []catalog.Candidate{sampleCandidate()},
		Unfiltered: true,
		Attempts: []cards.SearchAttempt{
			{Mode: "name+number", Query: "Skwovet 092", Results: 1, Elapsed: 84},
		},
	}
	encoded, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	decoded := cards.CandidateSetFromJSON(string(encoded))
	if len(decoded.Candidates) != 1 || decoded.Candidates[0].ID != "swsh12-92" {
		t.Errorf("Candidates = %+v, want swsh12-92", decoded.Candidates)
	}
	if !decoded.Unfiltered {
		t.Error("Unfiltered flag lost in round trip")
	}
	if len(decoded.Attempts) != 1 || decoded.Attempts[0].Mode != "name+number" {
		t.Errorf("Attempts = %+v, want one name+number attempt", decoded.Attempts)
	}

	if got := cards.CandidateSetFromJSON(""); len(got.Candidates) != 0 || got.Unfiltered {
		t.Errorf("CandidateSetFromJSON(empty) = %+v, want zero set", got)
	}
}
