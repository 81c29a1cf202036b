package identification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"binder/internal/cards"
	"binder/internal/identification/catalog"
)

type fakeSearcher struct {
	responses map[string][]catalog.Candidate
	errs      map[string]error
	queries   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]catalog.Candidate, error) {
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.responses[query], nil
}

func (f *fakeSearcher) Ping(context.Context) error { return nil }

func detectedFields(name, number, setHint string) cards.DetectedCardFields {
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
	return fields
}

func candidateIDs(set cards.CandidateSet) []string {
	ids := make([]string, 0, len(set.Candidates))
	for _, candidate := range set.Candidates {
		ids = append(ids, candidate.ID)
	}
	return ids
}

func TestSearchStopsAfterNameNumberHit(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Skwovet 092 Silver Tempest": {{ID: "swsh12-92", Name: "Skwovet", Number: "092"}},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "092", "Silver Tempest"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(searcher.queries) != 1 {
		t.Fatalf("queries = %v, want the search to stop after the first hit", searcher.queries)
	}
	if got := candidateIDs(set); len(got) != 1 || got[0] != "swsh12-92" {
		t.Errorf("candidates = %v, want [swsh12-92]", got)
	}
	if len(set.Attempts) != 1 || set.Attempts[0].Mode != "name+number+set" {
		t.Errorf("attempts = %+v, want one name+number+set attempt", set.Attempts)
	}
}

func TestSearchFallsBackThroughModes(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Skwovet": {{ID: "swsh12-92", Name: "Skwovet", Number: "092"}},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "092", "Silver Tempest"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []string{"Skwovet 092 Silver Tempest", "Skwovet 092", "Skwovet"}
	if len(searcher.queries) != len(want) {
		t.Fatalf("queries = %v, want %v", searcher.queries, want)
	}
	for i := range want {
		if searcher.queries[i] != want[i] {
			t.Errorf("query[%d] = %q, want %q", i, searcher.queries[i], want[i])
		}
	}
	if len(set.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(set.Attempts))
	}
	if got := candidateIDs(set); len(got) != 1 || got[0] != "swsh12-92" {
		t.Errorf("candidates = %v, want [swsh12-92]", got)
	}
}

func TestSearchNumberFilterKeepsMatchingSlots(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Skwovet SWSH092": {
				{ID: "swshp-92", Name: "Skwovet", Number: "SWSH092"},
				{ID: "swsh12-92", Name: "Skwovet", Number: "092"},
				{ID: "swsh1-151", Name: "Skwovet", Number: "151"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "SWSH092", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if set.Unfiltered {
		t.Error("Unfiltered = true, want digit filter applied")
	}
	got := candidateIDs(set)
	if len(got) != 2 {
		t.Fatalf("candidates = %v, want both 092 print slots", got)
	}
	for _, id := range got {
		if id == "swsh1-151" {
			t.Error("candidate with digits 151 survived the filter")
		}
	}
}

func TestSearchNumberFilterFallsBackUnfiltered(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Skwovet 092": {
				{ID: "swsh1-4", Name: "Skwovet", Number: "4"},
				{ID: "swsh1-5", Name: "Skwovet", Number: "5"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "092", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !set.Unfiltered {
		t.Error("Unfiltered = false, want the unfiltered fallback flagged")
	}
	if len(set.Candidates) != 2 {
		t.Errorf("candidates = %v, want the full union kept", candidateIDs(set))
	}
}

func TestSearchLeadingZerosAreSignificant(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Skwovet 92": {{ID: "swsh12-92", Name: "Skwovet", Number: "092"}},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "92", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !set.Unfiltered {
		t.Error("digits 92 must not match digits 092")
	}
}

func TestSearchRankPrefersSetCodeMatch(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Charizard ex": {
				{ID: "a-1", Name: "Charizard ex", SetName: "Paldea Evolved", SetCode: "sv2", ReleasedAt: "2023-06-09"},
				{ID: "b-2", Name: "Charmander", SetName: "Obsidian Flames", SetCode: "sv3", ReleasedAt: "2023-08-11"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Charizard ex", "", "sv3"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); got[0] != "b-2" {
		t.Errorf("candidates = %v, want the set-code match first despite lower name similarity", got)
	}
}

func TestSearchRankPrefersSetNameOverSimilarity(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Charizard ex": {
				{ID: "a-1", Name: "Charizard ex", SetName: "Paldea Evolved", SetCode: "sv2"},
				{ID: "b-2", Name: "Charmander", SetName: "Obsidian Flames", SetCode: "sv3"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Charizard ex", "", "Obsidian Flames"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); got[0] != "b-2" {
		t.Errorf("candidates = %v, want the set-name match first", got)
	}
}

func TestSearchRankSimilarityBeforeRecency(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Charizard ex": {
				{ID: "new-1", Name: "Charmander", ReleasedAt: "2024-01-26"},
				{ID: "old-1", Name: "Charizard ex", ReleasedAt: "1999-01-09"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Charizard ex", "", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); got[0] != "old-1" {
		t.Errorf("candidates = %v, want the exact name first regardless of age", got)
	}
}

func TestSearchRankRecencyBreaksEqualNames(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Pikachu": {
				{ID: "old-1", Name: "Pikachu", ReleasedAt: "2001-03-01"},
				{ID: "new-1", Name: "Pikachu", ReleasedAt: "2023-06-09"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Pikachu", "", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); got[0] != "new-1" {
		t.Errorf("candidates = %v, want the newer printing first", got)
	}
}

func TestSearchRankTieBreaksByID(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Pikachu": {
				{ID: "zzz-9", Name: "Pikachu", ReleasedAt: "2023-06-09"},
				{ID: "aaa-1", Name: "Pikachu", ReleasedAt: "2023-06-09"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Pikachu", "", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); got[0] != "aaa-1" || got[1] != "zzz-9" {
		t.Errorf("candidates = %v, want deterministic id order on ties", got)
	}
}

func TestSearchTruncatesOnlyAfterRanking(t *testing.T) {
	searcher := &fakeSearcher{
		responses: map[string][]catalog.Candidate{
			"Eevee": {
				{ID: "d-4", Name: "Eevee", SetCode: "sv1"},
				{ID: "c-3", Name: "Eevee", SetCode: "sv2"},
				{ID: "b-2", Name: "Eevee", SetCode: "sv4"},
				{ID: "a-1", Name: "Eevee", SetCode: "sv3pt5"},
			},
		},
	}
	engine := NewEngine(searcher, nil, 2)

	set, err := engine.Search(context.Background(), detectedFields("Eevee", "", "sv3pt5"))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	got := candidateIDs(set)
	if len(got) != 2 {
		t.Fatalf("candidates = %v, want the list bounded to 2", got)
	}
	if got[0] != "a-1" {
		t.Errorf("candidates = %v, want the set-code match ranked in before truncation", got)
	}
}

func TestSearchWithoutNameSkips(t *testing.T) {
	searcher := &fakeSearcher{}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), cards.DetectedCardFields{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(searcher.queries) != 0 {
		t.Errorf("queries = %v, want none without a name", searcher.queries)
	}
	if len(set.Candidates) != 0 || set.Unfiltered {
		t.Errorf("set = %+v, want the zero set", set)
	}
}

func TestSearchTransportFailureSurfacesError(t *testing.T) {
	searcher := &fakeSearcher{
		errs: map[string]error{"Skwovet": errors.New("connection refused")},
	}
	engine := NewEngine(searcher, nil, 0)

	_, err := engine.Search(context.Background(), detectedFields("Skwovet", "", ""))
	if err == nil {
		t.Fatal("Search() should fail when every attempt failed")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want the transport error surfaced", err)
	}
}

func TestSearchAttemptFailureFallsBack(t *testing.T) {
	searcher := &fakeSearcher{
		errs: map[string]error{"Skwovet 092": errors.New("gateway timeout")},
		responses: map[string][]catalog.Candidate{
			"Skwovet": {{ID: "swsh12-92", Name: "Skwovet", Number: "092"}},
		},
	}
	engine := NewEngine(searcher, nil, 0)

	set, err := engine.Search(context.Background(), detectedFields("Skwovet", "092", ""))
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := candidateIDs(set); len(got) != 1 || got[0] != "swsh12-92" {
		t.Errorf("candidates = %v, want the fallback result", got)
	}
	if len(set.Attempts) != 2 {
		t.Errorf("attempts = %+v, want the failed attempt recorded", set.Attempts)
	}
}
