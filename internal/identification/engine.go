package identification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"binder/internal/cardnum"
	"binder/internal/cards"
	"binder/internal/identification/catalog"
	"binder/internal/logging"
	"binder/internal/textutil"
)

const defaultMaxCandidates = 12

type searchMode string

const (
	searchModeNameNumberSet searchMode = "name+number+set"
	searchModeNameNumber    searchMode = "name+number"
	searchModeName          searchMode = "name"
)

// searchStep is one planned catalog query.
type searchStep struct {
	mode      searchMode
	query     string
	hasNumber bool
}

// Engine turns recognition output into a ranked, bounded candidate list.
type Engine struct {
	searcher      catalog.Searcher
	logger        *slog.Logger
	maxCandidates int
}

// NewEngine constructs a search engine over the given catalog client.
func NewEngine(searcher catalog.Searcher, logger *slog.Logger, maxCandidates int) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidates
	}
	return &Engine{searcher: searcher, logger: logger, maxCandidates: maxCandidates}
}

// SetLogger updates the engine's logging destination.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	e.logger = logger
}

// Search runs staged catalog queries for the detected fields and returns
// the ranked candidate set. An empty set is a valid outcome; the call
// fails only when transport errors left the working set empty.
func (e *Engine) Search(ctx context.Context, fields cards.DetectedCardFields) (cards.CandidateSet, error) {
	plan := buildSearchPlan(fields)
	if len(plan) == 0 {
		e.logger.Debug("candidate search skipped",
			logging.String("reason", "no card name detected"))
		return cards.CandidateSet{}, nil
	}

	var (
		union    []catalog.Candidate
		attempts []cards.SearchAttempt
		lastErr  error
	)
	seen := make(map[string]struct{})
	for _, step := range plan {
		started := time.Now()
		rows, err := e.searcher.Search(ctx, step.query)
		elapsed := time.Since(started)
		attempts = append(attempts, cards.SearchAttempt{
			Mode:    string(step.mode),
			Query:   step.query,
			Results: len(rows),
			Elapsed: elapsed.Milliseconds(),
		})
		if err != nil {
			lastErr = err
			e.logger.Warn("catalog search attempt failed",
				logging.String("mode", string(step.mode)),
				logging.String("query", step.query),
				logging.Error(err),
				logging.String(logging.FieldEventType, "catalog_search_failed"),
				logging.String(logging.FieldErrorHint, "verify catalog credentials and connectivity"),
				logging.String(logging.FieldImpact, "falling back to a broader query"),
			)
			continue
		}
		e.logger.Debug("catalog search attempt",
			logging.String("mode", string(step.mode)),
			logging.String("query", step.query),
			logging.Int("results", len(rows)),
			logging.Duration("elapsed", elapsed))

		for _, row := range rows {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			union = append(union, row)
		}
		if step.hasNumber && len(rows) > 0 {
			break
		}
	}

	if len(union) == 0 && lastErr != nil {
		return cards.CandidateSet{Attempts: attempts}, fmt.Errorf("candidate search: %w", lastErr)
	}

	kept, unfiltered := filterByNumber(fields, union)
	ranked := e.rank(fields, kept)
	if len(ranked) > e.maxCandidates {
		ranked = ranked[:e.maxCandidates]
	}

	topID := ""
	if len(ranked) > 0 {
		topID = ranked[0].ID
	}
	result := "candidates"
	if len(ranked) == 0 {
		result = "empty"
	}
	e.logger.Info("candidate search complete",
		logging.Int("attempts", len(attempts)),
		logging.Int("union_size", len(union)),
		logging.Int("candidates", len(ranked)),
		logging.Bool("number_filter_skipped", unfiltered),
		logging.String("top_candidate", topID),
		logging.String(logging.FieldEventType, "decision_summary"),
		logging.String(logging.FieldDecisionType, "candidate_search"),
		logging.String("decision_result", result),
		logging.String("decision_reason", fmt.Sprintf("union=%d kept=%d unfiltered_fallback=%t", len(union), len(ranked), unfiltered)),
		logging.String("decision_options", "rank, fall back unfiltered, return empty"),
	)
	return cards.CandidateSet{Candidates: ranked, Unfiltered: unfiltered, Attempts: attempts}, nil
}

// buildSearchPlan orders queries from most to least specific. Without a
// detected name there is nothing to search for.
func buildSearchPlan(fields cards.DetectedCardFields) []searchStep {
	name := fieldValue(fields.Name)
	if name == "" {
		return nil
	}
	number := fieldValue(fields.Number)
	setHint := fieldValue(fields.SetHint)

	var plan []searchStep
	if number != "" && setHint != "" {
		plan = append(plan, searchStep{
			mode:      searchModeNameNumberSet,
			query:     joinQuery(name, number, setHint),
			hasNumber: true,
		})
	}
	if number != "" {
		plan = append(plan, searchStep{
			mode:      searchModeNameNumber,
			query:     joinQuery(name, number),
			hasNumber: true,
		})
	}
	plan = append(plan, searchStep{mode: searchModeName, query: name})
	return plan
}

// filterByNumber applies the print-slot rule as a hard post-filter. When
// filtering would discard every candidate, the unfiltered union is kept
// and flagged instead so review still has something to show.
func filterByNumber(fields cards.DetectedCardFields, union []catalog.Candidate) ([]catalog.Candidate, bool) {
	number := fieldValue(fields.Number)
	if number == "" || len(union) == 0 {
		return union, false
	}
	detected := cardnum.Normalize(number)
	if !detected.HasDigits() && detected.Prefix == "" {
		return union, false
	}

	kept := make([]catalog.Candidate, 0, len(union))
	for _, candidate := range union {
		if detected.SamePrintSlot(cardnum.Normalize(candidate.Number)) {
			kept = append(kept, candidate)
		}
	}
	if len(kept) == 0 {
		return union, true
	}
	return kept, false
}

// candidateScore orders candidates tier by tier: an exact set-code match
// beats an exact set-name match beats name similarity beats recency.
type candidateScore struct {
	setCode    bool
	setName    bool
	similarity float64
	recency    float64
}

func (s candidateScore) better(other candidateScore) bool {
	if s.setCode != other.setCode {
		return s.setCode
	}
	if s.setName != other.setName {
		return s.setName
	}
	if s.similarity != other.similarity {
		return s.similarity > other.similarity
	}
	return s.recency > other.recency
}

func (e *Engine) rank(fields cards.DetectedCardFields, candidates []catalog.Candidate) []catalog.Candidate {
	if len(candidates) <= 1 {
		return candidates
	}
	name := fieldValue(fields.Name)
	setHint := fieldValue(fields.SetHint)

	type scoredCandidate struct {
		candidate catalog.Candidate
		score     candidateScore
	}
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		score := scoreCandidate(name, setHint, candidate)
		e.logger.Debug("candidate scoring",
			logging.String("candidate_id", candidate.ID),
			logging.String("candidate_name", candidate.Name),
			logging.Bool("set_code_match", score.setCode),
			logging.Bool("set_name_match", score.setName),
			logging.Float64("name_similarity", score.similarity),
			logging.Float64("recency", score.recency))
		scored = append(scored, scoredCandidate{candidate: candidate, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score.better(scored[j].score) {
			return true
		}
		if scored[j].score.better(scored[i].score) {
			return false
		}
		return scored[i].candidate.ID < scored[j].candidate.ID
	})

	ranked := make([]catalog.Candidate, len(scored))
	for i, entry := range scored {
		ranked[i] = entry.candidate
	}
	return ranked
}

func scoreCandidate(name, setHint string, candidate catalog.Candidate) candidateScore {
	score := candidateScore{
		similarity: textutil.NameSimilarity(name, candidate.Name),
		recency:    recencyScore(candidate.ReleasedAt),
	}
	if setHint != "" {
		score.setCode = sameLabel(setHint, candidate.SetCode)
		score.setName = sameLabel(setHint, candidate.SetName)
	}
	return score
}

func sameLabel(a, b string) bool {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return false
	}
	return strings.EqualFold(textutil.FoldDiacritics(a), textutil.FoldDiacritics(b))
}

// recencyScore maps the release date onto [0, 1]: released today scores
// 1, fifty years old or undated scores 0.
func recencyScore(released string) float64 {
	released = strings.TrimSpace(released)
	if released == "" {
		return 0
	}
	when, err := time.Parse("2006-01-02", released)
	if err != nil {
		return 0
	}
	age := time.Since(when)
	if age < 0 {
		age = 0
	}
	const window = 50 * 365 * 24 * time.Hour
	if age >= window {
		return 0
	}
	return 1 - float64(age)/float64(window)
}

func joinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}

func fieldValue(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
