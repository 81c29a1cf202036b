package api

import (
	"slices"
	"time"

	"binder/internal/cards"
	"binder/internal/identification/catalog"
	"binder/internal/preflight"
	"binder/internal/queue"
	"binder/internal/stage"
	"binder/internal/taxonomy"
	"binder/internal/workflow"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:             item.ID,
		ScanTitle:      item.ScanTitle,
		SourcePath:     item.SourcePath,
		StagedFile:     item.StagedFile,
		Status:         string(item.Status),
		ProcessingLane: string(queue.LaneForItem(item)),
		Progress: QueueProgress{
			Stage:   item.ProgressStage,
			Percent: item.ProgressPercent,
			Message: item.ProgressMessage,
		},
		ErrorMessage:      item.ErrorMessage,
		SourceFingerprint: item.SourceFingerprint,
		BatchID:           item.BatchID,
		MimeType:          item.MimeType,
		SideHint:          item.SideHint,
		LocationCode:      item.LocationCode,
		NeedsReview:       item.NeedsReview,
		ReviewReason:      item.ReviewReason,
		ScanLogPath:       item.ScanLogPath,
	}

	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = item.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !item.UpdatedAt.IsZero() {
		dto.UpdatedAt = item.UpdatedAt.UTC().Format(dateTimeFormat)
	}

	dto.Fields = fromCardFields(cards.DetectedFieldsFromJSON(item.FieldsJSON))
	set := cards.CandidateSetFromJSON(item.CandidatesJSON)
	dto.Candidates = FromCandidates(set.Candidates)
	dto.CandidatesRelaxed = set.Unfiltered
	dto.SearchAttempts = fromSearchAttempts(set.Attempts)
	if attrs := cards.AttributesFromJSON(item.AttributesJSON); len(attrs) > 0 {
		dto.Attributes = make(map[string]string, len(attrs))
		for group, option := range attrs {
			dto.Attributes[group] = option
		}
	}
	if selected := cards.SelectedFromJSON(item.SelectedJSON); selected != nil {
		candidate := FromCandidate(*selected)
		dto.Selected = &candidate
	}
	if price := cards.PriceFromJSON(item.PriceJSON); price != nil {
		dto.Price = &Price{Cents: price.Cents, Currency: price.Currency, Manual: price.Manual}
	}
	if listing := item.Listing(); listing != nil {
		dto.Listing = &Listing{
			ID:          listing.ID,
			URL:         listing.URL,
			SKU:         listing.SKU,
			PublishedAt: FormatTime(listing.PublishedAt),
		}
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromCandidate converts a catalog row to its transport form.
func FromCandidate(candidate catalog.Candidate) Candidate {
	return Candidate{
		ID:            candidate.ID,
		Name:          candidate.Name,
		Number:        candidate.Number,
		NumberDisplay: candidate.NumberDisplay,
		SetName:       candidate.SetName,
		SetCode:       candidate.SetCode,
		Rarity:        candidate.Rarity,
		ImageSmall:    candidate.ImageSmall,
		ImageLarge:    candidate.ImageLarge,
		PriceCents:    candidate.PriceCents,
		Currency:      candidate.Currency,
		ReleasedAt:    candidate.ReleasedAt,
	}
}

// FromCandidates converts a ranked candidate list.
func FromCandidates(candidates []catalog.Candidate) []Candidate {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, FromCandidate(candidate))
	}
	return out
}

func fromCardFields(fields *cards.DetectedCardFields) *CardFields {
	if fields == nil {
		return nil
	}
	return &CardFields{
		Name:        fields.Name,
		Number:      fields.Number,
		SetHint:     fields.SetHint,
		RarityText:  fields.RarityText,
		EnergyText:  fields.EnergyText,
		CardType:    fields.CardType,
		VariantText: fields.VariantText,
	}
}

func fromSearchAttempts(attempts []cards.SearchAttempt) []SearchAttempt {
	if len(attempts) == 0 {
		return nil
	}
	out := make([]SearchAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		out = append(out, SearchAttempt{
			Mode:      attempt.Mode,
			Query:     attempt.Query,
			Results:   attempt.Results,
			ElapsedMS: attempt.Elapsed,
		})
	}
	return out
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	wf := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  MergeQueueStats(summary.QueueStats),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if summary.LastError != "" {
		wf.LastError = summary.LastError
	}
	if summary.LastItem != nil {
		last := FromQueueItem(summary.LastItem)
		wf.LastItem = &last
	}
	return wf
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// StageHealthSlice converts a stage health map into a deterministic slice.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	if len(health) == 0 {
		return nil
	}
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromPreflightResults converts readiness checks into dependency payloads.
func FromPreflightResults(results []preflight.Result) []DependencyStatus {
	if len(results) == 0 {
		return nil
	}
	out := make([]DependencyStatus, 0, len(results))
	for _, result := range results {
		out = append(out, DependencyStatus{
			Name:      result.Name,
			Available: result.Passed,
			Detail:    result.Detail,
		})
	}
	return out
}

// FromSnapshot converts a taxonomy snapshot into its transport form.
func FromSnapshot(snapshot *taxonomy.Snapshot) TaxonomyResponse {
	if snapshot == nil {
		return TaxonomyResponse{}
	}
	resp := TaxonomyResponse{
		Source:    snapshot.Source,
		FetchedAt: FormatTime(snapshot.FetchedAt),
		Groups:    make([]TaxonomyGroup, 0, len(snapshot.Groups)),
	}
	for _, group := range snapshot.Groups {
		options := make([]TaxonomyOption, 0, len(group.Options))
		for _, option := range group.Options {
			options = append(options, TaxonomyOption{ID: option.ID, Label: option.Label})
		}
		resp.Groups = append(resp.Groups, TaxonomyGroup{ID: group.ID, Name: group.Name, Options: options})
	}
	return resp
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
