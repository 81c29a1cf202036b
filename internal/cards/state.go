package cards

import (
	"encoding/json"
	"strings"

	"binder/internal/identification/catalog"
	"binder/internal/taxonomy"
)

// SearchAttempt summarizes one catalog query issued while gathering
// candidates for a scan.
type SearchAttempt struct {
	Mode    string `json:"mode"`
	Query   string `json:"query"`
	Results int    `json:"results"`
	Elapsed int64  `json:"elapsed_ms"`
}

// CandidateSet is the ranked candidate list stored on a queue item.
// Unfiltered marks a list that kept number mismatches because filtering
// would have discarded every result.
type CandidateSet struct {
	Candidates []catalog.Candidate `json:"candidates"`
	Unfiltered bool                `json:"unfiltered"`
	Attempts   []SearchAttempt     `json:"attempts,omitempty"`
}

// Price is the listing price attached to a scan. Manual marks a
// hand-edited value that must survive candidate reselection.
type Price struct {
	Cents    int64  `json:"cents"`
	Currency string `json:"currency"`
	Manual   bool   `json:"manual"`
}

// ScanState gathers the per-scan payloads that queue items persist in
// separate columns.
type ScanState struct {
	Fields     *DetectedCardFields
	Candidates CandidateSet
	Attributes taxonomy.Resolved
	Selected   *catalog.Candidate
	Price      *Price
}

// Identity is the card identity a listing is published under.
type Identity struct {
	Name    string `json:"name"`
	Number  string `json:"number"`
	SetName string `json:"set_name"`
	SetCode string `json:"set_code"`
	Rarity  string `json:"rarity"`
}

// Identity returns the current card identity, preferring the confirmed
// candidate over raw recognition output.
func (s ScanState) Identity() Identity {
	if s.Selected != nil {
		number := s.Selected.NumberDisplay
		if number == "" {
			number = s.Selected.Number
		}
		return Identity{
			Name:    s.Selected.Name,
			Number:  number,
			SetName: s.Selected.SetName,
			SetCode: s.Selected.SetCode,
			Rarity:  s.Selected.Rarity,
		}
	}
	if s.Fields == nil {
		return Identity{}
	}
	return Identity{
		Name:    deref(s.Fields.Name),
		Number:  deref(s.Fields.Number),
		SetName: deref(s.Fields.SetHint),
	}
}

// CandidateSetFromJSON decodes a stored candidate list, returning the
// zero set when the column is empty or unreadable.
func CandidateSetFromJSON(data string) CandidateSet {
	var set CandidateSet
	if strings.TrimSpace(data) == "" {
		return set
	}
	_ = json.Unmarshal([]byte(data), &set)
	return set
}

// AttributesFromJSON decodes stored resolved attributes, returning nil
// when the column is empty or unreadable.
func AttributesFromJSON(data string) taxonomy.Resolved {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var resolved taxonomy.Resolved
	if err := json.Unmarshal([]byte(data), &resolved); err != nil {
		return nil
	}
	return resolved
}

// SelectedFromJSON decodes a stored selected candidate, returning nil
// when the column is empty or unreadable.
func SelectedFromJSON(data string) *catalog.Candidate {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var candidate catalog.Candidate
	if err := json.Unmarshal([]byte(data), &candidate); err != nil {
		return nil
	}
	return &candidate
}

// PriceFromJSON decodes a stored price, returning nil when the column is
// empty or unreadable.
func PriceFromJSON(data string) *Price {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var price Price
	if err := json.Unmarshal([]byte(data), &price); err != nil {
		return nil
	}
	return &price
}
