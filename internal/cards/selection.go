package cards

import (
	"binder/internal/identification/catalog"
	"binder/internal/taxonomy"
)

// CandidateInputs maps a catalog candidate onto the taxonomy resolver's
// input set. Catalog rarity strings such as "Rare Holo" carry the finish
// alongside the tier, so rarity text is the only signal needed.
func CandidateInputs(candidate catalog.Candidate) taxonomy.Inputs {
	return taxonomy.Inputs{RarityText: candidate.Rarity}
}

// ApplySelection returns the state after a reviewer confirms a
// candidate. Identity and attributes are rebuilt from the candidate
// alone; the only value that survives from the previous state is a
// hand-edited price.
func ApplySelection(state ScanState, candidate catalog.Candidate, resolver *taxonomy.Resolver, snapshot *taxonomy.Snapshot) (ScanState, error) {
	resolved, err := resolver.Resolve(snapshot, CandidateInputs(candidate))
	if err != nil {
		return state, err
	}

	next := state
	next.Selected = &candidate
	next.Attributes = resolved
	if state.Price != nil && state.Price.Manual {
		next.Price = state.Price
	} else {
		next.Price = candidatePrice(candidate)
	}
	return next, nil
}

// ApplyManualPath clears any selection while keeping recognition output
// and resolved attributes, so the scan can be completed by hand. A
// candidate-derived price no longer applies; a hand-edited one stays.
func ApplyManualPath(state ScanState) ScanState {
	next := state
	next.Selected = nil
	if next.Price != nil && !next.Price.Manual {
		next.Price = nil
	}
	return next
}

// SetManualPrice records a hand-edited price that survives reselection.
func SetManualPrice(state ScanState, cents int64, currency string) ScanState {
	next := state
	next.Price = &Price{Cents: cents, Currency: currency, Manual: true}
	return next
}

func candidatePrice(candidate catalog.Candidate) *Price {
	if candidate.PriceCents <= 0 {
		return nil
	}
	return &Price{Cents: candidate.PriceCents, Currency: candidate.Currency}
}
