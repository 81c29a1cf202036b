package cards

import (
	"encoding/json"
	"fmt"

	"binder/internal/identification/catalog"
	"binder/internal/queue"
	"binder/internal/taxonomy"
)

// SetItemDetectedFields stores the recognition output. A nil value clears the column.
func SetItemDetectedFields(i *queue.Item, fields *DetectedCardFields) error {
	if fields == nil {
		i.FieldsJSON = ""
		return nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal detected fields: %w", err)
	}
	i.FieldsJSON = string(data)
	return nil
}

// SetItemCandidates stores the candidate set. An empty set clears the column.
func SetItemCandidates(i *queue.Item, set CandidateSet) error {
	if len(set.Candidates) == 0 && len(set.Attempts) == 0 && !set.Unfiltered {
		i.CandidatesJSON = ""
		return nil
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}
	i.CandidatesJSON = string(data)
	return nil
}

// SetItemAttributes stores resolved attributes. A nil map clears the column.
func SetItemAttributes(i *queue.Item, resolved taxonomy.Resolved) error {
	if len(resolved) == 0 {
		i.AttributesJSON = ""
		return nil
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	i.AttributesJSON = string(data)
	return nil
}

// SetItemSelectedCandidate stores the confirmed candidate. Nil clears the column.
func SetItemSelectedCandidate(i *queue.Item, candidate *catalog.Candidate) error {
	if candidate == nil {
		i.SelectedJSON = ""
		return nil
	}
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("marshal selected candidate: %w", err)
	}
	i.SelectedJSON = string(data)
	return nil
}

// SetItemPrice stores the listing price. Nil clears the column.
func SetItemPrice(i *queue.Item, price *Price) error {
	if price == nil {
		i.PriceJSON = ""
		return nil
	}
	data, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}
	i.PriceJSON = string(data)
	return nil
}

// ItemScanState assembles the per-scan payload columns into one working state.
func ItemScanState(i *queue.Item) ScanState {
	return ScanState{
		Fields:     DetectedFieldsFromJSON(i.FieldsJSON),
		Candidates: CandidateSetFromJSON(i.CandidatesJSON),
		Attributes: AttributesFromJSON(i.AttributesJSON),
		Selected:   SelectedFromJSON(i.SelectedJSON),
		Price:      PriceFromJSON(i.PriceJSON),
	}
}

// ApplyItemScanState writes every payload column from the provided state.
func ApplyItemScanState(i *queue.Item, state ScanState) error {
	if err := SetItemDetectedFields(i, state.Fields); err != nil {
		return err
	}
	if err := SetItemCandidates(i, state.Candidates); err != nil {
		return err
	}
	if err := SetItemAttributes(i, state.Attributes); err != nil {
		return err
	}
	if err := SetItemSelectedCandidate(i, state.Selected); err != nil {
		return err
	}
	return SetItemPrice(i, state.Price)
}

// ItemIdentity returns the card identity the scan currently answers to,
// preferring the confirmed candidate over raw recognition output.
func ItemIdentity(i *queue.Item) Identity {
	return ItemScanState(i).Identity()
}
