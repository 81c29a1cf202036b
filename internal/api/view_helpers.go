package api

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// FieldValue dereferences an optional card field for display.
func FieldValue(field *string, fallback string) string {
	if field == nil || *field == "" {
		return fallback
	}
	return *field
}

// ItemTitle returns the best display title for a queue item: the scan
// title when set, then detected name plus number, then the staged
// filename, then a positional placeholder.
func ItemTitle(item QueueItem) string {
	if item.ScanTitle != "" {
		return item.ScanTitle
	}
	if item.Fields != nil {
		name := FieldValue(item.Fields.Name, "")
		if name != "" {
			if number := FieldValue(item.Fields.Number, ""); number != "" {
				return name + " " + number
			}
			return name
		}
	}
	if item.StagedFile != "" {
		return filepath.Base(item.StagedFile)
	}
	if item.SourcePath != "" {
		return filepath.Base(item.SourcePath)
	}
	return fmt.Sprintf("Scan #%d", item.ID)
}

// CandidateLabel renders a catalog candidate on one line for review tables.
func CandidateLabel(candidate Candidate) string {
	parts := make([]string, 0, 3)
	name := candidate.Name
	if number := candidateNumber(candidate); number != "" {
		name = strings.TrimSpace(name + " " + number)
	}
	if name != "" {
		parts = append(parts, name)
	}
	if set := candidateSet(candidate); set != "" {
		parts = append(parts, set)
	}
	if candidate.Rarity != "" {
		parts = append(parts, candidate.Rarity)
	}
	if len(parts) == 0 {
		return candidate.ID
	}
	return strings.Join(parts, " · ")
}

func candidateNumber(candidate Candidate) string {
	if candidate.NumberDisplay != "" {
		return candidate.NumberDisplay
	}
	return candidate.Number
}

func candidateSet(candidate Candidate) string {
	switch {
	case candidate.SetName != "" && candidate.SetCode != "":
		return fmt.Sprintf("%s (%s)", candidate.SetName, candidate.SetCode)
	case candidate.SetName != "":
		return candidate.SetName
	default:
		return candidate.SetCode
	}
}

// PriceLabel renders a price in whole currency units, marking hand-set values.
func PriceLabel(price *Price) string {
	if price == nil {
		return ""
	}
	currency := price.Currency
	if currency == "" {
		currency = "USD"
	}
	label := fmt.Sprintf("%d.%02d %s", price.Cents/100, price.Cents%100, currency)
	if price.Manual {
		label += " (manual)"
	}
	return label
}

// FormatAttributes renders resolved attributes as sorted "group: option" lines.
func FormatAttributes(attributes map[string]string) []string {
	if len(attributes) == 0 {
		return nil
	}
	lines := make([]string, 0, len(attributes))
	for group, option := range attributes {
		lines = append(lines, group+": "+option)
	}
	sort.Strings(lines)
	return lines
}
