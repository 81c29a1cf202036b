package cards

import (
	"encoding/json"
	"fmt"
	"strings"

	"binder/internal/taxonomy"
)

// Card type values recognized at the extraction boundary.
const (
	CardTypePokemon = "Pokemon"
	CardTypeTrainer = "Trainer"
	CardTypeEnergy  = "Energy"
)

// DetectedCardFields is the recognition output for one scan. Every field
// is optional: nil means the model could not read that region of the
// card, never that the field was skipped.
type DetectedCardFields struct {
	Name        *string `json:"name"`
	Number      *string `json:"number"`
	SetHint     *string `json:"set_hint"`
	RarityText  *string `json:"rarity_text"`
	EnergyText  *string `json:"energy_text"`
	CardType    *string `json:"card_type"`
	VariantText *string `json:"variant_text"`
}

var detectedFieldKeys = []string{
	"name",
	"number",
	"set_hint",
	"rarity_text",
	"energy_text",
	"card_type",
	"variant_text",
}

// DecodeDetectedFields parses a recognition payload. Every known key must
// be present so that an omitted field cannot masquerade as an unreadable
// one; values must be strings or explicit nulls. Blank strings fold to
// nil. Unknown keys are ignored.
func DecodeDetectedFields(data []byte) (DetectedCardFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return DetectedCardFields{}, fmt.Errorf("decode detected fields: %w", err)
	}

	values := make(map[string]*string, len(detectedFieldKeys))
	for _, key := range detectedFieldKeys {
		message, ok := raw[key]
		if !ok {
			return DetectedCardFields{}, fmt.Errorf("detected fields missing key %q", key)
		}
		var value *string
		if err := json.Unmarshal(message, &value); err != nil {
			return DetectedCardFields{}, fmt.Errorf("detected field %q is not a string or null", key)
		}
		if value != nil {
			trimmed := strings.TrimSpace(*value)
			if trimmed == "" {
				value = nil
			} else {
				value = &trimmed
			}
		}
		values[key] = value
	}

	fields := DetectedCardFields{
		Name:        values["name"],
		Number:      values["number"],
		SetHint:     values["set_hint"],
		RarityText:  values["rarity_text"],
		EnergyText:  values["energy_text"],
		CardType:    values["card_type"],
		VariantText: values["variant_text"],
	}
	if fields.CardType != nil {
		canonical, err := canonicalCardType(*fields.CardType)
		if err != nil {
			return DetectedCardFields{}, err
		}
		fields.CardType = &canonical
	}
	return fields, nil
}

func canonicalCardType(value string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pokemon", "pokémon":
		return CardTypePokemon, nil
	case "trainer":
		return CardTypeTrainer, nil
	case "energy":
		return CardTypeEnergy, nil
	}
	return "", fmt.Errorf("detected card_type %q is not one of Pokemon, Trainer, Energy", value)
}

// AllNull reports whether recognition produced no usable field, the
// explicit unreadable-image outcome.
func (f DetectedCardFields) AllNull() bool {
	return f.Name == nil && f.Number == nil && f.SetHint == nil &&
		f.RarityText == nil && f.EnergyText == nil && f.CardType == nil &&
		f.VariantText == nil
}

// ResolverInputs maps the free-text recognition fields onto the taxonomy
// resolver's input set.
func (f DetectedCardFields) ResolverInputs() taxonomy.Inputs {
	return taxonomy.Inputs{
		RarityText:  deref(f.RarityText),
		VariantText: deref(f.VariantText),
		EnergyText:  deref(f.EnergyText),
	}
}

// DetectedFieldsFromJSON decodes a stored recognition payload, returning
// nil when the column is empty or unreadable.
func DetectedFieldsFromJSON(data string) *DetectedCardFields {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var fields DetectedCardFields
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil
	}
	return &fields
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
