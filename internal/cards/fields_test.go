package cards_test

import (
	"strings"
	"testing"

	"binder/internal/cards"
)

const fullPayload = `{
	"name": "Skwovet",
	"number": "092",
	"set_hint": "Silver Tempest",
	"rarity_text": "Common",
	"energy_text": "Colorless",
	"card_type": "Pokemon",
	"variant_text": "Reverse Holo"
}`

func TestDecodeDetectedFieldsFullPayload(t *testing.T) {
	fields, err := cards.DecodeDetectedFields([]byte(fullPayload))
	if err != nil {
		t.Fatalf("DecodeDetectedFields() error = %v", err)
	}
	if fields.Name == nil || *fields.Name != "Skwovet" {
		t.Errorf("Name = %v, want Skwovet", fields.Name)
	}
	if fields.Number == nil || *fields.Number != "092" {
		t.Errorf("Number = %v, want 092", fields.Number)
	}
	if fields.CardType == nil || *fields.CardType != cards.CardTypePokemon {
		t.Errorf("CardType = %v, want %s", fields.CardType, cards.CardTypePokemon)
	}
	if fields.AllNull() {
		t.Error("AllNull() = true for a populated payload")
	}
}

func TestDecodeDetectedFieldsRequiresEveryKey(t *testing.T) {
	payload := `{
		"name": "Skwovet",
		"number": "092",
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": null
	}`
	_, err := cards.DecodeDetectedFields([]byte(payload))
	if err == nil {
		t.Fatal("DecodeDetectedFields() accepted a payload missing variant_text")
	}
	if !strings.Contains(err.Error(), "variant_text") {
		t.Errorf("error = %v, want mention of variant_text", err)
	}
}

func TestDecodeDetectedFieldsAcceptsAllNulls(t *testing.T) {
	payload := `{
		"name": null,
		"number": null,
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": null,
		"variant_text": null
	}`
	fields, err := cards.DecodeDetectedFields([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeDetectedFields() error = %v", err)
	}
	if !fields.AllNull() {
		t.Error("AllNull() = false for an all-null payload")
	}
}

func TestDecodeDetectedFieldsFoldsBlankToNull(t *testing.T) {
	payload := `{
		"name": "   ",
		"number": "",
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": null,
		"variant_text": null
	}`
	fields, err := cards.DecodeDetectedFields([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeDetectedFields() error = %v", err)
	}
	if fields.Name != nil {
		t.Errorf("Name = %q, want nil for a blank string", *fields.Name)
	}
	if fields.Number != nil {
		t.Errorf("Number = %q, want nil for an empty string", *fields.Number)
	}
}

func TestDecodeDetectedFieldsRejectsNonStringValue(t *testing.T) {
	payload := `{
		"name": "Skwovet",
		"number": 92,
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": null,
		"variant_text": null
	}`
	_, err := cards.DecodeDetectedFields([]byte(payload))
	if err == nil {
		t.Fatal("DecodeDetectedFields() accepted a numeric number")
	}
	if !strings.Contains(err.Error(), "number") {
		t.Errorf("error = %v, want mention of number", err)
	}
}

func TestDecodeDetectedFieldsCanonicalizesCardType(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"pokemon", cards.CardTypePokemon},
		{"Pokémon", cards.CardTypePokemon},
		{"TRAINER", cards.CardTypeTrainer},
		{"energy", cards.CardTypeEnergy},
	}
	for _, tt := range tests {
		payload := `{
			"name": null,
			"number": null,
			"set_hint": null,
			"rarity_text": null,
			"energy_text": null,
			"card_type": "` + tt.raw + `",
			"variant_text": null
		}`
		fields, err := cards.DecodeDetectedFields([]byte(payload))
		if err != nil {
			t.Fatalf("DecodeDetectedFields(card_type=%q) error = %v", tt.raw, err)
		}
		if fields.CardType == nil || *fields.CardType != tt.want {
			t.Errorf("card_type %q resolved to %v, want %s", tt.raw, fields.CardType, tt.want)
		}
	}
}

func TestDecodeDetectedFieldsRejectsUnknownCardType(t *testing.T) {
	payload := `{
		"name": null,
		"number": null,
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": "Spell",
		"variant_text": null
	}`
	if _, err := cards.DecodeDetectedFields([]byte(payload)); err == nil {
		t.Fatal("DecodeDetectedFields() accepted card_type Spell")
	}
}

func TestDecodeDetectedFieldsIgnoresUnknownKeys(t *testing.T) {
	payload := `{
		"name": "Skwovet",
		"number": null,
		"set_hint": null,
		"rarity_text": null,
		"energy_text": null,
		"card_type": null,
		"variant_text": null,
		"confidence": 0.92
	}`
	fields, err := cards.DecodeDetectedFields([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeDetectedFields() error = %v", err)
	}
	if fields.Name == nil || *fields.Name != "Skwovet" {
		t.Errorf("Name = %v, want Skwovet", fields.Name)
	}
}

func TestDetectedFieldsFromJSONLenient(t *testing.T) {
	if got := cards.DetectedFieldsFromJSON(""); got != nil {
		t.Errorf("DetectedFieldsFromJSON(empty) = %+v, want nil", got)
	}
	if got := cards.DetectedFieldsFromJSON("{not json"); got != nil {
		t.Errorf("DetectedFieldsFromJSON(garbage) = %+v, want nil", got)
	}
	got := cards.DetectedFieldsFromJSON(`{"name":"Skwovet"}`)
	if got == nil || got.Name == nil || *got.Name != "Skwovet" {
		t.Errorf("DetectedFieldsFromJSON(valid) = %+v, want name Skwovet", got)
	}
}

func TestResolverInputs(t *testing.T) {
	fields, err := cards.DecodeDetectedFields([]byte(fullPayload))
	if err != nil {
		t.Fatalf("DecodeDetectedFields() error = %v", err)
	}
	inputs := fields.ResolverInputs()
	if inputs.RarityText != "Common" {
		t.Errorf("RarityText = %q, want Common", inputs.RarityText)
	}
	if inputs.VariantText != "Reverse Holo" {
		t.Errorf("VariantText = %q, want Reverse Holo", inputs.VariantText)
	}
	if inputs.EnergyText != "Colorless" {
		t.Errorf("EnergyText = %q, want Colorless", inputs.EnergyText)
	}
}
