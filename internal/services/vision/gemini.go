package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const extractionInstruction = `You read trading card photographs for a resale intake pipeline.
Identify the printed fields and answer with one JSON object matching the
response schema. Every key must be present; use null for anything you
cannot read with confidence.

Field rules:
- name: the card title from the top-left title band.
- number: the collector number from the bottom band, kept exactly as
  printed before any slash (write "092" for "092/196", never "92").
  Promo cards print the number in a colored box and may carry a letter
  series prefix such as "SWSH092"; keep the prefix verbatim.
- set_hint: the set name or set code when printed or identifiable from
  the set symbol, else null.
- rarity_text: the rarity named by the printed marker in the bottom
  band. Marker count and color map to: common, uncommon, rare, double
  rare, ultra rare, illustration rare, special illustration rare, hyper
  rare, ace spec, promo. A single pink or magenta marker is always ace
  spec, even when the marker count alone would suggest a plain rare.
- energy_text: the energy color from the top-right corner symbol; null
  for trainer cards.
- card_type: exactly one of "Pokemon", "Trainer", "Energy".
- variant_text: the mechanic tag and finish, for example "VSTAR",
  "Reverse Holo" or "Shiny VMAX". Lookalike mechanics need a second
  cue before you may report the stronger one: a VSTAR or VMAX card
  declares a larger prize take and carries its power banner, a plain V
  card does not. Without the confirming cue report the weaker reading
  or null.

Never guess. A field you cannot read with confidence is null, not a
best estimate, and not a value repeated from other cards. Answer with
JSON only, no prose, no code fences.`

const basePrompt = "Extract the printed fields from this card scan and respond with the JSON object only."

// extractionPrompt appends the caller's side hint so a back-of-card
// photograph does not get read as an unreadable front.
func extractionPrompt(sideHint string) string {
	switch strings.ToLower(strings.TrimSpace(sideHint)) {
	case "front":
		return basePrompt + " The photograph shows the card's front."
	case "back":
		return basePrompt + " The photograph shows the card's back; most printed fields will be absent, report null for anything the back does not show."
	default:
		return basePrompt
	}
}

type generateRequest struct {
	model  string
	system string
	user   string
	image  []byte
	mime   string
	schema *genai.Schema
}

// geminiGenerator is the production backend. A client is dialed per call
// so the API key never outlives the request that needed it.
type geminiGenerator struct {
	apiKey string
}

func (g geminiGenerator) generateJSON(ctx context.Context, req generateRequest) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("vision client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.schema,
	}
	if req.system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.system)},
		}
	}

	parts := []genai.Part{genai.Text(req.user)}
	if len(req.image) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: req.mime, Data: req.image})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	text := firstText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("vision model returned an empty response")
	}
	return text, nil
}

// detectedFieldsSchema mirrors cards.DetectedCardFields with every
// property nullable, so the model must distinguish "unreadable" from
// "absent".
func detectedFieldsSchema() *genai.Schema {
	property := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeString,
			Nullable:    true,
			Description: description,
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        property("Card title as printed"),
			"number":      property("Collector number with any letter series prefix"),
			"set_hint":    property("Set name or set code when identifiable"),
			"rarity_text": property("Rarity named by the printed marker"),
			"energy_text": property("Energy color from the corner symbol"),
			"card_type": {
				Type:        genai.TypeString,
				Nullable:    true,
				Enum:        []string{"Pokemon", "Trainer", "Energy"},
				Description: "Card class",
			},
			"variant_text": property("Mechanic tag and finish as printed"),
		},
		Required: []string{
			"name",
			"number",
			"set_hint",
			"rarity_text",
			"energy_text",
			"card_type",
			"variant_text",
		},
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				return string(text)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
