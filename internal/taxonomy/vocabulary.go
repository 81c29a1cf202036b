package taxonomy

import (
	"strings"
	"unicode"

	"binder/internal/textutil"
)

// canonicalLabel folds a label into the internal vocabulary space:
// lowercase, diacritics stripped, punctuation treated as whitespace.
// "ACE SPEC", "ace-spec", and "Ace Spec" all canonicalize equal.
func canonicalLabel(value string) string {
	folded := textutil.FoldDiacritics(value)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// candidateLabels expands one detected value into the canonical labels to
// try against a group, the raw canonical form first.
func candidateLabels(value string, synonyms map[string][]string) []string {
	canon := canonicalLabel(value)
	if canon == "" {
		return nil
	}
	labels := []string{canon}
	labels = append(labels, synonyms[canon]...)
	return labels
}

// Synonym tables map canonical shorthand seen on card faces and shop
// sites to canonical vocabulary labels. Keys and values both live in the
// canonical space.
var raritySynonyms = map[string][]string{
	"c":                {"common"},
	"uc":               {"uncommon"},
	"r":                {"rare"},
	"rr":               {"double rare"},
	"ur":               {"ultra rare"},
	"ar":               {"illustration rare"},
	"art rare":         {"illustration rare"},
	"sar":              {"special illustration rare"},
	"special art rare": {"special illustration rare"},
	"hr":               {"hyper rare"},
	"rainbow rare":     {"hyper rare"},
	"gold rare":        {"hyper rare"},
	"secret rare":      {"hyper rare"},
	"ace":              {"ace spec"},
	"ace spec rare":    {"ace spec"},
	"promotional":      {"promo"},
	"black star promo": {"promo"},
}

var finishSynonyms = map[string][]string{
	"non holo":         {"normal"},
	"regular":          {"normal"},
	"plain":            {"normal"},
	"holofoil":         {"holo"},
	"holographic":      {"holo"},
	"foil":             {"holo"},
	"reverse":          {"reverse holo"},
	"reverse holofoil": {"reverse holo"},
	"reverse foil":     {"reverse holo"},
	"mirror":           {"reverse holo"},
	"shining":          {"shiny"},
}

var cardTypeSynonyms = map[string][]string{
	"none":        {"not applicable"},
	"n a":         {"not applicable"},
	"level x":     {"lv x"},
	"terastal":    {"tera"},
	"tag team gx": {"tag team"},
	"mega ex":     {"mega"},
	"v star":      {"vstar"},
	"v max":       {"vmax"},
}

var energySynonyms = map[string][]string{
	"electric":   {"lightning"},
	"thunder":    {"lightning"},
	"dark":       {"darkness"},
	"steel":      {"metal"},
	"colourless": {"colorless"},
	"normal":     {"colorless"},
}

var conditionSynonyms = map[string][]string{
	"nm":        {"near mint"},
	"mint":      {"near mint"},
	"m":         {"near mint"},
	"lp":        {"lightly played"},
	"excellent": {"lightly played"},
	"mp":        {"moderately played"},
	"hp":        {"heavily played"},
	"dmg":       {"damaged"},
	"poor":      {"damaged"},
}

// finishPhrases are the finish terms recognized inside a combined variant
// string, longest first so "reverse holo" wins over "holo".
var finishPhrases = []string{
	"reverse holofoil",
	"reverse holo",
	"reverse foil",
	"holographic",
	"non holo",
	"holofoil",
	"reverse",
	"shining",
	"shiny",
	"holo",
	"foil",
}

// decomposeVariant splits a combined variant string into its finish part
// and the remaining mechanic part, so "Shiny VMAX" contributes to both
// the Finish and Card type groups without needing a compound option.
func decomposeVariant(value string) (finish, mechanic string) {
	canon := canonicalLabel(value)
	if canon == "" {
		return "", ""
	}
	for _, phrase := range finishPhrases {
		if !containsPhrase(canon, phrase) {
			continue
		}
		finish = phrase
		canon = removePhrase(canon, phrase)
		break
	}
	return finish, canon
}

// finishHint extracts a finish term from free text without consuming it,
// used when a rarity string like "Rare Holo" doubles as the finish signal.
func finishHint(value string) string {
	finish, _ := decomposeVariant(value)
	return finish
}

func containsPhrase(canon, phrase string) bool {
	return strings.Contains(" "+canon+" ", " "+phrase+" ")
}

func removePhrase(canon, phrase string) string {
	replaced := strings.Replace(" "+canon+" ", " "+phrase+" ", " ", 1)
	return strings.Join(strings.Fields(replaced), " ")
}
