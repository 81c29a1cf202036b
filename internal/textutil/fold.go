package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes characters and removes combining marks, so
// "Pokémon" and "Pokemon" fold onto the same string.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics lowercases value, strips accents, and collapses internal
// whitespace to single spaces. Returns "" for whitespace-only input.
func FoldDiacritics(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	folded, _, err := transform.String(stripAccents, strings.ToLower(value))
	if err != nil {
		folded = strings.ToLower(value)
	}
	return strings.Join(strings.Fields(folded), " ")
}
