package textutil

import "testing"

func TestFoldDiacritics(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain ascii", "Charizard", "charizard"},
		{"accented e", "Pokémon", "pokemon"},
		{"flabebe", "Flabébé", "flabebe"},
		{"collapses whitespace", "  Obsidian   Flames ", "obsidian flames"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"mixed case accents", "ÉNERGIE Incolore", "energie incolore"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FoldDiacritics(tt.input); got != tt.want {
				t.Errorf("FoldDiacritics(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFoldDiacriticsStableOnFolded(t *testing.T) {
	once := FoldDiacritics("Pokémon Énergie")
	twice := FoldDiacritics(once)
	if once != twice {
		t.Errorf("folding is not idempotent: %q vs %q", once, twice)
	}
}
