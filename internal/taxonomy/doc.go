// Package taxonomy resolves free-text card attributes against the shop's
// closed vocabulary. A snapshot carries the allowed option list per
// attribute group; the resolver maps detected rarity, variant, energy,
// language, and condition strings onto option ids, applying centralized
// defaults so every mandatory group always carries a value.
package taxonomy
