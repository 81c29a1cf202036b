package textutil

// CosineSimilarity computes the cosine similarity between two fingerprints.
// Returns 0 if either fingerprint is nil or has zero norm.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range a.tokens {
		if other, ok := b.tokens[token]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// NameSimilarity compares two names as token fingerprints, falling back to a
// normalized exact comparison for names too short to tokenize.
func NameSimilarity(a, b string) float64 {
	fpA := NewFingerprint(a)
	fpB := NewFingerprint(b)
	if fpA != nil && fpB != nil {
		return CosineSimilarity(fpA, fpB)
	}
	na := FoldDiacritics(a)
	nb := FoldDiacritics(b)
	if na != "" && na == nb {
		return 1
	}
	return 0
}
