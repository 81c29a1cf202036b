package cardnum

import "strings"

// NormalizedNumber is a collector number split into its series prefix and
// digit run. Prefix keeps the printed form verbatim; Digits keeps leading
// zeros. Two numbers denote the same print slot iff their digits match,
// regardless of prefix.
type NormalizedNumber struct {
	Raw    string
	Prefix string
	Digits string
}

// prefixSeparators are dropped from the prefix/digit boundary but never from
// the prefix body, so "XY-P 123" keeps prefix "XY-P" while "SWSH-092" keeps
// prefix "SWSH".
const prefixSeparators = " -._#"

// Normalize splits raw into (prefix, digits). The prefix is the leading
// non-digit segment with boundary separators trimmed; the digits are the
// first consecutive digit run. Anything after the digit run (a "/196" total,
// trailing letters) does not participate in slot equality.
func Normalize(raw string) NormalizedNumber {
	trimmed := strings.TrimSpace(raw)
	n := NormalizedNumber{Raw: trimmed}
	if trimmed == "" {
		return n
	}

	start := -1
	for i, r := range trimmed {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		n.Prefix = strings.Trim(trimmed, prefixSeparators)
		return n
	}

	end := start
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}

	n.Prefix = strings.TrimRight(trimmed[:start], prefixSeparators)
	n.Digits = trimmed[start:end]
	return n
}

// SamePrintSlot reports whether two normalized numbers occupy the same print
// slot. Numbers with digit runs compare by digits alone; numbers without any
// digits fall back to case-insensitive prefix equality.
func (n NormalizedNumber) SamePrintSlot(other NormalizedNumber) bool {
	if n.Digits != "" || other.Digits != "" {
		return n.Digits == other.Digits
	}
	if n.Prefix == "" && other.Prefix == "" {
		return false
	}
	return strings.EqualFold(n.Prefix, other.Prefix)
}

// HasDigits reports whether the number carries a digit run.
func (n NormalizedNumber) HasDigits() bool {
	return n.Digits != ""
}

// String renders the normalized form for logs: prefix and digits joined,
// falling back to the raw input when nothing was parsed.
func (n NormalizedNumber) String() string {
	switch {
	case n.Prefix != "" && n.Digits != "":
		return n.Prefix + n.Digits
	case n.Digits != "":
		return n.Digits
	case n.Prefix != "":
		return n.Prefix
	default:
		return n.Raw
	}
}

// SameSlot is a convenience wrapper normalizing both raw numbers before
// comparing print slots.
func SameSlot(a, b string) bool {
	return Normalize(a).SamePrintSlot(Normalize(b))
}
