package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// labelStripper removes combining marks after NFD decomposition, which turns
// accented letters into their plain ASCII base form.
var labelStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeLabel canonicalizes a button label or user input for comparison:
// lowercase, diacritics stripped, everything except letters and digits removed.
// Two labels match iff they are equal modulo case, accents and punctuation.
func NormalizeLabel(s string) string {
	stripped, _, err := transform.String(labelStripper, s)
	if err != nil {
		// Transform only fails on malformed UTF-8; fall back to the raw input.
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LabelsMatch reports whether two labels are the same after normalization.
func LabelsMatch(a, b string) bool {
	return NormalizeLabel(a) == NormalizeLabel(b)
}
