package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var keyFolder = cases.Fold()

// EntityKey normalizes an entity display name into a stable workspace key.
// The name is Unicode case-folded, apostrophes are dropped, and every other
// run of non-alphanumeric characters collapses to a single underscore.
// "Tom Hanks", "tom   hanks", and "TOM HANKS" all map to "tom_hanks".
// Returns "" when the name contains no usable characters.
func EntityKey(name string) string {
	folded := keyFolder.String(strings.TrimSpace(name))
	if folded == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// Apostrophes vanish rather than splitting the name:
			// "Nyong'o" -> "nyongo".
		default:
			pendingSep = true
		}
	}
	return b.String()
}

// CollapseWhitespace trims a string and squeezes interior whitespace runs to
// single spaces. Used to canonicalize display names before storage.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
