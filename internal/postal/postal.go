// Package postal canonicalizes and validates Canadian postal codes.
package postal

import (
	"regexp"
	"strings"
	"unicode"
)

var canadianPattern = regexp.MustCompile(`^[A-Z]\d[A-Z]\d[A-Z]\d$`)

// Normalize removes all whitespace and uppercases. It is idempotent.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// IsValid expects an already normalized code.
func IsValid(normalized string) bool {
	return canadianPattern.MatchString(normalized)
}

// Format renders a valid normalized code as "A1A 1A1".
func Format(normalized string) string {
	if len(normalized) != 6 {
		return normalized
	}
	return normalized[:3] + " " + normalized[3:]
}
