package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const geocodeVersion = "v1"

// Geocode builds the shared cache key for a normalized postal code.
// The trailing checksum lets operators spot truncated or hand-edited keys.
func Geocode(country, postalCode string) string {
	c := sanitizeForKey(strings.ToLower(strings.TrimSpace(country)))
	if c == "" {
		c = "ca"
	}
	code := sanitizeForKey(strings.TrimSpace(postalCode))

	const maxCodeLen = 32
	if len(code) > maxCodeLen {
		code = code[:maxCodeLen]
	}

	sum := xxhash.Sum64String(c + ":" + code)
	return fmt.Sprintf("geocode:%s:%s:%s:h=%08x", geocodeVersion, c, code, uint32(sum))
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// any other rune (including ':' and non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
