package sanitizer

import (
	"strings"
	"unicode"
)

// NormalizeName collapses runs of whitespace into one space and drops
// control and format runes (zero-width joiners, bidi marks) that chat
// clients tend to paste into display names.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	pendingSpace := false

	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	return b.String()
}
