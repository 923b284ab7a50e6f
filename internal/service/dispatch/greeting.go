package dispatch

import (
	"strings"
	"unicode"
)

// sanitizeName keeps letters, digits and whitespace only. An empty
// result means the display name is not usable for a greeting.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
