package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims free text, drops control characters, collapses runs
// of whitespace to one space and cuts the result to at most maxLen bytes on
// a rune boundary. maxLen <= 0 disables truncation.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		sep := space && b.Len() > 0
		need := utf8.RuneLen(r)
		if sep {
			need++
		}
		if maxLen > 0 && b.Len()+need > maxLen {
			break
		}
		if sep {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
