package query

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases, trims and strips combining marks so that "Vía" and
// "via" compare equal. A new transformer is built per call because
// transform chains carry state.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// containsWordPrefix reports whether needle occurs in haystack starting at a
// word boundary. Both arguments must already be folded.
func containsWordPrefix(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		pos := from + i
		prev, _ := utf8.DecodeLastRuneInString(haystack[:pos])
		if pos == 0 || !isWordRune(prev) {
			return true
		}
		from = pos + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
