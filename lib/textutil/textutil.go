package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// FoldDiacritics strips combining marks, "Nováková" becomes "Novakova".
func FoldDiacritics(s string) string {
	// transformers are stateful, a chain can't be shared between goroutines
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeName lowercases a name, folds its diacritics and collapses whitespace to single
// spaces.
func NormalizeName(name string) string {
	name = FoldDiacritics(name)
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// MatchName reports whether the normalized name contains one of the normalized matchers.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		m = NormalizeName(m)
		if m != "" && strings.Contains(name, m) {
			return true
		}
	}
	return false
}
