package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Fold lowercases a string, trims it and collapses inner whitespace runs
// to a single space. Keyword tables are matched against folded text.
func Fold(s string) string {
	s = strings.ToLower(s)
	s = strings.Trim(s, " \n\t")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// ContainsAny reports whether the folded text contains at least one of
// the given keywords. Keywords are expected to be lowercase already.
func ContainsAny(folded string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(folded, k) {
			return true
		}
	}
	return false
}
