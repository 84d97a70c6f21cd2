// Package textnorm normalizes user and platform text before comparison:
// NFKC composition, Unicode case folding and whitespace collapsing.
package textnorm

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s in NFKC form, case folded, with runs of whitespace
// collapsed to one space and no leading or trailing space.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	// Casers keep state and must not be shared between goroutines.
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// Tokens folds s and splits it on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// ContainsPhrase reports whether the token sequence phrase occurs in text.
// Phrases written in scripts without word spacing match as substrings.
func ContainsPhrase(text []string, phrase []string) bool {
	switch {
	case len(phrase) == 0:
		return false
	case len(phrase) == 1 && unspaced(phrase[0]):
		return containsSubstring(text, phrase[0])
	}
	for i := 0; i+len(phrase) <= len(text); i++ {
		if slices.Equal(text[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}

func containsSubstring(text []string, s string) bool {
	for _, t := range text {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// unspaced reports whether s is written in a script that does not separate
// words with spaces.
func unspaced(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Thai) {
			return true
		}
	}
	return false
}
