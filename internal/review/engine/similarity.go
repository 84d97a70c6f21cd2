package engine

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/gigshield/reviewcore/internal/review/textnorm"
)

// Similarity returns the normalized edit-distance similarity of a and b on
// a 0-100 scale after folding both. Two empty strings are identical.
func Similarity(a, b string) float64 {
	a, b = textnorm.Fold(a), textnorm.Fold(b)
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(longest)) * 100
}
