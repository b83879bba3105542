// Package similarity computes bounded string similarity ratios and
// weighted composite match scores. Pure and stateless: identical inputs
// always yield identical outputs (no locale-sensitive collation).
package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Ratio returns 1 - editDistance(a,b)/max(len(a),len(b)), clamped to
// [0,1], using classic single-character-edit Levenshtein distance over
// runes. Two empty strings score 1.0; callers comparing optional fields
// must treat empty-vs-empty specially themselves.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}

	dist := levenshtein.ComputeDistance(a, b)
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// WeightedPair is one field-level similarity with its weight. Weights
// need not sum to 1 but should for interpretability.
type WeightedPair struct {
	Weight float64
	Score  float64
}

// Composite returns the weighted sum of per-field similarity scores.
func Composite(pairs []WeightedPair) float64 {
	var total float64
	for _, p := range pairs {
		total += p.Weight * p.Score
	}
	return total
}
