// Package similarity scores how alike two files are from their per-line fingerprints.
//
// Fingerprints are opaque tokens compared only for equality. Order matters: the
// score is derived from the edit distance between the two fingerprint sequences.
package similarity

import "math"

// SourceSimilarity scores two fingerprint sequences on a 0-100 scale.
type SourceSimilarity struct{}

// Score returns round(100 * (1 - distance/max(len(left), len(right)))).
// Two empty sequences score 0: empty files carry no evidence of a move.
func (SourceSimilarity) Score(left, right []string) int {
	longest := max(len(left), len(right))
	if longest == 0 {
		return 0
	}
	distance := LevenshteinDistance(left, right)
	return int(math.Round(100 * (1 - float64(distance)/float64(longest))))
}

// LevenshteinDistance counts the insertions, deletions and substitutions needed to
// turn left into right. It keeps two rows sized after the shorter sequence.
func LevenshteinDistance(left, right []string) int {
	if len(left) < len(right) {
		left, right = right, left
	}
	if len(right) == 0 {
		return len(left)
	}

	prev := make([]int, len(right)+1)
	curr := make([]int, len(right)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(left); i++ {
		curr[0] = i
		l := left[i-1]
		for j := 1; j <= len(right); j++ {
			cost := 1
			if l == right[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(right)]
}
