package lexical

import (
	"log/slog"
)

// correctSpelling replaces out-of-vocabulary words longer than
// MinCorrectionLength-1 characters with their nearest dictionary match
// within MaxEditDistance. Corrections are logged; ambiguous ties break by
// higher document frequency, then lexicographically.
func correctSpelling(words []string, vocab map[string]int) []string {
	if len(vocab) == 0 {
		return words
	}

	corrected := make([]string, len(words))
	for i, w := range words {
		corrected[i] = w
		if len(w) < MinCorrectionLength {
			continue
		}
		if _, known := vocab[w]; known {
			continue
		}

		best, bestDist := nearestWord(w, vocab)
		if best == "" || bestDist > MaxEditDistance {
			continue
		}

		slog.Debug("spell correction applied",
			slog.String("from", w),
			slog.String("to", best),
			slog.Int("distance", bestDist))
		corrected[i] = best
	}
	return corrected
}

// nearestWord finds the vocabulary word with the smallest edit distance to
// w. Candidates are pruned by length difference before computing distance.
func nearestWord(w string, vocab map[string]int) (string, int) {
	best := ""
	bestDist := MaxEditDistance + 1
	bestFreq := -1

	for candidate, freq := range vocab {
		if diff := len(candidate) - len(w); diff > MaxEditDistance || diff < -MaxEditDistance {
			continue
		}
		d := levenshtein(w, candidate)
		if d < bestDist ||
			(d == bestDist && freq > bestFreq) ||
			(d == bestDist && freq == bestFreq && candidate < best) {
			best = candidate
			bestDist = d
			bestFreq = freq
		}
	}
	return best, bestDist
}

// levenshtein computes the edit distance between two strings using two
// rolling rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
