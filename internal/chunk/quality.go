package chunk

import (
	"fmt"
	"math"
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// Quality validation thresholds.
const (
	// minValidChars flags chunks below this character count.
	minValidChars = 20

	// minValidTokens flags chunks below this token count.
	minValidTokens = 5

	// minAvgSentenceTokens flags chunks whose average sentence length
	// suggests over-fragmented text.
	minAvgSentenceTokens = 3
)

// QualityScore blends chunk-size consistency (low token-count variance)
// with overlap accuracy (actual vs target). The score is advisory only and
// never gates chunker output.
func QualityScore(chunks []*Chunk, opts Options) float64 {
	if len(chunks) == 0 {
		return 0
	}

	consistency := sizeConsistency(chunks)
	overlapAcc := overlapAccuracy(chunks, opts.Overlap)

	return 0.6*consistency + 0.4*overlapAcc
}

// sizeConsistency maps the coefficient of variation of chunk token counts
// to [0, 1]; uniform chunks score 1.
func sizeConsistency(chunks []*Chunk) float64 {
	if len(chunks) == 1 {
		return 1.0
	}

	var sum float64
	for _, c := range chunks {
		sum += float64(c.TokenCount)
	}
	mean := sum / float64(len(chunks))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, c := range chunks {
		d := float64(c.TokenCount) - mean
		variance += d * d
	}
	variance /= float64(len(chunks))

	cv := math.Sqrt(variance) / mean
	score := 1.0 - cv
	if score < 0 {
		return 0
	}
	return score
}

// overlapAccuracy compares observed inter-chunk overlap to the target.
func overlapAccuracy(chunks []*Chunk, target int) float64 {
	if target <= 0 || len(chunks) < 2 {
		return 1.0
	}

	var total float64
	for _, c := range chunks[1:] {
		diff := math.Abs(float64(c.OverlapWithPrev - target))
		acc := 1.0 - diff/float64(target)
		if acc < 0 {
			acc = 0
		}
		total += acc
	}
	return total / float64(len(chunks)-1)
}

// ValidateChunks flags suspicious chunks without blocking them: too short,
// missing terminal punctuation, or abnormally short average sentences.
func ValidateChunks(chunks []*Chunk) []string {
	var warnings []string
	for i, c := range chunks {
		content := strings.TrimSpace(c.Content)
		if len(content) < minValidChars || c.TokenCount < minValidTokens {
			warnings = append(warnings, fmt.Sprintf("chunk %d: below minimum size (%d chars, %d tokens)", i, len(content), c.TokenCount))
			continue
		}
		if !strings.ContainsAny(content[len(content)-1:], ".!?:;\"')]}`") {
			warnings = append(warnings, fmt.Sprintf("chunk %d: missing terminal punctuation", i))
		}
		if sentences := textutil.SplitSentences(content); len(sentences) > 1 {
			avg := float64(c.TokenCount) / float64(len(sentences))
			if avg < minAvgSentenceTokens {
				warnings = append(warnings, fmt.Sprintf("chunk %d: abnormally short sentences (avg %.1f tokens)", i, avg))
			}
		}
	}
	return warnings
}
