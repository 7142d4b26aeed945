// Package fusion merges lexical and semantic result lists with weighted
// Reciprocal Rank Fusion and derives per-query weights from query shape.
package fusion

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter. k=60 is the
// widely validated default.
const DefaultRRFConstant = 60

// Default path weights: semantic carries most of the signal for natural
// language queries.
const (
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

// Weights are the per-path fusion weights. They are normalized to sum to
// one before scoring.
type Weights struct {
	Semantic float64
	Lexical  float64
}

// DefaultWeights returns the default path weights.
func DefaultWeights() Weights {
	return Weights{Semantic: DefaultSemanticWeight, Lexical: DefaultLexicalWeight}
}

// normalized scales the weights to sum to one. Non-positive pairs fall
// back to the defaults.
func (w Weights) normalized() Weights {
	total := w.Semantic + w.Lexical
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{Semantic: w.Semantic / total, Lexical: w.Lexical / total}
}

// Input is one ranked candidate entering fusion. Rank is 1-based within
// its source list.
type Input struct {
	ChunkID string
	Content string
	Score   float64
	Rank    int
}

// Result is one fused candidate.
type Result struct {
	ChunkID string
	Content string

	// Score is the weighted RRF score normalized to [0,1] within the
	// result list.
	Score float64

	// Rank is 1-based and contiguous.
	Rank int

	// SemanticRank and LexicalRank are the source-list positions,
	// 0 when the chunk was absent from that list.
	SemanticRank int
	LexicalRank  int

	// SemanticScore and LexicalScore preserve the original path scores.
	SemanticScore float64
	LexicalScore  float64

	// InBoth marks chunks found by both retrieval paths.
	InBoth bool
}

// Engine fuses ranked lists with weighted RRF.
type Engine struct {
	// K is the RRF smoothing constant.
	K int
}

// NewEngine creates a fusion engine with the default smoothing constant.
func NewEngine() *Engine {
	return &Engine{K: DefaultRRFConstant}
}

// NewEngineWithK creates a fusion engine with a custom k. Non-positive k
// falls back to the default.
func NewEngineWithK(k int) *Engine {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Engine{K: k}
}

// Fuse merges the semantic and lexical lists.
//
// Each chunk scores weight/(k+rank) per list it appears in; chunks found
// by a single path keep only that path's contribution. Ties break by
// semantic rank, then lexical rank, then chunk ID.
func (e *Engine) Fuse(semantic, lexical []Input, weights Weights) []*Result {
	if len(semantic) == 0 && len(lexical) == 0 {
		return []*Result{}
	}

	w := weights.normalized()
	merged := make(map[string]*Result, len(semantic)+len(lexical))

	for _, in := range semantic {
		r := getOrCreate(merged, in)
		r.SemanticRank = in.Rank
		r.SemanticScore = in.Score
		r.Score += w.Semantic / float64(e.K+in.Rank)
	}
	for _, in := range lexical {
		r := getOrCreate(merged, in)
		r.LexicalRank = in.Rank
		r.LexicalScore = in.Score
		r.Score += w.Lexical / float64(e.K+in.Rank)
		r.InBoth = r.SemanticRank > 0
	}

	results := make([]*Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SemanticRank != b.SemanticRank {
			return sourceRankLess(a.SemanticRank, b.SemanticRank)
		}
		if a.LexicalRank != b.LexicalRank {
			return sourceRankLess(a.LexicalRank, b.LexicalRank)
		}
		return a.ChunkID < b.ChunkID
	})

	normalize(results)
	for i, r := range results {
		r.Rank = i + 1
	}
	return results
}

func getOrCreate(m map[string]*Result, in Input) *Result {
	if r, ok := m[in.ChunkID]; ok {
		return r
	}
	r := &Result{ChunkID: in.ChunkID, Content: in.Content}
	m[in.ChunkID] = r
	return r
}

// sourceRankLess orders present ranks before absent (zero) ones.
func sourceRankLess(a, b int) bool {
	if a == 0 {
		return false
	}
	if b == 0 {
		return true
	}
	return a < b
}

// normalize scales scores so the top result is 1.0. A single-result list
// still normalizes to 1.0.
func normalize(results []*Result) {
	if len(results) == 0 {
		return
	}
	max := results[0].Score
	if max <= 0 {
		return
	}
	for _, r := range results {
		r.Score /= max
	}
}
