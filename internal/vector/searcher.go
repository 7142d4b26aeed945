package vector

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/calyptra/ragcore/internal/embed"
	"github.com/calyptra/ragcore/internal/ragerr"
	"github.com/calyptra/ragcore/internal/textutil"
)

// Searcher runs the semantic retrieval pipeline: embed the query, fetch
// nearest neighbors, apply metadata boosts, drop weak matches, rerank
// heuristically and enforce result diversity.
type Searcher struct {
	store    Store
	embedder embed.Embedder

	// SimilarityFloor drops candidates below this raw similarity.
	SimilarityFloor float64

	// DiversityThreshold is the Jaccard near-duplicate cutoff.
	DiversityThreshold float64

	// Rerank enables the heuristic reranking stage.
	Rerank bool

	now func() time.Time
}

// SearchOptions carries per-query context for boosts.
type SearchOptions struct {
	// UserID earns the ownership boost for chunks the user owns.
	UserID string

	// FileTypes earn the filetype bonus during reranking.
	FileTypes []string
}

// NewSearcher creates a searcher over store and embedder with the default
// thresholds.
func NewSearcher(store Store, embedder embed.Embedder) *Searcher {
	return &Searcher{
		store:              store,
		embedder:           embedder,
		SimilarityFloor:    DefaultSimilarityFloor,
		DiversityThreshold: DefaultDiversityThreshold,
		Rerank:             true,
		now:                time.Now,
	}
}

// Search returns up to topK semantically similar chunks for query.
func (s *Searcher) Search(ctx context.Context, query string, topK int, opts SearchOptions) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ragerr.Validation("empty query")
	}
	if topK <= 0 {
		topK = 10
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, ragerr.Provider("embed query", err)
	}

	fetch := topK
	if s.Rerank {
		fetch = topK * RerankInflation
	}

	candidates, err := s.store.Query(ctx, queryVec, fetch)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity < s.SimilarityFloor {
			continue
		}
		results = append(results, &Result{
			ChunkID:    c.ChunkID,
			Content:    c.Meta.Content,
			Similarity: c.Similarity,
			Score:      c.Similarity + s.boost(c.Meta, opts),
			Meta:       c.Meta,
		})
	}

	if s.Rerank {
		s.rerank(query, results, opts)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	results = s.diversify(results)

	if len(results) > topK {
		results = results[:topK]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results, nil
}

// boost sums the metadata boosts for one candidate.
func (s *Searcher) boost(meta ChunkMeta, opts SearchOptions) float64 {
	total := 0.0
	if !meta.UpdatedAt.IsZero() && s.now().Sub(meta.UpdatedAt) < RecencyWindow {
		total += RecencyBoost
	}
	if opts.UserID != "" && meta.Owner == opts.UserID {
		total += OwnershipBoost
	}
	if meta.Quality > QualityFloor {
		total += QualityBoost
	}
	return total
}

// Reranking bonuses and penalties, applied on top of the boosted score.
const (
	exactPhraseBonus  = 0.10
	coverageWeight    = 0.05
	titleMatchBonus   = 0.05
	fileTypeBonus     = 0.03
	lengthPenalty     = 0.05
	lengthPenaltySpan = 50 // content shorter than this many tokens is penalized
)

// rerank adjusts scores with lexical heuristics the embedding alone cannot
// see: exact phrase presence, query term coverage, title match, preferred
// file type and very short content.
func (s *Searcher) rerank(query string, results []*Result, opts SearchOptions) {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTerms := textutil.Tokenize(query)

	for _, r := range results {
		contentLower := strings.ToLower(r.Content)

		if queryLower != "" && strings.Contains(contentLower, queryLower) {
			r.Score += exactPhraseBonus
		}

		if len(queryTerms) > 0 {
			covered := 0
			for _, term := range queryTerms {
				if strings.Contains(contentLower, term) {
					covered++
				}
			}
			r.Score += coverageWeight * float64(covered) / float64(len(queryTerms))
		}

		if r.Meta.Title != "" {
			titleLower := strings.ToLower(r.Meta.Title)
			for _, term := range queryTerms {
				if strings.Contains(titleLower, term) {
					r.Score += titleMatchBonus
					break
				}
			}
		}

		for _, ft := range opts.FileTypes {
			if strings.EqualFold(ft, r.Meta.FileType) {
				r.Score += fileTypeBonus
				break
			}
		}

		if tokens := textutil.EstimateTokens(r.Content); tokens < lengthPenaltySpan {
			r.Score -= lengthPenalty
		}
	}
}

// diversify greedily keeps results whose content is not a near-duplicate
// of an already accepted result.
func (s *Searcher) diversify(results []*Result) []*Result {
	if len(results) < 2 {
		return results
	}

	kept := make([]*Result, 0, len(results))
	keptSets := make([]map[string]struct{}, 0, len(results))

	for _, r := range results {
		set := textutil.TokenSet(r.Content)
		duplicate := false
		for _, existing := range keptSets {
			if textutil.Jaccard(set, existing) >= s.DiversityThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			slog.Debug("dropping near-duplicate result",
				slog.String("chunk_id", r.ChunkID))
			continue
		}
		kept = append(kept, r)
		keptSets = append(keptSets, set)
	}
	return kept
}
