package retriever

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/calyptra/ragcore/internal/assemble"
	"github.com/calyptra/ragcore/internal/fusion"
	"github.com/calyptra/ragcore/internal/lexical"
	"github.com/calyptra/ragcore/internal/ragerr"
	"github.com/calyptra/ragcore/internal/telemetry"
	"github.com/calyptra/ragcore/internal/vector"
)

// DefaultTopK caps results when the caller does not set one.
const DefaultTopK = 10

// Retrieve runs retrieval for query. With UseHybrid both paths run
// concurrently and fuse; a single failing path degrades to the other, and
// both failing yields an empty list with the cause logged. Semantic-only
// mode degrades the same way on a path failure.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ragerr.Validation("empty query")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	results, outcome := r.retrieve(ctx, query, opts)

	r.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Outcome:     outcome,
		ResultCount: len(results),
		Latency:     time.Since(start),
		Timestamp:   start,
	})
	return results, nil
}

func (r *Retriever) retrieve(ctx context.Context, query string, opts RetrieveOptions) ([]*Result, telemetry.PathOutcome) {
	if !opts.UseHybrid {
		semantic, err := r.searcher.Search(ctx, query, opts.TopK, vector.SearchOptions{UserID: opts.UserID})
		if err != nil {
			r.log.Warn("semantic retrieval failed",
				"query", query, "error", err.Error())
			return []*Result{}, telemetry.OutcomeEmpty
		}
		if len(semantic) == 0 {
			return []*Result{}, telemetry.OutcomeEmpty
		}
		return r.fromSemantic(semantic, opts.TopK), telemetry.OutcomeSemanticOnly
	}

	// Hybrid: both paths issued concurrently and joined before fusion.
	// A path error is captured, never propagated through the group, so a
	// slow or failed path cannot cancel the healthy one.
	var (
		semantic    []*vector.Result
		lex         []*lexical.Result
		semanticErr error
		lexErr      error
	)

	fetch := opts.TopK * 2
	if fetch < 20 {
		fetch = 20
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semantic, semanticErr = r.searcher.Search(gctx, query, fetch, vector.SearchOptions{UserID: opts.UserID})
		return nil
	})
	g.Go(func() error {
		lex, lexErr = r.lexical.Search(gctx, query, fetch)
		return nil
	})
	_ = g.Wait()

	switch {
	case semanticErr != nil && lexErr != nil:
		r.log.Warn("both retrieval paths failed",
			"query", query,
			"semantic_error", semanticErr.Error(),
			"lexical_error", lexErr.Error())
		return []*Result{}, telemetry.OutcomeEmpty

	case semanticErr != nil:
		r.log.Warn("semantic path failed, degrading to lexical",
			"query", query, "error", semanticErr.Error())
		return r.fromLexical(lex, opts.TopK), telemetry.OutcomeDegradedLexical

	case lexErr != nil:
		r.log.Warn("lexical path failed, degrading to semantic",
			"query", query, "error", lexErr.Error())
		return r.fromSemantic(semantic, opts.TopK), telemetry.OutcomeDegradedSemantic
	}

	weights := fusion.Weights{
		Semantic: r.cfg.Fusion.SemanticWeight,
		Lexical:  r.cfg.Fusion.LexicalWeight,
	}
	if r.cfg.Fusion.Adaptive {
		weights = r.adaptive.WeightsFor(query)
	}

	semanticInputs := make([]fusion.Input, len(semantic))
	for i, s := range semantic {
		semanticInputs[i] = fusion.Input{ChunkID: s.ChunkID, Content: s.Content, Score: s.Score, Rank: s.Rank}
	}
	lexicalInputs := make([]fusion.Input, len(lex))
	for i, l := range lex {
		lexicalInputs[i] = fusion.Input{ChunkID: l.ChunkID, Content: l.Content, Score: l.Score, Rank: l.Rank}
	}

	fused := r.fuser.Fuse(semanticInputs, lexicalInputs, weights)
	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}
	if len(fused) == 0 {
		return []*Result{}, telemetry.OutcomeEmpty
	}

	semanticMeta := make(map[string]vector.ChunkMeta, len(semantic))
	for _, s := range semantic {
		semanticMeta[s.ChunkID] = s.Meta
	}
	lexTerms := make(map[string][]string, len(lex))
	for _, l := range lex {
		lexTerms[l.ChunkID] = l.MatchedTerms
	}

	results := make([]*Result, len(fused))
	for i, f := range fused {
		res := &Result{
			ChunkID:      f.ChunkID,
			DocumentID:   documentIDOf(f.ChunkID),
			Content:      f.Content,
			Score:        f.Score,
			Rank:         i + 1,
			MatchedTerms: lexTerms[f.ChunkID],
		}
		if meta, ok := semanticMeta[f.ChunkID]; ok {
			res.Title = meta.Title
			res.FileType = meta.FileType
			res.UpdatedAt = meta.UpdatedAt
		}
		results[i] = res
	}
	return results, telemetry.OutcomeHybrid
}

// fromSemantic converts semantic path results, renormalizing score to the
// top result.
func (r *Retriever) fromSemantic(semantic []*vector.Result, topK int) []*Result {
	if len(semantic) > topK {
		semantic = semantic[:topK]
	}
	max := 0.0
	for _, s := range semantic {
		if s.Score > max {
			max = s.Score
		}
	}

	results := make([]*Result, len(semantic))
	for i, s := range semantic {
		score := s.Score
		if max > 0 {
			score /= max
		}
		results[i] = &Result{
			ChunkID:    s.ChunkID,
			DocumentID: documentIDOf(s.ChunkID),
			Content:    s.Content,
			Score:      score,
			Rank:       i + 1,
			Title:      s.Meta.Title,
			FileType:   s.Meta.FileType,
			UpdatedAt:  s.Meta.UpdatedAt,
		}
	}
	return results
}

// fromLexical converts lexical path results, renormalizing score to the
// top result.
func (r *Retriever) fromLexical(lex []*lexical.Result, topK int) []*Result {
	if len(lex) > topK {
		lex = lex[:topK]
	}
	max := 0.0
	for _, l := range lex {
		if l.Score > max {
			max = l.Score
		}
	}

	results := make([]*Result, len(lex))
	for i, l := range lex {
		score := l.Score
		if max > 0 {
			score /= max
		}
		results[i] = &Result{
			ChunkID:      l.ChunkID,
			DocumentID:   documentIDOf(l.ChunkID),
			Content:      l.Content,
			Score:        score,
			Rank:         i + 1,
			MatchedTerms: l.MatchedTerms,
		}
	}
	return results
}

// RetrieveContext assembles an LLM-ready context for req using this
// retriever as the candidate source.
func (r *Retriever) RetrieveContext(ctx context.Context, req assemble.Request) (*assemble.AssembledContext, error) {
	return r.assembler.Assemble(ctx, req)
}

// hybridRetrieverAdapter exposes Retrieve through the assemble.Retriever
// interface.
type hybridRetrieverAdapter struct {
	r *Retriever
}

func (a *hybridRetrieverAdapter) Retrieve(ctx context.Context, query, userID string, useHybrid bool) ([]*assemble.Candidate, error) {
	results, err := a.r.Retrieve(ctx, query, RetrieveOptions{
		TopK:      DefaultTopK * 2,
		UserID:    userID,
		UseHybrid: useHybrid,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]*assemble.Candidate, len(results))
	for i, res := range results {
		candidates[i] = &assemble.Candidate{
			ChunkID:   res.ChunkID,
			Content:   res.Content,
			Relevance: res.Score,
			Source:    res.DocumentID,
			Title:     res.Title,
			FileType:  res.FileType,
			UpdatedAt: res.UpdatedAt,
		}
	}
	return candidates, nil
}
