package vector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/ragcore/internal/embed"
	"github.com/calyptra/ragcore/internal/ragerr"
)

// stubStore returns canned candidates regardless of the query vector.
type stubStore struct {
	results []*StoreResult
	err     error
}

func (s *stubStore) Upsert(context.Context, string, []float32, ChunkMeta) error { return nil }
func (s *stubStore) Query(context.Context, []float32, int) ([]*StoreResult, error) {
	return s.results, s.err
}
func (s *stubStore) Delete(context.Context, []string) error { return nil }
func (s *stubStore) Count() int                             { return len(s.results) }
func (s *stubStore) Close() error                           { return nil }

// failingEmbedder always errors.
type failingEmbedder struct{ embed.Embedder }

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func newTestSearcher(store Store) *Searcher {
	s := NewSearcher(store, embed.NewStaticEmbedder())
	s.now = func() time.Time { return time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestSearcherSimilarityFloor(t *testing.T) {
	store := &stubStore{results: []*StoreResult{
		{ChunkID: "high", Similarity: 0.85, Meta: ChunkMeta{Content: "well above the floor with plenty of relevant content to avoid the short length penalty in reranking stages"}},
		{ChunkID: "low", Similarity: 0.65, Meta: ChunkMeta{Content: "below the floor"}},
	}}
	s := newTestSearcher(store)
	s.Rerank = false

	results, err := s.Search(context.Background(), "floor test", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "high", results[0].ChunkID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearcherBoosts(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	store := &stubStore{results: []*StoreResult{
		{ChunkID: "plain", Similarity: 0.80, Meta: ChunkMeta{Content: "plain"}},
		{ChunkID: "recent", Similarity: 0.80, Meta: ChunkMeta{Content: "recent", UpdatedAt: now.Add(-24 * time.Hour)}},
		{ChunkID: "owned", Similarity: 0.80, Meta: ChunkMeta{Content: "owned", Owner: "user-1"}},
		{ChunkID: "quality", Similarity: 0.80, Meta: ChunkMeta{Content: "quality", Quality: 0.95}},
		{ChunkID: "stale", Similarity: 0.80, Meta: ChunkMeta{Content: "stale", UpdatedAt: now.Add(-30 * 24 * time.Hour)}},
	}}
	s := newTestSearcher(store)
	s.Rerank = false

	results, err := s.Search(context.Background(), "boost test", 10, SearchOptions{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, results, 5)

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ChunkID] = r.Score
	}
	assert.InDelta(t, 0.80, scores["plain"], 1e-9)
	assert.InDelta(t, 0.80+RecencyBoost, scores["recent"], 1e-9)
	assert.InDelta(t, 0.80+OwnershipBoost, scores["owned"], 1e-9)
	assert.InDelta(t, 0.80+QualityBoost, scores["quality"], 1e-9)
	assert.InDelta(t, 0.80, scores["stale"], 1e-9)

	// Similarity stays the raw store value.
	for _, r := range results {
		assert.InDelta(t, 0.80, r.Similarity, 1e-9)
	}
}

func TestSearcherRerankExactPhrase(t *testing.T) {
	longFiller := " this sentence pads the chunk content far enough that neither candidate trips the short content penalty during heuristic scoring of results in the pipeline while keeping both variants identical in length and wording throughout the padded section of text"
	store := &stubStore{results: []*StoreResult{
		{ChunkID: "paraphrase", Similarity: 0.82, Meta: ChunkMeta{Content: "pooling connections for the database layer" + longFiller}},
		{ChunkID: "exact", Similarity: 0.80, Meta: ChunkMeta{Content: "database connection pooling explained in depth" + longFiller}},
	}}
	s := newTestSearcher(store)

	results, err := s.Search(context.Background(), "database connection pooling", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The exact phrase bonus outweighs the small similarity gap.
	assert.Equal(t, "exact", results[0].ChunkID)
}

func TestSearcherDiversity(t *testing.T) {
	content := "identical content repeated across chunks with enough words to form a stable token set"
	store := &stubStore{results: []*StoreResult{
		{ChunkID: "a", Similarity: 0.90, Meta: ChunkMeta{Content: content}},
		{ChunkID: "b", Similarity: 0.88, Meta: ChunkMeta{Content: content}},
		{ChunkID: "c", Similarity: 0.85, Meta: ChunkMeta{Content: "a completely different passage about sailing across open water at night"}},
	}}
	s := newTestSearcher(store)
	s.Rerank = false

	results, err := s.Search(context.Background(), "diversity test", 10, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "c", results[1].ChunkID)
	assert.Equal(t, 2, results[1].Rank)
}

func TestSearcherTruncatesToTopK(t *testing.T) {
	var candidates []*StoreResult
	contents := []string{
		"first distinct passage about storage engines and write amplification",
		"second distinct passage about network partitions and consensus",
		"third distinct passage about query planners and cost models",
		"fourth distinct passage about cache eviction policies",
	}
	for i, c := range contents {
		candidates = append(candidates, &StoreResult{
			ChunkID:    string(rune('a' + i)),
			Similarity: 0.9 - float64(i)*0.01,
			Meta:       ChunkMeta{Content: c},
		})
	}
	store := &stubStore{results: candidates}
	s := newTestSearcher(store)
	s.Rerank = false

	results, err := s.Search(context.Background(), "truncate test", 2, SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}

func TestSearcherEmbedFailure(t *testing.T) {
	s := newTestSearcher(&stubStore{})
	s.embedder = &failingEmbedder{}

	_, err := s.Search(context.Background(), "any query", 10, SearchOptions{})
	require.Error(t, err)
	assert.True(t, ragerr.IsProvider(err))
}

func TestSearcherEmptyQuery(t *testing.T) {
	s := newTestSearcher(&stubStore{})

	_, err := s.Search(context.Background(), "  ", 10, SearchOptions{})
	require.Error(t, err)
	assert.True(t, ragerr.IsValidation(err))
}

func TestSearcherStoreError(t *testing.T) {
	s := newTestSearcher(&stubStore{err: errors.New("store offline")})

	_, err := s.Search(context.Background(), "any query", 10, SearchOptions{})
	assert.Error(t, err)
}
