// Package vector provides semantic retrieval: an HNSW-backed vector store
// plus a search pipeline that embeds queries, applies metadata boosts,
// filters by similarity, reranks heuristically and enforces result
// diversity.
package vector

import (
	"context"
	"fmt"
	"time"
)

// Pipeline defaults.
const (
	// DefaultSimilarityFloor drops candidates below this cosine
	// similarity to the query.
	DefaultSimilarityFloor = 0.7

	// DefaultDiversityThreshold is the Jaccard similarity above which a
	// candidate is considered a near-duplicate of an accepted result.
	DefaultDiversityThreshold = 0.9

	// RerankInflation is the candidate overfetch factor when heuristic
	// reranking is enabled.
	RerankInflation = 3

	// RecencyWindow is how recent an update must be to earn the recency
	// boost.
	RecencyWindow = 7 * 24 * time.Hour

	// QualityFloor is the chunk quality score above which the quality
	// boost applies.
	QualityFloor = 0.8

	// Boost magnitudes, added to the base similarity.
	RecencyBoost   = 0.05
	OwnershipBoost = 0.05
	QualityBoost   = 0.03
)

// ChunkMeta is the metadata stored alongside each vector. Content rides
// along so search results need no second lookup.
type ChunkMeta struct {
	Content   string
	Title     string
	FileType  string
	Owner     string
	UpdatedAt time.Time
	Quality   float64
}

// StoreResult is a raw nearest-neighbor hit from the store.
type StoreResult struct {
	ChunkID    string
	Similarity float64
	Meta       ChunkMeta
}

// Result is a post-pipeline semantic search result.
type Result struct {
	ChunkID string
	Content string

	// Similarity is the raw cosine similarity to the query.
	Similarity float64

	// Score is the similarity after boosts and reranking adjustments.
	Score float64

	// Rank is 1-based and contiguous within a result list.
	Rank int

	Meta ChunkMeta
}

// Store is the nearest-neighbor vector store.
type Store interface {
	// Upsert inserts or replaces the vector and metadata for id.
	Upsert(ctx context.Context, id string, vec []float32, meta ChunkMeta) error

	// Query returns up to k nearest neighbors by descending similarity.
	Query(ctx context.Context, vec []float32, k int) ([]*StoreResult, error)

	// Delete removes ids from the store. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored vectors.
	Count() int

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch reports a vector whose dimension does not match the
// store's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
