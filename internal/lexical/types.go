// Package lexical provides keyword retrieval over chunks using a BM25
// scorer with query preprocessing: spell correction, synonym expansion,
// stopword removal and optional stemming.
//
// The index is rebuilt wholesale whenever the corpus changes and swapped in
// atomically; concurrent readers never observe a partially built index.
package lexical

import (
	"context"
)

// BM25 parameters.
const (
	// DefaultK1 is the term-frequency saturation parameter.
	DefaultK1 = 1.5

	// DefaultB is the length-normalization parameter.
	DefaultB = 0.75

	// MaxSynonymsPerTerm bounds synonym expansion per recognized keyword.
	MaxSynonymsPerTerm = 2

	// MinCorrectionLength is the shortest word considered for spell
	// correction.
	MinCorrectionLength = 4

	// MaxEditDistance is the furthest dictionary match accepted as a
	// correction.
	MaxEditDistance = 2
)

// Document is the indexing input: one chunk of content plus metadata.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// LexicalDocument is a processed document inside the index: the token list
// and term-frequency table derived from one chunk. It is rebuilt wholesale
// with the index and never mutated incrementally.
type LexicalDocument struct {
	ChunkID  string
	Tokens   []string
	TermFreq map[string]int
}

// Result is a single lexical search result.
type Result struct {
	ChunkID string
	Content string

	// Score is the raw BM25 (or TF-IDF fallback) score.
	Score float64

	// Rank is 1-based and contiguous within a result list.
	Rank int

	// MatchedTerms are the processed query terms present in the document.
	MatchedTerms []string

	// TermFreq maps each matched term to its frequency in the document.
	TermFreq map[string]int
}

// Index is the lexical retrieval interface. Build replaces the entire
// corpus; Search scores the (corrected, expanded) query against it.
type Index interface {
	// Build tokenizes the documents and replaces the index contents.
	// The swap is atomic with respect to concurrent Search calls.
	Build(ctx context.Context, docs []*Document) error

	// Search returns up to limit results ranked by descending score.
	// Results with non-positive scores are dropped.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)

	// DocCount returns the number of indexed documents.
	DocCount() int

	// Close releases index resources.
	Close() error
}

// Config configures lexical indexing and query preprocessing.
type Config struct {
	K1               float64
	B                float64
	Stemming         bool
	SpellCorrection  bool
	SynonymExpansion bool

	// StopWords overrides the default stopword list when non-nil.
	StopWords []string

	// Synonyms overrides the default synonym table when non-nil.
	Synonyms map[string][]string

	// DisableBM25 forces the linear TF-IDF fallback scorer. It also
	// engages automatically when BM25 statistics cannot be computed.
	DisableBM25 bool
}

// DefaultConfig returns the default lexical configuration.
func DefaultConfig() Config {
	return Config{
		K1:               DefaultK1,
		B:                DefaultB,
		Stemming:         true,
		SpellCorrection:  true,
		SynonymExpansion: true,
	}
}
