package lexical

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/calyptra/ragcore/internal/ragerr"
)

// MemoryIndex is the default in-memory lexical index. Rebuilds construct a
// fresh immutable snapshot and publish it with an atomic pointer swap, so
// concurrent searches always observe a complete index.
type MemoryIndex struct {
	cfg       Config
	tokenizer *Tokenizer
	synonyms  map[string][]string
	snapshot  atomic.Pointer[indexSnapshot]
}

// indexSnapshot is one immutable build of the corpus.
type indexSnapshot struct {
	docs      []*indexedDoc
	docFreq   map[string]int // processed term -> documents containing it
	vocab     map[string]int // surface word -> documents containing it
	avgDocLen float64
	bm25OK    bool
}

type indexedDoc struct {
	lex     LexicalDocument
	content string
	length  int
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex(cfg Config) *MemoryIndex {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	return &MemoryIndex{
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg),
		synonyms:  synonyms,
	}
}

var _ Index = (*MemoryIndex)(nil)

// Build tokenizes docs and atomically replaces the index contents.
func (m *MemoryIndex) Build(ctx context.Context, docs []*Document) error {
	snap := &indexSnapshot{
		docFreq: make(map[string]int),
		vocab:   make(map[string]int),
	}

	totalLen := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		tokens := m.tokenizer.Tokenize(doc.Content)
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		for t := range tf {
			snap.docFreq[t]++
		}

		// Vocabulary tracks surface words for spell correction.
		surface := make(map[string]struct{})
		for _, w := range m.tokenizer.Words(doc.Content) {
			surface[w] = struct{}{}
		}
		for w := range surface {
			snap.vocab[w]++
		}

		snap.docs = append(snap.docs, &indexedDoc{
			lex: LexicalDocument{
				ChunkID:  doc.ID,
				Tokens:   tokens,
				TermFreq: tf,
			},
			content: doc.Content,
			length:  len(tokens),
		})
		totalLen += len(tokens)
	}

	if len(snap.docs) > 0 {
		snap.avgDocLen = float64(totalLen) / float64(len(snap.docs))
	}
	snap.bm25OK = !m.cfg.DisableBM25 && snap.avgDocLen > 0
	if !snap.bm25OK && len(snap.docs) > 0 {
		slog.Warn("BM25 statistics unavailable, using linear TF-IDF scan",
			slog.Int("documents", len(snap.docs)))
	}

	m.snapshot.Store(snap)
	return nil
}

// Search scores the corrected, expanded query against the current
// snapshot. Results with non-positive scores are dropped.
func (m *MemoryIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ragerr.Validation("empty query")
	}

	snap := m.snapshot.Load()
	if snap == nil || len(snap.docs) == 0 {
		return nil, ragerr.IndexUnavailable("lexical index not built or corpus empty")
	}

	terms := m.preprocess(query, snap)
	if len(terms) == 0 {
		return []*Result{}, nil
	}

	var results []*Result
	if snap.bm25OK {
		results = scoreBM25(snap, terms, m.cfg.K1, m.cfg.B)
	} else {
		// Linear scan over the full corpus: O(corpus size), the
		// documented scaling limit of the fallback path.
		results = scoreTFIDF(snap, terms)
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results, nil
}

// preprocess turns the raw query into processed terms using the same
// tokenization as indexing, after spell correction and synonym expansion.
func (m *MemoryIndex) preprocess(query string, snap *indexSnapshot) []string {
	words := m.tokenizer.Words(query)
	if m.cfg.SpellCorrection {
		words = correctSpelling(words, snap.vocab)
	}
	if m.cfg.SynonymExpansion {
		words = expandQuery(words, m.synonyms)
	}
	return m.tokenizer.Tokenize(strings.Join(words, " "))
}

// DocCount returns the size of the current snapshot.
func (m *MemoryIndex) DocCount() int {
	snap := m.snapshot.Load()
	if snap == nil {
		return 0
	}
	return len(snap.docs)
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error { return nil }

// scoreBM25 computes Okapi BM25 scores for all documents matching any term.
func scoreBM25(snap *indexSnapshot, terms []string, k1, b float64) []*Result {
	n := float64(len(snap.docs))
	var results []*Result

	for _, doc := range snap.docs {
		score := 0.0
		var matched []string
		tf := make(map[string]int)

		for _, term := range terms {
			freq := doc.lex.TermFreq[term]
			if freq == 0 {
				continue
			}
			df := float64(snap.docFreq[term])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1)
			norm := 1 - b + b*float64(doc.length)/snap.avgDocLen
			score += idf * float64(freq) * (k1 + 1) / (float64(freq) + k1*norm)

			matched = append(matched, term)
			tf[term] = freq
		}

		if score > 0 {
			results = append(results, &Result{
				ChunkID:      doc.lex.ChunkID,
				Content:      doc.content,
				Score:        score,
				MatchedTerms: matched,
				TermFreq:     tf,
			})
		}
	}
	return results
}

// scoreTFIDF is the fallback scorer: normalized term frequency times
// inverse document frequency, scanned linearly over the corpus.
func scoreTFIDF(snap *indexSnapshot, terms []string) []*Result {
	n := float64(len(snap.docs))
	var results []*Result

	for _, doc := range snap.docs {
		if doc.length == 0 {
			continue
		}
		score := 0.0
		var matched []string
		tf := make(map[string]int)

		for _, term := range terms {
			freq := doc.lex.TermFreq[term]
			if freq == 0 {
				continue
			}
			df := float64(snap.docFreq[term])
			score += (float64(freq) / float64(doc.length)) * math.Log(n/df+1)
			matched = append(matched, term)
			tf[term] = freq
		}

		if score > 0 {
			results = append(results, &Result{
				ChunkID:      doc.lex.ChunkID,
				Content:      doc.content,
				Score:        score,
				MatchedTerms: matched,
				TermFreq:     tf,
			})
		}
	}
	return results
}

// sortResults orders by score descending with chunk ID as the
// deterministic tie-break.
func sortResults(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
}
