package lexical

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	"github.com/calyptra/ragcore/internal/ragerr"
)

// textAnalyzerName is the custom analyzer registered on each bleve index:
// unicode tokenization, lowercasing, English stopwords, porter stemming.
const textAnalyzerName = "ragcore_text"

// BleveIndex is the bleve-backed lexical backend. Each Build creates a
// fresh in-memory index and swaps it in under the lock, matching the
// wholesale-rebuild contract of the Index interface.
type BleveIndex struct {
	cfg       Config
	tokenizer *Tokenizer
	synonyms  map[string][]string

	mu       sync.RWMutex
	index    bleve.Index
	contents map[string]string
	vocab    map[string]int
	closed   bool
}

type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveIndex creates an empty bleve-backed lexical index.
func NewBleveIndex(cfg Config) (*BleveIndex, error) {
	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = DefaultSynonyms
	}
	return &BleveIndex{
		cfg:       cfg,
		tokenizer: NewTokenizer(cfg),
		synonyms:  synonyms,
	}, nil
}

var _ Index = (*BleveIndex)(nil)

func newBleveMapping(stemming bool) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	filters := []string{lowercase.Name, en.StopName}
	if stemming {
		filters = append(filters, porter.Name)
	}
	err := indexMapping.AddCustomAnalyzer(textAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": filters,
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = textAnalyzerName
	return indexMapping, nil
}

// Build indexes docs into a fresh in-memory bleve index and swaps it in.
func (b *BleveIndex) Build(ctx context.Context, docs []*Document) error {
	indexMapping, err := newBleveMapping(b.cfg.Stemming)
	if err != nil {
		return err
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return fmt.Errorf("create bleve index: %w", err)
	}

	contents := make(map[string]string, len(docs))
	vocab := make(map[string]int)

	batch := idx.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			_ = idx.Close()
			return err
		}
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
		contents[doc.ID] = doc.Content

		surface := make(map[string]struct{})
		for _, w := range b.tokenizer.Words(doc.Content) {
			surface[w] = struct{}{}
		}
		for w := range surface {
			vocab[w]++
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("execute batch: %w", err)
	}

	b.mu.Lock()
	old := b.index
	b.index = idx
	b.contents = contents
	b.vocab = vocab
	b.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Search runs the preprocessed query against the current bleve index.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ragerr.Validation("empty query")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ragerr.IndexUnavailable("lexical index is closed")
	}
	if b.index == nil || len(b.contents) == 0 {
		return nil, ragerr.IndexUnavailable("lexical index not built or corpus empty")
	}

	words := b.tokenizer.Words(query)
	if b.cfg.SpellCorrection {
		words = correctSpelling(words, b.vocab)
	}
	if b.cfg.SynonymExpansion {
		words = expandQuery(words, b.synonyms)
	}
	if len(words) == 0 {
		return []*Result{}, nil
	}

	matchQuery := bleve.NewMatchQuery(strings.Join(words, " "))
	matchQuery.SetField("content")

	request := bleve.NewSearchRequest(matchQuery)
	request.Size = limit
	request.IncludeLocations = true

	res, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]*Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if hit.Score <= 0 {
			continue
		}
		matched, tf := hitTerms(hit.Locations)
		// Ranks stay contiguous even when zero-score hits are skipped.
		results = append(results, &Result{
			ChunkID:      hit.ID,
			Content:      b.contents[hit.ID],
			Score:        hit.Score,
			Rank:         len(results) + 1,
			MatchedTerms: matched,
			TermFreq:     tf,
		})
	}
	return results, nil
}

// hitTerms extracts matched terms and their frequencies from hit locations.
func hitTerms(locations search.FieldTermLocationMap) ([]string, map[string]int) {
	tf := make(map[string]int)
	for _, terms := range locations {
		for term, locs := range terms {
			tf[term] += len(locs)
		}
	}
	matched := make([]string, 0, len(tf))
	for term := range tf {
		matched = append(matched, term)
	}
	sort.Strings(matched)
	return matched, tf
}

// DocCount returns the number of indexed documents.
func (b *BleveIndex) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.contents)
}

// Close closes the underlying bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}
