// Package retriever is the library entry point: it wires the chunker,
// lexical index, vector search, fusion engine and context assembler into
// one facade for indexing documents and retrieving context.
package retriever

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/calyptra/ragcore/internal/assemble"
	"github.com/calyptra/ragcore/internal/chunk"
	"github.com/calyptra/ragcore/internal/config"
	"github.com/calyptra/ragcore/internal/embed"
	"github.com/calyptra/ragcore/internal/fusion"
	"github.com/calyptra/ragcore/internal/lexical"
	"github.com/calyptra/ragcore/internal/ragerr"
	"github.com/calyptra/ragcore/internal/store"
	"github.com/calyptra/ragcore/internal/telemetry"
	"github.com/calyptra/ragcore/internal/vector"
)

// Document is one source document to index. Content is plain text;
// extraction happens upstream.
type Document struct {
	ID        string
	Title     string
	FileType  string
	Owner     string
	Content   string
	UpdatedAt time.Time
}

// Result is one retrieval result from Retrieve.
type Result struct {
	ChunkID    string
	DocumentID string
	Content    string

	// Score is normalized to [0,1] within the result list.
	Score float64

	// Rank is 1-based and contiguous.
	Rank int

	Title     string
	FileType  string
	UpdatedAt time.Time

	// MatchedTerms come from the lexical path when it contributed.
	MatchedTerms []string
}

// RetrieveOptions tunes one Retrieve call.
type RetrieveOptions struct {
	// TopK caps the result count; zero means 10.
	TopK int

	// UserID scopes ownership boosts.
	UserID string

	// UseHybrid runs both paths; false runs semantic only.
	UseHybrid bool

	// Timeout bounds the whole retrieval when positive.
	Timeout time.Duration
}

// Retriever is the retrieval facade. Safe for concurrent use.
type Retriever struct {
	cfg *config.Config

	chunker  *chunk.Chunker
	lexical  lexical.Index
	vectors  vector.Store
	searcher *vector.Searcher
	embedder embed.Embedder
	chunks   store.ChunkStore

	fuser     *fusion.Engine
	adaptive  *fusion.Adaptive
	assembler *assemble.Assembler
	metrics   *telemetry.Metrics

	log *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithEmbedder replaces the default cached static embedder.
func WithEmbedder(e embed.Embedder) Option {
	return func(r *Retriever) { r.embedder = e }
}

// WithVectorStore replaces the default in-process HNSW store.
func WithVectorStore(s vector.Store) Option {
	return func(r *Retriever) { r.vectors = s }
}

// WithChunkStore replaces the default in-memory chunk store.
func WithChunkStore(s store.ChunkStore) Option {
	return func(r *Retriever) { r.chunks = s }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Retriever) { r.log = log }
}

// New builds a Retriever from cfg. Components not overridden by options
// get in-process defaults.
func New(cfg *config.Config, opts ...Option) (*Retriever, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Retriever{
		cfg: cfg,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.embedder == nil {
		r.embedder = embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Vector.CacheSize)
	}
	if cfg.Vector.Dimensions != r.embedder.Dimensions() {
		return nil, ragerr.Validationf("vector.dimensions %d does not match embedder %q (%d dimensions)",
			cfg.Vector.Dimensions, r.embedder.ModelName(), r.embedder.Dimensions())
	}
	if r.vectors == nil {
		hnsw, err := vector.NewHNSWStore(vector.HNSWConfig{
			Dimensions: cfg.Vector.Dimensions,
			Metric:     cfg.Vector.Metric,
		})
		if err != nil {
			return nil, err
		}
		r.vectors = hnsw
	}
	if r.chunks == nil {
		r.chunks = store.NewMemoryStore()
	}

	lexCfg := lexical.Config{
		K1:               cfg.Lexical.K1,
		B:                cfg.Lexical.B,
		Stemming:         cfg.Lexical.Stemming,
		SpellCorrection:  cfg.Lexical.SpellCorrection,
		SynonymExpansion: cfg.Lexical.SynonymExpansion,
	}
	idx, err := lexical.NewIndex(cfg.Lexical.Backend, lexCfg)
	if err != nil {
		return nil, err
	}
	r.lexical = idx

	r.chunker = chunk.New(chunk.Options{
		Strategy:  chunk.Strategy(cfg.Chunking.Strategy),
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
		MaxChunks: cfg.Chunking.MaxChunks,
	})
	r.chunker.DedupeThreshold = cfg.Chunking.DedupeThreshold

	r.searcher = vector.NewSearcher(r.vectors, r.embedder)
	r.searcher.SimilarityFloor = cfg.Vector.SimilarityFloor
	r.searcher.DiversityThreshold = cfg.Vector.DiversityThreshold

	r.fuser = fusion.NewEngineWithK(cfg.Fusion.RRFConstant)
	r.adaptive = fusion.NewAdaptive()

	asm := assemble.New(&hybridRetrieverAdapter{r: r})
	asm.MaxTokens = cfg.Assembly.MaxTokens
	asm.ResponseBuffer = cfg.Assembly.ResponseBuffer
	asm.ConversationFraction = cfg.Assembly.ConversationFraction
	asm.MinRelevance = cfg.Assembly.MinRelevance
	asm.MinUsefulTokens = cfg.Assembly.MinUsefulTokens
	r.assembler = asm

	r.metrics = telemetry.NewMetrics()

	return r, nil
}

// Metrics returns the retrieval telemetry recorder.
func (r *Retriever) Metrics() *telemetry.Metrics {
	return r.metrics
}

// Close releases all component resources.
func (r *Retriever) Close() error {
	var errs []error
	if err := r.lexical.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.vectors.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.chunks.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// documentIDOf extracts the document part of a chunk ID
// (documentID:sequence:hash).
func documentIDOf(chunkID string) string {
	if i := strings.IndexByte(chunkID, ':'); i > 0 {
		return chunkID[:i]
	}
	return chunkID
}
