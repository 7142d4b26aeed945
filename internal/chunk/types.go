// Package chunk splits document text into bounded, ranked retrieval units.
// Four strategies are available (fixed, semantic, hierarchical, sliding),
// with auto-selection, advisory quality scoring, near-duplicate collapsing,
// and a fixed-size fallback for any strategy failure.
package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/calyptra/ragcore/internal/textutil"
)

// Strategy identifies a chunking strategy.
type Strategy string

const (
	StrategyFixed        Strategy = "fixed"
	StrategySemantic     Strategy = "semantic"
	StrategyHierarchical Strategy = "hierarchical"
	StrategySliding      Strategy = "sliding"
)

// Chunking limits and defaults.
const (
	// DefaultChunkTokens is the target chunk size in tokens.
	DefaultChunkTokens = 512

	// DefaultOverlapTokens is the target overlap between adjacent chunks.
	DefaultOverlapTokens = 64

	// MinChunkTokens is the smallest fragment the semantic strategy keeps.
	MinChunkTokens = 20

	// MaxChunksPerDocument caps chunk count regardless of input size,
	// guaranteeing termination on pathological input.
	MaxChunksPerDocument = 10000

	// DefaultDedupeThreshold is the Jaccard similarity at or above which
	// two chunks collapse to one.
	DefaultDedupeThreshold = 0.9
)

// Metadata describes the source document being chunked.
type Metadata struct {
	// DocumentID identifies the source document. Chunk IDs embed it.
	DocumentID string

	// Title is the document title, if known.
	Title string

	// FileType is the source file extension or format tag ("md", "log", ...).
	FileType string

	// Extra carries caller metadata copied onto every chunk.
	Extra map[string]string
}

// Chunk is a bounded span of a source document, the atomic unit of
// indexing and retrieval.
type Chunk struct {
	// ID is unique per document: documentID:sequence:contentHash.
	ID string

	// DocumentID is the parent document.
	DocumentID string

	// Content is the chunk text.
	Content string

	// TokenCount is the estimated token count, re-derivable from Content.
	TokenCount int

	// StartOffset/EndOffset locate Content in the source text (byte
	// offsets). For strategies that rewrite whitespace the offsets are
	// best-effort and resolved by normalized search.
	StartOffset int
	EndOffset   int

	// OverlapWithPrev/OverlapWithNext are the estimated token overlaps
	// shared with the adjacent chunks.
	OverlapWithPrev int
	OverlapWithNext int

	// Strategy tags the strategy that produced this chunk.
	Strategy Strategy

	// SectionLevel and SectionTitle carry structural metadata for
	// hierarchical chunks (0 / "" otherwise).
	SectionLevel int
	SectionTitle string

	// Metadata carries caller metadata from the source document.
	Metadata map[string]string
}

// Result is the outcome of chunking one document.
type Result struct {
	Chunks []*Chunk

	// Strategy is the strategy that produced the chunks (the fallback
	// strategy when Fallback is set).
	Strategy Strategy

	// Fallback indicates the requested strategy failed and fixed-size
	// chunking was used instead.
	Fallback bool

	// FallbackReason records the error that triggered the fallback.
	FallbackReason string

	// Quality is an advisory quality score in [0, 1]. It never gates output.
	Quality float64

	// Warnings holds non-blocking validation flags.
	Warnings []string
}

// Options configures a single chunking call.
type Options struct {
	// Strategy to use. Empty means auto-select.
	Strategy Strategy

	// ChunkSize is the target chunk size in tokens (default: 512).
	ChunkSize int

	// Overlap is the target overlap in tokens (default: 64).
	Overlap int

	// WindowSize and Step configure the sliding strategy independently of
	// ChunkSize/Overlap. Zero values derive from ChunkSize/Overlap.
	WindowSize int
	Step       int

	// MaxChunks caps the produced chunk count (default: 10000).
	MaxChunks int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkTokens
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.ChunkSize {
		o.Overlap = o.ChunkSize / 4
	}
	if o.MaxChunks <= 0 || o.MaxChunks > MaxChunksPerDocument {
		o.MaxChunks = MaxChunksPerDocument
	}
	if o.WindowSize <= 0 {
		o.WindowSize = o.ChunkSize
	}
	if o.Step <= 0 || o.Step > o.WindowSize {
		o.Step = o.WindowSize - o.Overlap
		if o.Step <= 0 {
			o.Step = o.WindowSize
		}
	}
	return o
}

// newChunk builds a chunk with derived fields populated.
func newChunk(meta Metadata, seq int, content string, start, end int, strategy Strategy) *Chunk {
	return &Chunk{
		ID:          chunkID(meta.DocumentID, seq, content),
		DocumentID:  meta.DocumentID,
		Content:     content,
		TokenCount:  textutil.EstimateTokens(content),
		StartOffset: start,
		EndOffset:   end,
		Strategy:    strategy,
		Metadata:    copyMetadata(meta.Extra),
	}
}

// chunkID derives a per-document-unique chunk ID from the document ID,
// sequence number, and a short content hash.
func chunkID(docID string, seq int, content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s:%04d:%s", docID, seq, hex.EncodeToString(sum[:8]))
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ContentHash returns the full content hash of a chunk, used for exact
// duplicate detection.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
