package chunk

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// Chunker splits document text into retrieval units. It is stateless per
// call and safe for concurrent use.
type Chunker struct {
	defaults Options

	// DedupeThreshold is the Jaccard similarity at or above which two
	// chunks collapse during DeduplicateChunks.
	DedupeThreshold float64
}

// New creates a Chunker with the given default options.
func New(defaults Options) *Chunker {
	return &Chunker{
		defaults:        defaults.withDefaults(),
		DedupeThreshold: DefaultDedupeThreshold,
	}
}

// Thresholds for strategy auto-selection.
const (
	// autoShortTokens routes short inputs to fixed chunking.
	autoShortTokens = 200

	// autoMarkupDensity is the fraction of structural lines above which
	// hierarchical chunking is selected.
	autoMarkupDensity = 0.05
)

// technicalFileTypes route to the sliding strategy.
var technicalFileTypes = map[string]struct{}{
	"log": {}, "csv": {}, "tsv": {}, "json": {}, "yaml": {}, "yml": {},
	"xml": {}, "ini": {}, "conf": {}, "go": {}, "py": {}, "js": {},
	"ts": {}, "java": {}, "c": {}, "cpp": {}, "rs": {}, "sh": {},
}

var codePatternRegex = regexp.MustCompile(`(?m)^\s*(func |def |class |import |#include|package |\{|\})|[{};]\s*$`)

// Chunk splits text using the requested (or auto-selected) strategy.
// Any strategy failure falls back to fixed-size chunking with the result
// tagged as a fallback; Chunk never returns an error to its caller.
func (c *Chunker) Chunk(text string, meta Metadata, opts Options) *Result {
	opts = mergeOptions(c.defaults, opts)

	if strings.TrimSpace(text) == "" {
		return &Result{Strategy: opts.Strategy}
	}

	strategy := opts.Strategy
	if strategy == "" || strategy == "auto" {
		strategy = c.AutoSelectStrategy(text, meta)
	}

	chunks, err := c.run(strategy, text, meta, opts)
	if err == nil && len(chunks) == 0 && strategy != StrategyFixed {
		// A strategy that produced nothing from non-empty input is as
		// good as failed.
		err = fmt.Errorf("strategy %s produced no chunks", strategy)
	}

	result := &Result{Chunks: chunks, Strategy: strategy}
	if err != nil {
		slog.Warn("chunking strategy failed, falling back to fixed",
			slog.String("strategy", string(strategy)),
			slog.String("document", meta.DocumentID),
			slog.String("error", err.Error()))

		fixed, fixedErr := chunkFixed(text, meta, opts)
		if fixedErr != nil {
			// Fixed chunking cannot fail on non-empty input; guard anyway.
			fixed = nil
		}
		result = &Result{
			Chunks:         fixed,
			Strategy:       StrategyFixed,
			Fallback:       true,
			FallbackReason: err.Error(),
		}
	}

	result.Quality = QualityScore(result.Chunks, opts)
	result.Warnings = ValidateChunks(result.Chunks)
	return result
}

func (c *Chunker) run(strategy Strategy, text string, meta Metadata, opts Options) ([]*Chunk, error) {
	switch strategy {
	case StrategyFixed:
		return chunkFixed(text, meta, opts)
	case StrategySemantic:
		return chunkSemantic(text, meta, opts)
	case StrategyHierarchical:
		return chunkHierarchical(text, meta, opts)
	case StrategySliding:
		return chunkSliding(text, meta, opts)
	default:
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
}

// AutoSelectStrategy picks a strategy from content features: structural
// markup density selects hierarchical, code-like patterns or technical file
// types select sliding, short inputs select fixed, everything else semantic.
func (c *Chunker) AutoSelectStrategy(text string, meta Metadata) Strategy {
	if _, ok := technicalFileTypes[strings.ToLower(meta.FileType)]; ok {
		return StrategySliding
	}

	lines := strings.Split(text, "\n")
	structural := 0
	for i, line := range lines {
		if _, _, ok := headingInfo(line, lines, i); ok {
			structural++
		}
	}
	if len(lines) > 0 && float64(structural)/float64(len(lines)) >= autoMarkupDensity && structural >= 2 {
		return StrategyHierarchical
	}

	if len(codePatternRegex.FindAllStringIndex(text, 6)) >= 5 {
		return StrategySliding
	}

	if textutil.EstimateTokens(text) < autoShortTokens {
		return StrategyFixed
	}

	return StrategySemantic
}

// SuggestDefaults proposes chunk size and overlap for the given text.
// Structured documents get smaller chunks to respect section granularity;
// long prose gets larger ones.
func (c *Chunker) SuggestDefaults(text string, meta Metadata) (chunkSize, overlap int) {
	tokens := textutil.EstimateTokens(text)
	switch {
	case tokens < autoShortTokens:
		return 128, 16
	case c.AutoSelectStrategy(text, meta) == StrategyHierarchical:
		return 384, 48
	case tokens > 8000:
		return 768, 96
	default:
		return DefaultChunkTokens, DefaultOverlapTokens
	}
}

func mergeOptions(defaults, opts Options) Options {
	if opts.Strategy == "" {
		opts.Strategy = defaults.Strategy
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaults.ChunkSize
	}
	if opts.Overlap <= 0 {
		opts.Overlap = defaults.Overlap
	}
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = defaults.MaxChunks
	}
	return opts.withDefaults()
}
