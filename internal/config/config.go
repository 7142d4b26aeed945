// Package config defines the retrieval core configuration.
// All tunables live on one Config value that is loaded once and injected at
// construction time; components never consult process-wide state.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the complete retrieval core configuration.
type Config struct {
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Lexical  LexicalConfig  `yaml:"lexical" json:"lexical"`
	Vector   VectorConfig   `yaml:"vector" json:"vector"`
	Fusion   FusionConfig   `yaml:"fusion" json:"fusion"`
	Assembly AssemblyConfig `yaml:"assembly" json:"assembly"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures document chunking.
type ChunkingConfig struct {
	// Strategy is the default strategy: "auto", "fixed", "semantic",
	// "hierarchical", "sliding".
	Strategy string `yaml:"strategy" json:"strategy"`

	// ChunkSize is the target chunk size in tokens.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// Overlap is the target overlap between adjacent chunks in tokens.
	Overlap int `yaml:"overlap" json:"overlap"`

	// MaxChunks caps the chunk count per document regardless of input size.
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`

	// DedupeThreshold is the token-Jaccard similarity at or above which two
	// chunks collapse to one (first seen wins).
	DedupeThreshold float64 `yaml:"dedupe_threshold" json:"dedupe_threshold"`
}

// LexicalConfig configures the lexical (BM25) index.
type LexicalConfig struct {
	// Backend selects the index implementation: "memory" (default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// K1 is the BM25 term-frequency saturation parameter.
	K1 float64 `yaml:"k1" json:"k1"`

	// B is the BM25 length-normalization parameter.
	B float64 `yaml:"b" json:"b"`

	// Stemming enables porter stemming during tokenization.
	Stemming bool `yaml:"stemming" json:"stemming"`

	// SpellCorrection enables out-of-vocabulary query correction.
	SpellCorrection bool `yaml:"spell_correction" json:"spell_correction"`

	// SynonymExpansion enables bounded synonym expansion of queries.
	SynonymExpansion bool `yaml:"synonym_expansion" json:"synonym_expansion"`
}

// VectorConfig configures vector search post-processing.
type VectorConfig struct {
	// Dimensions is the embedding dimension, fixed per model.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// Metric is the distance metric: "cos" (default) or "l2".
	Metric string `yaml:"metric" json:"metric"`

	// SimilarityFloor drops results scoring below this value.
	SimilarityFloor float64 `yaml:"similarity_floor" json:"similarity_floor"`

	// DiversityThreshold is the Jaccard similarity at or above which a
	// candidate is suppressed as a near-duplicate of a kept result.
	DiversityThreshold float64 `yaml:"diversity_threshold" json:"diversity_threshold"`

	// CacheSize is the embedding LRU cache capacity.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// FusionConfig configures reciprocal rank fusion.
type FusionConfig struct {
	// RRFConstant is the RRF smoothing parameter k (default: 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// SemanticWeight and LexicalWeight are the default fusion weights.
	// They are normalized at fusion time.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	LexicalWeight  float64 `yaml:"lexical_weight" json:"lexical_weight"`

	// Adaptive enables query-feature driven weight selection.
	Adaptive bool `yaml:"adaptive" json:"adaptive"`
}

// AssemblyConfig configures context assembly.
type AssemblyConfig struct {
	// MaxTokens is the default token budget for an assembled context.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// ResponseBuffer is reserved out of MaxTokens for the model response.
	ResponseBuffer int `yaml:"response_buffer" json:"response_buffer"`

	// ConversationFraction of the post-buffer budget is reserved for
	// conversation history when history is supplied.
	ConversationFraction float64 `yaml:"conversation_fraction" json:"conversation_fraction"`

	// MinRelevance drops results scoring below this value before packing.
	MinRelevance float64 `yaml:"min_relevance" json:"min_relevance"`

	// MinUsefulTokens is the smallest truncated chunk worth including.
	MinUsefulTokens int `yaml:"min_useful_tokens" json:"min_useful_tokens"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Strategy:        "auto",
			ChunkSize:       512,
			Overlap:         64,
			MaxChunks:       10000,
			DedupeThreshold: 0.9,
		},
		Lexical: LexicalConfig{
			Backend:          "memory",
			K1:               1.5,
			B:                0.75,
			Stemming:         true,
			SpellCorrection:  true,
			SynonymExpansion: true,
		},
		Vector: VectorConfig{
			Dimensions:         256,
			Metric:             "cos",
			SimilarityFloor:    0.7,
			DiversityThreshold: 0.9,
			CacheSize:          1000,
		},
		Fusion: FusionConfig{
			RRFConstant:    60,
			SemanticWeight: 0.7,
			LexicalWeight:  0.3,
			Adaptive:       true,
		},
		Assembly: AssemblyConfig{
			MaxTokens:            4000,
			ResponseBuffer:       200,
			ConversationFraction: 0.2,
			MinRelevance:         0.7,
			MinUsefulTokens:      100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, applies environment overrides,
// and validates the result. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies RAGCORE_* environment variables on top of the
// file values. Only the commonly tuned knobs are exposed this way.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RAGCORE_LEXICAL_BACKEND"); v != "" {
		c.Lexical.Backend = v
	}
	if v, ok := envFloat("RAGCORE_SEMANTIC_WEIGHT"); ok {
		c.Fusion.SemanticWeight = v
	}
	if v, ok := envFloat("RAGCORE_LEXICAL_WEIGHT"); ok {
		c.Fusion.LexicalWeight = v
	}
	if v, ok := envInt("RAGCORE_RRF_CONSTANT"); ok {
		c.Fusion.RRFConstant = v
	}
	if v, ok := envInt("RAGCORE_MAX_TOKENS"); ok {
		c.Assembly.MaxTokens = v
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be > 0, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}
	if c.Chunking.MaxChunks <= 0 {
		return fmt.Errorf("chunking.max_chunks must be > 0, got %d", c.Chunking.MaxChunks)
	}
	if c.Chunking.DedupeThreshold <= 0 || c.Chunking.DedupeThreshold > 1 {
		return fmt.Errorf("chunking.dedupe_threshold must be in (0, 1], got %g", c.Chunking.DedupeThreshold)
	}
	switch c.Lexical.Backend {
	case "memory", "bleve":
	default:
		return fmt.Errorf("lexical.backend must be \"memory\" or \"bleve\", got %q", c.Lexical.Backend)
	}
	if c.Lexical.K1 <= 0 {
		return fmt.Errorf("lexical.k1 must be > 0, got %g", c.Lexical.K1)
	}
	if c.Lexical.B < 0 || c.Lexical.B > 1 {
		return fmt.Errorf("lexical.b must be in [0, 1], got %g", c.Lexical.B)
	}
	if c.Vector.Dimensions <= 0 {
		return fmt.Errorf("vector.dimensions must be > 0, got %d", c.Vector.Dimensions)
	}
	if c.Vector.Metric != "cos" && c.Vector.Metric != "l2" {
		return fmt.Errorf("vector.metric must be \"cos\" or \"l2\", got %q", c.Vector.Metric)
	}
	if c.Vector.SimilarityFloor < 0 || c.Vector.SimilarityFloor > 1 {
		return fmt.Errorf("vector.similarity_floor must be in [0, 1], got %g", c.Vector.SimilarityFloor)
	}
	if c.Fusion.RRFConstant <= 0 {
		return fmt.Errorf("fusion.rrf_constant must be > 0, got %d", c.Fusion.RRFConstant)
	}
	if c.Fusion.SemanticWeight < 0 || c.Fusion.LexicalWeight < 0 ||
		c.Fusion.SemanticWeight+c.Fusion.LexicalWeight == 0 {
		return fmt.Errorf("fusion weights must be non-negative and not both zero")
	}
	if c.Assembly.ResponseBuffer < 0 || c.Assembly.ResponseBuffer >= c.Assembly.MaxTokens {
		return fmt.Errorf("assembly.response_buffer must be in [0, max_tokens), got %d", c.Assembly.ResponseBuffer)
	}
	if c.Assembly.ConversationFraction < 0 || c.Assembly.ConversationFraction >= 1 {
		return fmt.Errorf("assembly.conversation_fraction must be in [0, 1), got %g", c.Assembly.ConversationFraction)
	}
	return nil
}
