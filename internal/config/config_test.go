package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathYieldsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragcore.yaml")
	content := "lexical:\n  backend: bleve\nfusion:\n  semantic_weight: 0.6\n  lexical_weight: 0.4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bleve", cfg.Lexical.Backend)
	assert.Equal(t, 0.6, cfg.Fusion.SemanticWeight)
	assert.Equal(t, 0.4, cfg.Fusion.LexicalWeight)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lexical: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAGCORE_LOG_LEVEL", "debug")
	t.Setenv("RAGCORE_LEXICAL_BACKEND", "bleve")
	t.Setenv("RAGCORE_SEMANTIC_WEIGHT", "0.8")
	t.Setenv("RAGCORE_RRF_CONSTANT", "30")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "bleve", cfg.Lexical.Backend)
	assert.Equal(t, 0.8, cfg.Fusion.SemanticWeight)
	assert.Equal(t, 30, cfg.Fusion.RRFConstant)
}

func TestEnvOverrideIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("RAGCORE_MAX_TOKENS", "lots")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Assembly.MaxTokens, cfg.Assembly.MaxTokens)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap >= chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }},
		{"unknown lexical backend", func(c *Config) { c.Lexical.Backend = "elastic" }},
		{"negative k1", func(c *Config) { c.Lexical.K1 = -1 }},
		{"b out of range", func(c *Config) { c.Lexical.B = 1.5 }},
		{"zero dimensions", func(c *Config) { c.Vector.Dimensions = 0 }},
		{"unknown vector metric", func(c *Config) { c.Vector.Metric = "dot" }},
		{"similarity floor above one", func(c *Config) { c.Vector.SimilarityFloor = 1.1 }},
		{"zero rrf constant", func(c *Config) { c.Fusion.RRFConstant = 0 }},
		{"both fusion weights zero", func(c *Config) {
			c.Fusion.SemanticWeight = 0
			c.Fusion.LexicalWeight = 0
		}},
		{"response buffer >= max tokens", func(c *Config) {
			c.Assembly.ResponseBuffer = c.Assembly.MaxTokens
		}},
		{"conversation fraction >= 1", func(c *Config) { c.Assembly.ConversationFraction = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
