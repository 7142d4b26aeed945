package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/ragcore/internal/textutil"
)

func testMeta() Metadata {
	return Metadata{DocumentID: "doc-1", Title: "Test Document"}
}

// reconstruct rebuilds the source from chunk contents, dropping each
// chunk's leading overlap region.
func reconstructFixed(chunks []*Chunk, overlapChars int) string {
	var b strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Content)
		if i > 0 && overlapChars > 0 && len(runes) > overlapChars {
			runes = runes[overlapChars:]
		}
		b.WriteString(string(runes))
	}
	return b.String()
}

func TestFixedChunking_Reconstruction(t *testing.T) {
	text := strings.Repeat("All work and no play makes for dull retrieval results. ", 200)
	opts := Options{ChunkSize: 50, Overlap: 10, Strategy: StrategyFixed}.withDefaults()

	chunks, err := chunkFixed(text, testMeta(), opts)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	overlapChars := opts.Overlap * textutil.CharsPerToken
	assert.Equal(t, text, reconstructFixed(chunks, overlapChars),
		"union of chunk spans must reconstruct the source")

	// Offsets resolve back into the source text.
	for _, c := range chunks {
		assert.Equal(t, c.Content, text[c.StartOffset:c.EndOffset])
	}
}

func TestSlidingChunking_FullCoverage(t *testing.T) {
	text := strings.Repeat("2024-01-02T15:04:05Z level=info msg=\"request served\" path=/api status=200\n", 120)
	opts := Options{Strategy: StrategySliding, WindowSize: 60, Step: 40}.withDefaults()

	chunks, err := chunkSliding(text, testMeta(), opts)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// Every source position is covered by at least one chunk span.
	covered := 0
	for _, c := range chunks {
		if c.StartOffset <= covered && c.EndOffset > covered {
			covered = c.EndOffset
		}
	}
	assert.Equal(t, len(text), covered, "sliding windows must cover the full source")
}

func TestChunking_CountBounded(t *testing.T) {
	// Adversarially large input with a small window still terminates
	// within the configured cap.
	text := strings.Repeat("x ", 400000)
	opts := Options{ChunkSize: 2, Overlap: 1, MaxChunks: 50, Strategy: StrategyFixed}

	c := New(Options{})
	result := c.Chunk(text, testMeta(), opts)

	assert.LessOrEqual(t, len(result.Chunks), 50)
}

func TestChunk_TokenCountRederivable(t *testing.T) {
	c := New(Options{})
	result := c.Chunk(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60), testMeta(), Options{Strategy: StrategySemantic})

	require.NotEmpty(t, result.Chunks)
	for _, ch := range result.Chunks {
		assert.Equal(t, textutil.EstimateTokens(ch.Content), ch.TokenCount)
	}
}

func TestChunk_IDsUniquePerDocument(t *testing.T) {
	c := New(Options{})
	result := c.Chunk(strings.Repeat("Repeated content everywhere. ", 300), testMeta(), Options{Strategy: StrategyFixed, ChunkSize: 20})

	ids := make(map[string]struct{})
	for _, ch := range result.Chunks {
		_, dup := ids[ch.ID]
		require.False(t, dup, "duplicate chunk ID %s", ch.ID)
		ids[ch.ID] = struct{}{}
	}
}

func TestSemanticChunking_SentenceOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 80; i++ {
		b.WriteString("This sentence carries enough words to register as a few tokens. ")
	}

	opts := Options{ChunkSize: 100, Overlap: 20, Strategy: StrategySemantic}.withDefaults()
	chunks, err := chunkSemantic(b.String(), testMeta(), opts)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		// Overlap is whole trailing sentences, so chunk content always
		// starts at a sentence boundary.
		assert.True(t, strings.HasPrefix(c.Content, "This sentence"), "chunk %d starts mid-sentence", i)
		if i > 0 {
			assert.Greater(t, c.OverlapWithPrev, 0, "chunk %d missing sentence overlap", i)
		}
	}
}

func TestSemanticChunking_AbbreviationGuard(t *testing.T) {
	text := "Dr. Smith visited the lab. The experiment ran for 3.5 hours. Results pending."
	sentences := textutil.SplitSentences(text)

	require.Len(t, sentences, 3)
	assert.Equal(t, "Dr. Smith visited the lab.", sentences[0])
	assert.Equal(t, "The experiment ran for 3.5 hours.", sentences[1])
}

func TestSemanticChunking_DiscardsFragments(t *testing.T) {
	opts := Options{ChunkSize: 100, Strategy: StrategySemantic}.withDefaults()
	chunks, err := chunkSemantic("Tiny.", testMeta(), opts)
	require.NoError(t, err)
	assert.Empty(t, chunks, "fragments below the minimum size are discarded")
}

func TestHierarchicalChunking_Sections(t *testing.T) {
	text := "# Introduction\n\nThis part introduces the system with ample prose to stand on its own as a chunk of text.\n\n" +
		"## Architecture\n\nThe architecture section describes components and their interactions in reasonable detail.\n\n" +
		"OPERATIONS\n\nAll-caps lines also mark sections in plain-text documents."

	opts := Options{ChunkSize: 512}.withDefaults()
	chunks, err := chunkHierarchical(text, testMeta(), opts)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "Introduction", chunks[0].SectionTitle)
	assert.Equal(t, 1, chunks[0].SectionLevel)
	assert.Equal(t, "Architecture", chunks[1].SectionTitle)
	assert.Equal(t, 2, chunks[1].SectionLevel)
	assert.Equal(t, "OPERATIONS", chunks[2].SectionTitle)
}

func TestHierarchicalChunking_OversizedSectionDelegates(t *testing.T) {
	body := strings.Repeat("A long sentence that contributes to the token total of this oversized section. ", 100)
	text := "# Big Section\n\n" + body

	opts := Options{ChunkSize: 100, Overlap: 10}.withDefaults()
	chunks, err := chunkHierarchical(text, testMeta(), opts)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "oversized section must split")

	for _, c := range chunks {
		// Sub-chunks inherit the parent section metadata.
		assert.Equal(t, "Big Section", c.SectionTitle)
		assert.Equal(t, StrategyHierarchical, c.Strategy)
	}
}

func TestAutoSelectStrategy(t *testing.T) {
	c := New(Options{})

	tests := []struct {
		name string
		text string
		meta Metadata
		want Strategy
	}{
		{
			name: "markdown density selects hierarchical",
			text: "# One\ntext\n# Two\ntext\n# Three\ntext",
			meta: testMeta(),
			want: StrategyHierarchical,
		},
		{
			name: "technical file type selects sliding",
			text: strings.Repeat("line\n", 100),
			meta: Metadata{DocumentID: "d", FileType: "log"},
			want: StrategySliding,
		},
		{
			name: "short input selects fixed",
			text: "A short paragraph of plain prose.",
			meta: testMeta(),
			want: StrategyFixed,
		},
		{
			name: "long prose selects semantic",
			text: strings.Repeat("Plain prose continues with meaningful sentences and no markup at all. ", 50),
			meta: testMeta(),
			want: StrategySemantic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.AutoSelectStrategy(tt.text, tt.meta))
		})
	}
}

func TestChunk_FallbackOnStrategyFailure(t *testing.T) {
	c := New(Options{})
	result := c.Chunk(strings.Repeat("some text ", 50), testMeta(), Options{Strategy: Strategy("bogus")})

	assert.True(t, result.Fallback)
	assert.Equal(t, StrategyFixed, result.Strategy)
	assert.NotEmpty(t, result.FallbackReason)
	assert.NotEmpty(t, result.Chunks, "fallback still chunks the document")
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(Options{})
	result := c.Chunk("   \n\t  ", testMeta(), Options{})

	assert.Empty(t, result.Chunks)
	assert.False(t, result.Fallback)
}

func TestDeduplicateChunks(t *testing.T) {
	mk := func(seq int, content string) *Chunk {
		return newChunk(testMeta(), seq, content, 0, len(content), StrategyFixed)
	}

	t.Run("exact duplicates collapse", func(t *testing.T) {
		chunks := []*Chunk{mk(0, "identical content"), mk(1, "identical content"), mk(2, "different content")}
		kept := DeduplicateChunks(chunks, 0.99)
		require.Len(t, kept, 2)
		assert.Equal(t, chunks[0].ID, kept[0].ID, "first seen wins")
	})

	t.Run("near duplicates collapse at low threshold", func(t *testing.T) {
		a := mk(0, "The cat sat on the mat.")
		b := mk(1, "The cat sat on the mat today.")
		// Token Jaccard is 5/6 ≈ 0.83: collapses at 0.8, retained at 0.9.
		kept := DeduplicateChunks([]*Chunk{a, b}, 0.8)
		assert.Len(t, kept, 1)

		kept = DeduplicateChunks([]*Chunk{a, b}, 0.9)
		assert.Len(t, kept, 2)
	})
}

func TestQualityScore(t *testing.T) {
	uniform := []*Chunk{
		{TokenCount: 100, OverlapWithPrev: 0},
		{TokenCount: 100, OverlapWithPrev: 10},
		{TokenCount: 100, OverlapWithPrev: 10},
	}
	ragged := []*Chunk{
		{TokenCount: 10, OverlapWithPrev: 0},
		{TokenCount: 500, OverlapWithPrev: 0},
		{TokenCount: 3, OverlapWithPrev: 40},
	}
	opts := Options{Overlap: 10}.withDefaults()

	assert.Greater(t, QualityScore(uniform, opts), QualityScore(ragged, opts))
	assert.Zero(t, QualityScore(nil, opts))
}

func TestValidateChunks(t *testing.T) {
	chunks := []*Chunk{
		{Content: "ok", TokenCount: 1},
		{Content: "This chunk has a reasonable length and ends with terminal punctuation.", TokenCount: 18},
		{Content: "This chunk has a reasonable length but trails off without an ending", TokenCount: 17},
	}

	warnings := ValidateChunks(chunks)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "below minimum size")
	assert.Contains(t, warnings[1], "missing terminal punctuation")
}

func TestSuggestDefaults(t *testing.T) {
	c := New(Options{})

	size, overlap := c.SuggestDefaults("short text", testMeta())
	assert.Equal(t, 128, size)
	assert.Equal(t, 16, overlap)

	size, overlap = c.SuggestDefaults(strings.Repeat("Long-form prose with plenty of sentences to chunk over. ", 800), testMeta())
	assert.Equal(t, 768, size)
	assert.Equal(t, 96, overlap)
}
