package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\t ", 0},
		{"single char rounds up", "a", 1},
		{"exact multiple", "abcdefgh", 2},
		{"rounds up", "abcdefghi", 3},
		{"surrounding whitespace trimmed", "  abcd  ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateTokens(tt.text))
		})
	}
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	tokens := Tokenize("Database Connection-Pooling, v2_final!")
	assert.Equal(t, []string{"database", "connection", "pooling", "v2_final"}, tokens)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Empty(t, Tokenize("... !!! ---"))
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard(TokenSet("alpha"), nil))
	assert.Equal(t, 1.0, JaccardText("alpha beta", "beta alpha"))
	assert.InDelta(t, 1.0/3.0, JaccardText("alpha beta", "beta gamma"), 1e-9)
	assert.Equal(t, 0.0, JaccardText("alpha", "beta"))
}

func TestSplitSentencesBasic(t *testing.T) {
	got := SplitSentences("First sentence. Second one! Third?")
	assert.Equal(t, []string{"First sentence.", "Second one!", "Third?"}, got)
}

func TestSplitSentencesAbbreviations(t *testing.T) {
	got := SplitSentences("Dr. Smith arrived. He was late.")
	require.Len(t, got, 2)
	assert.Equal(t, "Dr. Smith arrived.", got[0])
	assert.Equal(t, "He was late.", got[1])
}

func TestSplitSentencesDecimalNumbers(t *testing.T) {
	got := SplitSentences("The ratio is 3.14 exactly. Next sentence here.")
	require.Len(t, got, 2)
	assert.Equal(t, "The ratio is 3.14 exactly.", got[0])
}

func TestSplitSentencesSingleInitial(t *testing.T) {
	got := SplitSentences("J. Smith wrote the report. It was thorough.")
	require.Len(t, got, 2)
	assert.Equal(t, "J. Smith wrote the report.", got[0])
}

func TestSplitSentencesEllipsis(t *testing.T) {
	got := SplitSentences("Hold on... Now continue.")
	require.Len(t, got, 2)
	assert.Equal(t, "Hold on...", got[0])
	assert.Equal(t, "Now continue.", got[1])
}

func TestSplitSentencesTrailingFragment(t *testing.T) {
	got := SplitSentences("Complete sentence. Trailing fragment without period")
	require.Len(t, got, 2)
	assert.Equal(t, "Trailing fragment without period", got[1])
}

func TestSplitSentencesEmpty(t *testing.T) {
	assert.Empty(t, SplitSentences("   "))
}

func TestSplitParagraphs(t *testing.T) {
	got := SplitParagraphs("first para\nstill first\n\nsecond para\n\n\n\nthird")
	assert.Equal(t, []string{"first para\nstill first", "second para", "third"}, got)
}
