// Package textutil provides the small text primitives shared across the
// retrieval core: token estimation, word tokenization, Jaccard similarity,
// and sentence segmentation.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// CharsPerToken is the rough character-to-token ratio used for budget
// estimation. Real tokenizers vary by model; 4 chars/token is the common
// approximation for English prose.
const CharsPerToken = 4

// wordRegex matches alphanumeric word runs.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// EstimateTokens approximates the token count of text.
// The estimate is deterministic and re-derivable from content alone.
func EstimateTokens(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	n := len([]rune(trimmed))
	tokens := (n + CharsPerToken - 1) / CharsPerToken
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// Tokenize splits text into lowercase word tokens.
func Tokenize(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, strings.ToLower(w))
	}
	return tokens
}

// TokenSet converts text into a set of lowercase word tokens.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Jaccard computes the Jaccard similarity |A∩B| / |A∪B| between two token
// sets. Two empty sets are considered identical (similarity 1).
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// JaccardText computes Jaccard similarity over the word tokens of two texts.
func JaccardText(a, b string) float64 {
	return Jaccard(TokenSet(a), TokenSet(b))
}

// commonAbbreviations are terminal-dot words that do not end a sentence.
var commonAbbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {},
	"st": {}, "vs": {}, "etc": {}, "inc": {}, "ltd": {}, "co": {}, "corp": {},
	"e.g": {}, "i.e": {}, "al": {}, "fig": {}, "no": {}, "vol": {}, "pp": {},
	"approx": {}, "dept": {}, "est": {}, "min": {}, "max": {}, "jan": {},
	"feb": {}, "mar": {}, "apr": {}, "jun": {}, "jul": {}, "aug": {},
	"sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// SplitSentences segments text into sentences on terminal punctuation,
// guarding against false splits at common abbreviations, decimal numbers,
// and single capital initials. Whitespace-only fragments are dropped.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Consume a run of terminal punctuation ("!?", "...").
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}

		if r == '.' && !isSentenceBreak(runes, start, i, end) {
			i = end
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : end+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end + 1
		i = end
	}

	if start < len(runes) {
		tail := strings.TrimSpace(string(runes[start:]))
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}

	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isSentenceBreak reports whether the period at position dot (with the
// punctuation run ending at end) terminates a sentence.
func isSentenceBreak(runes []rune, start, dot, end int) bool {
	// A period mid-number ("3.14") is not a break.
	if dot > 0 && dot+1 < len(runes) &&
		unicode.IsDigit(runes[dot-1]) && unicode.IsDigit(runes[dot+1]) {
		return false
	}

	// Must be followed by whitespace-then-capital/digit or end of text.
	next := end + 1
	if next < len(runes) {
		if !unicode.IsSpace(runes[next]) {
			return false
		}
		j := next
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j < len(runes) && !unicode.IsUpper(runes[j]) && !unicode.IsDigit(runes[j]) {
			return false
		}
	}

	// Walk back to the preceding word; abbreviations and single initials
	// ("J. Smith") do not break.
	wordEnd := dot
	wordStart := wordEnd
	for wordStart > start && !unicode.IsSpace(runes[wordStart-1]) {
		wordStart--
	}
	word := strings.ToLower(strings.Trim(string(runes[wordStart:wordEnd]), ".,;:()\"'"))
	if word == "" {
		return true
	}
	if _, ok := commonAbbreviations[word]; ok {
		return false
	}
	if len(word) == 1 && unicode.IsLetter(rune(word[0])) {
		return false
	}
	return true
}

// SplitParagraphs splits text on blank lines, trimming each paragraph and
// dropping empty ones.
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	paragraphs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
