package lexical

import (
	"strings"
	"unicode"

	"github.com/blevesearch/go-porterstemmer"
)

// DefaultStopWords are common English words filtered during tokenization.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from",
	"has", "have", "had", "he", "her", "his", "if", "in", "into", "is",
	"it", "its", "of", "on", "or", "our", "she", "so", "that", "the",
	"their", "them", "then", "there", "these", "they", "this", "to",
	"was", "we", "were", "what", "when", "where", "which", "who", "will",
	"with", "would", "you", "your",
}

// Tokenizer converts text into processed terms: lowercase, punctuation
// stripped, stopwords dropped, optionally porter-stemmed. The same
// tokenizer instance processes both documents and queries so the two sides
// always agree.
type Tokenizer struct {
	stopWords map[string]struct{}
	stemming  bool
}

// NewTokenizer creates a tokenizer from config.
func NewTokenizer(cfg Config) *Tokenizer {
	words := cfg.StopWords
	if words == nil {
		words = DefaultStopWords
	}
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopWords: stop, stemming: cfg.Stemming}
}

// Tokenize returns the processed terms of text.
func (t *Tokenizer) Tokenize(text string) []string {
	words := t.Words(text)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if t.stemming {
			w = porterstemmer.StemString(w)
		}
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// Words returns lowercase, punctuation-stripped, stopword-filtered words
// without stemming. Spell correction operates on this form so dictionary
// lookups see surface words rather than stems.
func (t *Tokenizer) Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		if _, stop := t.stopWords[f]; stop {
			continue
		}
		words = append(words, f)
	}
	return words
}

// IsStopWord reports whether word is filtered by this tokenizer.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[strings.ToLower(word)]
	return ok
}
