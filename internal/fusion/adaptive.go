package fusion

import (
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// Adaptive weight selection thresholds. Exported as fields on Adaptive so
// deployments can tune them without code changes.
const (
	DefaultShortQueryWords = 3
	DefaultLongQueryWords  = 10
)

// Weight presets per query class.
var (
	shortQueryWeights     = Weights{Semantic: 0.4, Lexical: 0.6}
	technicalQueryWeights = Weights{Semantic: 0.6, Lexical: 0.4}
	longQueryWeights      = Weights{Semantic: 0.8, Lexical: 0.2}
)

// technicalMarkers are token shapes that suggest the user is searching for
// an identifier or error string, where exact matching beats embeddings.
var technicalMarkers = []string{
	"error", "err", "exception", "panic", "http", "sql", "json", "yaml",
	"api", "uuid", "null", "nil", "undefined", "timeout", "config",
}

// Adaptive derives fusion weights from the shape of the query: keyword
// lookups lean lexical, verbose natural language leans semantic.
type Adaptive struct {
	// ShortQueryWords is the word count at or below which a query is
	// treated as a keyword lookup.
	ShortQueryWords int

	// LongQueryWords is the word count above which a query is treated
	// as verbose natural language.
	LongQueryWords int
}

// NewAdaptive creates an adaptive weight selector with default thresholds.
func NewAdaptive() *Adaptive {
	return &Adaptive{
		ShortQueryWords: DefaultShortQueryWords,
		LongQueryWords:  DefaultLongQueryWords,
	}
}

// WeightsFor classifies query and returns the matching weight preset.
//
// Precedence: quoted phrase or short query, then technical terms, then
// long query, then the defaults.
func (a *Adaptive) WeightsFor(query string) Weights {
	words := textutil.Tokenize(query)

	if strings.Contains(query, `"`) || len(words) <= a.ShortQueryWords {
		return shortQueryWeights
	}
	if hasTechnicalTerms(words) {
		return technicalQueryWeights
	}
	if len(words) > a.LongQueryWords {
		return longQueryWeights
	}
	return DefaultWeights()
}

// hasTechnicalTerms reports whether any query word looks like code or an
// error identifier.
func hasTechnicalTerms(words []string) bool {
	for _, w := range words {
		if strings.Contains(w, "_") || strings.ContainsAny(w, "0123456789") {
			return true
		}
		for _, marker := range technicalMarkers {
			if w == marker {
				return true
			}
		}
	}
	return false
}
