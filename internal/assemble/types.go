// Package assemble builds LLM-ready context windows from retrieval
// results: token budgeting, query expansion from conversation history,
// greedy chunk packing with boundary truncation, diversity filtering and
// final formatting.
package assemble

import (
	"context"
	"time"
)

// Budgeting defaults.
const (
	// DefaultMaxTokens is the context window size when the request does
	// not set one.
	DefaultMaxTokens = 4000

	// DefaultResponseBuffer is reserved for the model's answer.
	DefaultResponseBuffer = 200

	// DefaultConversationFraction of the post-buffer budget goes to
	// conversation history when history is supplied.
	DefaultConversationFraction = 0.2

	// DefaultMinRelevance drops weaker results before budgeting.
	DefaultMinRelevance = 0.7

	// MinUsefulTokens is the smallest remaining budget worth filling
	// with a truncated chunk.
	MinUsefulTokens = 100

	// DefaultDiversityThreshold is the Jaccard near-duplicate cutoff for
	// packed chunks.
	DefaultDiversityThreshold = 0.9

	// TruncateKeepFraction is the minimum share of the remaining budget
	// a boundary truncation must preserve to be worth including.
	TruncateKeepFraction = 0.8
)

// Query expansion defaults.
const (
	// MaxExpansionTerms bounds terms appended from history.
	MaxExpansionTerms = 5

	// MinExpansionTermLength is the shortest history term considered
	// significant (strictly longer than this).
	MinExpansionTermLength = 4

	// ExpansionHistoryTurns is how many recent turns feed expansion.
	ExpansionHistoryTurns = 3
)

// Turn is one conversation message.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Filters narrows retrieval and biases the final rerank.
type Filters struct {
	FileTypes []string
}

// Request is one retrieve-context call.
type Request struct {
	Query   string
	UserID  string
	History []Turn
	Filters Filters

	// MaxTokens is the total context window; zero means DefaultMaxTokens.
	MaxTokens int

	// MinRelevance overrides DefaultMinRelevance when positive.
	MinRelevance float64

	// Rerank enables the final context-aware rerank.
	Rerank bool

	// UseHybrid requests both retrieval paths rather than semantic only.
	UseHybrid bool
}

// Candidate is one retrieval result entering assembly. Relevance is
// normalized to [0,1].
type Candidate struct {
	ChunkID   string
	Content   string
	Relevance float64
	Source    string
	Title     string
	FileType  string
	UpdatedAt time.Time
}

// Retriever supplies ranked candidates for a query. Implementations decide
// what hybrid means; the assembler only forwards the flag.
type Retriever interface {
	Retrieve(ctx context.Context, query string, userID string, useHybrid bool) ([]*Candidate, error)
}

// ContextChunk is one chunk packed into the assembled context.
type ContextChunk struct {
	ChunkID    string
	Content    string
	Source     string
	FileType   string
	UpdatedAt  time.Time
	Relevance  float64
	Rank       int
	TokenCount int
	Truncated  bool
}

// AssembledContext is the output of one retrieve-context call.
type AssembledContext struct {
	// TraceID correlates logs across the assembly pipeline.
	TraceID string

	Chunks       []*ContextChunk
	Conversation []Turn

	// TotalTokens counts packed chunks plus blended conversation, and
	// never exceeds MaxTokens minus the response buffer.
	TotalTokens int

	// FormattedContext is the prompt-ready rendering.
	FormattedContext string

	// Reason explains an empty context; empty otherwise.
	Reason string
}
