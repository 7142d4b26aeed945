package assemble

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/ragcore/internal/ragerr"
	"github.com/calyptra/ragcore/internal/textutil"
)

// interrogatives are excluded from history-driven query expansion; they
// carry conversational structure, not topic.
var interrogatives = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "whose": true,
	"who": true, "whom": true, "why": true, "how": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"can": true, "please": true, "about": true, "there": true, "their": true,
	"have": true, "that": true, "this": true, "with": true, "from": true,
}

// Assembler builds assembled contexts from retrieval results. The exported
// fields are fixed at construction; per-request values on Request override
// MaxTokens and MinRelevance for a single call.
type Assembler struct {
	retriever Retriever

	// MaxTokens is the token budget used when the request does not set one.
	MaxTokens int

	// ResponseBuffer is reserved out of the budget for the model response.
	ResponseBuffer int

	// ConversationFraction of the post-buffer budget goes to history when
	// history is supplied.
	ConversationFraction float64

	// MinRelevance drops candidates scoring below it before packing.
	MinRelevance float64

	// MinUsefulTokens is the smallest remaining budget worth filling with a
	// truncated chunk.
	MinUsefulTokens int

	// DiversityThreshold is the Jaccard near-duplicate cutoff applied to
	// the packed chunk set.
	DiversityThreshold float64

	now func() time.Time
}

// New creates an assembler over retriever with default tuning.
func New(retriever Retriever) *Assembler {
	return &Assembler{
		retriever:            retriever,
		MaxTokens:            DefaultMaxTokens,
		ResponseBuffer:       DefaultResponseBuffer,
		ConversationFraction: DefaultConversationFraction,
		MinRelevance:         DefaultMinRelevance,
		MinUsefulTokens:      MinUsefulTokens,
		DiversityThreshold:   DefaultDiversityThreshold,
		now:                  time.Now,
	}
}

// Assemble runs the full pipeline. It errors only on an invalid request;
// retrieval failures and sub-step failures degrade to an empty or partial
// context with a reason.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*AssembledContext, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ragerr.Validation("empty query")
	}

	traceID := uuid.NewString()
	log := slog.With(slog.String("trace_id", traceID))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.MaxTokens
	}
	available := maxTokens - a.ResponseBuffer
	if available <= 0 {
		return nil, ragerr.Validationf("max_tokens %d leaves no room after the %d token response buffer", maxTokens, a.ResponseBuffer)
	}

	conversationBudget := 0
	if len(req.History) > 0 {
		conversationBudget = int(float64(available) * a.ConversationFraction)
	}
	retrievalBudget := available - conversationBudget

	minRelevance := req.MinRelevance
	if minRelevance <= 0 {
		minRelevance = a.MinRelevance
	}

	query := expandQuery(req.Query, req.History)

	candidates, err := a.retriever.Retrieve(ctx, query, req.UserID, req.UseHybrid)
	if err != nil {
		log.Warn("retrieval failed, returning empty context",
			slog.String("error", err.Error()))
		return a.emptyContext(traceID, req, "retrieval failed: "+err.Error()), nil
	}

	relevant := make([]*Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Relevance >= minRelevance {
			relevant = append(relevant, c)
		}
	}

	if len(relevant) == 0 {
		return a.emptyContext(traceID, req, "no chunks met the relevance threshold"), nil
	}

	chunks := packChunks(relevant, retrievalBudget, a.MinUsefulTokens)
	chunks = a.diversify(chunks)

	if req.Rerank {
		a.rerank(req, chunks)
	}
	for i, c := range chunks {
		c.Rank = i + 1
	}

	conversation, conversationTokens := blendConversation(req.History, conversationBudget)

	total := conversationTokens
	for _, c := range chunks {
		total += c.TokenCount
	}

	out := &AssembledContext{
		TraceID:      traceID,
		Chunks:       chunks,
		Conversation: conversation,
		TotalTokens:  total,
	}
	if len(chunks) == 0 {
		out.Reason = "no chunk fit the token budget"
	}
	out.FormattedContext = format(out)

	log.Debug("context assembled",
		slog.Int("chunks", len(chunks)),
		slog.Int("conversation_turns", len(conversation)),
		slog.Int("total_tokens", total))
	return out, nil
}

// emptyContext returns a well-formed empty context carrying reason.
func (a *Assembler) emptyContext(traceID string, req Request, reason string) *AssembledContext {
	out := &AssembledContext{
		TraceID: traceID,
		Chunks:  []*ContextChunk{},
		Reason:  reason,
	}
	out.FormattedContext = format(out)
	return out
}

// expandQuery appends significant terms from the most recent history turns.
func expandQuery(query string, history []Turn) string {
	if len(history) == 0 {
		return query
	}

	recent := history
	if len(recent) > ExpansionHistoryTurns {
		recent = recent[len(recent)-ExpansionHistoryTurns:]
	}

	present := make(map[string]bool)
	for _, t := range textutil.Tokenize(query) {
		present[t] = true
	}

	var terms []string
	for _, turn := range recent {
		for _, t := range textutil.Tokenize(turn.Content) {
			if len(terms) >= MaxExpansionTerms {
				break
			}
			if len(t) <= MinExpansionTermLength || interrogatives[t] || present[t] {
				continue
			}
			present[t] = true
			terms = append(terms, t)
		}
	}

	if len(terms) == 0 {
		return query
	}
	return query + " " + strings.Join(terms, " ")
}

// packChunks greedily fills budget with candidates in rank order. A chunk
// that does not fit whole is truncated at a sentence or paragraph boundary
// when the remaining budget is still worth filling; packing stops rather
// than include a fragment below the minimum useful size.
func packChunks(candidates []*Candidate, budget, minUseful int) []*ContextChunk {
	chunks := make([]*ContextChunk, 0, len(candidates))
	remaining := budget

	for _, c := range candidates {
		if remaining < minUseful {
			break
		}

		tokens := textutil.EstimateTokens(c.Content)
		if tokens <= remaining {
			chunks = append(chunks, &ContextChunk{
				ChunkID:    c.ChunkID,
				Content:    c.Content,
				Source:     c.Source,
				FileType:   c.FileType,
				UpdatedAt:  c.UpdatedAt,
				Relevance:  c.Relevance,
				TokenCount: tokens,
			})
			remaining -= tokens
			continue
		}

		truncated, truncTokens := truncateAtBoundary(c.Content, remaining)
		if truncTokens == 0 {
			break
		}
		chunks = append(chunks, &ContextChunk{
			ChunkID:    c.ChunkID,
			Content:    truncated,
			Source:     c.Source,
			FileType:   c.FileType,
			UpdatedAt:  c.UpdatedAt,
			Relevance:  c.Relevance,
			TokenCount: truncTokens,
			Truncated:  true,
		})
		break
	}
	return chunks
}

// truncateAtBoundary cuts content at the last sentence boundary that fits
// budget. The cut must preserve at least TruncateKeepFraction of budget,
// otherwise nothing is returned.
func truncateAtBoundary(content string, budget int) (string, int) {
	minTokens := int(float64(budget) * TruncateKeepFraction)

	// Prefer the paragraph boundary when one lands in the window.
	if cut, tokens := lastFittingBoundary(textutil.SplitParagraphs(content), "\n\n", budget, minTokens); tokens > 0 {
		return cut, tokens
	}
	return lastFittingBoundary(textutil.SplitSentences(content), " ", budget, minTokens)
}

// lastFittingBoundary accumulates parts until budget is exceeded and
// returns the longest prefix within budget, provided it reaches minTokens.
func lastFittingBoundary(parts []string, sep string, budget, minTokens int) (string, int) {
	var b strings.Builder
	kept := ""
	for _, part := range parts {
		candidate := part
		if b.Len() > 0 {
			candidate = b.String() + sep + part
		}
		if textutil.EstimateTokens(candidate) > budget {
			break
		}
		b.Reset()
		b.WriteString(candidate)
		kept = candidate
	}

	tokens := textutil.EstimateTokens(kept)
	if tokens < minTokens {
		return "", 0
	}
	return kept, tokens
}

// blendConversation selects the newest turns that fit budget, then returns
// them in chronological order with their token total.
func blendConversation(history []Turn, budget int) ([]Turn, int) {
	if len(history) == 0 || budget <= 0 {
		return nil, 0
	}

	var selected []Turn
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		tokens := textutil.EstimateTokens(history[i].Content)
		if total+tokens > budget {
			break
		}
		selected = append(selected, history[i])
		total += tokens
	}

	// Newest-first selection, chronological presentation.
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected, total
}

// diversify drops chunks that near-duplicate an already kept chunk.
func (a *Assembler) diversify(chunks []*ContextChunk) []*ContextChunk {
	if len(chunks) < 2 {
		return chunks
	}

	kept := make([]*ContextChunk, 0, len(chunks))
	sets := make([]map[string]struct{}, 0, len(chunks))
	for _, c := range chunks {
		set := textutil.TokenSet(c.Content)
		duplicate := false
		for _, existing := range sets {
			if textutil.Jaccard(set, existing) >= a.DiversityThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, c)
		sets = append(sets, set)
	}
	return kept
}

// Final rerank weights. Source rank dominates; the rest nudge.
const (
	rerankSourceWeight     = 0.5
	rerankCoverageWeight   = 0.2
	rerankStructuralBonus  = 0.1
	rerankFileTypeBonus    = 0.1
	rerankRecencyBonus     = 0.1
	rerankRecencyWindowDur = 7 * 24 * time.Hour
)

// rerank recomputes a context-aware score per chunk and reorders.
func (a *Assembler) rerank(req Request, chunks []*ContextChunk) {
	queryTerms := textutil.Tokenize(req.Query)
	scores := make(map[string]float64, len(chunks))

	for i, c := range chunks {
		score := rerankSourceWeight / float64(i+1)

		if len(queryTerms) > 0 {
			contentLower := strings.ToLower(c.Content)
			covered := 0
			for _, term := range queryTerms {
				if strings.Contains(contentLower, term) {
					covered++
				}
			}
			score += rerankCoverageWeight * float64(covered) / float64(len(queryTerms))
		}

		if strings.Contains(c.Content, "#") || strings.Contains(c.Content, "\n- ") {
			score += rerankStructuralBonus
		}

		for _, ft := range req.Filters.FileTypes {
			if strings.EqualFold(ft, c.FileType) {
				score += rerankFileTypeBonus
				break
			}
		}

		if !c.UpdatedAt.IsZero() && a.now().Sub(c.UpdatedAt) < rerankRecencyWindowDur {
			score += rerankRecencyBonus
		}

		scores[c.ChunkID] = score
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return scores[chunks[i].ChunkID] > scores[chunks[j].ChunkID]
	})
}

// format renders the prompt-ready context string with conversation and
// retrieval sections and per-chunk source and relevance annotations.
func format(ac *AssembledContext) string {
	var b strings.Builder

	if len(ac.Conversation) > 0 {
		b.WriteString("## Conversation Context\n\n")
		for _, turn := range ac.Conversation {
			b.WriteString("[")
			b.WriteString(turn.Role)
			b.WriteString("] ")
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(ac.Chunks) > 0 {
		b.WriteString("## Retrieved Context\n")
		for _, c := range ac.Chunks {
			b.WriteString("\n[source: ")
			if c.Source != "" {
				b.WriteString(c.Source)
			} else {
				b.WriteString(c.ChunkID)
			}
			b.WriteString(" | relevance: ")
			b.WriteString(formatRelevance(c.Relevance))
			if c.Truncated {
				b.WriteString(" | truncated")
			}
			b.WriteString("]\n")
			b.WriteString(c.Content)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func formatRelevance(r float64) string {
	return strconv.FormatFloat(r, 'f', 2, 64)
}
