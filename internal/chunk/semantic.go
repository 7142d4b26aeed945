package chunk

import (
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// chunkSemantic groups sentences up to the token budget. Overlap is built
// from the trailing sentences of the previous chunk rather than raw
// characters, and fragments below the minimum size are discarded.
func chunkSemantic(text string, meta Metadata, opts Options) ([]*Chunk, error) {
	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []*Chunk
	var current []string
	currentTokens := 0
	seq := 0
	searchFrom := 0

	flush := func(overlapSentences []string) {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, " ")
		tokens := textutil.EstimateTokens(content)
		if tokens < MinChunkTokens {
			current = nil
			currentTokens = 0
			return
		}

		start, end := locateSpan(text, current[0], current[len(current)-1], searchFrom)
		if end > searchFrom {
			searchFrom = start
		}

		c := newChunk(meta, seq, content, start, end, StrategySemantic)
		if len(overlapSentences) > 0 {
			c.OverlapWithPrev = textutil.EstimateTokens(strings.Join(overlapSentences, " "))
		}
		chunks = append(chunks, c)
		seq++
		current = nil
		currentTokens = 0
	}

	var carried []string
	for _, sentence := range sentences {
		if len(chunks) >= opts.MaxChunks {
			break
		}

		tokens := textutil.EstimateTokens(sentence)
		if currentTokens+tokens > opts.ChunkSize && len(current) > 0 {
			// Capture trailing sentences for the next chunk's overlap
			// before flushing.
			overlap := trailingSentences(current, opts.Overlap)
			flush(carried)
			carried = overlap
			current = append(current, carried...)
			for _, s := range carried {
				currentTokens += textutil.EstimateTokens(s)
			}
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	flush(carried)

	linkOverlaps(chunks)
	return chunks, nil
}

// trailingSentences returns the suffix of sentences whose combined token
// estimate stays within budget, preserving order.
func trailingSentences(sentences []string, budget int) []string {
	if budget <= 0 || len(sentences) == 0 {
		return nil
	}
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		t := textutil.EstimateTokens(sentences[i])
		if total+t > budget {
			break
		}
		total += t
		start = i
	}
	if start == len(sentences) {
		return nil
	}
	out := make([]string, len(sentences)-start)
	copy(out, sentences[start:])
	return out
}

// locateSpan finds the byte span of a chunk in the source via its first and
// last sentences. Exact match is attempted from the given position first,
// then anywhere; a failed lookup degrades to the search start.
func locateSpan(source, firstSentence, lastSentence string, from int) (int, int) {
	start := indexFrom(source, firstSentence, from)
	if start < 0 {
		start = from
	}
	end := indexFrom(source, lastSentence, start)
	if end < 0 {
		end = start
	} else {
		end += len(lastSentence)
	}
	if end < start {
		end = start
	}
	return start, end
}

func indexFrom(s, substr string, from int) int {
	if from < 0 || from > len(s) {
		from = 0
	}
	if idx := strings.Index(s[from:], substr); idx >= 0 {
		return from + idx
	}
	return strings.Index(s, substr)
}
