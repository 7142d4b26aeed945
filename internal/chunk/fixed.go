package chunk

import (
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// chunkFixed splits text into character windows with character overlap.
// The spans of consecutive windows (ignoring overlap) cover the source
// losslessly, and the iteration cap guarantees termination.
func chunkFixed(text string, meta Metadata, opts Options) ([]*Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	window := opts.ChunkSize * textutil.CharsPerToken
	overlap := opts.Overlap * textutil.CharsPerToken
	if overlap >= window {
		overlap = window / 4
	}
	step := window - overlap

	chunks := make([]*Chunk, 0, len(runes)/step+1)
	seq := 0

	for start := 0; start < len(runes); start += step {
		if len(chunks) >= opts.MaxChunks {
			break
		}

		end := start + window
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[start:end])
		if strings.TrimSpace(content) == "" {
			// Skip empty windows but keep advancing.
			if end == len(runes) {
				break
			}
			continue
		}

		byteStart := len(string(runes[:start]))
		c := newChunk(meta, seq, content, byteStart, byteStart+len(content), StrategyFixed)
		if seq > 0 {
			c.OverlapWithPrev = textutil.EstimateTokens(string(runes[start:min(start+overlap, end)]))
		}
		chunks = append(chunks, c)
		seq++

		if end == len(runes) {
			break
		}
	}

	linkOverlaps(chunks)
	return chunks, nil
}

// linkOverlaps mirrors each chunk's OverlapWithPrev onto the preceding
// chunk's OverlapWithNext.
func linkOverlaps(chunks []*Chunk) {
	for i := 1; i < len(chunks); i++ {
		chunks[i-1].OverlapWithNext = chunks[i].OverlapWithPrev
	}
}
