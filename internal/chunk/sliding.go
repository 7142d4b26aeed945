package chunk

import (
	"strings"

	"github.com/calyptra/ragcore/internal/textutil"
)

// chunkSliding applies a character sliding window with independent window
// and step sizing (step ≤ window guarantees full coverage). Suited to
// technical or log-like content where sentence structure is unreliable.
func chunkSliding(text string, meta Metadata, opts Options) ([]*Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	window := opts.WindowSize * textutil.CharsPerToken
	step := opts.Step * textutil.CharsPerToken
	if step > window {
		step = window
	}
	if step <= 0 {
		step = window
	}

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
		if strings.TrimSpace(content) != "" {
			byteStart := len(string(runes[:start]))
			c := newChunk(meta, seq, content, byteStart, byteStart+len(content), StrategySliding)
			if seq > 0 && window > step {
				overlapEnd := min(start+(window-step), end)
				c.OverlapWithPrev = textutil.EstimateTokens(string(runes[start:overlapEnd]))
			}
			chunks = append(chunks, c)
			seq++
		}

		if end == len(runes) {
			break
		}
	}

	linkOverlaps(chunks)
	return chunks, nil
}
