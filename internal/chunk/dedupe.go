package chunk

import (
	"github.com/calyptra/ragcore/internal/textutil"
)

// DeduplicateChunks collapses duplicate chunks, first seen wins.
// Exact-content duplicates (same content hash) always collapse; chunks
// whose token-Jaccard similarity meets or exceeds threshold also collapse.
func DeduplicateChunks(chunks []*Chunk, threshold float64) []*Chunk {
	if len(chunks) <= 1 {
		return chunks
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultDedupeThreshold
	}

	seen := make(map[string]struct{}, len(chunks))
	keptSets := make([]map[string]struct{}, 0, len(chunks))
	kept := make([]*Chunk, 0, len(chunks))

	for _, c := range chunks {
		hash := ContentHash(c.Content)
		if _, dup := seen[hash]; dup {
			continue
		}

		set := textutil.TokenSet(c.Content)
		nearDup := false
		for _, ks := range keptSets {
			if textutil.Jaccard(set, ks) >= threshold {
				nearDup = true
				break
			}
		}
		if nearDup {
			continue
		}

		seen[hash] = struct{}{}
		keptSets = append(keptSets, set)
		kept = append(kept, c)
	}

	return kept
}
