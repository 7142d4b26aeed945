package chunk

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/calyptra/ragcore/internal/textutil"
)

// section is a structural region of the document.
type section struct {
	title     string
	level     int
	startLine int
	endLine   int // exclusive
}

var markdownHeaderRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// chunkHierarchical detects structural sections (markdown headers, ALL-CAPS
// lines, short standalone lines) and chunks each one. Oversized sections
// delegate to the semantic strategy; sub-chunks inherit the parent section's
// level and title.
func chunkHierarchical(text string, meta Metadata, opts Options) ([]*Chunk, error) {
	lines := strings.Split(text, "\n")
	sections := detectSections(lines)
	if len(sections) == 0 {
		return chunkSemantic(text, meta, opts)
	}

	var chunks []*Chunk
	seq := 0
	offset := 0
	lineOffsets := make([]int, len(lines)+1)
	for i, line := range lines {
		lineOffsets[i] = offset
		offset += len(line) + 1
	}
	lineOffsets[len(lines)] = len(text)

	for _, sec := range sections {
		if len(chunks) >= opts.MaxChunks {
			break
		}

		body := strings.Join(lines[sec.startLine:sec.endLine], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}

		start := lineOffsets[sec.startLine]
		end := lineOffsets[sec.endLine]
		if end > len(text) {
			end = len(text)
		}

		if textutil.EstimateTokens(body) <= opts.ChunkSize {
			c := newChunk(meta, seq, body, start, end, StrategyHierarchical)
			c.SectionLevel = sec.level
			c.SectionTitle = sec.title
			chunks = append(chunks, c)
			seq++
			continue
		}

		// Oversized section: recurse into semantic chunking and re-tag
		// the sub-chunks with the parent section metadata.
		sub, err := chunkSemantic(body, meta, opts)
		if err != nil {
			return nil, err
		}
		for _, c := range sub {
			if len(chunks) >= opts.MaxChunks {
				break
			}
			c.ID = chunkID(meta.DocumentID, seq, c.Content)
			c.Strategy = StrategyHierarchical
			c.SectionLevel = sec.level
			c.SectionTitle = sec.title
			c.StartOffset += start
			c.EndOffset += start
			chunks = append(chunks, c)
			seq++
		}
	}

	return chunks, nil
}

// detectSections splits lines into sections at structural boundaries.
// The prelude before the first heading becomes an untitled section.
func detectSections(lines []string) []section {
	var sections []section
	var current *section

	for i, line := range lines {
		title, level, isHeading := headingInfo(line, lines, i)
		if !isHeading {
			continue
		}
		if current != nil {
			current.endLine = i
			sections = append(sections, *current)
		} else if i > 0 {
			sections = append(sections, section{startLine: 0, endLine: i})
		}
		current = &section{title: title, level: level, startLine: i}
	}

	if current != nil {
		current.endLine = len(lines)
		sections = append(sections, *current)
	} else if len(sections) == 0 {
		return nil
	}

	return sections
}

// headingInfo classifies a line as a structural heading. Markdown headers
// carry their nesting level; ALL-CAPS lines and short standalone lines
// (blank neighbors, no terminal punctuation) count as level-1 headings.
func headingInfo(line string, lines []string, idx int) (string, int, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", 0, false
	}

	if m := markdownHeaderRegex.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[2]), len(m[1]), true
	}

	if isAllCapsLine(trimmed) {
		return trimmed, 1, true
	}

	if len(trimmed) <= 60 && !strings.ContainsAny(trimmed[len(trimmed)-1:], ".,;:") {
		prevBlank := idx == 0 || strings.TrimSpace(lines[idx-1]) == ""
		nextBlank := idx+1 >= len(lines) || strings.TrimSpace(lines[idx+1]) == ""
		if prevBlank && nextBlank && idx+1 < len(lines) {
			return trimmed, 1, true
		}
	}

	return "", 0, false
}

// isAllCapsLine reports whether a line is mostly uppercase letters, the
// common section-heading convention in plain-text documents.
func isAllCapsLine(line string) bool {
	if len(line) > 80 {
		return false
	}
	letters, uppers := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	return letters >= 3 && uppers == letters
}
