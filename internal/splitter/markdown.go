package splitter

import (
	"context"
	"strings"
)

// MarkdownSplitter splits markdown at ATX heading boundaries, packing
// consecutive sections up to the chunk budget. Markdown has no tree-sitter
// grammar in the registry; headings are the structural boundary.
type MarkdownSplitter struct {
	options Options
}

// Verify interface implementation at compile time
var _ Splitter = (*MarkdownSplitter)(nil)

// NewMarkdownSplitter creates a markdown splitter.
func NewMarkdownSplitter(opts Options) *MarkdownSplitter {
	return &MarkdownSplitter{options: opts.withDefaults()}
}

// Split implements Splitter.
func (s *MarkdownSplitter) Split(_ context.Context, text, _, _ string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	meta := map[string]string{
		MetaLanguage: "markdown",
		MetaSplitter: KindMarkdown,
	}

	// Section boundaries are heading lines. Everything before the first
	// heading is its own section. Fenced code blocks are opaque: a "# ..."
	// line inside a fence is not a heading.
	var sections []segment
	start := 1
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence || !isHeading(trimmed) {
			continue
		}
		if i+1 > start {
			sections = append(sections, segment{startLine: start, endLine: i})
		}
		start = i + 1
	}
	sections = append(sections, segment{startLine: start, endLine: len(lines)})

	var chunks []Chunk
	packStart, packEnd, packSize := -1, -1, 0

	flush := func() {
		if packStart < 0 {
			return
		}
		content := lineRange(lines, packStart, packEnd)
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartLine: packStart,
				EndLine:   packEnd,
				Metadata:  cloneMeta(meta),
			})
		}
		packStart, packEnd, packSize = -1, -1, 0
	}

	for _, sec := range sections {
		secSize := rangeSize(lines, sec.startLine, sec.endLine)

		if secSize > s.options.ChunkSize {
			flush()
			chunks = append(chunks, splitLines(lineRange(lines, sec.startLine, sec.endLine), sec.startLine, s.options, meta)...)
			continue
		}
		if packStart >= 0 && packSize+secSize > s.options.ChunkSize {
			flush()
		}
		if packStart < 0 {
			packStart = sec.startLine
		}
		packEnd = sec.endLine
		packSize += secSize
	}
	flush()

	return chunks, nil
}

// isHeading reports whether a trimmed line is an ATX heading (# through ######).
func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	return level <= 6 && level < len(line) && line[level] == ' '
}
