package splitter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// StructuralSplitter parses source into a syntax tree and emits chunks
// whose boundaries align with declarations. Oversized declarations are
// re-split at their nested declarations, and at line boundaries as a last
// resort. When no grammar covers the language or the parse fails, it falls
// back to the character splitter silently and tags the chunks accordingly.
type StructuralSplitter struct {
	registry *LanguageRegistry
	options  Options
	fallback *CharacterSplitter
	markdown *MarkdownSplitter

	// tree-sitter parsers are not safe for concurrent use.
	mu     sync.Mutex
	parser *sitter.Parser
}

// Verify interface implementation at compile time
var _ Splitter = (*StructuralSplitter)(nil)

// NewStructuralSplitter creates a structural splitter with the default
// language registry.
func NewStructuralSplitter(opts Options) *StructuralSplitter {
	opts = opts.withDefaults()
	return &StructuralSplitter{
		registry: DefaultRegistry(),
		options:  opts,
		fallback: NewCharacterSplitter(opts),
		markdown: NewMarkdownSplitter(opts),
		parser:   sitter.NewParser(),
	}
}

// Close releases parser resources.
func (s *StructuralSplitter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parser != nil {
		s.parser.Close()
		s.parser = nil
	}
}

// Split implements Splitter.
func (s *StructuralSplitter) Split(ctx context.Context, text, language, path string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if language == "markdown" {
		return s.markdown.Split(ctx, text, language, path)
	}

	grammar, ok := s.registry.Grammar(language)
	if !ok {
		return s.fallback.Split(ctx, text, language, path)
	}

	root, err := s.parse(ctx, []byte(text), grammar)
	if err != nil {
		slog.Debug("parse failed, using character splitter",
			slog.String("path", path),
			slog.String("language", language),
			slog.String("error", err.Error()))
		return s.fallback.Split(ctx, text, language, path)
	}

	lines := strings.Split(text, "\n")
	segments := s.segmentize(root, lines, 1, len(lines))
	if len(segments) == 0 {
		return s.fallback.Split(ctx, text, language, path)
	}

	meta := map[string]string{
		MetaLanguage: language,
		MetaSplitter: KindStructural,
	}
	return s.pack(segments, lines, meta), nil
}

// parse runs the tree-sitter parser under the lock and returns the root node.
func (s *StructuralSplitter) parse(ctx context.Context, source []byte, grammar *sitter.Language) (*sitter.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.parser.SetLanguage(grammar)
	tree, err := s.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New("nil parse tree")
	}
	return tree.RootNode(), nil
}

// segment is a line range covering part of the file, tied to the syntax
// node it was derived from so oversized segments can be re-split at nested
// declarations.
type segment struct {
	startLine int // 1-based inclusive
	endLine   int
	node      *sitter.Node
}

// segmentize slices [startLine, endLine] at the boundaries of node's named
// children. Gap lines between declarations attach to the following segment,
// trailing lines to the last one, so the segments cover the range exactly.
func (s *StructuralSplitter) segmentize(node *sitter.Node, lines []string, startLine, endLine int) []segment {
	count := int(node.NamedChildCount())
	if count == 0 {
		return nil
	}

	var segments []segment
	cursor := startLine
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		childStart := int(child.StartPoint().Row) + 1
		childEnd := int(child.EndPoint().Row) + 1
		if childEnd < cursor || childStart > endLine {
			continue
		}
		if childEnd > endLine {
			childEnd = endLine
		}
		segments = append(segments, segment{startLine: cursor, endLine: childEnd, node: child})
		cursor = childEnd + 1
	}
	if len(segments) == 0 {
		return nil
	}
	if cursor <= endLine {
		segments[len(segments)-1].endLine = endLine
	}
	return segments
}

// pack merges consecutive segments into chunks of at most ChunkSize
// characters. A segment exceeding the budget on its own is re-split at its
// nested declarations, then at line boundaries.
func (s *StructuralSplitter) pack(segments []segment, lines []string, meta map[string]string) []Chunk {
	var chunks []Chunk

	packStart := -1
	packEnd := -1
	packSize := 0

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

	for _, seg := range segments {
		segSize := rangeSize(lines, seg.startLine, seg.endLine)

		if segSize > s.options.ChunkSize {
			flush()
			chunks = append(chunks, s.splitOversize(seg, lines, meta)...)
			continue
		}

		if packStart >= 0 && packSize+segSize > s.options.ChunkSize {
			flush()
		}
		if packStart < 0 {
			packStart = seg.startLine
		}
		packEnd = seg.endLine
		packSize += segSize
	}
	flush()

	return chunks
}

// splitOversize re-splits a segment that exceeds the chunk budget: first at
// the nested declarations of its node, then at line boundaries with overlap.
func (s *StructuralSplitter) splitOversize(seg segment, lines []string, meta map[string]string) []Chunk {
	if seg.node != nil {
		if sub := s.segmentize(seg.node, lines, seg.startLine, seg.endLine); len(sub) > 1 {
			return s.pack(sub, lines, meta)
		}
	}
	return splitLines(lineRange(lines, seg.startLine, seg.endLine), seg.startLine, s.options, meta)
}

// lineRange returns the text of 1-based inclusive [start, end].
func lineRange(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}

// rangeSize returns the character count of 1-based inclusive [start, end],
// counting one character per newline.
func rangeSize(lines []string, start, end int) int {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	size := 0
	for i := start - 1; i < end; i++ {
		size += len(lines[i]) + 1
	}
	return size
}
