package splitter

import (
	"context"
	"strings"
)

// CharacterSplitter splits text by size and overlap, snapping boundaries to
// line starts so every chunk begins at the start of a line.
type CharacterSplitter struct {
	options Options
}

// Verify interface implementation at compile time
var _ Splitter = (*CharacterSplitter)(nil)

// NewCharacterSplitter creates a character splitter.
func NewCharacterSplitter(opts Options) *CharacterSplitter {
	return &CharacterSplitter{options: opts.withDefaults()}
}

// Split implements Splitter.
func (s *CharacterSplitter) Split(_ context.Context, text, language, _ string) ([]Chunk, error) {
	chunks := splitLines(text, 1, s.options, map[string]string{
		MetaLanguage: language,
		MetaSplitter: KindFallback,
	})
	return chunks, nil
}

// splitLines splits text into line-aligned chunks of at most ChunkSize
// characters with roughly ChunkOverlap characters of trailing overlap.
// baseLine is the 1-based line number of the first line of text, so the
// structural splitter can reuse this for oversize node bodies.
func splitLines(text string, baseLine int, opts Options, meta map[string]string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	var chunks []Chunk

	i := 0
	for i < len(lines) {
		// Greedily take lines until the budget is exhausted. A single line
		// longer than the budget becomes its own chunk.
		j := i
		size := 0
		for j < len(lines) {
			lineLen := len(lines[j]) + 1
			if size > 0 && size+lineLen > opts.ChunkSize {
				break
			}
			size += lineLen
			j++
		}

		content := strings.Join(lines[i:j], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Content:   content,
				StartLine: baseLine + i,
				EndLine:   baseLine + j - 1,
				Metadata:  cloneMeta(meta),
			})
		}

		if j >= len(lines) {
			break
		}

		// Back up whole lines totalling at most ChunkOverlap characters,
		// always advancing by at least one line.
		back := 0
		overlap := 0
		for back < j-i-1 {
			lineLen := len(lines[j-1-back]) + 1
			if overlap+lineLen > opts.ChunkOverlap {
				break
			}
			overlap += lineLen
			back++
		}
		i = j - back
	}

	return chunks
}

func cloneMeta(meta map[string]string) map[string]string {
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
