// Package splitter turns file text into chunks carrying line ranges.
//
// Two variants share one contract: the structural splitter parses the
// source with tree-sitter and aligns chunk boundaries to declarations; the
// character splitter is the pure text fallback. Both cover the whole file:
// concatenating a file's chunks in order, de-overlapped by line range,
// reproduces the file modulo trailing whitespace.
package splitter

import "context"

// Defaults for the chunk size budget and overlap, in characters.
const (
	DefaultChunkSize    = 2500
	DefaultChunkOverlap = 300
)

// Metadata keys set by the splitters.
const (
	MetaLanguage = "language"
	MetaSplitter = "splitter"
)

// Splitter kinds recorded under MetaSplitter.
const (
	KindStructural = "ast"
	KindFallback   = "fallback"
	KindMarkdown   = "markdown"
)

// Chunk is a contiguous span of a source file.
type Chunk struct {
	// Content is the chunk text. Never empty.
	Content string

	// StartLine and EndLine are 1-based inclusive.
	StartLine int
	EndLine   int

	// Metadata carries the language tag and splitter kind.
	Metadata map[string]string
}

// Splitter splits file text into chunks.
type Splitter interface {
	// Split turns a file's text into chunks. The language is a lower-case
	// name ("go", "typescript", ...); path is used for diagnostics only.
	Split(ctx context.Context, text, language, path string) ([]Chunk, error)
}

// Options configures chunk size and overlap for both splitter variants.
type Options struct {
	ChunkSize    int // maximum characters per chunk (default: DefaultChunkSize)
	ChunkOverlap int // overlap between adjacent chunks (default: DefaultChunkOverlap)
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	return o
}
