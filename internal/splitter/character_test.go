package splitter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterSplitter_SmallFileSingleChunk(t *testing.T) {
	s := NewCharacterSplitter(Options{ChunkSize: 100, ChunkOverlap: 10})

	text := "line one\nline two\nline three"
	chunks, err := s.Split(context.Background(), text, "text", "a.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, text, chunks[0].Content)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, KindFallback, chunks[0].Metadata[MetaSplitter])
	assert.Equal(t, "text", chunks[0].Metadata[MetaLanguage])
}

func TestCharacterSplitter_EmptyInput(t *testing.T) {
	s := NewCharacterSplitter(Options{})

	chunks, err := s.Split(context.Background(), "   \n\n  ", "text", "a.txt")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCharacterSplitter_ChunksStartAtLineBoundaries(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 60; i++ {
		fmt.Fprintf(&sb, "line %02d content padding padding\n", i)
	}
	text := strings.TrimSuffix(sb.String(), "\n")

	s := NewCharacterSplitter(Options{ChunkSize: 300, ChunkOverlap: 60})
	chunks, err := s.Split(context.Background(), text, "text", "a.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	lines := strings.Split(text, "\n")
	for _, c := range chunks {
		require.GreaterOrEqual(t, c.StartLine, 1)
		require.LessOrEqual(t, c.StartLine, c.EndLine)
		require.NotEmpty(t, c.Content)

		// Chunk content is exactly the span of its line range.
		want := strings.Join(lines[c.StartLine-1:c.EndLine], "\n")
		assert.Equal(t, want, c.Content)
	}
}

func TestCharacterSplitter_CoverageReproducesFile(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 40; i++ {
		fmt.Fprintf(&sb, "alpha beta gamma line %02d\n", i)
	}
	text := strings.TrimSuffix(sb.String(), "\n")
	lines := strings.Split(text, "\n")

	s := NewCharacterSplitter(Options{ChunkSize: 200, ChunkOverlap: 50})
	chunks, err := s.Split(context.Background(), text, "text", "a.txt")
	require.NoError(t, err)

	// De-overlap by line range: take each line from the first chunk
	// covering it. The result must reproduce the file.
	covered := make([]string, len(lines))
	for _, c := range chunks {
		chunkLines := strings.Split(c.Content, "\n")
		for i, l := range chunkLines {
			covered[c.StartLine-1+i] = l
		}
	}
	assert.Equal(t, lines, covered)
}

func TestCharacterSplitter_OverlapBounded(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&sb, "line-%02d\n", i)
	}
	s := NewCharacterSplitter(Options{ChunkSize: 80, ChunkOverlap: 16})
	chunks, err := s.Split(context.Background(), sb.String(), "text", "a.txt")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		// Consecutive chunks overlap by whole lines, never regress past
		// the previous start, and always advance.
		assert.Greater(t, chunks[i].StartLine, chunks[i-1].StartLine)
		assert.LessOrEqual(t, chunks[i].StartLine, chunks[i-1].EndLine+1)
	}
}

func TestCharacterSplitter_SingleOversizeLine(t *testing.T) {
	long := strings.Repeat("x", 5000)
	s := NewCharacterSplitter(Options{ChunkSize: 100, ChunkOverlap: 10})

	chunks, err := s.Split(context.Background(), long, "text", "a.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 1, chunks[0].EndLine)
}
