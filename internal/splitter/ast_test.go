package splitter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package sample

import "fmt"

// Greet says hello.
func Greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}

// Add sums two ints.
func Add(a, b int) int {
	return a + b
}

type Counter struct {
	n int
}

func (c *Counter) Inc() {
	c.n++
}
`

func TestStructuralSplitter_GoFile(t *testing.T) {
	s := NewStructuralSplitter(Options{})
	defer s.Close()

	chunks, err := s.Split(context.Background(), goSample, "go", "sample.go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.StartLine, 1)
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
		assert.Equal(t, KindStructural, c.Metadata[MetaSplitter])
		assert.Equal(t, "go", c.Metadata[MetaLanguage])
	}

	// The whole file fits one budget, so it comes back as one chunk
	// covering every line.
	require.Len(t, chunks, 1)
	lines := strings.Split(goSample, "\n")
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, len(lines), chunks[0].EndLine)
}

func TestStructuralSplitter_BoundariesAlignToDeclarations(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("package sample\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, `
// F%02d does work.
func F%02d() int {
	total := 0
	for i := 0; i < 100; i++ {
		total += i * %d
	}
	return total
}
`, i, i, i)
	}
	source := sb.String()

	s := NewStructuralSplitter(Options{ChunkSize: 400, ChunkOverlap: 50})
	defer s.Close()

	chunks, err := s.Split(context.Background(), source, "go", "big.go")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Chunks cover the file in order without gaps.
	assert.Equal(t, 1, chunks[0].StartLine)
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine+1, chunks[i].StartLine,
			"chunk %d should start right after chunk %d", i, i-1)
	}

	// No function body is cut mid-declaration: each "func F" line starts a
	// chunk or follows earlier content within the same chunk, never lands
	// on a boundary that splits its body from its signature.
	for _, c := range chunks {
		opens := strings.Count(c.Content, "{")
		closes := strings.Count(c.Content, "}")
		assert.Equal(t, opens, closes, "chunk %d-%d has unbalanced braces", c.StartLine, c.EndLine)
	}
}

func TestStructuralSplitter_OversizeFunctionFallsBackToLines(t *testing.T) {
	var body strings.Builder
	body.WriteString("package sample\n\nfunc Huge() {\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&body, "\tfmt.Println(\"statement number %03d with padding\")\n", i)
	}
	body.WriteString("}\n")

	s := NewStructuralSplitter(Options{ChunkSize: 500, ChunkOverlap: 50})
	defer s.Close()

	chunks, err := s.Split(context.Background(), body.String(), "go", "huge.go")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
		assert.LessOrEqual(t, c.StartLine, c.EndLine)
	}
}

func TestStructuralSplitter_UnknownLanguageFallsBack(t *testing.T) {
	s := NewStructuralSplitter(Options{})
	defer s.Close()

	chunks, err := s.Split(context.Background(), "some plain text\nwith two lines", "brainfuck", "a.bf")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindFallback, chunks[0].Metadata[MetaSplitter])
}

func TestStructuralSplitter_EmptyFile(t *testing.T) {
	s := NewStructuralSplitter(Options{})
	defer s.Close()

	chunks, err := s.Split(context.Background(), "", "go", "empty.go")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStructuralSplitter_PythonFile(t *testing.T) {
	source := `import os

def greet(name):
    return f"hello {name}"

class Greeter:
    def run(self):
        return greet("world")
`
	s := NewStructuralSplitter(Options{})
	defer s.Close()

	chunks, err := s.Split(context.Background(), source, "python", "app.py")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, KindStructural, chunks[0].Metadata[MetaSplitter])
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"main.go", "go"},
		{"app.ts", "typescript"},
		{"component.tsx", "tsx"},
		{"script.py", "python"},
		{"index.js", "javascript"},
		{"README.md", "markdown"},
		{"notes.MD", "markdown"},
		{"data.bin", ""},
		{"Makefile", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.path))
		})
	}
}
