package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"wildcard extension", "*.log", "debug.log", false, true},
		{"wildcard extension no match", "*.log", "debug.txt", false, false},
		{"nested file matches basename", "*.log", "logs/debug.log", false, true},
		{"directory pattern matches dir", "node_modules/", "node_modules", true, true},
		{"directory pattern matches contents", "node_modules/", "node_modules/react/index.js", false, true},
		{"directory pattern not plain file", "temp/", "temp", false, false},
		{"anchored pattern", "/build", "build", false, true},
		{"anchored pattern not nested", "/build", "src/build", false, false},
		{"internal slash is anchored", "doc/frotz", "doc/frotz", false, true},
		{"internal slash not nested", "doc/frotz", "a/doc/frotz", false, false},
		{"double star prefix", "**/logs", "a/b/logs", false, true},
		{"question mark", "file?.txt", "file1.txt", false, true},
		{"char class", "file[0-9].txt", "file7.txt", false, true},
		{"char class no match", "file[0-9].txt", "filea.txt", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_NegationOverridesEarlierRule(t *testing.T) {
	m := NewMatcher()
	m.AddPattern("*.log")
	m.AddPattern("!important.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestMatcher_LaterRuleWins(t *testing.T) {
	m := NewMatcher()
	m.AddPattern("!keep.log")
	m.AddPattern("*.log")

	// The ignore rule comes later, so it wins.
	assert.True(t, m.Match("keep.log", false))
}

func TestMatcher_CommentsAndBlanksSkipped(t *testing.T) {
	m := NewMatcher()
	m.AddPattern("# a comment")
	m.AddPattern("")
	m.AddPattern("   ")

	assert.False(t, m.Match("a comment", false))

	_, ignored := m.Decide("anything", false)
	assert.False(t, ignored)
}

func TestMatcher_BaseScoping(t *testing.T) {
	m := NewMatcher()
	m.AddPatternWithBase("*.gen.go", "pkg/api")

	assert.True(t, m.Match("pkg/api/client.gen.go", false))
	assert.False(t, m.Match("pkg/other/client.gen.go", false))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	giPath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(giPath, []byte("dist/\n# comment\n*.tmp\n"), 0o644))

	m := NewMatcher()
	require.NoError(t, m.AddFromFile(giPath, ""))

	assert.True(t, m.Match("dist/bundle.js", false))
	assert.True(t, m.Match("scratch.tmp", false))
	assert.False(t, m.Match("main.go", false))
}

func TestDecide_ReportsMatchSeparately(t *testing.T) {
	m := NewMatcher()
	m.AddPattern("!src/keep.go")

	matched, ignored := m.Decide("src/keep.go", false)
	assert.True(t, matched)
	assert.False(t, ignored)

	matched, _ = m.Decide("src/other.go", false)
	assert.False(t, matched)
}
