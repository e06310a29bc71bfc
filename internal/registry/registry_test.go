package registry

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	base := t.TempDir()
	return New(base, filepath.Join(base, "vectors"))
}

func TestIDFor_MatchesMD5Prefix(t *testing.T) {
	// Fixed fixture: first 8 hex chars of md5("/tmp/proj").
	assert.Equal(t, "d5ebc529", IDFor("/tmp/proj"))
}

func TestIDFor_IsEightLowercaseHex(t *testing.T) {
	hexRe := regexp.MustCompile(`^[0-9a-f]{8}$`)
	for _, p := range []string{"/tmp/proj", "/home/user/project", "/a", "/a/b/c/d/e"} {
		id := IDFor(p)
		assert.True(t, hexRe.MatchString(id), "id %q for %q", id, p)
	}
}

func TestIDFor_Deterministic(t *testing.T) {
	assert.Equal(t, IDFor("/tmp/proj"), IDFor("/tmp/proj"))
	assert.NotEqual(t, IDFor("/tmp/proj"), IDFor("/tmp/proj2"))
}

func TestDBPathFor_CreatesVectorsDirLazily(t *testing.T) {
	r := newTestRegistry(t)

	dbPath, err := r.DBPathFor("/tmp/proj")
	require.NoError(t, err)

	assert.Equal(t, "d5ebc529.db", filepath.Base(dbPath))
	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRegister_List_Remove(t *testing.T) {
	r := newTestRegistry(t)
	project := t.TempDir()

	require.NoError(t, r.Register(project))

	dbPath, err := r.DBPathFor(project)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dbPath, []byte("stub"), 0o644))

	entries, err := r.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, IDFor(project), entries[0].ID)
	assert.Equal(t, int64(4), entries[0].Size)

	require.NoError(t, r.Remove(project))
	entries, err = r.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, dbPath)
}

func TestCleanupOrphans_RemovesMissingPaths(t *testing.T) {
	r := newTestRegistry(t)

	alive := t.TempDir()
	require.NoError(t, r.Register(alive))

	dead := filepath.Join(t.TempDir(), "gone")
	require.NoError(t, os.MkdirAll(dead, 0o755))
	require.NoError(t, r.Register(dead))
	require.NoError(t, os.RemoveAll(dead))

	removed, err := r.CleanupOrphans()
	require.NoError(t, err)
	assert.Equal(t, []string{IDFor(dead)}, removed)

	_, ok := r.PathFor(IDFor(alive))
	assert.True(t, ok)
	_, ok = r.PathFor(IDFor(dead))
	assert.False(t, ok)
}

func TestSnapshotPathFor_UsesSameID(t *testing.T) {
	r := newTestRegistry(t)

	snap := r.SnapshotPathFor("/tmp/proj")
	assert.Equal(t, "d5ebc529.json", filepath.Base(snap))
	assert.Equal(t, "merkle", filepath.Base(filepath.Dir(snap)))
}
