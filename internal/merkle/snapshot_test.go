package merkle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_SaveAndLoad(t *testing.T) {
	tree := Build(map[string]string{"a.go": hashOf("x"), "b.go": hashOf("y")})
	snap, err := NewSnapshot(tree)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "merkle", "d5ebc529.json")
	require.NoError(t, SaveSnapshot(path, snap))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, tree.Root, loaded.MerkleRoot)
	assert.Equal(t, tree.FileHashes, loaded.FileHashes)

	restored, err := loaded.Tree()
	require.NoError(t, err)
	assert.Equal(t, tree.Root, restored.Root)
}

func TestSnapshot_LoadMissingReturnsNil(t *testing.T) {
	loaded, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSnapshot_SaveLeavesNoTempFile(t *testing.T) {
	tree := Build(map[string]string{"a.go": hashOf("x")})
	snap, err := NewSnapshot(tree)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	require.NoError(t, SaveSnapshot(path, snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap.json", entries[0].Name())
}

func TestSnapshot_OverwriteIsAtomicRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")

	first, err := NewSnapshot(Build(map[string]string{"a.go": hashOf("1")}))
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(path, first))

	second, err := NewSnapshot(Build(map[string]string{"a.go": hashOf("2")}))
	require.NoError(t, err)
	require.NoError(t, SaveSnapshot(path, second))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, second.MerkleRoot, loaded.MerkleRoot)
}

func TestSnapshot_UnknownKeysIgnored(t *testing.T) {
	tree := Build(map[string]string{"a.go": hashOf("x")})
	snap, err := NewSnapshot(tree)
	require.NoError(t, err)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)

	// Inject an unknown key.
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["futureField"] = "whatever"
	extended, err := json.Marshal(m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, extended, 0o644))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Root, loaded.MerkleRoot)
}

func TestSnapshot_TreeFallsBackToFileHashes(t *testing.T) {
	snap := &Snapshot{
		FileHashes: map[string]string{"a.go": hashOf("x")},
		MerkleRoot: "ignored",
	}

	tree, err := snap.Tree()
	require.NoError(t, err)
	assert.Equal(t, ComputeRoot(snap.FileHashes), tree.Root)
}
