// Package registry maps codebase paths to stable identifiers and owns the
// on-disk storage layout.
//
// Every naming site in the engine (store filename, collection name, snapshot
// filename) derives from IDFor. A single derivation function is the guard
// against the mixed 8-vs-16 hex naming defect.
package registry

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

// IDLength is the identifier length in hex characters.
const IDLength = 8

// mappingsFile is the identifier-to-path reverse lookup filename.
const mappingsFile = "path-mappings.json"

// Entry describes one registered codebase store.
type Entry struct {
	ID      string    // 8-hex identifier
	Path    string    // original absolute path
	Size    int64     // store file size in bytes
	ModTime time.Time // store file modification time
}

// Registry owns the vectors directory and the path-mappings file.
type Registry struct {
	vectorsDir string
	baseDir    string
}

// New creates a registry rooted at vectorsDir. The path-mappings file lives
// in baseDir, as a sibling of the vectors and merkle directories.
func New(baseDir, vectorsDir string) *Registry {
	return &Registry{
		vectorsDir: vectorsDir,
		baseDir:    baseDir,
	}
}

// IDFor returns the stable 8-hex identifier for a codebase path.
// The path is resolved to an absolute path first; the identifier is the
// first 8 hex characters of its MD5.
func IDFor(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := md5.Sum([]byte(abs))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// IDFor returns the identifier for path. See the package-level IDFor.
func (r *Registry) IDFor(path string) string {
	return IDFor(path)
}

// DBPathFor returns the store file path for a codebase path, creating the
// vectors directory lazily.
func (r *Registry) DBPathFor(path string) (string, error) {
	if err := os.MkdirAll(r.vectorsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create vectors directory: %w", err)
	}
	return filepath.Join(r.vectorsDir, IDFor(path)+".db"), nil
}

// SnapshotPathFor returns the Merkle snapshot path for a codebase path.
func (r *Registry) SnapshotPathFor(path string) string {
	return filepath.Join(r.baseDir, "merkle", IDFor(path)+".json")
}

// Register records the id-to-path mapping for reverse lookup.
func (r *Registry) Register(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	return r.updateMappings(func(m map[string]string) {
		m[IDFor(abs)] = abs
	})
}

// Remove deletes the store file, snapshot, and mapping for a codebase path.
func (r *Registry) Remove(path string) error {
	id := IDFor(path)
	dbPath := filepath.Join(r.vectorsDir, id+".db")
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm", r.SnapshotPathFor(path)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return r.updateMappings(func(m map[string]string) {
		delete(m, id)
	})
}

// List returns entries for every store file with a known mapping, sorted by id.
func (r *Registry) List() ([]Entry, error) {
	mappings, err := r.readMappings()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(mappings))
	for id, path := range mappings {
		e := Entry{ID: id, Path: path}
		if info, err := os.Stat(filepath.Join(r.vectorsDir, id+".db")); err == nil {
			e.Size = info.Size()
			e.ModTime = info.ModTime()
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// CleanupOrphans removes stores whose original codebase path no longer
// exists. Returns the removed identifiers.
func (r *Registry) CleanupOrphans() ([]string, error) {
	mappings, err := r.readMappings()
	if err != nil {
		return nil, err
	}

	var removed []string
	for id, path := range mappings {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := r.Remove(path); err != nil {
				return removed, err
			}
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

// PathFor returns the registered absolute path for an identifier.
func (r *Registry) PathFor(id string) (string, bool) {
	mappings, err := r.readMappings()
	if err != nil {
		return "", false
	}
	path, ok := mappings[id]
	return path, ok
}

func (r *Registry) mappingsPath() string {
	return filepath.Join(r.baseDir, mappingsFile)
}

func (r *Registry) readMappings() (map[string]string, error) {
	data, err := os.ReadFile(r.mappingsPath())
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read path mappings: %w", err)
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse path mappings: %w", err)
	}
	return m, nil
}

// updateMappings applies fn to the mappings under a cross-process file lock.
// The server and CLI may mutate the file concurrently.
func (r *Registry) updateMappings(fn func(map[string]string)) error {
	if err := os.MkdirAll(r.baseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	lock := flock.New(r.mappingsPath() + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock path mappings: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	m, err := r.readMappings()
	if err != nil {
		return err
	}
	fn(m)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode path mappings: %w", err)
	}

	tmp := r.mappingsPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write path mappings: %w", err)
	}
	if err := os.Rename(tmp, r.mappingsPath()); err != nil {
		return fmt.Errorf("failed to replace path mappings: %w", err)
	}
	return nil
}
