// Package vectorstore is the per-codebase on-disk container of chunks.
//
// Each codebase gets one SQLite file holding a metadata table, a sqlite-vec
// vec0 virtual table for dense vectors, and (in hybrid mode) an FTS5 table
// for lexical search. Dense search is an exact cosine-distance scan;
// hybrid search fuses dense and lexical rankings with RRF.
package vectorstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register the sqlite-vec extension with every new connection.
	sqlite_vec.Auto()
}

// Mode selects the table shape of a collection, fixed at creation.
type Mode string

const (
	// ModeDense creates only the metadata and vector tables.
	ModeDense Mode = "dense"
	// ModeHybrid additionally creates the FTS5 lexical table.
	ModeHybrid Mode = "hybrid"
)

// Store wraps the SQLite database file of one codebase.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open opens or creates the store file at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Single writer prevents lock contention; readers share the WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return &Store{db: db, path: dbPath}, nil
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// Table names all derive from the collection name, which itself derives
// from the 8-hex codebase identifier.

func collectionName(id string, mode Mode) string {
	if mode == ModeHybrid {
		return "hybrid_code_chunks_" + id
	}
	return "code_chunks_" + id
}

func vecTableName(collection string) string {
	return "vec_" + collection
}

func ftsTableName(collection string) string {
	return "fts_" + collection
}

// isMissingTable reports whether err is SQLite's table-not-found error.
// Reads against a yet-to-be-indexed codebase return empty results instead
// of failing, so the orchestrator can surface "not indexed".
func isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
