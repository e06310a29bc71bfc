package vectorstore

import (
	"context"
	"fmt"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// CreateCollection drops any existing tables for id and recreates them with
// the given dimension and mode. Idempotent.
func (s *Store) CreateCollection(ctx context.Context, id string, dimension int, mode Mode) error {
	if dimension <= 0 {
		return ctxerr.New(ctxerr.ErrCodeDimensionUnknown,
			fmt.Sprintf("cannot create collection %s with dimension %d", id, dimension), nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dropCollectionLocked(ctx, id); err != nil {
		return err
	}

	coll := collectionName(id, mode)

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS collection_meta (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		mode TEXT NOT NULL
	);

	CREATE TABLE %[1]q (
		id TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		file_extension TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX %[2]q ON %[1]q(relative_path);

	CREATE VIRTUAL TABLE %[3]q USING vec0(
		chunk_rowid INTEGER PRIMARY KEY,
		embedding float[%[4]d]
	);
	`, coll, "idx_"+coll+"_path", vecTableName(coll), dimension)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return ctxerr.StoreError(fmt.Sprintf("failed to create collection %s", id), err)
	}

	if mode == ModeHybrid {
		fts := fmt.Sprintf(`
		CREATE VIRTUAL TABLE %q USING fts5(
			id UNINDEXED,
			content,
			relative_path,
			file_extension,
			tokenize='unicode61'
		);`, ftsTableName(coll))
		if _, err := s.db.ExecContext(ctx, fts); err != nil {
			return ctxerr.StoreError(fmt.Sprintf("failed to create FTS table for %s", id), err)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO collection_meta(name, dimension, mode) VALUES (?, ?, ?)`,
		coll, dimension, string(mode)); err != nil {
		return ctxerr.StoreError(fmt.Sprintf("failed to record collection meta for %s", id), err)
	}

	return nil
}

// HasCollection reports whether a collection exists for id, in either mode.
func (s *Store) HasCollection(ctx context.Context, id string) (bool, error) {
	_, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DropCollection removes all tables for id. Missing tables are ignored.
func (s *Store) DropCollection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropCollectionLocked(ctx, id)
}

func (s *Store) dropCollectionLocked(ctx context.Context, id string) error {
	for _, mode := range []Mode{ModeDense, ModeHybrid} {
		coll := collectionName(id, mode)
		drops := []string{
			fmt.Sprintf("DROP TABLE IF EXISTS %q", ftsTableName(coll)),
			fmt.Sprintf("DROP TABLE IF EXISTS %q", vecTableName(coll)),
			fmt.Sprintf("DROP TABLE IF EXISTS %q", coll),
		}
		for _, stmt := range drops {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil && !isMissingTable(err) {
				return ctxerr.StoreError(fmt.Sprintf("failed to drop collection %s", id), err)
			}
		}
		if _, err := s.db.ExecContext(ctx, "DELETE FROM collection_meta WHERE name = ?", coll); err != nil && !isMissingTable(err) {
			return ctxerr.StoreError(fmt.Sprintf("failed to drop collection %s", id), err)
		}
	}
	return nil
}

var errNoCollection = fmt.Errorf("collection does not exist")

// Info returns the collection metadata for id.
func (s *Store) Info(ctx context.Context, id string) (CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return CollectionInfo{}, ctxerr.StoreError(fmt.Sprintf("collection %s does not exist", id), nil)
	}
	return info, err
}

// collectionInfo resolves the collection name, mode, and dimension for id.
func (s *Store) collectionInfo(ctx context.Context, id string) (CollectionInfo, error) {
	for _, mode := range []Mode{ModeHybrid, ModeDense} {
		coll := collectionName(id, mode)
		var info CollectionInfo
		err := s.db.QueryRowContext(ctx,
			`SELECT name, dimension, mode FROM collection_meta WHERE name = ?`, coll).
			Scan(&info.Name, &info.Dimension, (*string)(&info.Mode))
		if err == nil {
			return info, nil
		}
		if isMissingTable(err) {
			return CollectionInfo{}, errNoCollection
		}
	}
	return CollectionInfo{}, errNoCollection
}
