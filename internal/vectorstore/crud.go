package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// Upsert writes chunks into the collection as delete-then-insert, so
// re-indexing a file replaces its chunks. Per-row failures are logged and
// skipped; a vector whose length does not match the collection dimension
// aborts the whole batch before any write.
func (s *Store) Upsert(ctx context.Context, id string, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return ctxerr.StoreError(fmt.Sprintf("collection %s does not exist", id), nil)
	}
	if err != nil {
		return ctxerr.StoreError("failed to resolve collection", err)
	}

	for _, c := range chunks {
		if len(c.Vector) != info.Dimension {
			return ctxerr.New(ctxerr.ErrCodeDimensionMismatch,
				fmt.Sprintf("chunk %s has vector length %d, collection dimension is %d", c.ID, len(c.Vector), info.Dimension), nil)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerr.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	coll := info.Name
	for _, c := range chunks {
		if err := s.upsertOne(ctx, tx, coll, info.Mode, c); err != nil {
			slog.Warn("failed to upsert chunk",
				slog.String("chunk_id", c.ID),
				slog.String("path", c.RelativePath),
				slog.String("error", err.Error()))
		}
	}

	if err := tx.Commit(); err != nil {
		return ctxerr.StoreError("failed to commit upsert", err)
	}
	return nil
}

func (s *Store) upsertOne(ctx context.Context, tx *sql.Tx, coll string, mode Mode, c *Chunk) error {
	if err := s.deleteByIDs(ctx, tx, coll, mode, []string{c.ID}); err != nil {
		return err
	}

	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if c.Metadata == nil {
		metadata = []byte("{}")
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (id, content, relative_path, start_line, end_line, file_extension, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`, coll),
		c.ID, c.Content, c.RelativePath, c.StartLine, c.EndLine, c.FileExtension, string(metadata))
	if err != nil {
		return fmt.Errorf("failed to insert chunk row: %w", err)
	}
	rowid, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get chunk rowid: %w", err)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %q (chunk_rowid, embedding) VALUES (?, ?)`, vecTableName(coll)),
		rowid, serializeVector(c.Vector)); err != nil {
		return fmt.Errorf("failed to insert vector: %w", err)
	}

	if mode == ModeHybrid {
		// Content is pre-tokenized so identifier sub-words match. FTS write
		// failures degrade that row to dense-only search.
		tokens := strings.Join(TokenizeCode(c.Content), " ")
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %q (id, content, relative_path, file_extension) VALUES (?, ?, ?, ?)`, ftsTableName(coll)),
			c.ID, tokens, c.RelativePath, c.FileExtension); err != nil {
			slog.Warn("FTS write failed, row searchable dense-only",
				slog.String("chunk_id", c.ID),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// Delete removes chunks by id from all tables. Missing ids are silently
// ignored; a missing collection is a no-op.
func (s *Store) Delete(ctx context.Context, id string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return nil
	}
	if err != nil {
		return ctxerr.StoreError("failed to resolve collection", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerr.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteByIDs(ctx, tx, info.Name, info.Mode, chunkIDs); err != nil {
		return ctxerr.StoreError("failed to delete chunks", err)
	}
	if err := tx.Commit(); err != nil {
		return ctxerr.StoreError("failed to commit delete", err)
	}
	return nil
}

// DeleteByPaths removes every chunk whose relativePath is in paths.
// Used by incremental indexing for removed and modified files.
func (s *Store) DeleteByPaths(ctx context.Context, id string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return nil
	}
	if err != nil {
		return ctxerr.StoreError("failed to resolve collection", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id FROM %q WHERE relative_path IN (%s)`, info.Name, placeholders), args...)
	if err != nil {
		return ctxerr.StoreError("failed to list chunks for deletion", err)
	}
	var ids []string
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			_ = rows.Close()
			return ctxerr.StoreError("failed to scan chunk id", err)
		}
		ids = append(ids, cid)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return ctxerr.StoreError("failed to iterate chunk ids", err)
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ctxerr.StoreError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteByIDs(ctx, tx, info.Name, info.Mode, ids); err != nil {
		return ctxerr.StoreError("failed to delete chunks", err)
	}
	if err := tx.Commit(); err != nil {
		return ctxerr.StoreError("failed to commit delete", err)
	}
	return nil
}

// deleteByIDs removes rows from the vector, FTS, and metadata tables.
func (s *Store) deleteByIDs(ctx context.Context, tx *sql.Tx, coll string, mode Mode, ids []string) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, cid := range ids {
		args[i] = cid
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE chunk_rowid IN (SELECT rowid FROM %q WHERE id IN (%s))`,
		vecTableName(coll), coll, placeholders), args...); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	if mode == ModeHybrid {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %q WHERE id IN (%s)`, ftsTableName(coll), placeholders), args...); err != nil {
			return fmt.Errorf("failed to delete FTS rows: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE id IN (%s)`, coll, placeholders), args...); err != nil {
		return fmt.Errorf("failed to delete chunk rows: %w", err)
	}
	return nil
}

// Query returns chunks matching the filter expression, without vectors and
// with no ordering promised. A missing collection returns empty results.
func (s *Store) Query(ctx context.Context, id, filterExpr string, limit int) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return nil, nil
	}
	if err != nil {
		return nil, ctxerr.StoreError("failed to resolve collection", err)
	}

	where, args, err := parseFilter(filterExpr, "c")
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT c.id, c.content, c.relative_path, c.start_line, c.end_line, c.file_extension, c.metadata FROM %q c`, info.Name)
	if where != "" {
		query += " WHERE " + where
	}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, ctxerr.StoreError("query failed", err)
	}
	defer func() { _ = rows.Close() }()

	return scanChunks(rows)
}

// scanChunks reads chunk rows in the canonical column order.
func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows) (*Chunk, error) {
	var c Chunk
	var metadata string
	if err := rows.Scan(&c.ID, &c.Content, &c.RelativePath, &c.StartLine, &c.EndLine, &c.FileExtension, &metadata); err != nil {
		return nil, ctxerr.StoreError("failed to scan chunk", err)
	}
	decodeMetadata(metadata, &c)
	return &c, nil
}

// decodeMetadata parses the stored metadata JSON into the chunk.
func decodeMetadata(metadata string, c *Chunk) {
	if metadata == "" || metadata == "{}" || metadata == "null" {
		return
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		slog.Warn("invalid chunk metadata", slog.String("chunk_id", c.ID), slog.String("error", err.Error()))
	}
}
