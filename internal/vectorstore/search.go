package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// Search returns the top-K chunks by ascending cosine distance to the query
// vector. The filter is applied before ranking. The scan is exact: every
// stored vector in the filtered set is compared. A missing collection
// returns empty results.
func (s *Store) Search(ctx context.Context, id string, query []float32, opts SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return nil, nil
	}
	if err != nil {
		return nil, ctxerr.StoreError("failed to resolve collection", err)
	}

	if len(query) != info.Dimension {
		return nil, ctxerr.New(ctxerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("query vector length %d, collection dimension is %d", len(query), info.Dimension), nil)
	}

	return s.denseSearch(ctx, info, query, opts, opts.topK())
}

// denseSearch runs the exact cosine-distance scan. Callers hold the lock.
func (s *Store) denseSearch(ctx context.Context, info CollectionInfo, query []float32, opts SearchOptions, limit int) ([]*SearchResult, error) {
	where, args, err := parseFilter(opts.FilterExpr, "c")
	if err != nil {
		return nil, err
	}

	sqlQuery := fmt.Sprintf(
		`SELECT c.id, c.content, c.relative_path, c.start_line, c.end_line, c.file_extension, c.metadata,
		        vec_distance_cosine(v.embedding, ?) AS distance
		 FROM %q c
		 JOIN %q v ON v.chunk_rowid = c.rowid`, info.Name, vecTableName(info.Name))

	queryArgs := []any{serializeVector(query)}
	if where != "" {
		sqlQuery += " WHERE " + where
		queryArgs = append(queryArgs, args...)
	}
	sqlQuery += " ORDER BY distance ASC, c.id ASC LIMIT ?"
	queryArgs = append(queryArgs, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, queryArgs...)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, ctxerr.StoreError("dense search failed", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSearchResults(rows)
}

func scanSearchResults(rows *sql.Rows) ([]*SearchResult, error) {
	var results []*SearchResult
	for rows.Next() {
		var r SearchResult
		var metadata string
		if err := rows.Scan(&r.ID, &r.Content, &r.RelativePath, &r.StartLine, &r.EndLine, &r.FileExtension, &metadata, &r.Distance); err != nil {
			return nil, ctxerr.StoreError("failed to scan search result", err)
		}
		decodeMetadata(metadata, &r.Chunk)
		results = append(results, &r)
	}
	return results, rows.Err()
}
