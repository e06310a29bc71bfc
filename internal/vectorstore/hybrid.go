package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
)

// RRF fusion parameters. k=60 is the standard smoothing constant used
// across search engines; 50 candidates per list feed the fusion.
const (
	rrfConstant   = 60
	rrfCandidates = 50
)

// HybridQuery carries the two representations of one query.
type HybridQuery struct {
	Vector []float32
	Text   string
}

// HybridSearch returns the top-K chunks by reciprocal rank fusion of the
// dense and lexical rankings. With an empty query text, or when the FTS
// table is unavailable, it reduces to dense-only search. A missing
// collection returns empty results.
func (s *Store) HybridSearch(ctx context.Context, id string, query HybridQuery, opts SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := s.collectionInfo(ctx, id)
	if err == errNoCollection {
		return nil, nil
	}
	if err != nil {
		return nil, ctxerr.StoreError("failed to resolve collection", err)
	}

	if len(query.Vector) != info.Dimension {
		return nil, ctxerr.New(ctxerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("query vector length %d, collection dimension is %d", len(query.Vector), info.Dimension), nil)
	}

	dense, err := s.denseSearch(ctx, info, query.Vector, opts, rrfCandidates)
	if err != nil {
		return nil, err
	}

	var lexical []*SearchResult
	if info.Mode == ModeHybrid && strings.TrimSpace(query.Text) != "" {
		lexical, err = s.lexicalSearch(ctx, info, query, opts)
		if err != nil {
			return nil, err
		}
	}

	if len(lexical) == 0 {
		if len(dense) > opts.topK() {
			dense = dense[:opts.topK()]
		}
		return dense, nil
	}

	return fuse(dense, lexical, opts.topK()), nil
}

// lexicalSearch returns the top candidates by the FTS5 bm25 rank, honoring
// the filter, with the cosine distance to the query vector attached for
// tie-breaking. A missing FTS table or a query rejected by FTS5 yields no
// lexical results, so the search degrades to dense-only; other query errors
// are returned.
func (s *Store) lexicalSearch(ctx context.Context, info CollectionInfo, query HybridQuery, opts SearchOptions) ([]*SearchResult, error) {
	tokens := TokenizeCode(query.Text)
	if len(tokens) == 0 {
		return nil, nil
	}
	// OR semantics: natural-language queries rarely contain every token.
	match := strings.Join(tokens, " OR ")

	where, args, err := parseFilter(opts.FilterExpr, "c")
	if err != nil {
		return nil, err
	}

	sqlQuery := fmt.Sprintf(
		`SELECT c.id, c.content, c.relative_path, c.start_line, c.end_line, c.file_extension, c.metadata,
		        vec_distance_cosine(v.embedding, ?) AS distance
		 FROM %q f
		 JOIN %q c ON c.id = f.id
		 JOIN %q v ON v.chunk_rowid = c.rowid
		 WHERE f.content MATCH ?`, ftsTableName(info.Name), info.Name, vecTableName(info.Name))

	queryArgs := []any{serializeVector(query.Vector), match}
	if where != "" {
		sqlQuery += " AND " + where
		queryArgs = append(queryArgs, args...)
	}
	sqlQuery += fmt.Sprintf(" ORDER BY bm25(%q) LIMIT ?", ftsTableName(info.Name))
	queryArgs = append(queryArgs, rrfCandidates)

	rows, err := s.db.QueryContext(ctx, sqlQuery, queryArgs...)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		// Invalid MATCH input yields an fts5 syntax error; treat as no
		// lexical results rather than failing the search.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			slog.Debug("lexical query rejected by FTS5", slog.String("error", err.Error()))
			return nil, nil
		}
		return nil, ctxerr.StoreError("lexical search failed", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSearchResults(rows)
}

// fusedResult accumulates RRF contributions for one chunk.
type fusedResult struct {
	result *SearchResult
	score  float64
}

// fuse combines the dense and lexical rankings with reciprocal rank
// fusion: score(id) += 1/(k + rank) per list, 1-based ranks. Ties break by
// ascending cosine distance, then id.
func fuse(dense, lexical []*SearchResult, limit int) []*SearchResult {
	scores := make(map[string]*fusedResult, len(dense)+len(lexical))

	accumulate := func(list []*SearchResult) {
		for rank, r := range list {
			f, ok := scores[r.ID]
			if !ok {
				f = &fusedResult{result: r}
				scores[r.ID] = f
			}
			f.score += 1.0 / float64(rrfConstant+rank+1)
		}
	}
	accumulate(dense)
	accumulate(lexical)

	fused := make([]*fusedResult, 0, len(scores))
	for _, f := range scores {
		fused = append(fused, f)
	}
	sort.Slice(fused, func(i, j int) bool {
		if fused[i].score != fused[j].score {
			return fused[i].score > fused[j].score
		}
		if fused[i].result.Distance != fused[j].result.Distance {
			return fused[i].result.Distance < fused[j].result.Distance
		}
		return fused[i].result.ID < fused[j].result.ID
	})

	if len(fused) > limit {
		fused = fused[:limit]
	}
	results := make([]*SearchResult, len(fused))
	for i, f := range fused {
		results[i] = f.result
	}
	return results
}
