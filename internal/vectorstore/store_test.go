package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "d5ebc529"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), testID+".db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// unitVector returns a 4-dim unit vector pointing along the given axis.
func unitVector(axis int) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	return v
}

func testChunk(id, path, content string, start, end int, vec []float32) *Chunk {
	return &Chunk{
		ID:            id,
		RelativePath:  path,
		StartLine:     start,
		EndLine:       end,
		FileExtension: filepath.Ext(path),
		Content:       content,
		Metadata:      map[string]string{"language": "go"},
		Vector:        vec,
	}
}

func TestCreateCollection_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "package a", 1, 1, unitVector(0)),
	}))

	// Recreating drops the previous contents.
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))
	chunks, err := st.Query(ctx, testID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCreateCollection_RejectsZeroDimension(t *testing.T) {
	st := newTestStore(t)
	assert.Error(t, st.CreateCollection(context.Background(), testID, 0, ModeDense))
}

func TestHasCollection_Lifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	has, err := st.HasCollection(ctx, testID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))
	has, err = st.HasCollection(ctx, testID)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, st.DropCollection(ctx, testID))
	has, err = st.HasCollection(ctx, testID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestUpsert_DeleteThenInsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))

	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "original content", 1, 5, unitVector(0)),
	}))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "replaced content", 1, 5, unitVector(1)),
	}))

	chunks, err := st.Query(ctx, testID, "", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "replaced content", chunks[0].Content)
	assert.Equal(t, "go", chunks[0].Metadata["language"])
}

func TestUpsert_DimensionMismatchAbortsBatch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))

	err := st.Upsert(ctx, testID, []*Chunk{
		testChunk("ok", "a.go", "fits", 1, 1, unitVector(0)),
		testChunk("bad", "b.go", "wrong dims", 1, 1, []float32{1, 0}),
	})
	require.Error(t, err)

	// Nothing from the batch was written.
	chunks, err := st.Query(ctx, testID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDelete_MissingIDsIgnored(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "content", 1, 1, unitVector(0)),
	}))

	require.NoError(t, st.Delete(ctx, testID, []string{"c1", "never-existed"}))

	chunks, err := st.Query(ctx, testID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDeleteByPaths(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "alpha", 1, 1, unitVector(0)),
		testChunk("c2", "a.go", "beta", 2, 2, unitVector(1)),
		testChunk("c3", "b.go", "gamma", 1, 1, unitVector(2)),
	}))

	require.NoError(t, st.DeleteByPaths(ctx, testID, []string{"a.go"}))

	chunks, err := st.Query(ctx, testID, "", 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "b.go", chunks[0].RelativePath)
}

func TestSearch_OrdersByCosineDistance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))

	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("far", "far.go", "far away", 1, 1, unitVector(1)),
		testChunk("near", "near.go", "very close", 1, 1, []float32{0.9, 0.1, 0, 0}),
		testChunk("exact", "exact.go", "identical", 1, 1, unitVector(0)),
	}))

	results, err := st.Search(ctx, testID, unitVector(0), SearchOptions{TopK: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.Equal(t, "far", results[2].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
	assert.Less(t, results[1].Distance, results[2].Distance)
}

func TestSearch_FilterAppliedBeforeRanking(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))

	// Scenario: three chunks with extensions .ts, .ts, .py; the .py chunk
	// is closest to the query, but the filter excludes it.
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("t1", "a.ts", "typescript one", 1, 1, unitVector(1)),
		testChunk("t2", "b.ts", "typescript two", 1, 1, unitVector(2)),
		testChunk("p1", "c.py", "python exact match", 1, 1, unitVector(0)),
	}))

	results, err := st.Search(ctx, testID, unitVector(0), SearchOptions{
		TopK:       10,
		FilterExpr: `fileExtension IN [".ts"]`,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, ".ts", r.FileExtension)
	}
}

func TestSearch_MissingCollectionReturnsEmpty(t *testing.T) {
	st := newTestStore(t)

	results, err := st.Search(context.Background(), "deadbeef", unitVector(0), SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_MissingCollectionReturnsEmpty(t *testing.T) {
	st := newTestStore(t)

	chunks, err := st.Query(context.Background(), "deadbeef", "", 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestHybridSearch_EqualRanksBreakByCosineDistance(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))

	// A: vector close to the query, no lexical match for the query text.
	// B: vector far — pushed out of the top-50 dense candidates by 59
	// fillers — but an exact lexical match.
	chunks := []*Chunk{
		testChunk("A", "a.go", "completely unrelated words here", 1, 1, []float32{0.99, 0.1, 0, 0}),
		testChunk("B", "b.go", "frobnicate the widget carefully", 1, 1, []float32{-1, 0, 0, 0}),
	}
	for i := 0; i < 59; i++ {
		chunks = append(chunks, testChunk(
			fmt.Sprintf("fill%02d", i), fmt.Sprintf("fill%02d.go", i),
			fmt.Sprintf("padding chunk number %d", i),
			1, 1, []float32{0.5, 1, 0, 0}))
	}
	require.NoError(t, st.Upsert(ctx, testID, chunks))

	// A leads the dense list at rank 1 (score 1/61); B leads the lexical
	// list at rank 1 (score 1/61). Equal scores break by ascending cosine
	// distance, so A wins.
	results, err := st.HybridSearch(ctx, testID, HybridQuery{
		Vector: unitVector(0),
		Text:   "frobnicate widget",
	}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, "B", results[1].ID)

	// topK=1 keeps only the tie-break winner.
	results, err = st.HybridSearch(ctx, testID, HybridQuery{
		Vector: unitVector(0),
		Text:   "frobnicate widget",
	}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].ID)
}

func TestHybridSearch_LexicalBoostOutranksDense(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))

	// B matches lexically AND sits at dense rank 2; A only leads the dense
	// list. B's summed contributions beat A's single one.
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("A", "a.go", "nothing relevant", 1, 1, []float32{0.99, 0.1, 0, 0}),
		testChunk("B", "b.go", "frobnicate the widget", 1, 1, []float32{0.9, 0.3, 0, 0}),
	}))

	results, err := st.HybridSearch(ctx, testID, HybridQuery{
		Vector: unitVector(0),
		Text:   "frobnicate widget",
	}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// score(B) = 1/(60+2) + 1/(60+1) > score(A) = 1/(60+1)
	assert.Equal(t, "B", results[0].ID)
}

func TestHybridSearch_EmptyTextReducesToDense(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeHybrid))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "alpha beta", 1, 1, unitVector(0)),
		testChunk("c2", "b.go", "gamma delta", 1, 1, unitVector(1)),
	}))

	hybrid, err := st.HybridSearch(ctx, testID, HybridQuery{Vector: unitVector(0), Text: "   "}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	dense, err := st.Search(ctx, testID, unitVector(0), SearchOptions{TopK: 2})
	require.NoError(t, err)

	require.Len(t, hybrid, len(dense))
	for i := range hybrid {
		assert.Equal(t, dense[i].ID, hybrid[i].ID)
	}
}

func TestHybridSearch_DenseCollectionIgnoresText(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))
	require.NoError(t, st.Upsert(ctx, testID, []*Chunk{
		testChunk("c1", "a.go", "alpha beta", 1, 1, unitVector(0)),
	}))

	results, err := st.HybridSearch(ctx, testID, HybridQuery{Vector: unitVector(0), Text: "alpha"}, SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestUpsert_ManyChunksAndTopKLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.CreateCollection(ctx, testID, 4, ModeDense))

	var chunks []*Chunk
	for i := 0; i < 30; i++ {
		chunks = append(chunks, testChunk(
			fmt.Sprintf("c%02d", i),
			fmt.Sprintf("f%02d.go", i),
			fmt.Sprintf("content %d", i),
			1, 1,
			[]float32{1, float32(i) * 0.05, 0, 0},
		))
	}
	require.NoError(t, st.Upsert(ctx, testID, chunks))

	results, err := st.Search(ctx, testID, unitVector(0), SearchOptions{TopK: 5})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "c00", results[0].ID)
}
