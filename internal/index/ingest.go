package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tan-yong-sheng/code-context/internal/embed"
	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
	"github.com/tan-yong-sheng/code-context/internal/merkle"
	"github.com/tan-yong-sheng/code-context/internal/splitter"
	"github.com/tan-yong-sheng/code-context/internal/vectorstore"
)

// IndexCodebase walks, chunks, embeds, and stores the whole codebase.
// Concurrent calls for the same codebase return a Busy error. The snapshot
// is written only after the store writes succeed, and reflects exactly the
// files whose chunks are fully written.
func (o *Orchestrator) IndexCodebase(ctx context.Context, path string, cb ProgressFunc, force bool) (*IndexResult, error) {
	id := o.reg.IDFor(path)
	if !o.states.acquireWriter(id) {
		return nil, ctxerr.Busy(path)
	}
	defer o.states.releaseWriter(id)

	o.states.set(id, StatusPreparing)
	result, err := o.indexCodebase(ctx, path, id, cb, force)
	if err != nil {
		o.states.set(id, StatusFailed)
		return nil, o.withContext(err, "index", path)
	}
	o.states.set(id, result.Status)
	return result, nil
}

func (o *Orchestrator) indexCodebase(ctx context.Context, path, id string, cb ProgressFunc, force bool) (*IndexResult, error) {
	if err := o.reg.Register(path); err != nil {
		return nil, err
	}

	st, id, err := o.store(path)
	if err != nil {
		return nil, err
	}
	if err := o.prepareCollection(ctx, st, id, force); err != nil {
		return nil, err
	}

	o.states.set(id, StatusIndexing)
	reporter := newProgressReporter(cb)
	reporter.report("walking", 0, 0)

	sync, err := o.synchronizer(path)
	if err != nil {
		return nil, err
	}
	tree, err := sync.Walk(ctx, path)
	if err != nil {
		return nil, err
	}

	paths := sortedPaths(tree.FileHashes)
	ing := o.newIngestor(st, id, reporter, len(paths))

	for _, relPath := range paths {
		if ing.done() {
			break
		}
		chunks, err := o.fileChunks(ctx, path, relPath)
		if err != nil {
			return nil, err
		}
		if err := ing.addFile(ctx, relPath, chunks); err != nil {
			return nil, o.interrupted(path, ing.completedTree(tree), err)
		}
	}
	if err := ing.flush(ctx); err != nil {
		return nil, o.interrupted(path, ing.completedTree(tree), err)
	}

	status := StatusCompleted
	snapTree := tree
	if ing.capReached {
		status = StatusLimitReached
		snapTree = ing.completedTree(tree)
	}
	if err := o.writeSnapshot(path, snapTree); err != nil {
		return nil, err
	}

	reporter.report("indexing", len(paths), len(paths))
	return &IndexResult{
		IndexedFiles: ing.filesCompleted(),
		TotalChunks:  ing.total,
		Status:       status,
	}, nil
}

// ReindexByChange diffs the current tree against the previous snapshot and
// applies only the changes: deletions before insertions, then a fresh
// snapshot. A missing snapshot indexes everything as added.
func (o *Orchestrator) ReindexByChange(ctx context.Context, path string, cb ProgressFunc) (*ChangeResult, error) {
	id := o.reg.IDFor(path)
	if !o.states.acquireWriter(id) {
		return nil, ctxerr.Busy(path)
	}
	defer o.states.releaseWriter(id)

	o.states.set(id, StatusIndexing)
	result, err := o.reindexByChange(ctx, path, id, cb)
	if err != nil {
		o.states.set(id, StatusFailed)
		return nil, o.withContext(err, "reindex", path)
	}
	o.states.set(id, result.Status)
	return result, nil
}

func (o *Orchestrator) reindexByChange(ctx context.Context, path, id string, cb ProgressFunc) (*ChangeResult, error) {
	st, id, err := o.store(path)
	if err != nil {
		return nil, err
	}
	if err := o.prepareCollection(ctx, st, id, false); err != nil {
		return nil, err
	}

	reporter := newProgressReporter(cb)
	reporter.report("walking", 0, 0)

	sync, err := o.synchronizer(path)
	if err != nil {
		return nil, err
	}
	tree, err := sync.Walk(ctx, path)
	if err != nil {
		return nil, err
	}

	var prevTree *merkle.Tree
	if snap, err := merkle.LoadSnapshot(o.reg.SnapshotPathFor(path)); err == nil && snap != nil {
		if t, err := snap.Tree(); err == nil {
			prevTree = t
		}
	}

	changes := merkle.Diff(prevTree, tree)
	result := &ChangeResult{
		Added:    len(changes.Added),
		Removed:  len(changes.Removed),
		Modified: len(changes.Modified),
		Status:   StatusCompleted,
	}
	if changes.Empty() {
		if err := o.writeSnapshot(path, tree); err != nil {
			return nil, err
		}
		return result, nil
	}

	// Deletions first, so stale chunks of modified files cannot outlive
	// their replacements from a searcher's point of view.
	stale := append(append([]string{}, changes.Removed...), changes.Modified...)
	if err := st.DeleteByPaths(ctx, id, stale); err != nil {
		return nil, err
	}

	reindex := append(append([]string{}, changes.Added...), changes.Modified...)
	sort.Strings(reindex)

	ing := o.newIngestor(st, id, reporter, len(reindex))
	for _, relPath := range reindex {
		if ing.done() {
			break
		}
		chunks, err := o.fileChunks(ctx, path, relPath)
		if err != nil {
			return nil, err
		}
		if err := ing.addFile(ctx, relPath, chunks); err != nil {
			return nil, o.interrupted(path, incrementalSnapshotTree(tree, reindex, ing), err)
		}
	}
	if err := ing.flush(ctx); err != nil {
		return nil, o.interrupted(path, incrementalSnapshotTree(tree, reindex, ing), err)
	}

	snapTree := tree
	if ing.capReached {
		result.Status = StatusLimitReached
		snapTree = incrementalSnapshotTree(tree, reindex, ing)
	}
	if err := o.writeSnapshot(path, snapTree); err != nil {
		return nil, err
	}

	reporter.report("indexing", len(reindex), len(reindex))
	return result, nil
}

// prepareCollection creates or validates the collection per the configured
// dimension and mode.
func (o *Orchestrator) prepareCollection(ctx context.Context, st *vectorstore.Store, id string, force bool) error {
	dim, err := o.dimension(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	hybrid := o.cfg.Index.Hybrid
	o.mu.Unlock()

	mode := vectorstore.ModeDense
	if hybrid {
		mode = vectorstore.ModeHybrid
	}

	exists, err := st.HasCollection(ctx, id)
	if err != nil {
		return err
	}
	if force || !exists {
		return st.CreateCollection(ctx, id, dim, mode)
	}

	info, err := st.Info(ctx, id)
	if err != nil {
		return err
	}
	if info.Dimension != dim {
		return ctxerr.New(ctxerr.ErrCodeDimensionMismatch,
			fmt.Sprintf("existing collection has dimension %d, embedder produces %d; clear the index or fix the configuration", info.Dimension, dim), nil)
	}
	return nil
}

// fileChunks reads and splits one file into store chunks. Empty files and
// files that produce no chunks are skipped.
func (o *Orchestrator) fileChunks(ctx context.Context, root, relPath string) ([]*vectorstore.Chunk, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	o.mu.Lock()
	split := o.split
	o.mu.Unlock()

	language := splitter.DetectLanguage(relPath)
	chunks, err := split.Split(ctx, string(data), language, relPath)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", relPath, err)
	}

	ext := strings.ToLower(filepath.Ext(relPath))
	out := make([]*vectorstore.Chunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &vectorstore.Chunk{
			ID:            chunkID(relPath, c.StartLine, c.EndLine, c.Content),
			RelativePath:  relPath,
			StartLine:     c.StartLine,
			EndLine:       c.EndLine,
			FileExtension: ext,
			Content:       c.Content,
			Metadata:      c.Metadata,
		})
	}
	return out, nil
}

// chunkID derives the stable chunk identifier from the relative path, line
// range, and content hash.
func chunkID(relPath string, startLine, endLine int, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	key := fmt.Sprintf("%s:%d:%d:%s", relPath, startLine, endLine, hex.EncodeToString(contentHash[:]))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// writeSnapshot persists the snapshot for a tree.
func (o *Orchestrator) writeSnapshot(path string, tree *merkle.Tree) error {
	snap, err := merkle.NewSnapshot(tree)
	if err != nil {
		return err
	}
	return merkle.SaveSnapshot(o.reg.SnapshotPathFor(path), snap)
}

// interrupted persists a snapshot covering only fully written files after
// a cancellation, then propagates the cause. Embedding and store failures
// skip the snapshot so the next run re-processes the tail.
func (o *Orchestrator) interrupted(path string, snapTree *merkle.Tree, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		if err := o.writeSnapshot(path, snapTree); err != nil {
			return err
		}
	}
	return cause
}

// withContext attaches operation context to an error before it surfaces.
func (o *Orchestrator) withContext(err error, op, path string) error {
	var ce *ctxerr.ContextError
	if errors.As(err, &ce) {
		return ce.WithDetail("operation", op).WithDetail("codebase", path)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}

// incrementalSnapshotTree builds the snapshot tree for a partially applied
// incremental run: the current tree minus changed files that were not fully
// written. Their absence makes the next run treat them as added.
func incrementalSnapshotTree(curr *merkle.Tree, reindexed []string, ing *ingestor) *merkle.Tree {
	hashes := make(map[string]string, len(curr.FileHashes))
	for p, h := range curr.FileHashes {
		hashes[p] = h
	}
	for _, p := range reindexed {
		if !ing.completed[p] {
			delete(hashes, p)
		}
	}
	return merkle.Build(hashes)
}

func sortedPaths(m map[string]string) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ingestor accumulates chunks into embedding batches and upserts them,
// enforcing the batch size and the hard chunk cap.
type ingestor struct {
	st        *vectorstore.Store
	id        string
	provider  embed.Provider
	reporter  *progressReporter
	batchSize int
	capLimit  int

	pending    []*vectorstore.Chunk
	remaining  map[string]int  // chunks not yet upserted, per file
	completed  map[string]bool // files fully written (or chunk-free)
	totalFiles int
	total      int // chunks upserted
	capReached bool
}

func (o *Orchestrator) newIngestor(st *vectorstore.Store, id string, reporter *progressReporter, totalFiles int) *ingestor {
	o.mu.Lock()
	batchSize := o.cfg.Embedding.BatchSize
	capLimit := o.cfg.Index.MaxChunks
	provider := o.provider
	o.mu.Unlock()

	return &ingestor{
		st:         st,
		id:         id,
		provider:   provider,
		reporter:   reporter,
		batchSize:  batchSize,
		capLimit:   capLimit,
		remaining:  make(map[string]int),
		completed:  make(map[string]bool),
		totalFiles: totalFiles,
	}
}

// addFile queues a file's chunks, flushing full batches as they form.
// Chunks are queued in ascending line order, so per-file upsert order is
// preserved.
func (ing *ingestor) addFile(ctx context.Context, relPath string, chunks []*vectorstore.Chunk) error {
	if len(chunks) == 0 {
		ing.completed[relPath] = true
		return nil
	}
	ing.remaining[relPath] = len(chunks)

	for _, c := range chunks {
		ing.pending = append(ing.pending, c)
		if len(ing.pending) >= ing.batchSize {
			if err := ing.flush(ctx); err != nil {
				return err
			}
			if ing.capReached {
				return nil
			}
		}
	}
	return nil
}

// flush embeds and upserts the pending batch, truncating it to the
// remaining cap budget when necessary. Cancellation is honored at this
// batch boundary.
func (ing *ingestor) flush(ctx context.Context) error {
	if len(ing.pending) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := ing.pending
	if ing.total+len(batch) > ing.capLimit {
		batch = batch[:ing.capLimit-ing.total]
		ing.capReached = true
	}
	ing.pending = nil

	if len(batch) > 0 {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		vectors, err := ing.provider.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range batch {
			c.Vector = vectors[i]
		}
		if err := ing.st.Upsert(ctx, ing.id, batch); err != nil {
			return err
		}
		ing.total += len(batch)

		for _, c := range batch {
			ing.remaining[c.RelativePath]--
			if ing.remaining[c.RelativePath] == 0 {
				ing.completed[c.RelativePath] = true
			}
		}
	}

	ing.reporter.report("indexing", ing.filesCompleted(), ing.totalFiles)
	return ctx.Err()
}

// done reports whether the cap has been reached.
func (ing *ingestor) done() bool {
	return ing.capReached
}

// filesCompleted returns the number of fully written files.
func (ing *ingestor) filesCompleted() int {
	return len(ing.completed)
}

// completedTree restricts a tree to the fully written files.
func (ing *ingestor) completedTree(tree *merkle.Tree) *merkle.Tree {
	hashes := make(map[string]string, len(ing.completed))
	for p, h := range tree.FileHashes {
		if ing.completed[p] {
			hashes[p] = h
		}
	}
	return merkle.Build(hashes)
}
