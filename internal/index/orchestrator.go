// Package index composes the registry, embedder, splitter, store, and
// synchronizer into the indexing and search engine.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/tan-yong-sheng/code-context/internal/config"
	"github.com/tan-yong-sheng/code-context/internal/embed"
	ctxerr "github.com/tan-yong-sheng/code-context/internal/errors"
	"github.com/tan-yong-sheng/code-context/internal/ignore"
	"github.com/tan-yong-sheng/code-context/internal/merkle"
	"github.com/tan-yong-sheng/code-context/internal/registry"
	"github.com/tan-yong-sheng/code-context/internal/splitter"
	"github.com/tan-yong-sheng/code-context/internal/vectorstore"
)

// IndexResult is the outcome of a full indexing run.
type IndexResult struct {
	IndexedFiles int
	TotalChunks  int
	Status       Status // StatusCompleted or StatusLimitReached
}

// ChangeResult is the outcome of an incremental run.
type ChangeResult struct {
	Added    int
	Removed  int
	Modified int
	Status   Status
}

// SearchHit is one ranked span returned to callers.
type SearchHit struct {
	Content      string
	RelativePath string
	StartLine    int
	EndLine      int
	Language     string
	Score        float64 // similarity in [0,1]
}

// SearchOptions configures SemanticSearch.
type SearchOptions struct {
	TopK       int     // default 10
	Threshold  float64 // drop hits below this similarity (default 0.3)
	FilterExpr string  // store filter grammar, optional
}

// Orchestrator drives indexing and search for codebases.
type Orchestrator struct {
	mu       sync.Mutex
	cfg      *config.Config
	reg      *registry.Registry
	provider embed.Provider
	split    splitter.Splitter
	states   *stateTracker

	// One store stays open per session; opening another codebase closes
	// the previous store to bound open file descriptors.
	openID    string
	openStore *vectorstore.Store
}

// New creates an orchestrator.
func New(cfg *config.Config, reg *registry.Registry, provider embed.Provider, split splitter.Splitter) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		reg:      reg,
		provider: provider,
		split:    split,
		states:   newStateTracker(),
	}
}

// SetEmbedder replaces the embedding provider. Takes effect on subsequent
// operations only.
func (o *Orchestrator) SetEmbedder(p embed.Provider) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provider = p
}

// SetSplitter replaces the code splitter. Takes effect on subsequent
// operations only.
func (o *Orchestrator) SetSplitter(s splitter.Splitter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.split = s
}

// SetConfig replaces the configuration. Takes effect on subsequent
// operations only.
func (o *Orchestrator) SetConfig(cfg *config.Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

// Status returns the observable state of a codebase.
func (o *Orchestrator) Status(path string) Status {
	return o.states.get(o.reg.IDFor(path))
}

// Close closes the open store.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closeStoreLocked()
}

func (o *Orchestrator) closeStoreLocked() error {
	if o.openStore == nil {
		return nil
	}
	err := o.openStore.Close()
	o.openStore = nil
	o.openID = ""
	return err
}

// store returns the open store for path, closing any store belonging to
// another codebase first.
func (o *Orchestrator) store(path string) (*vectorstore.Store, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.reg.IDFor(path)
	if o.openStore != nil && o.openID == id {
		return o.openStore, id, nil
	}
	if err := o.closeStoreLocked(); err != nil {
		slog.Warn("failed to close previous store", slog.String("error", err.Error()))
	}

	dbPath, err := o.reg.DBPathFor(path)
	if err != nil {
		return nil, "", err
	}
	st, err := vectorstore.Open(dbPath)
	if err != nil {
		return nil, "", ctxerr.StoreError(fmt.Sprintf("failed to open store for %s", path), err)
	}
	o.openStore = st
	o.openID = id
	return st, id, nil
}

// HasIndex reports whether a collection exists for the codebase.
func (o *Orchestrator) HasIndex(ctx context.Context, path string) (bool, error) {
	st, id, err := o.store(path)
	if err != nil {
		return false, err
	}
	return st.HasCollection(ctx, id)
}

// ClearIndex drops the collection and removes the store file, snapshot,
// and path mapping for the codebase.
func (o *Orchestrator) ClearIndex(ctx context.Context, path string, cb ProgressFunc) error {
	id := o.reg.IDFor(path)
	if !o.states.acquireWriter(id) {
		return ctxerr.Busy(path)
	}
	defer o.states.releaseWriter(id)

	o.states.set(id, StatusClearing)
	reporter := newProgressReporter(cb)
	reporter.report("clearing", 0, 1)

	st, id, err := o.store(path)
	if err != nil {
		o.states.set(id, StatusFailed)
		return err
	}
	if err := st.DropCollection(ctx, id); err != nil {
		o.states.set(id, StatusFailed)
		return err
	}

	// Close before deleting the file underneath SQLite.
	o.mu.Lock()
	_ = o.closeStoreLocked()
	o.mu.Unlock()

	if err := o.reg.Remove(path); err != nil {
		o.states.set(id, StatusFailed)
		return err
	}

	o.states.set(id, StatusAbsent)
	reporter.report("clearing", 1, 1)
	return nil
}

// SemanticSearch embeds the query and returns ranked spans. Hits below the
// threshold are dropped. Searching a codebase without a collection returns
// a NotIndexed error.
func (o *Orchestrator) SemanticSearch(ctx context.Context, path, query string, opts SearchOptions) ([]SearchHit, error) {
	if opts.TopK <= 0 {
		opts.TopK = config.DefaultSearchTopK
	}
	if opts.Threshold == 0 {
		opts.Threshold = config.DefaultSearchThreshold
	}

	st, id, err := o.store(path)
	if err != nil {
		return nil, err
	}

	exists, err := st.HasCollection(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ctxerr.NotIndexed(path)
	}

	o.mu.Lock()
	provider := o.provider
	o.mu.Unlock()

	vectors, err := provider.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	storeOpts := vectorstore.SearchOptions{TopK: opts.TopK, FilterExpr: opts.FilterExpr}
	var results []*vectorstore.SearchResult
	if strings.TrimSpace(query) != "" {
		results, err = st.HybridSearch(ctx, id, vectorstore.HybridQuery{Vector: vectors[0], Text: query}, storeOpts)
	} else {
		results, err = st.Search(ctx, id, vectors[0], storeOpts)
	}
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		score := 1 - r.Distance
		score = math.Max(0, math.Min(1, score))
		if score < opts.Threshold {
			continue
		}
		hits = append(hits, SearchHit{
			Content:      r.Content,
			RelativePath: r.RelativePath,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Language:     r.Metadata[splitter.MetaLanguage],
			Score:        score,
		})
	}
	return hits, nil
}

// synchronizer builds the file synchronizer for a codebase root.
func (o *Orchestrator) synchronizer(root string) (*merkle.Synchronizer, error) {
	o.mu.Lock()
	cfg := o.cfg
	o.mu.Unlock()

	engine, err := ignore.NewEngine(root, ignore.Options{
		CustomPatterns:   cfg.Ignore.CustomPatterns,
		CustomExtensions: cfg.Ignore.CustomExtensions,
	})
	if err != nil {
		return nil, err
	}
	return merkle.NewSynchronizer(engine, cfg.Index.MaxFileSize, 0), nil
}

// dimension resolves the collection dimension: the configuration override
// wins, then the provider's reported dimension, with a one-batch probe for
// providers that detect lazily. Unknown dimension is a configuration error.
func (o *Orchestrator) dimension(ctx context.Context) (int, error) {
	o.mu.Lock()
	cfg := o.cfg
	provider := o.provider
	o.mu.Unlock()

	if cfg.Embedding.Dimensions > 0 {
		return cfg.Embedding.Dimensions, nil
	}
	if d := provider.Dimensions(); d > 0 {
		return d, nil
	}

	// Providers that learn their dimension on first use get one probe.
	if vectors, err := provider.EmbedBatch(ctx, []string{"dimension probe"}); err == nil && len(vectors) == 1 {
		if d := len(vectors[0]); d > 0 {
			return d, nil
		}
	}

	return 0, ctxerr.New(ctxerr.ErrCodeDimensionUnknown,
		fmt.Sprintf("provider %s reports unknown dimension and no override is configured", provider.ProviderName()), nil)
}
