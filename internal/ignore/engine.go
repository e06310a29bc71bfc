package ignore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// matcherCacheSize bounds the number of cached per-directory gitignore
// matchers in long-running server processes.
const matcherCacheSize = 1000

// Options configures an Engine.
type Options struct {
	// CustomPatterns are user-supplied gitignore-style patterns, applied
	// after defaults and workspace files (so they override both).
	CustomPatterns []string

	// CustomExtensions extends the built-in extension allowlist.
	CustomExtensions []string

	// DisableDefaults drops the built-in patterns (tests only).
	DisableDefaults bool
}

// Engine merges built-in defaults, workspace .gitignore files, and user
// overrides into a single matcher. Include is safe for concurrent use.
type Engine struct {
	root       string
	builtin    *Matcher
	custom     *Matcher
	extensions map[string]struct{}

	// workspace caches the merged matcher of .gitignore files discovered on
	// the path from the root down to a directory.
	workspace *lru.Cache[string, *Matcher]
}

// NewEngine creates an engine for the codebase rooted at root.
func NewEngine(root string, opts Options) (*Engine, error) {
	cache, err := lru.New[string, *Matcher](matcherCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create matcher cache: %w", err)
	}

	builtin := NewMatcher()
	if !opts.DisableDefaults {
		for _, p := range DefaultPatterns {
			builtin.AddPattern(p)
		}
	}

	custom := NewMatcher()
	for _, p := range opts.CustomPatterns {
		custom.AddPattern(p)
	}

	exts := make(map[string]struct{}, len(DefaultExtensions)+len(opts.CustomExtensions))
	for _, e := range DefaultExtensions {
		exts[normalizeExt(e)] = struct{}{}
	}
	for _, e := range opts.CustomExtensions {
		exts[normalizeExt(e)] = struct{}{}
	}

	return &Engine{
		root:       root,
		builtin:    builtin,
		custom:     custom,
		extensions: exts,
		workspace:  cache,
	}, nil
}

// Include reports whether a forward-slash relative path should be indexed.
// Directories return true unless ignored, so walkers can descend; files
// additionally pass the extension allowlist.
//
// Sources are layered in order: built-in defaults, workspace .gitignore
// files, user patterns. A match in a later source overrides earlier ones,
// so a user negation can resurrect a path the defaults exclude.
func (e *Engine) Include(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return true
	}

	ignored := false
	if matched, ig := e.builtin.Decide(relPath, isDir); matched {
		ignored = ig
	}
	if m := e.workspaceMatcher(relPath); m != nil {
		if matched, ig := m.Decide(relPath, isDir); matched {
			ignored = ig
		}
	}
	if matched, ig := e.custom.Decide(relPath, isDir); matched {
		ignored = ig
	}
	if ignored {
		return false
	}

	if !isDir {
		ext := strings.ToLower(filepath.Ext(relPath))
		if _, ok := e.extensions[ext]; !ok {
			return false
		}
	}
	return true
}

// workspaceMatcher returns the merged matcher of all .gitignore files on
// the path from the root down to relPath's directory.
func (e *Engine) workspaceMatcher(relPath string) *Matcher {
	dir := filepath.ToSlash(filepath.Dir(relPath))
	if dir == "." {
		dir = ""
	}

	if m, ok := e.workspace.Get(dir); ok {
		return m
	}

	m := NewMatcher()
	// Root .gitignore first, then nested ones with their base prefix.
	segments := []string{""}
	if dir != "" {
		parts := strings.Split(dir, "/")
		for i := range parts {
			segments = append(segments, strings.Join(parts[:i+1], "/"))
		}
	}
	for _, seg := range segments {
		giPath := filepath.Join(e.root, filepath.FromSlash(seg), ".gitignore")
		if _, err := os.Stat(giPath); err != nil {
			continue
		}
		_ = m.AddFromFile(giPath, seg)
	}

	e.workspace.Add(dir, m)
	return m
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
