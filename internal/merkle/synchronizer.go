package merkle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tan-yong-sheng/code-context/internal/ignore"
)

// Synchronizer walks a codebase under the ignore rules and computes
// per-file content hashes.
type Synchronizer struct {
	ignore      *ignore.Engine
	maxFileSize int64
	workers     int
}

// NewSynchronizer creates a synchronizer. maxFileSize of 0 means no limit;
// workers of 0 means NumCPU.
func NewSynchronizer(engine *ignore.Engine, maxFileSize int64, workers int) *Synchronizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Synchronizer{
		ignore:      engine,
		maxFileSize: maxFileSize,
		workers:     workers,
	}
}

// Walk discovers included files under root and returns their tree.
// Hashing runs on a bounded worker pool; file reads stream through the
// hasher without loading whole files.
func (s *Synchronizer) Walk(ctx context.Context, root string) (*Tree, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // skip entries we cannot access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && !s.ignore.Include(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !s.ignore.Include(relPath, false) {
			return nil
		}
		if s.maxFileSize > 0 {
			if info, err := d.Info(); err != nil || info.Size() > s.maxFileSize {
				return nil
			}
		}

		paths = append(paths, relPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	hashes := make(map[string]string, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, relPath := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			hash, err := HashFile(filepath.Join(absRoot, filepath.FromSlash(relPath)))
			if err != nil {
				// Files can disappear mid-walk; skip rather than fail the run.
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			mu.Lock()
			hashes[relPath] = hash
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	return Build(hashes), nil
}

// HashFile streams a file through SHA-256 and returns the hex digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
