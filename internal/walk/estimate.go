package walk

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
)

// Estimate counts the files Walk would visit, using fastwalk's parallel
// traversal. Order is irrelevant for a count, so this is much faster than
// the deterministic walk and is used to give progress output a total.
// Unreadable directories are skipped silently.
func Estimate(ctx context.Context, root string, opts Options) (int64, error) {
	if root == "" {
		root = "."
	}

	root = filepath.Clean(root)

	excludes, err := compileExcludes(opts.Excludes)
	if err != nil {
		return 0, err
	}

	suffixes := newSuffixFilter(opts.Extensions)

	conf := &fastwalk.Config{
		Follow: opts.FollowSymlinks,
	}

	var count atomic.Int64

	//nolint:varnamelen // d is standard for DirEntry
	walkErr := fastwalk.Walk(conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // Intentionally skip errors during estimate
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if path == root {
			return nil
		}

		if shouldExcludeByPattern(path, excludes) != nil {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		currentDepth := calculateDepth(path, root)

		if d.IsDir() {
			if opts.Depth > 0 && currentDepth >= opts.Depth {
				return filepath.SkipDir
			}

			return nil
		}

		if opts.Depth > 0 && currentDepth > opts.Depth {
			return nil
		}

		if suffixes.match(path) {
			count.Add(1)
		}

		return nil
	})
	if walkErr != nil {
		return count.Load(), walkErr
	}

	return count.Load(), nil
}
