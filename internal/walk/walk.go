package walk

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/idelchi/fileinsights/internal/logging"
	"github.com/idelchi/fileinsights/internal/record"
)

// Extractor turns a path into a record. It must not fail.
type Extractor interface {
	Extract(ctx context.Context, path string) record.FileRecord
}

// Options configures a walk.
type Options struct {
	// Excludes contains regex patterns matched against slash paths.
	// Matching directories are pruned, matching files skipped.
	Excludes []string
	// Extensions are suffixes to include (empty = all). A '!' prefix excludes.
	Extensions []string
	// MinSize drops readable files smaller than this many bytes.
	MinSize int64
	// Depth is the maximum traversal depth (0=unlimited, 1=root only).
	Depth int
	// FollowSymlinks descends into symlinked directories. Cycles back to an
	// ancestor are always detected and skipped.
	FollowSymlinks bool
	// Workers is the number of concurrent extractions (<=1 = sequential).
	Workers int
	// Progress receives (files, bytes) every ProgressInterval.
	Progress func(files, bytes int64)
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// Logger receives warnings and debug output. Nil disables logging.
	Logger *zap.Logger
}

// Scan is a prepared walk. Its record sequence can be iterated once.
type Scan struct {
	ctx       context.Context //nolint:containedctx // The sequence is driven by the caller's range loop.
	root      string
	rootInfo  fs.FileInfo
	rootItems []fs.DirEntry
	opts      Options
	excludes  []*regexp.Regexp
	suffixes  suffixFilter
	extractor Extractor
	log       *zap.Logger

	progress counter
	warnings []DirectoryWarning
	err      error
	used     bool
}

// Walk validates root and prepares a scan of it. Failure to stat or list
// the root itself is returned as a *RootAccessError; every other problem is
// recorded per file or per directory while iterating.
func Walk(ctx context.Context, root string, extractor Extractor, opts Options) (*Scan, error) {
	if root == "" {
		root = "."
	}

	root = filepath.Clean(root)

	excludes, err := compileExcludes(opts.Excludes)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &RootAccessError{Root: root, Err: err}
	}

	if !info.IsDir() {
		return nil, &RootAccessError{Root: root, Err: ErrNotDirectory}
	}

	items, err := os.ReadDir(root)
	if err != nil {
		return nil, &RootAccessError{Root: root, Err: err}
	}

	return &Scan{
		ctx:       ctx,
		root:      root,
		rootInfo:  info,
		rootItems: items,
		opts:      opts,
		excludes:  excludes,
		suffixes:  newSuffixFilter(opts.Extensions),
		extractor: extractor,
		log:       logging.OrNop(opts.Logger),
	}, nil
}

// Root returns the cleaned root path.
func (s *Scan) Root() string { return s.root }

// Warnings returns the directories that were skipped. Valid after iteration.
func (s *Scan) Warnings() []DirectoryWarning { return s.warnings }

// Err reports why iteration stopped early: the context error when the walk
// was cancelled between files, or ErrConsumed on a second iteration.
func (s *Scan) Err() error { return s.err }

// Records returns the lazy record sequence. Breaking out of the range loop
// stops traversal and waits for in-flight extractions.
func (s *Scan) Records() iter.Seq[record.FileRecord] {
	return func(yield func(record.FileRecord) bool) {
		if s.used {
			s.err = ErrConsumed

			return
		}

		s.used = true

		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		startProgressReporter(ctx, &s.progress, s.opts.Progress, s.opts.ProgressInterval)

		emit := func(r record.FileRecord) bool {
			if s.opts.MinSize > 0 && r.Kind != record.KindUnreadable && r.SizeBytes < s.opts.MinSize {
				return true
			}

			s.progress.add(r.SizeBytes)

			return yield(r)
		}

		var completed bool
		if s.opts.Workers > 1 {
			completed = s.parallel(ctx, emit)
		} else {
			completed = s.walkDir(ctx, s.root, s.rootItems, []fs.FileInfo{s.rootInfo}, 1, func(path string) bool {
				r := s.extractor.Extract(ctx, path)
				// A probe interrupted by cancellation is not a per-file failure.
				if ctx.Err() != nil {
					return false
				}

				return emit(r)
			})
		}

		if !completed && s.ctx.Err() != nil {
			s.err = s.ctx.Err()
		}
	}
}

// parallel runs traversal on one goroutine and extraction on up to
// opts.Workers goroutines. Each visited path reserves a result slot in a
// FIFO, so records are emitted in traversal order.
func (s *Scan) parallel(ctx context.Context, emit func(record.FileRecord) bool) bool {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan chan record.FileRecord, 2*s.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers + 1) // +1 for the traversal goroutine

	completed := false

	g.Go(func() error {
		defer close(slots)

		completed = s.walkDir(gctx, s.root, s.rootItems, []fs.FileInfo{s.rootInfo}, 1, func(path string) bool {
			slot := make(chan record.FileRecord, 1)

			select {
			case slots <- slot:
			case <-gctx.Done():
				return false
			}

			g.Go(func() error {
				slot <- s.extractor.Extract(gctx, path)

				return nil
			})

			return true
		})

		return nil
	})

	stopped := false

	for slot := range slots {
		if stopped {
			continue
		}

		r := <-slot
		if ctx.Err() != nil {
			stopped = true

			continue
		}

		if !emit(r) {
			stopped = true

			cancel()
		}
	}

	_ = g.Wait()

	return completed && !stopped
}

// walkDir visits the entries of dir in order. ancestors holds the stat
// results of dir and every directory above it. It returns false when the
// walk must stop.
func (s *Scan) walkDir(
	ctx context.Context,
	dir string,
	entries []fs.DirEntry,
	ancestors []fs.FileInfo,
	depth int,
	visit func(path string) bool,
) bool {
	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}

		path := filepath.Join(dir, entry.Name())

		if re := shouldExcludeByPattern(path, s.excludes); re != nil {
			s.log.Debug("excluding path", zap.String("path", filepath.ToSlash(path)), zap.String("regex", re.String()))

			continue
		}

		switch kind, info := s.classify(path, entry); kind {
		case entrySkip:
			continue
		case entryDir:
			if s.opts.Depth > 0 && depth >= s.opts.Depth {
				s.log.Debug("skipping directory beyond depth", zap.String("path", path), zap.Int("depth", s.opts.Depth))

				continue
			}

			if !s.descend(ctx, path, info, ancestors, depth, visit) {
				return false
			}

			continue
		case entryFile:
			// extracted below
		}

		if !s.suffixes.match(path) {
			continue
		}

		if !visit(path) {
			return false
		}
	}

	return true
}

type entryKind int

const (
	entryFile entryKind = iota
	entryDir
	entrySkip
)

// classify decides how an entry is walked. Symlinks to directories are
// walked only when FollowSymlinks is set and are otherwise skipped; broken
// links and links to files are extracted as files. For directories the
// returned info is the stat result of the directory itself.
func (s *Scan) classify(path string, entry fs.DirEntry) (entryKind, fs.FileInfo) {
	switch {
	case entry.IsDir():
		info, err := entry.Info()
		if err != nil {
			s.warn(path, err)

			return entrySkip, nil
		}

		return entryDir, info
	case entry.Type()&fs.ModeSymlink != 0:
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return entryFile, nil
		}

		if !s.opts.FollowSymlinks {
			s.log.Debug("not following directory symlink", zap.String("path", path))

			return entrySkip, nil
		}

		return entryDir, info
	default:
		return entryFile, nil
	}
}

func (s *Scan) descend(
	ctx context.Context,
	path string,
	info fs.FileInfo,
	ancestors []fs.FileInfo,
	depth int,
	visit func(path string) bool,
) bool {
	for _, a := range ancestors {
		if os.SameFile(a, info) {
			s.warn(path, ErrSymlinkCycle)

			return true
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.warn(path, err)

		return true
	}

	return s.walkDir(ctx, path, entries, append(ancestors[:len(ancestors):len(ancestors)], info), depth+1, visit)
}

func (s *Scan) warn(path string, err error) {
	s.log.Warn("skipping directory", zap.String("path", path), zap.Error(err))
	s.warnings = append(s.warnings, DirectoryWarning{Path: path, Err: err})
}
