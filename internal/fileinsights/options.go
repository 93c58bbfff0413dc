package fileinsights

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/extract"
	"github.com/idelchi/fileinsights/internal/metrics"
)

// DefaultExcludes contains the default exclusion patterns.
//
//nolint:gochecknoglobals // Config constant
var DefaultExcludes = []string{
	`(^|/)\.git(/|$)`,
	`(^|/)\.svn(/|$)`,
	`(^|/)\.hg(/|$)`,
	`(^|/)node_modules(/|$)`,
	`(^|/)__pycache__(/|$)`,
	`(^|/)venv(/|$)`,
}

// DefaultStoreLimit is the default number of records read back from the store.
const DefaultStoreLimit = 1000

// Options configures both flows. Fields only meaningful to one flow are
// ignored by the other.
type Options struct {
	// Root is the directory to scan.
	Root string
	// Video enables video metadata extraction.
	Video bool
	// Prober extracts video metadata. Nil uses ffprobe from PATH.
	Prober extract.Prober
	// Excludes contains regex patterns to exclude.
	Excludes []string
	// Extensions restricts the records to these extensions (empty = all).
	Extensions []string
	// VideoOnly restricts the records to successfully probed videos.
	VideoOnly bool
	// MinSize is the minimum file size in bytes.
	MinSize int64
	// Depth is the maximum traversal depth (0=unlimited, 1=root only).
	Depth int
	// FollowSymlinks descends into symlinked directories.
	FollowSymlinks bool
	// Workers is the number of concurrent extractions.
	Workers int
	// TopN is the number of largest files reported.
	TopN int

	// Persist mirrors scanned records into the store.
	Persist bool
	// DSN is the store connection string (empty = DATABASE_URL).
	DSN string
	// Rebuild drops and recreates the store table before saving.
	Rebuild bool
	// BatchSize is the number of records per store transaction.
	BatchSize int
	// Limit caps the records read from the store (0 = unlimited).
	Limit int

	// Progress receives (files, bytes) every ProgressInterval during a scan.
	Progress func(files, bytes int64)
	// ProgressInterval controls progress callback cadence.
	ProgressInterval time.Duration
	// Debug enables SQL logging in the store.
	Debug bool
	// Logger receives diagnostics. Nil disables logging.
	Logger *zap.Logger
	// Metrics counts activity when set.
	Metrics *metrics.Collector
	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// validate checks the options shared by both flows.
func (o Options) validate() error {
	switch {
	case o.Depth < 0:
		return errors.New("depth cannot be negative")
	case o.Workers < 0:
		return errors.New("workers cannot be negative")
	case o.MinSize < 0:
		return errors.New("min-size cannot be negative")
	case o.Limit < 0:
		return fmt.Errorf("limit cannot be negative: %d", o.Limit)
	}

	return nil
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}

	return time.Now()
}
