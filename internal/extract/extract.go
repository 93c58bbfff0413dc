// Package extract turns a file path into a record.FileRecord.
//
// Extraction never fails: every problem is captured in the returned record
// as KindUnreadable with a human-readable reason.
package extract

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/logging"
	"github.com/idelchi/fileinsights/internal/record"
)

// Reasons recorded on unreadable records.
const (
	ReasonVanished         = "vanished during scan"
	ReasonBrokenLink       = "broken link"
	ReasonPermissionDenied = "permission denied"
	ReasonIsDirectory      = "is a directory"
	ReasonProbePrefix      = "probe failed: "
)

// Prober reads video metadata from a file.
type Prober interface {
	Probe(ctx context.Context, path string) (record.VideoMetadata, error)
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, path string) (record.VideoMetadata, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, path string) (record.VideoMetadata, error) {
	return f(ctx, path)
}

// videoExtensions is the set of extensions handed to the Prober.
//
//nolint:gochecknoglobals // Lookup table
var videoExtensions = map[string]struct{}{
	".mkv":  {},
	".mp4":  {},
	".avi":  {},
	".m4v":  {},
	".mov":  {},
	".wmv":  {},
	".flv":  {},
	".webm": {},
	".ts":   {},
	".m2ts": {},
	".mpg":  {},
	".mpeg": {},
	".vob":  {},
	".ogv":  {},
	".3gp":  {},
}

// IsVideoExt reports whether ext (lowercase, with dot) is a known video extension.
func IsVideoExt(ext string) bool {
	_, ok := videoExtensions[ext]

	return ok
}

// Options configures an Extractor.
type Options struct {
	// Video enables probing of files with a video extension.
	Video bool
	// Prober is required when Video is set.
	Prober Prober
	// Logger receives debug output. Nil disables logging.
	Logger *zap.Logger
}

// Extractor gathers file attributes.
type Extractor struct {
	video  bool
	prober Prober
	log    *zap.Logger
}

// New creates an Extractor. Video probing is silently disabled when no
// Prober is configured.
func New(opts Options) *Extractor {
	return &Extractor{
		video:  opts.Video && opts.Prober != nil,
		prober: opts.Prober,
		log:    logging.OrNop(opts.Logger),
	}
}

// Extract reads the attributes of path. Symlinks are followed once.
func (e *Extractor) Extract(ctx context.Context, path string) record.FileRecord {
	info, err := os.Lstat(path)
	if err != nil {
		return record.NewUnreadable(path, 0, time.Time{}, reason(err))
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return record.NewUnreadable(path, 0, info.ModTime(), ReasonBrokenLink)
			}

			return record.NewUnreadable(path, 0, info.ModTime(), reason(err))
		}

		info = target
	}

	if info.IsDir() {
		return record.NewUnreadable(path, 0, info.ModTime(), ReasonIsDirectory)
	}

	size, modified := info.Size(), info.ModTime()

	// Opening FIFOs and devices can block, so only regular files are checked.
	if info.Mode().IsRegular() {
		f, err := os.Open(path)
		if err != nil {
			return record.NewUnreadable(path, size, modified, reason(err))
		}

		_ = f.Close()
	}

	if !e.video || !IsVideoExt(record.Ext(path)) {
		return record.NewRegular(path, size, modified)
	}

	meta, err := e.prober.Probe(ctx, path)
	if err != nil {
		e.log.Debug("probe failed", zap.String("path", path), zap.Error(err))

		return record.NewUnreadable(path, size, modified, ReasonProbePrefix+err.Error())
	}

	return record.NewVideo(path, size, modified, meta)
}

func reason(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ReasonVanished
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	default:
		return err.Error()
	}
}
