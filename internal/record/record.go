// Package record defines the per-file attribute bundle produced by a scan.
package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind discriminates the three shapes a FileRecord can take.
type Kind string

const (
	// KindRegular is a file whose filesystem metadata was read.
	KindRegular Kind = "regular"
	// KindVideo is a file with probed video metadata.
	KindVideo Kind = "video"
	// KindUnreadable is a file whose extraction failed; Error holds the reason.
	KindUnreadable Kind = "unreadable"
)

// Unknown is used for codecs the probe could not name.
const Unknown = "unknown"

// VideoMetadata holds the probed properties of a video file.
type VideoMetadata struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FPS             float64 `json:"fps"`
	VideoCodec      string  `json:"video_codec"`
	AudioCodec      string  `json:"audio_codec"`
}

// Resolution returns "WxH".
func (v VideoMetadata) Resolution() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// FileRecord is one scanned file. Records are values and are never mutated
// after construction; a re-scan produces a new record for the same path.
type FileRecord struct {
	Path       string         `json:"path"`
	SizeBytes  int64          `json:"size_bytes"`
	Extension  string         `json:"extension"`
	ModifiedAt time.Time      `json:"modified_at"`
	Kind       Kind           `json:"kind"`
	Video      *VideoMetadata `json:"video,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// NewRegular builds a regular record.
func NewRegular(path string, size int64, modified time.Time) FileRecord {
	return FileRecord{
		Path:       path,
		SizeBytes:  size,
		Extension:  Ext(path),
		ModifiedAt: modified,
		Kind:       KindRegular,
	}
}

// NewVideo builds a video record. Empty codec names become Unknown.
func NewVideo(path string, size int64, modified time.Time, meta VideoMetadata) FileRecord {
	if meta.VideoCodec == "" {
		meta.VideoCodec = Unknown
	}

	if meta.AudioCodec == "" {
		meta.AudioCodec = Unknown
	}

	r := NewRegular(path, size, modified)
	r.Kind = KindVideo
	r.Video = &meta

	return r
}

// NewUnreadable builds an unreadable record, keeping whatever size and
// modification time were gathered before the failure.
func NewUnreadable(path string, size int64, modified time.Time, reason string) FileRecord {
	r := NewRegular(path, size, modified)
	r.Kind = KindUnreadable
	r.Error = reason

	return r
}

// Ext returns the lowercase extension of path including the leading dot.
// Names whose only dot is the leading one (".bashrc") and names ending in
// a dot have no extension.
func Ext(path string) string {
	name := filepath.Base(path)

	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[i:])
}

// Validate checks the kind/payload invariant.
func (r FileRecord) Validate() error {
	if r.Path == "" {
		return errors.New("empty path")
	}

	if r.SizeBytes < 0 {
		return fmt.Errorf("%s: negative size %d", r.Path, r.SizeBytes)
	}

	switch r.Kind {
	case KindRegular:
		if r.Video != nil || r.Error != "" {
			return fmt.Errorf("%s: regular record carries video metadata or error", r.Path)
		}
	case KindVideo:
		if r.Video == nil || r.Error != "" {
			return fmt.Errorf("%s: video record without metadata or with error", r.Path)
		}
	case KindUnreadable:
		if r.Error == "" || r.Video != nil {
			return fmt.Errorf("%s: unreadable record without reason or with video metadata", r.Path)
		}
	default:
		return fmt.Errorf("%s: unknown kind %q", r.Path, r.Kind)
	}

	return nil
}

// Equal reports whether two records match field by field.
// Modification times are compared with time.Equal.
func (r FileRecord) Equal(o FileRecord) bool {
	if r.Path != o.Path || r.SizeBytes != o.SizeBytes || r.Extension != o.Extension ||
		r.Kind != o.Kind || r.Error != o.Error || !r.ModifiedAt.Equal(o.ModifiedAt) {
		return false
	}

	if (r.Video == nil) != (o.Video == nil) {
		return false
	}

	return r.Video == nil || *r.Video == *o.Video
}
