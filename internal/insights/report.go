package insights

import (
	"strconv"
	"time"
)

// Fixed2 is a float serialised with exactly two decimals.
type Fixed2 float64

// MarshalJSON implements json.Marshaler.
func (f Fixed2) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 2, 64), nil
}

// Fixed3 is a float serialised with exactly three decimals.
type Fixed3 float64

// MarshalJSON implements json.Marshaler.
func (f Fixed3) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 3, 64), nil
}

// Bucket is one histogram bin.
type Bucket struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// ExtensionStat represents statistics for a file extension.
type ExtensionStat struct {
	// Extension is lowercase with a leading dot; empty for files without one.
	Extension string `json:"extension"`
	// Count is the number of files with this extension.
	Count int64 `json:"count"`
	// Bytes is the cumulative size in bytes.
	Bytes int64 `json:"bytes"`
	// Percentage is the share of the total bytes.
	Percentage Fixed2 `json:"percentage"`
}

// FileRef identifies a single file in a report.
type FileRef struct {
	Path       string    `json:"path"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Resolution is an average frame size.
type Resolution struct {
	Width  Fixed2 `json:"width"`
	Height Fixed2 `json:"height"`
}

// Report is the aggregate over a set of records. Field order is the
// serialisation order.
type Report struct {
	TotalFiles       int64  `json:"total_files"`
	TotalBytes       int64  `json:"total_bytes"`
	AverageSizeBytes Fixed2 `json:"average_size_bytes"`
	// TotalDirectories counts directories holding at least one reported file.
	TotalDirectories  int64            `json:"total_directories"`
	CountsByExtension map[string]int64 `json:"counts_by_extension"`
	Extensions        []ExtensionStat  `json:"extensions"`
	SizeHistogram     []Bucket         `json:"size_histogram"`
	AgeHistogram      []Bucket         `json:"age_histogram"`
	OldestFile        *FileRef         `json:"oldest_file,omitempty"`
	NewestFile        *FileRef         `json:"newest_file,omitempty"`
	LargestFiles      []FileRef        `json:"largest_files"`
	// LargestDirectories ranks directories by the size of their direct files.
	LargestDirectories   []DirRef `json:"largest_directories"`
	ExtractionErrorCount int64    `json:"extraction_error_count"`
	VideoCount           int64    `json:"video_count"`
	TotalVideoDuration   Fixed3   `json:"total_video_duration_seconds"`
	AverageVideoDuration Fixed3   `json:"average_video_duration_seconds"`
	// AverageResolution is nil when VideoCount is zero.
	AverageResolution *Resolution      `json:"average_resolution,omitempty"`
	ResolutionCounts  map[string]int64 `json:"resolution_counts"`
	VideoCodecCounts  map[string]int64 `json:"video_codec_counts"`
}
