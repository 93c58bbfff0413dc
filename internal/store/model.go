package store

import (
	"time"

	"github.com/idelchi/fileinsights/internal/record"
)

// fileRow is the persisted shape of a record.FileRecord. Video metadata is
// denormalised into nullable columns of the same row.
type fileRow struct {
	Path            string    `gorm:"primaryKey;column:path"`
	SizeBytes       int64     `gorm:"column:size_bytes;not null"`
	Extension       string    `gorm:"column:extension;index;not null"`
	ModifiedAt      time.Time `gorm:"column:modified_at;not null"`
	ModifiedAtNanos int       `gorm:"column:modified_at_nanos;not null;default:0"`
	Kind            string    `gorm:"column:kind;index;not null"`
	DurationSeconds *float64  `gorm:"column:duration_seconds"`
	Width           *int      `gorm:"column:width"`
	Height          *int      `gorm:"column:height"`
	FPS             *float64  `gorm:"column:fps"`
	VideoCodec      *string   `gorm:"column:video_codec"`
	AudioCodec      *string   `gorm:"column:audio_codec"`
	Error           *string   `gorm:"column:error"`
	ScanID          string    `gorm:"column:scan_id;index"`
	ScannedAt       time.Time `gorm:"column:scanned_at"`
}

// TableName returns the table name for fileRow.
func (fileRow) TableName() string {
	return "files"
}

// Timestamp precision shared by every supported dialect. The modification
// time keeps the remainder below it in modified_at_nanos.
const timePrecision = time.Microsecond

func newRow(r record.FileRecord, scanID string, scannedAt time.Time) fileRow {
	modified := r.ModifiedAt.UTC()

	row := fileRow{
		Path:            r.Path,
		SizeBytes:       r.SizeBytes,
		Extension:       r.Extension,
		ModifiedAt:      modified.Truncate(timePrecision),
		ModifiedAtNanos: modified.Nanosecond() % int(timePrecision),
		Kind:            string(r.Kind),
		ScanID:          scanID,
		ScannedAt:       scannedAt.UTC().Truncate(timePrecision),
	}

	if v := r.Video; v != nil {
		row.DurationSeconds = &v.DurationSeconds
		row.Width = &v.Width
		row.Height = &v.Height
		row.FPS = &v.FPS
		row.VideoCodec = &v.VideoCodec
		row.AudioCodec = &v.AudioCodec
	}

	if r.Error != "" {
		row.Error = &r.Error
	}

	return row
}

func (row fileRow) record() record.FileRecord {
	r := record.FileRecord{
		Path:       row.Path,
		SizeBytes:  row.SizeBytes,
		Extension:  row.Extension,
		ModifiedAt: row.ModifiedAt.UTC().Truncate(timePrecision).Add(time.Duration(row.ModifiedAtNanos)),
		Kind:       record.Kind(row.Kind),
	}

	if r.Kind == record.KindVideo {
		r.Video = &record.VideoMetadata{
			DurationSeconds: deref(row.DurationSeconds),
			Width:           deref(row.Width),
			Height:          deref(row.Height),
			FPS:             deref(row.FPS),
			VideoCodec:      derefOr(row.VideoCodec, record.Unknown),
			AudioCodec:      derefOr(row.AudioCodec, record.Unknown),
		}
	}

	if row.Error != nil {
		r.Error = *row.Error
	}

	return r
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}

	return *p
}
