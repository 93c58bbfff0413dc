// Package emit renders insight reports as JSON documents or human-readable
// tables.
package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/idelchi/fileinsights/internal/insights"
	"github.com/idelchi/fileinsights/internal/walk"
)

// SchemaVersion identifies the JSON document layout.
const SchemaVersion = "fileinsights/v1"

// MaxWarnings caps the warning sample carried in a Document.
const MaxWarnings = 20

// Source says where the records of a report came from.
type Source string

const (
	// SourceScan is a live directory walk.
	SourceScan Source = "scan"
	// SourceStore is a query against the persistence store.
	SourceStore Source = "store"
)

// Format selects the output rendering.
type Format string

const (
	// FormatJSON renders the indented JSON document.
	FormatJSON Format = "json"
	// FormatTable renders aligned text.
	FormatTable Format = "table"
)

// Formats lists the accepted formats.
//
//nolint:gochecknoglobals // Config constant
var Formats = []Format{FormatTable, FormatJSON}

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("invalid output format %q: must be one of %v", s, Formats)
	}

	return f, nil
}

// Warnings is a capped sample of directory warnings plus the total count.
type Warnings struct {
	Total  int      `json:"total"`
	Sample []string `json:"sample"`
}

// NewWarnings keeps the first MaxWarnings of ws.
func NewWarnings(ws []walk.DirectoryWarning) Warnings {
	sample := make([]string, 0, min(len(ws), MaxWarnings))
	for _, w := range ws[:min(len(ws), MaxWarnings)] {
		sample = append(sample, w.String())
	}

	return Warnings{Total: len(ws), Sample: sample}
}

// Document is a report together with the metadata describing how it was
// produced. Field order is the serialisation order.
type Document struct {
	SchemaVersion    string          `json:"schema_version"`
	Source           Source          `json:"source"`
	Root             string          `json:"root,omitempty"`
	ScanID           string          `json:"scan_id,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
	NoMatches        bool            `json:"no_matches"`
	PersistenceError string          `json:"persistence_error,omitempty"`
	Warnings         Warnings        `json:"warnings"`
	Report           insights.Report `json:"report"`
}

// NewDocument wraps rep. generatedAt is normalised to UTC at second
// precision.
func NewDocument(source Source, rep insights.Report, generatedAt time.Time) Document {
	return Document{
		SchemaVersion: SchemaVersion,
		Source:        source,
		GeneratedAt:   generatedAt.UTC().Truncate(time.Second),
		NoMatches:     rep.TotalFiles == 0,
		Warnings:      Warnings{Sample: []string{}},
		Report:        rep,
	}
}

// JSON writes doc as indented JSON followed by a newline.
func JSON(w io.Writer, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return err
	}

	return nil
}

// Write renders doc in the given format.
func Write(w io.Writer, format Format, doc Document) error {
	switch format {
	case FormatJSON:
		return JSON(w, doc)
	case FormatTable:
		return Table(w, doc)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// ToFile writes doc to path. The content goes to a temporary file in the
// same directory which is then renamed over path, so readers never observe
// a partial report.
func ToFile(path string, format Format, doc Document) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, format, doc); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	//nolint:gosec // Reports are not secret
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting output file mode: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing output file: %w", err)
	}

	return nil
}
