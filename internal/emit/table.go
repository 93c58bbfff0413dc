package emit

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/idelchi/fileinsights/internal/insights"
)

// TabSpacing is the number of spaces between tabwriter columns.
const TabSpacing = 2

// Table writes doc as aligned text sections. Sections without data are
// omitted, except for the summary.
//
//nolint:errcheck // Write errors surface through Flush.
func Table(writer io.Writer, doc Document) error {
	rep := doc.Report
	w := tabwriter.NewWriter(writer, 0, 4, TabSpacing, ' ', 0)

	fmt.Fprintln(w, "Summary:\t\t")
	if doc.Root != "" {
		fmt.Fprintf(w, "  Root:\t%s\n", doc.Root)
	}
	fmt.Fprintf(w, "  Source:\t%s\n", doc.Source)
	fmt.Fprintf(w, "  Total files:\t%d\n", rep.TotalFiles)
	fmt.Fprintf(w, "  Directories:\t%d\n", rep.TotalDirectories)
	fmt.Fprintf(w, "  Total size:\t%s (%d bytes)\n", ibytes(rep.TotalBytes), rep.TotalBytes)
	fmt.Fprintf(w, "  Average size:\t%s\n", ibytes(int64(rep.AverageSizeBytes)))
	fmt.Fprintf(w, "  Unreadable:\t%d\n", rep.ExtractionErrorCount)

	if rep.OldestFile != nil {
		fmt.Fprintf(w, "  Oldest:\t'%s' (%s)\n", rep.OldestFile.Path, rep.OldestFile.ModifiedAt.UTC().Format(time.DateTime))
		fmt.Fprintf(w, "  Newest:\t'%s' (%s)\n", rep.NewestFile.Path, rep.NewestFile.ModifiedAt.UTC().Format(time.DateTime))
	}

	if len(rep.Extensions) > 0 {
		fmt.Fprintln(w, "\nExtensions:\t\t")
		for i, e := range rep.Extensions {
			ext := e.Extension
			if ext == "" {
				ext = `""`
			}

			fmt.Fprintf(w, "  %d) %s:\t%d files, %s (%.2f%%)\n",
				i+1, ext, e.Count, ibytes(e.Bytes), float64(e.Percentage))
		}
	}

	if len(rep.LargestFiles) > 0 {
		fmt.Fprintln(w, "\nLargest files:\t\t")
		for i, f := range rep.LargestFiles {
			fmt.Fprintf(w, "  %d) '%s'\t%s\n", i+1, f.Path, ibytes(f.SizeBytes))
		}
	}

	if len(rep.LargestDirectories) > 0 {
		fmt.Fprintln(w, "\nLargest directories:\t\t")
		for i, d := range rep.LargestDirectories {
			fmt.Fprintf(w, "  %d) '%s'\t%s (%d files)\n", i+1, d.Path, ibytes(d.SizeBytes), d.Files)
		}
	}

	if rep.TotalFiles > 0 {
		histogram(w, "Size distribution", rep.SizeHistogram)
		histogram(w, "Age distribution", rep.AgeHistogram)
	}

	if rep.VideoCount > 0 {
		fmt.Fprintln(w, "\nVideo:\t\t")
		fmt.Fprintf(w, "  Videos:\t%d\n", rep.VideoCount)
		fmt.Fprintf(w, "  Total duration:\t%s\n", duration(float64(rep.TotalVideoDuration)))
		fmt.Fprintf(w, "  Average duration:\t%s\n", duration(float64(rep.AverageVideoDuration)))

		if rep.AverageResolution != nil {
			fmt.Fprintf(w, "  Average resolution:\t%.0fx%.0f\n",
				float64(rep.AverageResolution.Width), float64(rep.AverageResolution.Height))
		}

		counts(w, "Resolutions", rep.ResolutionCounts)
		counts(w, "Video codecs", rep.VideoCodecCounts)
	}

	if doc.Warnings.Total > 0 {
		fmt.Fprintf(w, "\nWarnings (%d):\t\t\n", doc.Warnings.Total)
		for _, s := range doc.Warnings.Sample {
			fmt.Fprintf(w, "  %s\t\n", s)
		}

		if more := doc.Warnings.Total - len(doc.Warnings.Sample); more > 0 {
			fmt.Fprintf(w, "  ... and %d more\t\n", more)
		}
	}

	if doc.PersistenceError != "" {
		fmt.Fprintf(w, "\nPersistence failed:\t%s\n", doc.PersistenceError)
	}

	if doc.NoMatches {
		fmt.Fprintln(w, "\nNo files matched.\t\t")
	}

	return w.Flush()
}

//nolint:errcheck // Write errors surface through Flush.
func histogram(w io.Writer, title string, buckets []insights.Bucket) {
	fmt.Fprintf(w, "\n%s:\t\t\n", title)

	for _, b := range buckets {
		fmt.Fprintf(w, "  %s:\t%d files, %s\n", b.Label, b.Count, ibytes(b.Bytes))
	}
}

// counts prints a map sorted by count descending, then key.
//
//nolint:errcheck // Write errors surface through Flush.
func counts(w io.Writer, title string, m map[string]int64) {
	keys := slices.SortedFunc(maps.Keys(m), func(a, b string) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})

	fmt.Fprintf(w, "  %s:\t\n", title)

	for _, k := range keys {
		fmt.Fprintf(w, "    %s\t%d\n", k, m[k])
	}
}

func ibytes(n int64) string {
	return humanize.IBytes(uint64(max(n, 0))) //nolint:gosec // Clamped to non-negative
}

func duration(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}
