// Package insights aggregates file records into summary statistics.
//
// Aggregation is a single streaming pass. The Aggregator keeps running
// counters per extension, histogram bucket, resolution and codec plus
// bounded lists of the largest files and directories; it never stores the
// records themselves, so arbitrarily large trees summarise in bounded
// memory. Directory statistics expect each directory's records to arrive
// together, as a walk or a path-ordered query yields them.
package insights

import (
	"cmp"
	"iter"
	"maps"
	"slices"
	"time"

	"github.com/idelchi/fileinsights/internal/record"
)

// DefaultTopN is the default number of largest files kept.
const DefaultTopN = 10

// Options configures an Aggregator.
type Options struct {
	// TopN is the number of largest files to keep (<=0 = DefaultTopN).
	TopN int
	// Now is the reference time for the age histogram (zero = time.Now()).
	Now time.Time
}

// Aggregator accumulates records. It is not safe for concurrent use; feed
// it from a single goroutine.
type Aggregator struct {
	now  time.Time
	topN int

	totalFiles  int64
	totalBytes  int64
	errorCount  int64
	extCount    map[string]int64
	extBytes    map[string]int64
	sizeCount   []int64
	sizeBytes   []int64
	ageCount    []int64
	ageBytes    []int64
	largest     []FileRef
	dirs        dirTracker
	oldest      *FileRef
	newest      *FileRef
	videoCount  int64
	durationSum float64
	widthSum    int64
	heightSum   int64
	resolutions map[string]int64
	codecs      map[string]int64
}

// New creates an empty Aggregator.
func New(opts Options) *Aggregator {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	return &Aggregator{
		now:         opts.Now,
		topN:        opts.TopN,
		extCount:    make(map[string]int64),
		extBytes:    make(map[string]int64),
		sizeCount:   make([]int64, len(sizeBuckets)),
		sizeBytes:   make([]int64, len(sizeBuckets)),
		ageCount:    make([]int64, len(ageBuckets)),
		ageBytes:    make([]int64, len(ageBuckets)),
		resolutions: make(map[string]int64),
		codecs:      make(map[string]int64),
		dirs:        dirTracker{topN: opts.TopN},
	}
}

// Aggregate consumes seq and returns its report.
func Aggregate(seq iter.Seq[record.FileRecord], opts Options) Report {
	a := New(opts)

	for r := range seq {
		a.Add(r)
	}

	return a.Report()
}

// Add folds one record into the running totals.
func (a *Aggregator) Add(r record.FileRecord) {
	a.totalFiles++
	a.totalBytes += r.SizeBytes
	a.extCount[r.Extension]++
	a.extBytes[r.Extension] += r.SizeBytes

	i := sizeBucketIndex(r.SizeBytes)
	a.sizeCount[i]++
	a.sizeBytes[i] += r.SizeBytes

	ref := FileRef{Path: r.Path, SizeBytes: r.SizeBytes, ModifiedAt: r.ModifiedAt.UTC()}
	a.largest = insertTop(a.largest, ref, a.topN, compareLargest)
	a.dirs.add(r.Path, r.SizeBytes)

	// Vanished files have no modification time to bucket.
	if !r.ModifiedAt.IsZero() {
		j := ageBucketIndex(a.now, r.ModifiedAt)
		a.ageCount[j]++
		a.ageBytes[j] += r.SizeBytes

		if a.oldest == nil || olderThan(ref, *a.oldest) {
			a.oldest = &ref
		}

		if a.newest == nil || olderThan(*a.newest, ref) {
			a.newest = &ref
		}
	}

	switch r.Kind {
	case record.KindVideo:
		a.videoCount++
		a.durationSum += r.Video.DurationSeconds
		a.widthSum += int64(r.Video.Width)
		a.heightSum += int64(r.Video.Height)
		a.resolutions[r.Video.Resolution()]++
		a.codecs[r.Video.VideoCodec]++
	case record.KindUnreadable:
		a.errorCount++
	case record.KindRegular:
	}
}

// olderThan orders by modification time, then path.
func olderThan(x, y FileRef) bool {
	if c := x.ModifiedAt.Compare(y.ModifiedAt); c != 0 {
		return c < 0
	}

	return x.Path < y.Path
}

// compareLargest orders by size descending, then path.
func compareLargest(x, y FileRef) int {
	if c := cmp.Compare(y.SizeBytes, x.SizeBytes); c != 0 {
		return c
	}

	return cmp.Compare(x.Path, y.Path)
}

// Report derives the summary from the current totals. It does not modify
// the Aggregator, so repeated calls return equal reports.
func (a *Aggregator) Report() Report {
	rep := Report{
		TotalFiles:           a.totalFiles,
		TotalBytes:           a.totalBytes,
		TotalDirectories:     a.dirs.count(),
		CountsByExtension:    maps.Clone(a.extCount),
		Extensions:           a.extensionStats(),
		SizeHistogram:        buckets(sizeLabels(), a.sizeCount, a.sizeBytes),
		AgeHistogram:         buckets(ageLabels(), a.ageCount, a.ageBytes),
		LargestFiles:         slices.Clone(a.largest),
		LargestDirectories:   a.dirs.top(),
		ExtractionErrorCount: a.errorCount,
		VideoCount:           a.videoCount,
		TotalVideoDuration:   Fixed3(a.durationSum),
		ResolutionCounts:     maps.Clone(a.resolutions),
		VideoCodecCounts:     maps.Clone(a.codecs),
	}

	if rep.LargestFiles == nil {
		rep.LargestFiles = []FileRef{}
	}

	if a.totalFiles > 0 {
		rep.AverageSizeBytes = Fixed2(float64(a.totalBytes) / float64(a.totalFiles))
	}

	if a.oldest != nil {
		oldest, newest := *a.oldest, *a.newest
		rep.OldestFile, rep.NewestFile = &oldest, &newest
	}

	if a.videoCount > 0 {
		n := float64(a.videoCount)
		rep.AverageVideoDuration = Fixed3(a.durationSum / n)
		rep.AverageResolution = &Resolution{
			Width:  Fixed2(float64(a.widthSum) / n),
			Height: Fixed2(float64(a.heightSum) / n),
		}
	}

	return rep
}

func (a *Aggregator) extensionStats() []ExtensionStat {
	stats := make([]ExtensionStat, 0, len(a.extCount))

	for ext, count := range a.extCount {
		s := ExtensionStat{Extension: ext, Count: count, Bytes: a.extBytes[ext]}
		if a.totalBytes > 0 {
			s.Percentage = Fixed2(100 * float64(s.Bytes) / float64(a.totalBytes))
		}

		stats = append(stats, s)
	}

	slices.SortFunc(stats, func(x, y ExtensionStat) int {
		if c := cmp.Compare(y.Bytes, x.Bytes); c != 0 {
			return c
		}

		return cmp.Compare(x.Extension, y.Extension)
	})

	return stats
}

func sizeLabels() []string {
	labels := make([]string, len(sizeBuckets))
	for i, b := range sizeBuckets {
		labels[i] = b.label
	}

	return labels
}

func ageLabels() []string {
	labels := make([]string, len(ageBuckets))
	for i, b := range ageBuckets {
		labels[i] = b.label
	}

	return labels
}

func buckets(labels []string, counts, bytes []int64) []Bucket {
	out := make([]Bucket, len(labels))
	for i, l := range labels {
		out[i] = Bucket{Label: l, Count: counts[i], Bytes: bytes[i]}
	}

	return out
}
