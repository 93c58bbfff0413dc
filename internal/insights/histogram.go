package insights

import "time"

// Size buckets. Bounds are exclusive upper limits in bytes; the last bucket
// is unbounded. The labels and bounds are part of the report format and
// must not change between releases, or reports stop being comparable.
//
//	0 B              size == 0
//	< 1 KiB          1 B .. 1023 B
//	1 KiB - 1 MiB    1 KiB .. < 1 MiB
//	1 MiB - 100 MiB  1 MiB .. < 100 MiB
//	100 MiB - 1 GiB  100 MiB .. < 1 GiB
//	>= 1 GiB         1 GiB and above
const (
	kib = int64(1) << 10
	mib = kib << 10
	gib = mib << 10
)

type sizeBucket struct {
	label string
	upper int64 // exclusive; 0 means unbounded
}

//nolint:gochecknoglobals // Fixed report configuration
var sizeBuckets = []sizeBucket{
	{"0 B", 1},
	{"< 1 KiB", kib},
	{"1 KiB - 1 MiB", mib},
	{"1 MiB - 100 MiB", 100 * mib},
	{"100 MiB - 1 GiB", gib},
	{">= 1 GiB", 0},
}

// sizeBucketIndex returns the bucket for size.
func sizeBucketIndex(size int64) int {
	for i, b := range sizeBuckets {
		if b.upper == 0 || size < b.upper {
			return i
		}
	}

	return len(sizeBuckets) - 1
}

// Age buckets relative to the aggregation reference time, by whole days.
type ageBucket struct {
	label   string
	maxDays int // exclusive; 0 means unbounded
}

//nolint:gochecknoglobals // Fixed report configuration
var ageBuckets = []ageBucket{
	{"last_24_hours", 1},
	{"last_7_days", 7},
	{"last_30_days", 30},
	{"last_90_days", 90},
	{"last_year", 365},
	{"older", 0},
}

// ageBucketIndex returns the bucket for a file modified at t. Files with
// modification times in the future count as recent.
func ageBucketIndex(now, t time.Time) int {
	days := int(now.Sub(t) / (24 * time.Hour))

	for i, b := range ageBuckets {
		if b.maxDays == 0 || days < b.maxDays {
			return i
		}
	}

	return len(ageBuckets) - 1
}
