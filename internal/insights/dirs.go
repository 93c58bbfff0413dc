package insights

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"
)

// DirRef is a directory and the reported files directly inside it.
type DirRef struct {
	Path      string `json:"path"`
	Files     int64  `json:"files"`
	SizeBytes int64  `json:"size_bytes"`
}

// dirTracker counts the directories that hold reported files and keeps the
// largest of them by direct size.
//
// Records must arrive with every directory's subtree contiguous, which both
// a depth-first walk and a byte-order sort by path guarantee. open is then
// the chain of directories whose subtree is still being visited, so memory
// grows with tree depth, not with the number of directories.
type dirTracker struct {
	topN    int
	closed  int64
	open    []DirRef
	largest []DirRef
}

func (d *dirTracker) add(path string, size int64) {
	dir := filepath.Dir(path)

	for len(d.open) > 0 {
		top := &d.open[len(d.open)-1]
		if top.Path == dir {
			top.Files++
			top.SizeBytes += size

			return
		}

		if within(dir, top.Path) {
			break
		}

		d.close(*top)
		d.open = d.open[:len(d.open)-1]
	}

	d.open = append(d.open, DirRef{Path: dir, Files: 1, SizeBytes: size})
}

func (d *dirTracker) close(ref DirRef) {
	d.closed++
	d.largest = insertTop(d.largest, ref, d.topN, compareDirs)
}

// count returns the number of directories seen, open ones included.
func (d *dirTracker) count() int64 {
	return d.closed + int64(len(d.open))
}

// top returns the largest directories, open ones included.
func (d *dirTracker) top() []DirRef {
	out := slices.Clone(d.largest)
	for _, ref := range d.open {
		out = insertTop(out, ref, d.topN, compareDirs)
	}

	if out == nil {
		out = []DirRef{}
	}

	return out
}

// compareDirs orders by size descending, then path.
func compareDirs(x, y DirRef) int {
	if c := cmp.Compare(y.SizeBytes, x.SizeBytes); c != 0 {
		return c
	}

	return cmp.Compare(x.Path, y.Path)
}

// within reports whether dir lies strictly below ancestor.
func within(dir, ancestor string) bool {
	sep := string(filepath.Separator)

	if ancestor == "." {
		return !filepath.IsAbs(dir) && dir != "." && dir != ".." && !strings.HasPrefix(dir, ".."+sep)
	}

	if !strings.HasSuffix(ancestor, sep) {
		ancestor += sep
	}

	return strings.HasPrefix(dir, ancestor)
}

// insertTop inserts v into the sorted list, keeping at most n elements.
func insertTop[T any](list []T, v T, n int, compare func(x, y T) int) []T {
	if len(list) == n && compare(v, list[len(list)-1]) >= 0 {
		return list
	}

	i, _ := slices.BinarySearchFunc(list, v, compare)
	list = slices.Insert(list, i, v)

	if len(list) > n {
		list = list[:n]
	}

	return list
}
