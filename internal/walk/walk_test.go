package walk_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/fileinsights/internal/extract"
	"github.com/idelchi/fileinsights/internal/record"
	"github.com/idelchi/fileinsights/internal/walk"
)

// tree creates files (relative slash paths) with the given sizes under a temp root.
func tree(t *testing.T, files map[string]int) string {
	t.Helper()

	root := t.TempDir()

	for rel, size := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	}

	return root
}

func collect(t *testing.T, root string, opts walk.Options) ([]string, *walk.Scan) {
	t.Helper()

	scan, err := walk.Walk(context.Background(), root, extract.New(extract.Options{}), opts)
	require.NoError(t, err)

	var paths []string
	for r := range scan.Records() {
		rel, err := filepath.Rel(root, r.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
	}

	return paths, scan
}

//nolint:gochecknoglobals // Fixture
var fixture = map[string]int{
	"b.txt":         20,
	"a.txt":         10,
	"sub/c.csv":     30,
	"sub/deep/d.md": 1,
	"aa/e.go":       0,
	"Z.TXT":         5,
}

func TestWalkOrderIsDeterministic(t *testing.T) {
	root := tree(t, fixture)

	want := []string{"Z.TXT", "a.txt", "aa/e.go", "b.txt", "sub/c.csv", "sub/deep/d.md"}

	first, scan := collect(t, root, walk.Options{})
	require.NoError(t, scan.Err())
	assert.Equal(t, want, first)

	second, _ := collect(t, root, walk.Options{})
	assert.Equal(t, first, second)
}

func TestWalkWorkersPreserveOrder(t *testing.T) {
	files := map[string]int{}
	for i := range 200 {
		files[filepath.ToSlash(filepath.Join(string(rune('a'+i%7)), string(rune('a'+i%13)), "f"+string(rune('a'+i%26))+".bin"))] = i
	}

	root := tree(t, files)

	sequential, _ := collect(t, root, walk.Options{})
	parallel, scan := collect(t, root, walk.Options{Workers: 8})

	require.NoError(t, scan.Err())
	assert.Equal(t, sequential, parallel)
	assert.Len(t, parallel, len(files))
}

func TestWalkFilters(t *testing.T) {
	root := tree(t, fixture)

	tests := []struct {
		name string
		opts walk.Options
		want []string
	}{
		{"depth 1", walk.Options{Depth: 1}, []string{"Z.TXT", "a.txt", "b.txt"}},
		{"depth 2", walk.Options{Depth: 2}, []string{"Z.TXT", "a.txt", "aa/e.go", "b.txt", "sub/c.csv"}},
		{"extensions", walk.Options{Extensions: []string{".txt"}}, []string{"Z.TXT", "a.txt", "b.txt"}},
		{"negated extension", walk.Options{Extensions: []string{"!.txt"}}, []string{"aa/e.go", "sub/c.csv", "sub/deep/d.md"}},
		{"exclude regex", walk.Options{Excludes: []string{`.*/sub/.*`}}, []string{"Z.TXT", "a.txt", "aa/e.go", "b.txt"}},
		{"min size", walk.Options{MinSize: 10}, []string{"a.txt", "b.txt", "sub/c.csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := collect(t, root, tt.opts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalkRootErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := walk.Walk(context.Background(), filepath.Join(dir, "missing"), extract.New(extract.Options{}), walk.Options{})
	require.Error(t, err)
	assert.True(t, walk.IsRootAccess(err))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err = walk.Walk(context.Background(), file, extract.New(extract.Options{}), walk.Options{})
	assert.ErrorIs(t, err, walk.ErrNotDirectory)

	_, err = walk.Walk(context.Background(), dir, extract.New(extract.Options{}), walk.Options{Excludes: []string{"("}})
	require.Error(t, err)
	assert.False(t, walk.IsRootAccess(err))
}

func TestWalkSkipsUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	root := tree(t, map[string]int{"ok.txt": 1, "locked/hidden.txt": 1})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	paths, scan := collect(t, root, walk.Options{})

	assert.Equal(t, []string{"ok.txt"}, paths)
	require.Len(t, scan.Warnings(), 1)
	assert.Equal(t, locked, scan.Warnings()[0].Path)
	assert.ErrorIs(t, scan.Warnings()[0].Err, os.ErrPermission)
}

func TestWalkSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := tree(t, map[string]int{"a/file.txt": 1})
	require.NoError(t, os.Symlink(root, filepath.Join(root, "a", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	// Not followed: the directory link is neither walked nor reported.
	paths, scan := collect(t, root, walk.Options{})
	assert.Equal(t, []string{"a/file.txt", "dangling"}, paths)
	assert.Empty(t, scan.Warnings())

	// Followed: the cycle is detected and skipped.
	paths, scan = collect(t, root, walk.Options{FollowSymlinks: true})
	assert.Equal(t, []string{"a/file.txt", "dangling"}, paths)
	require.Len(t, scan.Warnings(), 1)
	assert.ErrorIs(t, scan.Warnings()[0].Err, walk.ErrSymlinkCycle)
}

func TestWalkFollowsSymlinkedDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	outside := tree(t, map[string]int{"x.txt": 3})
	root := tree(t, map[string]int{"y.txt": 4})
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	paths, _ := collect(t, root, walk.Options{FollowSymlinks: true})
	assert.Equal(t, []string{"link/x.txt", "y.txt"}, paths)
}

func TestWalkBrokenLinkIsUnreadable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))

	scan, err := walk.Walk(context.Background(), root, extract.New(extract.Options{}), walk.Options{})
	require.NoError(t, err)

	records := slices.Collect(scan.Records())
	require.Len(t, records, 1)
	assert.Equal(t, record.KindUnreadable, records[0].Kind)
	assert.Equal(t, extract.ReasonBrokenLink, records[0].Error)
}

func TestWalkIsOneShot(t *testing.T) {
	root := tree(t, fixture)

	scan, err := walk.Walk(context.Background(), root, extract.New(extract.Options{}), walk.Options{})
	require.NoError(t, err)

	n := 0
	for range scan.Records() {
		n++
		if n == 2 {
			break
		}
	}

	assert.Equal(t, 2, n)
	require.NoError(t, scan.Err())

	assert.Empty(t, slices.Collect(scan.Records()))
	assert.ErrorIs(t, scan.Err(), walk.ErrConsumed)
}

func TestWalkEarlyBreakWithWorkers(t *testing.T) {
	root := tree(t, fixture)

	scan, err := walk.Walk(context.Background(), root, extract.New(extract.Options{}), walk.Options{Workers: 3})
	require.NoError(t, err)

	for range scan.Records() {
		break
	}

	assert.NoError(t, scan.Err())
}

func TestWalkCancelled(t *testing.T) {
	root := tree(t, fixture)

	for _, workers := range []int{0, 4} {
		ctx, cancel := context.WithCancel(context.Background())

		scan, err := walk.Walk(ctx, root, extract.New(extract.Options{}), walk.Options{Workers: workers})
		require.NoError(t, err)

		cancel()

		assert.Empty(t, slices.Collect(scan.Records()))
		assert.True(t, errors.Is(scan.Err(), context.Canceled))
	}
}

func TestEstimateMatchesWalk(t *testing.T) {
	root := tree(t, fixture)

	for _, opts := range []walk.Options{{}, {Depth: 1}, {Extensions: []string{".txt"}}, {Excludes: []string{`.*/sub/.*`}}} {
		paths, _ := collect(t, root, opts)

		n, err := walk.Estimate(context.Background(), root, opts)
		require.NoError(t, err)
		assert.Equal(t, int64(len(paths)), n, "%+v", opts)
	}
}
