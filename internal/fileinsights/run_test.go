package fileinsights_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/fileinsights/internal/emit"
	"github.com/idelchi/fileinsights/internal/extract"
	"github.com/idelchi/fileinsights/internal/fileinsights"
	"github.com/idelchi/fileinsights/internal/insights"
	"github.com/idelchi/fileinsights/internal/metrics"
	"github.com/idelchi/fileinsights/internal/record"
	"github.com/idelchi/fileinsights/internal/store"
	"github.com/idelchi/fileinsights/internal/walk"
)

//nolint:gochecknoglobals // Fixed reference time
var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// tree creates files with the given sizes below a fresh directory.
func tree(t *testing.T, files map[string]int) string {
	t.Helper()

	root := t.TempDir()

	for name, size := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	}

	return root
}

//nolint:gochecknoglobals // Test fixture
var fixture = map[string]int{
	"a.txt":          10,
	"b.txt":          20,
	"docs/c.md":      30,
	"media/clip.mp4": 400,
	"media/bad.mkv":  50,
	"empty":          0,
}

// fakeProber succeeds for clip.mp4 and fails for everything else.
func fakeProber() extract.Prober {
	return extract.ProberFunc(func(_ context.Context, path string) (record.VideoMetadata, error) {
		if filepath.Base(path) != "clip.mp4" {
			return record.VideoMetadata{}, errors.New("no video stream")
		}

		return record.VideoMetadata{
			DurationSeconds: 61.5, Width: 1920, Height: 1080, FPS: 24, VideoCodec: "h264", AudioCodec: "aac",
		}, nil
	})
}

func TestRunScan(t *testing.T) {
	root := tree(t, fixture)
	m := metrics.New()

	res, err := fileinsights.Run(context.Background(), fileinsights.Options{
		Root: root, Video: true, Prober: fakeProber(), Now: clock, Metrics: m,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	doc := res.Document
	assert.Equal(t, emit.SourceScan, doc.Source)
	assert.Equal(t, root, doc.Root)
	assert.NotEmpty(t, doc.ScanID)
	assert.False(t, doc.NoMatches)
	assert.Empty(t, doc.PersistenceError)

	rep := doc.Report
	assert.Equal(t, int64(6), rep.TotalFiles)
	assert.Equal(t, int64(510), rep.TotalBytes)
	assert.Equal(t, int64(1), rep.VideoCount)
	assert.Equal(t, int64(1), rep.ExtractionErrorCount)
	assert.Equal(t, map[string]int64{"1920x1080": 1}, rep.ResolutionCounts)
	assert.Zero(t, res.Persisted)

	assert.Equal(t, int64(3), rep.TotalDirectories)
	assert.Equal(t, []insights.DirRef{
		{Path: filepath.Join(root, "media"), Files: 2, SizeBytes: 450},
		{Path: root, Files: 3, SizeBytes: 30},
		{Path: filepath.Join(root, "docs"), Files: 1, SizeBytes: 30},
	}, rep.LargestDirectories)
}

func TestRunWorkersMatchSequential(t *testing.T) {
	root := tree(t, fixture)
	opts := fileinsights.Options{Root: root, Video: true, Prober: fakeProber(), Now: clock}

	seq, err := fileinsights.Run(context.Background(), opts)
	require.NoError(t, err)

	opts.Workers = 4

	par, err := fileinsights.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, seq.Document.Report, par.Document.Report)
}

func TestRunVideoOnly(t *testing.T) {
	root := tree(t, fixture)

	res, err := fileinsights.Run(context.Background(), fileinsights.Options{
		Root: root, Video: true, Prober: fakeProber(), VideoOnly: true, Now: clock,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Document.Report.TotalFiles)
	assert.Equal(t, int64(400), res.Document.Report.TotalBytes)
}

func TestRunNoMatches(t *testing.T) {
	root := tree(t, fixture)

	res, err := fileinsights.Run(context.Background(), fileinsights.Options{
		Root: root, Extensions: []string{".nothing"}, Now: clock,
	})
	require.ErrorIs(t, err, fileinsights.ErrNoMatches)
	require.NotNil(t, res)
	assert.True(t, res.Document.NoMatches)
	assert.Zero(t, res.Document.Report.TotalFiles)
}

func TestRunRootErrors(t *testing.T) {
	_, err := fileinsights.Run(context.Background(), fileinsights.Options{
		Root: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.True(t, walk.IsRootAccess(err))
}

func TestRunInvalidOptions(t *testing.T) {
	_, err := fileinsights.Run(context.Background(), fileinsights.Options{Root: t.TempDir(), Depth: -1})
	require.Error(t, err)

	_, err = fileinsights.Run(context.Background(), fileinsights.Options{Root: t.TempDir(), Excludes: []string{"("}})
	require.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	root := tree(t, fixture)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fileinsights.Run(ctx, fileinsights.Options{Root: root})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPersistAndReadBack(t *testing.T) {
	root := tree(t, fixture)
	dsn := filepath.Join(t.TempDir(), "insights.db")
	ctx := context.Background()

	scan, err := fileinsights.Run(ctx, fileinsights.Options{
		Root: root, Video: true, Prober: fakeProber(), Persist: true, DSN: dsn, BatchSize: 2, Now: clock,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), scan.Persisted)

	stored, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Now: clock})
	require.NoError(t, err)

	assert.Equal(t, emit.SourceStore, stored.Document.Source)
	assert.Equal(t, int64(6), stored.Available)

	// Records come back in path order, which yields the same report.
	assert.Equal(t, scan.Document.Report, stored.Document.Report)

	videos, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, VideoOnly: true, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, int64(1), videos.Document.Report.TotalFiles)

	txt, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Extensions: []string{"TXT"}, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, int64(2), txt.Document.Report.TotalFiles)

	limited, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Limit: 3, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, int64(3), limited.Document.Report.TotalFiles)
	assert.Equal(t, int64(6), limited.Available)

	deleted, err := fileinsights.Clear(ctx, fileinsights.Options{DSN: dsn})
	require.NoError(t, err)
	assert.Equal(t, int64(6), deleted)

	empty, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Now: clock})
	require.ErrorIs(t, err, fileinsights.ErrNoMatches)
	assert.True(t, empty.Document.NoMatches)
}

func TestRunRescanReplacesRows(t *testing.T) {
	root := tree(t, map[string]int{"a.txt": 10})
	dsn := filepath.Join(t.TempDir(), "insights.db")
	ctx := context.Background()
	opts := fileinsights.Options{Root: root, Persist: true, DSN: dsn, Now: clock}

	_, err := fileinsights.Run(ctx, opts)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), make([]byte, 99), 0o600))

	_, err = fileinsights.Run(ctx, opts)
	require.NoError(t, err)

	res, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Document.Report.TotalFiles)
	assert.Equal(t, int64(99), res.Document.Report.TotalBytes)
}

func TestRunRebuild(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "insights.db")
	ctx := context.Background()

	_, err := fileinsights.Run(ctx, fileinsights.Options{Root: tree(t, fixture), Persist: true, DSN: dsn, Now: clock})
	require.NoError(t, err)

	_, err = fileinsights.Run(ctx, fileinsights.Options{
		Root: tree(t, map[string]int{"only.txt": 1}), Persist: true, Rebuild: true, DSN: dsn, Now: clock,
	})
	require.NoError(t, err)

	res, err := fileinsights.RunFromStore(ctx, fileinsights.Options{DSN: dsn, Now: clock})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Document.Report.TotalFiles)
}

func TestRunUnreachableStoreKeepsScan(t *testing.T) {
	root := tree(t, fixture)
	dsn := filepath.Join(t.TempDir(), "missing", "insights.db")

	res, err := fileinsights.Run(context.Background(), fileinsights.Options{
		Root: root, Persist: true, DSN: dsn, Now: clock,
	})
	require.Error(t, err)
	assert.True(t, store.IsPersistence(err))

	require.NotNil(t, res)
	assert.Equal(t, int64(6), res.Document.Report.TotalFiles)
	assert.NotEmpty(t, res.Document.PersistenceError)
	assert.Equal(t, err, res.PersistErr)
	assert.Zero(t, res.Persisted)
}

func TestRunPersistWithoutDSN(t *testing.T) {
	t.Setenv(store.EnvDSN, "")

	_, err := fileinsights.Run(context.Background(), fileinsights.Options{Root: t.TempDir(), Persist: true})
	require.ErrorIs(t, err, store.ErrNoDSN)

	_, err = fileinsights.RunFromStore(context.Background(), fileinsights.Options{})
	require.ErrorIs(t, err, store.ErrNoDSN)
}

func TestRunFromStoreUnreachable(t *testing.T) {
	_, err := fileinsights.RunFromStore(context.Background(), fileinsights.Options{
		DSN: filepath.Join(t.TempDir(), "missing", "insights.db"),
	})
	require.Error(t, err)
	assert.True(t, store.IsPersistence(err))
}
