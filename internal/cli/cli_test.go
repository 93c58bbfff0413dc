package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idelchi/fileinsights/internal/cli"
	"github.com/idelchi/fileinsights/internal/fileinsights"
	"github.com/idelchi/fileinsights/internal/store"
	"github.com/idelchi/fileinsights/internal/walk"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer

	c := cli.New("test").WithIO(strings.NewReader(stdin), &stdout, &stderr)
	err := c.Run(context.Background(), args)

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func tree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	for name, size := range map[string]int{"a.txt": 10, "b.go": 2048, "sub/c.txt": 5, ".git/HEAD": 1} {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	}

	return root
}

func TestScanTable(t *testing.T) {
	res := run(t, "", "scan", tree(t))
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Total files:")
	assert.Contains(t, res.stdout, ".txt:")
	assert.NotContains(t, res.stdout, "HEAD")
}

func TestScanJSON(t *testing.T) {
	res := run(t, "", "scan", tree(t), "--format", "json", "-x", ".txt")
	require.NoError(t, res.err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))

	rep, ok := doc["report"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 2, rep["total_files"], 0)
	assert.InDelta(t, 15, rep["total_bytes"], 0)
	assert.InDelta(t, 2, rep["total_directories"], 0)
}

func TestScanHelpExplainsSymlinks(t *testing.T) {
	res := run(t, "", "scan", "--help")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "--follow-symlinks")
	assert.Contains(t, res.stdout, "total_files only counts files reachable without them")
}

func TestScanOutputFileDefaultsToJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.json")

	res := run(t, "", "scan", tree(t), "-o", out)
	require.NoError(t, res.err)
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, "Insights saved to")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestScanMetricsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fileinsights.prom")

	res := run(t, "", "scan", tree(t), "--metrics-file", path)
	require.NoError(t, res.err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `fileinsights_files_total{kind="regular"} 3`)
}

func TestScanErrors(t *testing.T) {
	res := run(t, "", "scan", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, res.err)
	assert.Equal(t, cli.ExitRoot, cli.ExitCode(res.err))

	res = run(t, "", "scan", tree(t), "-x", ".none")
	require.ErrorIs(t, res.err, fileinsights.ErrNoMatches)
	assert.Equal(t, cli.ExitNoMatches, cli.ExitCode(res.err))
	assert.Contains(t, res.stdout, "No files matched.")

	res = run(t, "", "scan", tree(t), "--format", "yaml")
	require.Error(t, res.err)

	res = run(t, "", "scan", tree(t), "--min-size", "lots")
	require.Error(t, res.err)

	res = run(t, "", "scan", tree(t), "--video-only")
	require.Error(t, res.err)
}

func TestDatabaseCommands(t *testing.T) {
	root := tree(t)
	dsn := filepath.Join(t.TempDir(), "insights.db")

	res := run(t, "", "scan", root, "--db-save", "--db-connection", dsn)
	require.NoError(t, res.err)

	res = run(t, "", "db-insights", "--db-connection", dsn, "-e", "txt", "--format", "json")
	require.NoError(t, res.err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &doc))
	assert.Equal(t, "store", doc["source"])

	res = run(t, "n\n", "db-clear", "--db-connection", dsn)
	require.Error(t, res.err)

	res = run(t, "y\n", "db-clear", "--db-connection", dsn)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deleted 3 files")

	res = run(t, "", "db-clear", "--db-connection", dsn, "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deleted 0 files")

	res = run(t, "", "db-insights", "--db-connection", dsn)
	assert.Equal(t, cli.ExitNoMatches, cli.ExitCode(res.err))
}

func TestDatabaseFromEnvironment(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "insights.db")
	t.Setenv(store.EnvDSN, dsn)

	res := run(t, "", "scan", tree(t), "--db-save")
	require.NoError(t, res.err)

	res = run(t, "", "db-insights", "--limit", "1", "--format", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"total_files": 1`)
}

func TestScanUnreachableDatabaseStillReports(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "missing", "insights.db")

	res := run(t, "", "scan", tree(t), "--db-save", "--db-connection", dsn)
	require.Error(t, res.err)
	assert.Equal(t, cli.ExitPersistence, cli.ExitCode(res.err))
	assert.Contains(t, res.stdout, "Persistence failed:")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, cli.ExitOK},
		{errors.New("boom"), cli.ExitError},
		{&walk.RootAccessError{Root: "/x", Err: os.ErrNotExist}, cli.ExitRoot},
		{fmt.Errorf("wrapped: %w", &store.PersistenceError{Op: "save", Err: errors.New("x")}), cli.ExitPersistence},
		{store.ErrNoDSN, cli.ExitPersistence},
		{fileinsights.ErrNoMatches, cli.ExitNoMatches},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cli.ExitCode(tt.err), "%v", tt.err)
	}
}
