package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/idelchi/fileinsights/internal/emit"
	"github.com/idelchi/fileinsights/internal/fileinsights"
	"github.com/idelchi/fileinsights/internal/store"
)

// CLI represents the command-line interface.
type CLI struct {
	version string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// New creates a new CLI instance with the given version.
func New(version string) CLI {
	return CLI{version: version, stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// WithIO returns a copy of c using the given streams.
func (c CLI) WithIO(stdin io.Reader, stdout, stderr io.Writer) CLI {
	c.stdin, c.stdout, c.stderr = stdin, stdout, stderr

	return c
}

// Execute runs the CLI with the process arguments. Interrupts cancel the
// running command between files.
func (c CLI) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return c.Run(ctx, os.Args[1:])
}

// Run executes the command line args.
func (c CLI) Run(ctx context.Context, args []string) error {
	cmd := c.root()
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

// common holds the flags shared by every command.
type common struct {
	dsn         string
	output      string
	format      string
	top         int
	metricsFile string
	debug       bool
}

func (f *common) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&f.dsn, "db-connection", "",
		fmt.Sprintf("Database connection string (default $%s)", store.EnvDSN))
	flags.StringVarP(&f.output, "output", "o", "", "Write the report to this file instead of stdout")
	flags.StringVar(&f.format, "format", "", "Output format: table or json (default table on stdout, json for files)")
	flags.IntVarP(&f.top, "top", "t", 10, "Number of largest files to report")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	flags.BoolVar(&f.debug, "debug", false, "Enable debug logging")
}

// resolveFormat picks the output format: explicit flag, else json for
// files and table for stdout.
func (f *common) resolveFormat() (emit.Format, error) {
	switch {
	case f.format != "":
		return emit.ParseFormat(f.format)
	case f.output != "":
		return emit.FormatJSON, nil
	default:
		return emit.FormatTable, nil
	}
}

func (c CLI) root() *cobra.Command {
	var flags common

	cmd := &cobra.Command{
		Use:   "fileinsights",
		Short: "Analyze files in directory trees and report insights",
		Long: heredoc.Doc(`
			fileinsights walks a directory tree, collects per-file attributes
			(size, extension, modification time and, for videos, duration,
			resolution and codecs) and reports summary statistics.

			Records can be saved to a SQLite or PostgreSQL database with
			'scan --db-save' and analysed again later with 'db-insights'.
		`),
		Version:       c.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetIn(c.stdin)
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)

	flags.register(cmd)

	cmd.AddCommand(c.scanCommand(&flags), c.insightsCommand(&flags), c.clearCommand(&flags))

	return cmd
}

func (c CLI) scanCommand(flags *common) *cobra.Command {
	var (
		options    fileinsights.Options
		minSizeStr string
	)

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a directory and report insights",
		Long: heredoc.Doc(`
			Scan walks path (default: current directory) and reports statistics.

			Positional Arguments:
			  path    Directory to analyze. Defaults to current directory if not specified.

			Symbolic links to directories are skipped unless --follow-symlinks is
			given, so total_files only counts files reachable without them. Links
			pointing back to one of their own ancestors are never followed.
			total_directories counts the directories holding at least one
			reported file.

			Exit codes:
			  0  success
			  1  error
			  2  root directory not readable
			  3  database unavailable or save failed (the report is still written)
			  4  no files matched
		`),
		Example: heredoc.Doc(`
			fileinsights scan ~/Videos --video-metadata --video-only
			fileinsights scan . -x .go -x '!_test.go' -o report.json
			fileinsights scan /data --db-save --db-connection postgres://localhost/insights
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Root = "."
			if len(args) == 1 {
				options.Root = args[0]
			}

			size, err := humanize.ParseBytes(minSizeStr)
			if err != nil {
				return fmt.Errorf("invalid min-size: %w", err)
			}

			options.MinSize = int64(size) //nolint:gosec // Size conversion from humanize is safe

			if options.VideoOnly && !options.Video {
				return errors.New("--video-only requires --video-metadata")
			}

			return c.scan(cmd.Context(), flags, options)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false

	f.BoolVar(&options.Video, "video-metadata", false, "Extract duration, resolution and codecs of video files (requires ffprobe)")
	f.StringSliceVarP(&options.Extensions, "extension", "x", nil,
		"File suffixes to include (e.g., .go,.md). Use '!' prefix to exclude (e.g., !.log,!_test.go)")
	f.BoolVar(&options.VideoOnly, "video-only", false, "Only report files with video metadata")
	f.StringSliceVarP(&options.Excludes, "exclude", "e", fileinsights.DefaultExcludes, "Regex patterns to exclude")
	f.StringVar(&minSizeStr, "min-size", "0B", "Minimum file size (e.g., 1KB)")
	f.IntVarP(&options.Depth, "depth", "d", 0, "Maximum traversal depth (0=unlimited, 1=no recursion)")
	f.BoolVar(&options.FollowSymlinks, "follow-symlinks", false, "Descend into symlinked directories")
	f.IntVarP(&options.Workers, "workers", "w", 1, "Concurrent extractions")
	f.BoolVar(&options.Persist, "db-save", false, "Save the scanned records to the database")
	f.BoolVar(&options.Rebuild, "rebuild-db", false, "Drop and recreate the database table before saving (all data is lost)")

	return cmd
}

func (c CLI) insightsCommand(flags *common) *cobra.Command {
	var options fileinsights.Options

	cmd := &cobra.Command{
		Use:   "db-insights",
		Short: "Report insights from records saved in the database",
		Long: heredoc.Doc(`
			Aggregate records previously saved with 'scan --db-save'.

			Records are read in path order, so --limit selects the first
			records by path.
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.insights(cmd.Context(), flags, options)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false

	f.StringSliceVarP(&options.Extensions, "extension", "e", nil, "Filter by file extension (repeatable)")
	f.BoolVar(&options.VideoOnly, "video-only", false, "Only include video files")
	f.IntVar(&options.Limit, "limit", fileinsights.DefaultStoreLimit, "Maximum number of records to read (0=unlimited)")

	return cmd
}

func (c CLI) clearCommand(flags *common) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "db-clear",
		Short: "Delete every record from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.clear(cmd.Context(), flags, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}
