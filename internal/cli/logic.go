package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/emit"
	"github.com/idelchi/fileinsights/internal/fileinsights"
	"github.com/idelchi/fileinsights/internal/logging"
	"github.com/idelchi/fileinsights/internal/metrics"
	"github.com/idelchi/fileinsights/internal/walk"
)

// session holds what every command needs besides its own options.
type session struct {
	format  emit.Format
	log     *zap.Logger
	metrics *metrics.Collector
}

func (c CLI) start(flags *common) (*session, error) {
	format, err := flags.resolveFormat()
	if err != nil {
		return nil, err
	}

	log, err := logging.New(flags.debug)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	s := &session{format: format, log: log}
	if flags.metricsFile != "" {
		s.metrics = metrics.New()
	}

	return s, nil
}

func (s *session) finish(flags *common) {
	if s.metrics != nil {
		if err := s.metrics.WriteFile(flags.metricsFile); err != nil {
			s.log.Warn("writing metrics", zap.Error(err))
		}
	}

	_ = s.log.Sync()
}

func (c CLI) scan(ctx context.Context, flags *common, options fileinsights.Options) error {
	sess, err := c.start(flags)
	if err != nil {
		return err
	}
	defer sess.finish(flags)

	options.TopN = flags.top
	options.DSN = flags.dsn
	options.Debug = flags.debug
	options.Logger = sess.log
	options.Metrics = sess.metrics

	enableProgress := flags.output == "" && sess.format != emit.FormatJSON &&
		!flags.debug &&
		isTerminal(c.stderr)

	if enableProgress {
		// Hide cursor for in-place updates; restore on exit.
		fmt.Fprint(c.stderr, "\033[?25l")
		defer fmt.Fprint(c.stderr, "\033[?25h")

		estimateCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		options.Progress = c.progress(estimateCtx, options)
	}

	res, err := fileinsights.Run(ctx, options)

	// Clear the status line
	if enableProgress {
		fmt.Fprint(c.stderr, "\r\033[2K\r")
	}

	return c.report(flags, sess.format, res, err)
}

// progress starts counting the files to visit in the background and
// returns a hook printing the running totals.
func (c CLI) progress(ctx context.Context, options fileinsights.Options) func(files, bytes int64) {
	var total atomic.Int64

	total.Store(-1)

	go func() {
		n, err := walk.Estimate(ctx, options.Root, walk.Options{
			Excludes:       options.Excludes,
			Extensions:     options.Extensions,
			Depth:          options.Depth,
			FollowSymlinks: options.FollowSymlinks,
		})
		if err == nil {
			total.Store(n)
		}
	}()

	return func(files, bytes int64) {
		count := fmt.Sprintf("%d", files)
		if t := total.Load(); t >= 0 {
			count = fmt.Sprintf("%d/%d", files, t)
		}

		msg := fmt.Sprintf("Scanning… %s files, %s",
			count, humanize.IBytes(uint64(bytes))) //nolint:gosec // Bytes is always positive
		fmt.Fprintf(c.stderr, "\r\033[2K%s\r", msg)
	}
}

func (c CLI) insights(ctx context.Context, flags *common, options fileinsights.Options) error {
	sess, err := c.start(flags)
	if err != nil {
		return err
	}
	defer sess.finish(flags)

	options.TopN = flags.top
	options.DSN = flags.dsn
	options.Debug = flags.debug
	options.Logger = sess.log
	options.Metrics = sess.metrics

	res, err := fileinsights.RunFromStore(ctx, options)
	if res != nil && res.Available > int64(options.Limit) && options.Limit > 0 {
		sess.log.Warn("report limited",
			zap.Int64("matching", res.Available), zap.Int("limit", options.Limit))
	}

	return c.report(flags, sess.format, res, err)
}

// report writes the result, if any, and passes err through. A failure to
// write the report takes precedence.
func (c CLI) report(flags *common, format emit.Format, res *fileinsights.Result, err error) error {
	if res == nil {
		return err
	}

	if flags.output == "" {
		if werr := emit.Write(c.stdout, format, res.Document); werr != nil {
			return werr
		}

		return err
	}

	if werr := emit.ToFile(flags.output, format, res.Document); werr != nil {
		return werr
	}

	fmt.Fprintf(c.stderr, "Insights saved to %s\n", flags.output)

	return err
}

func (c CLI) clear(ctx context.Context, flags *common, yes bool) error {
	if !yes {
		ok, err := c.confirm("Are you sure you want to delete all files from the database?")
		if err != nil {
			return err
		}

		if !ok {
			return errors.New("aborted")
		}
	}

	sess, err := c.start(flags)
	if err != nil {
		return err
	}
	defer sess.finish(flags)

	deleted, err := fileinsights.Clear(ctx, fileinsights.Options{
		DSN:    flags.dsn,
		Debug:  flags.debug,
		Logger: sess.log,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Deleted %d files from database\n", deleted)

	return nil
}

// confirm asks a yes/no question on stdin.
func (c CLI) confirm(question string) (bool, error) {
	fmt.Fprintf(c.stderr, "%s [y/N]: ", question)

	answer, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && isatty.IsTerminal(f.Fd())
}
