package fileinsights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/emit"
	"github.com/idelchi/fileinsights/internal/extract"
	"github.com/idelchi/fileinsights/internal/insights"
	"github.com/idelchi/fileinsights/internal/logging"
	"github.com/idelchi/fileinsights/internal/probe"
	"github.com/idelchi/fileinsights/internal/record"
	"github.com/idelchi/fileinsights/internal/store"
	"github.com/idelchi/fileinsights/internal/walk"
)

// ErrNoMatches is returned with a valid Result when no record matched.
var ErrNoMatches = errors.New("no files matched")

// Result is the outcome of a flow.
type Result struct {
	// Document is the report to emit.
	Document emit.Document
	// Available is the number of stored records matching the filter,
	// ignoring the limit. Store flow only.
	Available int64
	// Persisted is the number of records committed to the store.
	Persisted int64
	// PersistErr is set when mirroring records into the store failed.
	PersistErr error
	// Elapsed is the wall time of the flow.
	Elapsed time.Duration
}

func (r *Result) err() error {
	switch {
	case r.PersistErr != nil:
		return r.PersistErr
	case r.Document.NoMatches:
		return ErrNoMatches
	default:
		return nil
	}
}

// Run scans opts.Root and aggregates every matching file.
//
// An unreadable root is returned as a *walk.RootAccessError without a
// Result. A store that cannot be reached or written does not stop the
// scan: the Result is complete and the *store.PersistenceError is returned
// with it. Cancelling ctx stops the walk between files and returns the
// context error without a Result.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := logging.OrNop(opts.Logger)
	started := opts.now()

	extractor, err := newExtractor(opts, log)
	if err != nil {
		return nil, err
	}

	scan, err := walk.Walk(ctx, opts.Root, extractor, walk.Options{
		Excludes:         opts.Excludes,
		Extensions:       opts.Extensions,
		MinSize:          opts.MinSize,
		Depth:            opts.Depth,
		FollowSymlinks:   opts.FollowSymlinks,
		Workers:          opts.Workers,
		Progress:         opts.Progress,
		ProgressInterval: opts.ProgressInterval,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	scanID := uuid.NewString()
	log = log.With(zap.String("scan_id", scanID))

	sink, err := openSink(ctx, opts, scanID, log)
	if err != nil {
		return nil, err
	}
	defer sink.close()

	log.Info("scanning", zap.String("root", scan.Root()), zap.Bool("video", opts.Video), zap.Bool("persist", opts.Persist))

	agg := insights.New(insights.Options{TopN: opts.TopN, Now: started})

	for r := range scan.Records() {
		if opts.VideoOnly && r.Kind != record.KindVideo {
			continue
		}

		agg.Add(r)
		opts.Metrics.Observe(r)
		sink.add(ctx, r)
	}

	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("scanning %q: %w", scan.Root(), err)
	}

	sink.flush(ctx)

	finished := opts.now()

	doc := emit.NewDocument(emit.SourceScan, agg.Report(), finished)
	doc.Root = scan.Root()
	doc.ScanID = scanID
	doc.Warnings = emit.NewWarnings(scan.Warnings())

	res := &Result{
		Document:   doc,
		Persisted:  sink.saved(),
		PersistErr: sink.err,
		Elapsed:    finished.Sub(started),
	}

	if res.PersistErr != nil {
		res.Document.PersistenceError = res.PersistErr.Error()
	}

	opts.Metrics.Warnings(len(scan.Warnings()))
	opts.Metrics.Persisted(res.Persisted)
	opts.Metrics.Finish(started, finished)

	log.Info("scan finished",
		zap.Int64("files", doc.Report.TotalFiles),
		zap.Int("warnings", len(scan.Warnings())),
		zap.Int64("persisted", res.Persisted),
		zap.Duration("elapsed", res.Elapsed),
	)

	return res, res.err()
}

// RunFromStore aggregates the stored records matching opts.Extensions,
// opts.VideoOnly and opts.Limit. Store failures are returned without a
// Result.
func RunFromStore(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	log := logging.OrNop(opts.Logger)
	started := opts.now()

	s, err := openStore(ctx, opts, "", log)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	filter := store.Filter{Extensions: opts.Extensions, VideoOnly: opts.VideoOnly, Limit: opts.Limit}

	available, err := s.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	log.Info("reading store", zap.Int64("matching", available), zap.Int("limit", opts.Limit))

	agg := insights.New(insights.Options{TopN: opts.TopN, Now: started})

	for r, err := range s.Query(ctx, filter) {
		if err != nil {
			return nil, err
		}

		agg.Add(r)
		opts.Metrics.Observe(r)
	}

	finished := opts.now()
	opts.Metrics.Finish(started, finished)

	res := &Result{
		Document:  emit.NewDocument(emit.SourceStore, agg.Report(), finished),
		Available: available,
		Elapsed:   finished.Sub(started),
	}

	return res, res.err()
}

// Clear deletes every stored record and returns how many were removed.
func Clear(ctx context.Context, opts Options) (int64, error) {
	s, err := openStore(ctx, opts, "", logging.OrNop(opts.Logger))
	if err != nil {
		return 0, err
	}
	defer s.Close()

	return s.Clear(ctx)
}

func newExtractor(opts Options, log *zap.Logger) (*extract.Extractor, error) {
	prober := opts.Prober

	if opts.Video && prober == nil {
		ff := probe.FFProbe{}
		if err := ff.Available(); err != nil {
			return nil, fmt.Errorf("video metadata extraction: %w", err)
		}

		prober = ff
	}

	return extract.New(extract.Options{Video: opts.Video, Prober: prober, Logger: log}), nil
}

func openStore(ctx context.Context, opts Options, scanID string, log *zap.Logger) (*store.Store, error) {
	dsn, err := store.ResolveDSN(opts.DSN)
	if err != nil {
		return nil, err
	}

	return store.Open(ctx, dsn, store.Options{
		ScanID:    scanID,
		BatchSize: opts.BatchSize,
		Debug:     opts.Debug,
		Logger:    log,
	})
}
