package fileinsights

import (
	"context"

	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/record"
	"github.com/idelchi/fileinsights/internal/store"
)

// sink mirrors scanned records into the store. After the first failure it
// only remembers the error; the scan itself carries on.
type sink struct {
	store  *store.Store
	writer *store.Writer
	log    *zap.Logger
	err    error
}

// openSink connects to the store when persistence is enabled. A missing
// connection string is a configuration error and is returned; an
// unreachable store is kept as the sink's error.
func openSink(ctx context.Context, opts Options, scanID string, log *zap.Logger) (*sink, error) {
	s := &sink{log: log}

	if !opts.Persist {
		return s, nil
	}

	if _, err := store.ResolveDSN(opts.DSN); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, opts, scanID, log)
	if err != nil {
		log.Warn("store unavailable, continuing without persistence", zap.Error(err))
		s.err = err

		return s, nil
	}

	if opts.Rebuild {
		if err := st.Rebuild(ctx); err != nil {
			_ = st.Close()
			s.err = err

			return s, nil
		}
	}

	s.store = st
	s.writer = st.NewWriter()

	return s, nil
}

func (s *sink) add(ctx context.Context, r record.FileRecord) {
	if s.writer == nil || s.err != nil {
		return
	}

	s.err = s.writer.Add(ctx, r)
}

func (s *sink) flush(ctx context.Context) {
	if s.writer == nil || s.err != nil {
		return
	}

	s.err = s.writer.Flush(ctx)
}

func (s *sink) saved() int64 {
	if s.writer == nil {
		return 0
	}

	return s.writer.Saved()
}

func (s *sink) close() {
	if s.store == nil {
		return
	}

	if err := s.store.Close(); err != nil {
		s.log.Warn("closing store", zap.Error(err))
	}
}
