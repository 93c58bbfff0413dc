package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/idelchi/fileinsights/internal/record"
)

// Writer buffers records and saves them in batches while a scan is running.
// After the first failed batch the Writer stops saving; the error is
// returned by that Add or Flush and by Err afterwards.
type Writer struct {
	store *Store
	buf   []record.FileRecord
	saved int64
	err   error
}

// NewWriter returns a Writer flushing every BatchSize records.
func (s *Store) NewWriter() *Writer {
	return &Writer{store: s, buf: make([]record.FileRecord, 0, s.batchSize)}
}

// Add buffers r and saves the buffer once it is full.
func (w *Writer) Add(ctx context.Context, r record.FileRecord) error {
	if w.err != nil {
		return w.err
	}

	w.buf = append(w.buf, r)
	if len(w.buf) < w.store.batchSize {
		return nil
	}

	return w.Flush(ctx)
}

// Flush saves whatever is buffered.
func (w *Writer) Flush(ctx context.Context) error {
	if w.err != nil || len(w.buf) == 0 {
		return w.err
	}

	if err := w.store.Save(ctx, w.buf); err != nil {
		w.err = err
		w.store.log.Warn("saving batch", zap.Int("records", len(w.buf)), zap.Error(err))

		return err
	}

	w.saved += int64(len(w.buf))
	w.buf = w.buf[:0]

	return nil
}

// Saved returns the number of records committed so far.
func (w *Writer) Saved() int64 {
	return w.saved
}

// Err returns the first save error, if any.
func (w *Writer) Err() error {
	return w.err
}
