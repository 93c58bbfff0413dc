// Package store persists file records in a relational database.
//
// One table, keyed by path, holds every column of a record.FileRecord. The
// connection is acquired by Open and released by Close; callers are
// expected to defer Close. Nothing is retried: a failed operation returns a
// single *PersistenceError and retry policy is left to the caller.
package store

import (
	"context"
	"iter"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/idelchi/fileinsights/internal/logging"
	"github.com/idelchi/fileinsights/internal/record"
)

// EnvDSN is the environment variable consulted when no connection string
// is given explicitly.
const EnvDSN = "DATABASE_URL"

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 500

// ResolveDSN returns explicit if set, else the value of EnvDSN.
func ResolveDSN(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if env := os.Getenv(EnvDSN); env != "" {
		return env, nil
	}

	return "", ErrNoDSN
}

// Dialector picks the gorm dialect from the connection string:
// postgres:// and postgresql:// URLs or key=value DSNs containing host=
// use PostgreSQL; sqlite://<path>, file: URIs and bare paths use SQLite.
func Dialector(dsn string) gorm.Dialector {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="):
		return postgres.Open(dsn)
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://"))
	default:
		return sqlite.Open(dsn)
	}
}

// Options configures a Store.
type Options struct {
	// ScanID is stamped on every saved row.
	ScanID string
	// BatchSize is the number of rows per transaction (<=0 = DefaultBatchSize).
	BatchSize int
	// Debug logs SQL statements to stderr.
	Debug bool
	// Logger receives store events. Nil disables logging.
	Logger *zap.Logger
}

// Store is an open connection to the records table.
type Store struct {
	db        *gorm.DB
	scanID    string
	batchSize int
	log       *zap.Logger
}

// Filter selects records in Query and Count. The zero value matches all.
type Filter struct {
	// Extensions restricts to these extensions (case-insensitive, the
	// leading dot is optional).
	Extensions []string
	// VideoOnly restricts to records of kind video.
	VideoOnly bool
	// Limit caps the number of records returned by Query (0 = unlimited).
	Limit int
}

// Open connects to dsn, verifies the connection and creates the table if
// it does not exist.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	level := gormlogger.Silent
	if opts.Debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(Dialector(dsn), &gorm.Config{
		Logger: gormlogger.New(log.New(os.Stderr, "", log.LstdFlags), gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, &PersistenceError{Op: "connect", Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &PersistenceError{Op: "connect", Err: err}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, &PersistenceError{Op: "connect", Err: err}
	}

	if err := db.WithContext(ctx).AutoMigrate(&fileRow{}); err != nil {
		_ = sqlDB.Close()

		return nil, &PersistenceError{Op: "migrate", Err: err}
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Store{db: db, scanID: opts.ScanID, batchSize: opts.BatchSize, log: logging.OrNop(opts.Logger)}, nil
}

// Close releases the connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Rebuild drops and recreates the table. All rows are lost.
func (s *Store) Rebuild(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if err := db.Migrator().DropTable(&fileRow{}); err != nil {
		return &PersistenceError{Op: "rebuild", Err: err}
	}

	if err := db.AutoMigrate(&fileRow{}); err != nil {
		return &PersistenceError{Op: "rebuild", Err: err}
	}

	s.log.Info("rebuilt table", zap.String("table", fileRow{}.TableName()))

	return nil
}

// Save upserts records by path. Each batch of BatchSize records is written
// in one transaction: either the whole batch is stored or none of it is,
// and the returned *PersistenceError lists the batch's paths. Batches
// before the failing one stay committed.
func (s *Store) Save(ctx context.Context, records []record.FileRecord) error {
	scannedAt := time.Now()

	for start := 0; start < len(records); start += s.batchSize {
		batch := records[start:min(start+s.batchSize, len(records))]

		if err := s.saveBatch(ctx, batch, scannedAt); err != nil {
			paths := make([]string, len(batch))
			for i, r := range batch {
				paths[i] = r.Path
			}

			return &PersistenceError{Op: "save", Paths: paths, Err: err}
		}
	}

	return nil
}

func (s *Store) saveBatch(ctx context.Context, batch []record.FileRecord, scannedAt time.Time) error {
	rows := make([]fileRow, 0, len(batch))
	index := make(map[string]int, len(batch))

	// A path may only appear once per upsert statement; the later record wins.
	for _, r := range batch {
		row := newRow(r, s.scanID, scannedAt)
		if i, ok := index[r.Path]; ok {
			rows[i] = row

			continue
		}

		index[r.Path] = len(rows)
		rows = append(rows, row)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
}

func (s *Store) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&fileRow{})

	if exts := normalizeExtensions(f.Extensions); len(exts) > 0 {
		q = q.Where("extension IN ?", exts)
	}

	if f.VideoOnly {
		q = q.Where("kind = ?", string(record.KindVideo))
	}

	return q
}

// Query streams the matching records ordered by the bytes of their path.
// Iteration stops after the first error, which is yielded with a zero
// record. A row that does not form a valid record is an error.
func (s *Store) Query(ctx context.Context, f Filter) iter.Seq2[record.FileRecord, error] {
	return func(yield func(record.FileRecord, error) bool) {
		q := s.filtered(ctx, f).Order(s.pathOrder())
		if f.Limit > 0 {
			q = q.Limit(f.Limit)
		}

		rows, err := q.Rows()
		if err != nil {
			yield(record.FileRecord{}, &PersistenceError{Op: "query", Err: err})

			return
		}
		defer rows.Close()

		for rows.Next() {
			var row fileRow
			if err := s.db.ScanRows(rows, &row); err != nil {
				yield(record.FileRecord{}, &PersistenceError{Op: "query", Err: err})

				return
			}

			r := row.record()
			if err := r.Validate(); err != nil {
				yield(record.FileRecord{}, &PersistenceError{Op: "query", Paths: []string{row.Path}, Err: err})

				return
			}

			if !yield(r, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(record.FileRecord{}, &PersistenceError{Op: "query", Err: err})
		}
	}
}

// pathOrder sorts by byte value, which keeps every directory's records
// contiguous. PostgreSQL otherwise sorts by the database locale.
func (s *Store) pathOrder() string {
	if s.db.Dialector.Name() == "postgres" {
		return `path COLLATE "C"`
	}

	return "path"
}

// Count returns the number of records matching f. Limit is ignored.
func (s *Store) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := s.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}

	return n, nil
}

// Clear deletes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&fileRow{})
	if res.Error != nil {
		return 0, &PersistenceError{Op: "clear", Err: res.Error}
	}

	s.log.Info("cleared store", zap.Int64("deleted", res.RowsAffected))

	return res.RowsAffected, nil
}

// normalizeExtensions lowercases and adds the leading dot.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))

	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}

		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}

		out = append(out, e)
	}

	return out
}
