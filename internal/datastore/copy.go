package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

// DefaultCopyBatchSize is the number of rows inserted per statement.
const DefaultCopyBatchSize = 500

// CopyOptions controls Copy.
type CopyOptions struct {
	BatchSize int           // rows per insert, DefaultCopyBatchSize when zero
	Clean     bool          // empty target tables before copying
	Log       logger.Logger // progress output, datastore module logger when nil
}

// TableStats describes one copied table. Target is counted after the copy.
type TableStats struct {
	Table    string
	Source   int64
	Target   int64
	Copied   int64
	Skipped  int64 // rows whose primary key already existed in the target
	Failed   int64
	Duration time.Duration
}

// Complete reports whether no batch failed and the target holds at least
// as many rows as the source.
func (s TableStats) Complete() bool {
	return s.Failed == 0 && s.Target >= s.Source
}

type copyFunc func(ctx context.Context, src, dst *gorm.DB, batch int, log logger.Logger) (TableStats, error)

// tables in dependency order, parents first
var copyTables = []struct {
	name  string
	model any
	copy  copyFunc
}{
	{"doctors", &Doctor{}, copyTable[Doctor]},
	{"patients", &Patient{}, copyTable[Patient]},
	{"users", &User{}, copyTable[User]},
	{"patient_records", &PatientRecord{}, copyTable[PatientRecord]},
	{"appointments", &Appointment{}, copyTable[Appointment]},
	{"auth_tokens", &Token{}, copyTable[Token]},
}

// Copy copies every table from src into dst. Both stores must be open.
// Rows whose primary key already exists in dst are skipped, so an
// interrupted copy can be rerun. A failed batch is counted and the copy
// moves on to the next one.
func Copy(ctx context.Context, src, dst Interface, opts CopyOptions) ([]TableStats, error) {
	srcDB, err := gormDB(src)
	if err != nil {
		return nil, err
	}
	dstDB, err := gormDB(dst)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultCopyBatchSize
	}
	if opts.Log == nil {
		opts.Log = logger.Global().Module("datastore")
	}
	srcDB = srcDB.WithContext(ctx)
	dstDB = dstDB.WithContext(ctx)

	if opts.Clean {
		// children first
		for i := len(copyTables) - 1; i >= 0; i-- {
			t := copyTables[i]
			if err := dstDB.Where("1 = 1").Delete(t.model).Error; err != nil {
				return nil, dbError(err, "copy_clean", "table", t.name)
			}
		}
		opts.Log.Info("target tables emptied")
	}

	stats := make([]TableStats, 0, len(copyTables))
	for _, t := range copyTables {
		s, err := t.copy(ctx, srcDB, dstDB, opts.BatchSize, opts.Log.With(logger.String("table", t.name)))
		s.Table = t.name
		if err != nil {
			return stats, dbError(err, "copy_table", "table", t.name)
		}
		if err := dstDB.Model(t.model).Count(&s.Target).Error; err != nil {
			return stats, dbError(err, "copy_count", "table", t.name)
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB, batch int, log logger.Logger) (TableStats, error) {
	start := time.Now()
	var stats TableStats

	if err := src.Model(new(T)).Count(&stats.Source).Error; err != nil {
		return stats, err
	}
	if stats.Source == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	var rows []T
	err := src.Model(new(T)).FindInBatches(&rows, batch, func(tx *gorm.DB, n int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result := dst.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
		if result.Error != nil {
			stats.Failed += int64(len(rows))
			log.Warn("copy batch failed",
				logger.Int("batch", n),
				logger.Int("rows", len(rows)),
				logger.Error(result.Error))
			return nil
		}
		stats.Copied += result.RowsAffected
		stats.Skipped += int64(len(rows)) - result.RowsAffected
		return nil
	}).Error

	stats.Duration = time.Since(start)
	if err != nil {
		return stats, err
	}
	log.Info("table copied",
		logger.Int64("copied", stats.Copied),
		logger.Int64("skipped", stats.Skipped),
		logger.Int64("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
	return stats, nil
}

// gormDB unwraps the connection of an opened store.
func gormDB(store Interface) (*gorm.DB, error) {
	var db *gorm.DB
	switch s := store.(type) {
	case *SQLiteStore:
		db = s.DB
	case *MySQLStore:
		db = s.DB
	default:
		return nil, errors.Newf("copy needs a database-backed store, got %T", store).
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}
	if db == nil {
		return nil, ErrNotOpen
	}
	return db, nil
}
