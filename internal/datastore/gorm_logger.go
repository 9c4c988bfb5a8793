package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability/metrics"
)

// GormLogger routes GORM logging through the central logger and records
// per-statement metrics.
type GormLogger struct {
	*logger.GormLoggerAdapter
	metrics *metrics.DatastoreMetrics
}

// NewGormLogger creates a new GORM logger instance
func NewGormLogger(log logger.Logger, slowThreshold time.Duration, m *metrics.DatastoreMetrics) *GormLogger {
	return &GormLogger{
		GormLoggerAdapter: logger.NewGormLoggerAdapter(log, slowThreshold),
		metrics:           m,
	}
}

// LogMode implements logger.Interface
func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

// Trace implements logger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.metrics != nil {
		elapsed := time.Since(begin)
		sql, _ := fc()
		operation, table := parseSQLOperation(sql)
		l.metrics.RecordDbOperationDuration(operation, table, elapsed.Seconds())
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			l.metrics.RecordDbOperation(operation, table, metrics.StatusError)
			l.metrics.RecordDbOperationError(operation, table, categorizeError(err))
		} else {
			l.metrics.RecordDbOperation(operation, table, metrics.StatusSuccess)
		}
	}
	l.GormLoggerAdapter.Trace(ctx, begin, fc, err)
}

// parseSQLOperation extracts the statement kind and table from SQL text.
func parseSQLOperation(sql string) (operation, table string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown", "unknown"
	}

	var marker string
	switch strings.ToUpper(fields[0]) {
	case "SELECT":
		operation, marker = metrics.OpDbQuery, "FROM"
	case "INSERT":
		operation, marker = metrics.OpDbInsert, "INTO"
	case "UPDATE":
		operation, marker = metrics.OpDbUpdate, "UPDATE"
	case "DELETE":
		operation, marker = metrics.OpDbDelete, "FROM"
	default:
		return strings.ToLower(fields[0]), "unknown"
	}

	for i, f := range fields {
		if strings.EqualFold(f, marker) && i+1 < len(fields) {
			return operation, strings.Trim(fields[i+1], "`\"")
		}
	}
	return operation, "unknown"
}
