// Package datastore provides monitoring functions for database operations
package datastore

import (
	"context"
	"time"

	"github.com/tphakala/healthdesk/internal/logger"
)

// monitoredTables are sampled for row counts.
var monitoredTables = []string{"doctors", "patients", "patient_records", "appointments", "users"}

// StartMonitoring samples connection pool statistics and table sizes every
// interval until ctx is done. It is a no-op without metrics.
func (ds *DataStore) StartMonitoring(ctx context.Context, interval time.Duration) {
	if ds.metrics == nil || ds.DB == nil || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ds.sample(ctx)
			}
		}
	}()
}

func (ds *DataStore) sample(ctx context.Context) {
	sqlDB, err := ds.DB.DB()
	if err != nil {
		ds.log.Warn("failed to get SQL DB for monitoring", logger.Error(err))
		return
	}

	stats := sqlDB.Stats()
	ds.metrics.UpdateConnectionMetrics(stats.InUse, stats.Idle, stats.MaxOpenConnections)
	if stats.WaitCount > 0 {
		ds.log.Debug("connection pool experiencing waits",
			logger.Int64("wait_count", stats.WaitCount),
			logger.Duration("wait_duration", stats.WaitDuration))
	}

	for _, table := range monitoredTables {
		var count int64
		if err := ds.DB.WithContext(ctx).Table(table).Count(&count).Error; err != nil {
			ds.log.Warn("failed to count table rows", logger.String("table", table), logger.Error(err))
			continue
		}
		ds.metrics.UpdateTableRowCount(table, count)
	}
}
