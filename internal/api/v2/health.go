// internal/api/v2/health.go
package api

import (
	"context"
	"net/http"
	"path/filepath"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/tphakala/healthdesk/internal/logger"
)

const healthProbeTimeout = 2 * time.Second

// HealthCheck handles GET /health
func (c *Controller) HealthCheck(ctx echo.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthProbeTimeout)
	defer cancel()

	response := map[string]any{
		"status":    "healthy",
		"name":      c.Settings.Main.Name,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if c.Settings.WebServer.Debug {
		response["environment"] = "development"
	} else {
		response["environment"] = "production"
	}

	dbStatus := "connected"
	if err := c.DS.Ping(probeCtx); err != nil {
		dbStatus = "disconnected"
		response["status"] = "degraded"
		response["database_error"] = err.Error()
	}
	response["database_status"] = dbStatus
	response["database_dialect"] = c.DS.Dialect()

	uptime := time.Since(c.startTime)
	response["uptime"] = uptime.Round(time.Second).String()
	response["uptime_seconds"] = uptime.Seconds()

	response["toasts"] = map[string]any{
		"observers": c.Bus.Observers(),
		"active":    len(c.surface.Active()),
	}

	response["system"] = c.systemStats(probeCtx)

	return ctx.JSON(http.StatusOK, response)
}

// systemStats reports memory and disk usage. Collection failures are
// logged and leave the affected section out.
func (c *Controller) systemStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"goroutines": runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		c.logger.Debug("memory stats unavailable", logger.Error(err))
	} else {
		stats["memory"] = map[string]any{
			"used_percent": vm.UsedPercent,
			"total_mb":     float64(vm.Total) / 1024 / 1024,
			"used_mb":      float64(vm.Used) / 1024 / 1024,
		}
	}

	if usage, err := disk.UsageWithContext(ctx, c.diskPath()); err != nil {
		c.logger.Debug("disk stats unavailable", logger.Error(err))
	} else {
		stats["disk_space"] = map[string]any{
			"path":         usage.Path,
			"total_gb":     float64(usage.Total) / 1024 / 1024 / 1024,
			"free_gb":      float64(usage.Free) / 1024 / 1024 / 1024,
			"used_percent": usage.UsedPercent,
		}
	}

	return stats
}

// diskPath is the directory holding the sqlite database, or the working
// directory for mysql.
func (c *Controller) diskPath() string {
	if c.Settings.Database.Type == "sqlite" && c.Settings.Database.SQLite.Path != "" {
		if abs, err := filepath.Abs(filepath.Dir(c.Settings.Database.SQLite.Path)); err == nil {
			return abs
		}
	}
	return "."
}
