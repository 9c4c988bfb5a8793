// internal/api/v2/middleware.go
package api

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/healthdesk/internal/logger"
)

func generateRequestID() string {
	return uuid.NewString()
}

// LoggingMiddleware creates a middleware function that logs API requests
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			req := ctx.Request()
			res := ctx.Response()

			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.String("query", req.URL.RawQuery),
				logger.Int("status", res.Status),
				logger.String("ip", ctx.RealIP()),
				logger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				logger.String("user_agent", req.UserAgent()),
				logger.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				fields = append(fields, logger.Error(err))
			}

			if c.Settings.WebServer.Debug {
				c.logger.Info("api request", fields...)
			} else {
				c.logger.Debug("api request", fields...)
			}

			return err
		}
	}
}

// MetricsMiddleware records request counts and latencies by route pattern.
// Streams are skipped, their lifetime is tracked by the stream metrics.
func (c *Controller) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c.metrics == nil || c.metrics.HTTP == nil || isStreamPath(ctx.Path()) {
				return next(ctx)
			}

			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := ctx.Path()
			if path == "" {
				path = "unmatched"
			}
			c.metrics.HTTP.RecordHTTPRequest(ctx.Request().Method, path, status, time.Since(start).Seconds())
			if status >= 500 {
				c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, path, "server_error")
			}
			return err
		}
	}
}

func isStreamPath(path string) bool {
	return strings.HasSuffix(path, "/toasts/stream") || strings.HasSuffix(path, "/toasts/ws")
}
