// internal/api/v2/api.go
package api

import (
	"context"
	"crypto/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability"
	"github.com/tphakala/healthdesk/internal/toast"
)

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Bus      *toast.Bus

	logger    logger.Logger
	metrics   *observability.Metrics // nil disables request metrics
	listCache *cache.Cache           // doctor and patient list responses
	startTime time.Time
	now       func() time.Time

	// server-side surface backing GET /toasts/active
	surface *toast.Surface

	notifier AppointmentNotifier

	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // tracks stream goroutines for clean shutdown

	// streamMu orders wg.Add against the Wait in Shutdown
	streamMu      sync.Mutex
	streamsClosed bool
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger replaces the api module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables request and stream metrics and mounts /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithNow overrides the wall clock used for token issue and expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Custom IP Extractor prioritizing X-Forwarded-For from a fronting proxy
func ipExtractorFromHeaders(req *http.Request) string {
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		for part := range strings.SplitSeq(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := req.Header.Get(echo.HeaderXRealIP); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// New creates a new API controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, bus *toast.Bus, opts ...Option) (*Controller, error) {
	if bus == nil {
		return nil, errors.New(toast.ErrNotInitialized).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Bus:       bus,
		logger:    logger.Global().Module("api"),
		listCache: cache.New(5*time.Minute, 10*time.Minute),
		startTime: time.Now(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	surface, err := toast.NewSurface(bus,
		toast.WithName("server"),
		toast.WithCapacity(settings.Toast.SurfaceCapacity))
	if err != nil {
		cancel()
		return nil, err
	}
	c.surface = surface

	c.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.checkWebSocketOrigin,
	}

	e.IPExtractor = ipExtractorFromHeaders

	// liveness probe on the root path
	e.GET("/", c.Root)

	c.Group = e.Group("/api/v2")

	// Configure middlewares
	c.Group.Use(middleware.Recover()) // Recover should be early
	c.Group.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: generateRequestID,
	}))
	c.Group.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: settings.WebServer.AllowedOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	c.Group.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))
	if settings.WebServer.BodyLimit != "" {
		c.Group.Use(middleware.BodyLimit(settings.WebServer.BodyLimit))
	}
	c.Group.Use(c.LoggingMiddleware())
	c.Group.Use(c.MetricsMiddleware())

	c.initRoutes()

	return c, nil
}

// initRoutes registers all API endpoints
func (c *Controller) initRoutes() {
	// Health check endpoint - publicly accessible
	c.Group.GET("/health", c.HealthCheck)

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"auth routes", c.initAuthRoutes},
		{"doctor routes", c.initDoctorRoutes},
		{"patient routes", c.initPatientRoutes},
		{"patient record routes", c.initRecordRoutes},
		{"appointment routes", c.initAppointmentRoutes},
		{"toast routes", c.initToastRoutes},
		{"metrics routes", c.initMetricsRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("panic during route initialization",
						logger.String("routes", initializer.name),
						logger.Any("panic", r))
				}
			}()
			initializer.fn()
			c.logger.Debug("routes initialized", logger.String("routes", initializer.name))
		}()
	}
}

// beginStream registers a stream with the shutdown wait group. It returns
// false once Shutdown has started; the caller must not stream then.
func (c *Controller) beginStream() bool {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	if c.streamsClosed {
		return false
	}
	c.wg.Add(1)
	return true
}

// Root reports liveness for load balancers that probe the root path.
func (c *Controller) Root(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Shutdown performs cleanup of all resources used by the API controller.
// Open streams are told to stop and are waited for.
func (c *Controller) Shutdown() {
	c.streamMu.Lock()
	c.streamsClosed = true
	c.streamMu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if c.surface != nil {
		c.surface.Close()
	}

	// the go-cache janitor goroutine cannot be stopped, only emptied
	if c.listCache != nil {
		c.listCache.Flush()
	}

	c.logger.Debug("api controller shut down")
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: generateCorrelationID(),
	}
}

// generateCorrelationID creates a short random identifier for error tracking
func generateCorrelationID() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 8

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "ERR-RAND"
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.logger.Error("api error", fields...)
	} else {
		c.logger.Debug("api error", fields...)
	}

	return ctx.JSON(code, errorResp)
}

// respondError maps an error from the datastore or the bus onto a status
// code. Client errors carry the sentinel text as the message, server errors
// a generic one.
func (c *Controller) respondError(ctx echo.Context, err error) error {
	switch {
	case errors.IsNotFound(err):
		return c.HandleError(ctx, err, err.Error(), http.StatusNotFound)
	case errors.IsValidation(err), errors.IsCategory(err, errors.CategoryConflict):
		return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
	case errors.IsCategory(err, errors.CategoryAuthentication):
		return c.HandleError(ctx, err, err.Error(), http.StatusUnauthorized)
	}
	return c.HandleError(ctx, err, "Internal server error", http.StatusInternalServerError)
}
