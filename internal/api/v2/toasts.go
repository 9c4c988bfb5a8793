// internal/api/v2/toasts.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/toast"
)

// sseWriteTimeout bounds a single SSE write to a slow or gone client
const sseWriteTimeout = 10 * time.Second

// AnnounceRequest is the body of POST /toasts.
type AnnounceRequest struct {
	Text        string `json:"text"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
	TTLMs       int64  `json:"ttlMs"` // <= 0 uses the default TTL
}

func (c *Controller) initToastRoutes() {
	c.Group.POST("/toasts", c.AnnounceToast, c.AuthMiddleware)
	c.Group.GET("/toasts/active", c.ActiveToasts)

	limiter := middleware.RateLimiterWithConfig(c.streamRateLimiterConfig())
	c.Group.GET("/toasts/stream", c.StreamToasts, limiter)
	c.Group.GET("/toasts/ws", c.ToastWebSocket, limiter)
}

// streamRateLimiterConfig limits stream connection attempts per client IP
// to toast.ratelimit.requests per toast.ratelimit.window.
func (c *Controller) streamRateLimiterConfig() middleware.RateLimiterConfig {
	rl := c.Settings.Toast.RateLimit
	window := rl.Window
	if window <= 0 {
		window = time.Minute
	}
	requests := rl.Requests
	if requests <= 0 {
		requests = 10
	}
	burst := max(rl.Burst, requests)

	return middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(requests) / window.Seconds()),
				Burst:     burst,
				ExpiresIn: window,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded for toast streams",
			})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many stream connection attempts, please wait before trying again",
			})
		},
	}
}

// AnnounceToast handles POST /toasts
func (c *Controller) AnnounceToast(ctx echo.Context) error {
	var req AnnounceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	variant, err := toast.ParseVariant(req.Variant)
	if err != nil {
		return c.HandleError(ctx, err, "Unknown toast variant", http.StatusBadRequest)
	}

	t, err := c.Bus.Announce(toast.Request{
		Text:        req.Text,
		Title:       req.Title,
		Description: req.Description,
		Variant:     variant,
		TTL:         time.Duration(req.TTLMs) * time.Millisecond,
	})
	if err != nil {
		if errors.Is(err, toast.ErrMalformedRequest) {
			return c.HandleError(ctx, err, "title or text is required", http.StatusBadRequest)
		}
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, t)
}

// ActiveToasts handles GET /toasts/active
func (c *Controller) ActiveToasts(ctx echo.Context) error {
	active := c.surface.Active()
	if active == nil {
		active = []toast.Toast{}
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"toasts":    active,
		"observers": c.Bus.Observers(),
	})
}

// StreamToasts handles GET /toasts/stream. The connection is a render
// surface: it receives every toast announced while it is open and an
// expired event when the toast's TTL ends.
func (c *Controller) StreamToasts(ctx echo.Context) error {
	if !c.beginStream() {
		return c.HandleError(ctx, nil, "Server is shutting down", http.StatusServiceUnavailable)
	}
	defer c.wg.Done()

	streamCtx, cancel := c.streamContext(ctx.Request().Context())
	defer cancel()

	stream, err := c.openToastStream(transportSSE)
	if err != nil {
		return c.respondError(ctx, err)
	}

	var streamErr error
	defer func() { c.closeToastStream(streamCtx, stream, transportSSE, streamErr) }()

	c.setSSEHeaders(ctx)
	ctx.Response().WriteHeader(http.StatusOK)

	if streamErr = c.sendSSEMessage(ctx, eventConnected, map[string]any{
		"clientId": stream.clientID,
		"message":  "Connected to toast stream",
	}); streamErr != nil {
		return nil
	}
	c.recordStreamMessage(transportSSE, eventConnected)

	c.logger.Info("toast stream connected",
		logger.String("client_id", stream.clientID),
		logger.String("ip", ctx.RealIP()),
		logger.String("user_agent", ctx.Request().UserAgent()))

	ticker := time.NewTicker(c.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case ev := <-stream.events:
			var payload any = ev.Toast
			if ev.Type == eventExpired {
				payload = map[string]uint64{"id": ev.ID}
			}
			if streamErr = c.sendSSEMessage(ctx, ev.Type, payload); streamErr != nil {
				c.logger.Debug("toast stream write failed",
					logger.String("client_id", stream.clientID),
					logger.Error(streamErr))
				return nil
			}
			c.recordStreamMessage(transportSSE, ev.Type)

		case <-ticker.C:
			if streamErr = c.sendSSEMessage(ctx, eventHeartbeat, map[string]any{
				"timestamp": time.Now().Unix(),
				"observers": c.Bus.Observers(),
			}); streamErr != nil {
				return nil
			}
			c.recordStreamMessage(transportSSE, eventHeartbeat)

		case <-streamCtx.Done():
			return nil
		}
	}
}

func (c *Controller) setSSEHeaders(ctx echo.Context) {
	h := ctx.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// sendSSEMessage sends a Server-Sent Event message
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	rc := http.NewResponseController(ctx.Response().Writer)
	if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.logger.Trace("failed to set SSE write deadline", logger.Error(err))
	}

	if _, err := fmt.Fprintf(ctx.Response(), "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	ctx.Response().Flush()
	return nil
}
