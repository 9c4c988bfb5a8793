// internal/api/v2/websocket.go
package api

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/healthdesk/internal/logger"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

// checkWebSocketOrigin applies webserver.allowedorigins to upgrades.
// Requests without an Origin header come from non-browser clients.
func (c *Controller) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := c.Settings.WebServer.AllowedOrigins
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return true
	}
	if slices.ContainsFunc(allowed, func(o string) bool { return strings.EqualFold(o, origin) }) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ToastWebSocket handles GET /toasts/ws: the same render surface as the SSE
// stream, as JSON frames {"type": ..., "toast": ..., "id": ...}.
func (c *Controller) ToastWebSocket(ctx echo.Context) error {
	if !c.beginStream() {
		return c.HandleError(ctx, nil, "Server is shutting down", http.StatusServiceUnavailable)
	}
	defer c.wg.Done()

	conn, err := c.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		c.logger.Debug("websocket upgrade failed", logger.Error(err))
		return nil
	}
	defer conn.Close()

	streamCtx, cancel := c.streamContext(ctx.Request().Context())
	defer cancel()

	stream, err := c.openToastStream(transportWebSocket)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "toast bus unavailable"),
			time.Now().Add(wsWriteWait))
		return nil
	}

	var streamErr error
	defer func() { c.closeToastStream(streamCtx, stream, transportWebSocket, streamErr) }()

	// The read pump only exists to notice pongs and the client going away.
	heartbeat := c.heartbeatInterval()
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}

	if streamErr = write(map[string]string{
		"type":     eventConnected,
		"clientId": stream.clientID,
	}); streamErr != nil {
		return nil
	}
	c.recordStreamMessage(transportWebSocket, eventConnected)

	c.logger.Info("toast websocket connected",
		logger.String("client_id", stream.clientID),
		logger.String("ip", ctx.RealIP()))

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case ev := <-stream.events:
			if streamErr = write(ev); streamErr != nil {
				return nil
			}
			c.recordStreamMessage(transportWebSocket, ev.Type)

		case <-ticker.C:
			if streamErr = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); streamErr != nil {
				return nil
			}
			c.recordStreamMessage(transportWebSocket, eventHeartbeat)

		case <-streamCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return nil
		}
	}
}
