// internal/api/v2/stream.go
package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability/metrics"
	"github.com/tphakala/healthdesk/internal/toast"
)

// Stream event types, shared by SSE event names and WebSocket frames.
const (
	eventConnected = "connected"
	eventToast     = "toast"
	eventExpired   = "expired"
	eventHeartbeat = "heartbeat"
)

const (
	transportSSE       = "sse"
	transportWebSocket = "websocket"

	defaultStreamBuffer = 32
	defaultHeartbeat    = 30 * time.Second
)

// streamEvent is one message pushed to a remote surface.
type streamEvent struct {
	Type  string       `json:"type"`
	Toast *toast.Toast `json:"toast,omitempty"`
	ID    uint64       `json:"id,omitempty"`
}

// toastStream mounts a toast.Surface for one remote client and turns its
// changes into buffered events. A client that cannot keep up loses events
// rather than stalling announcers.
type toastStream struct {
	clientID string
	surface  *toast.Surface
	events   chan streamEvent
	dropped  atomic.Int64
	opened   time.Time
}

func (c *Controller) openToastStream(transport string) (*toastStream, error) {
	size := c.Settings.Toast.StreamBuffer
	if size <= 0 {
		size = defaultStreamBuffer
	}
	s := &toastStream{
		clientID: uuid.NewString(),
		events:   make(chan streamEvent, size),
		opened:   time.Now(),
	}

	surface, err := toast.NewSurface(c.Bus,
		toast.WithName(transport),
		toast.WithCapacity(c.Settings.Toast.SurfaceCapacity),
		toast.WithChangeHandler(s.onChange))
	if err != nil {
		return nil, err
	}
	s.surface = surface

	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.StreamOpened(transport)
	}
	return s, nil
}

func (s *toastStream) onChange(ch toast.Change) {
	ev := streamEvent{Type: eventToast}
	switch ch.Kind {
	case toast.ChangeAdded:
		t := ch.Toast
		ev.Toast = &t
	case toast.ChangeExpired:
		ev = streamEvent{Type: eventExpired, ID: ch.Toast.ID}
	}

	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}

// closeToastStream unmounts the surface and records why the stream ended.
func (c *Controller) closeToastStream(ctx context.Context, s *toastStream, transport string, streamErr error) {
	s.surface.Close()

	reason := metrics.StreamCloseReasonClosed
	switch {
	case streamErr != nil:
		reason = metrics.StreamCloseReasonError
	case ctx.Err() == context.DeadlineExceeded:
		reason = metrics.StreamCloseReasonTimeout
	case ctx.Err() == context.Canceled:
		reason = metrics.StreamCloseReasonCanceled
	}

	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.StreamClosed(transport, time.Since(s.opened).Seconds(), reason)
	}

	fields := []logger.Field{
		logger.String("client_id", s.clientID),
		logger.String("transport", transport),
		logger.String("reason", reason),
		logger.Duration("duration", time.Since(s.opened)),
	}
	if n := s.dropped.Load(); n > 0 {
		fields = append(fields, logger.Int64("dropped_events", n))
	}
	c.logger.Info("toast stream closed", fields...)
}

func (c *Controller) recordStreamMessage(transport, eventType string) {
	if c.metrics != nil && c.metrics.HTTP != nil {
		c.metrics.HTTP.RecordStreamMessage(transport, eventType)
	}
}

func (c *Controller) heartbeatInterval() time.Duration {
	if c.Settings.Toast.Heartbeat > 0 {
		return c.Settings.Toast.Heartbeat
	}
	return defaultHeartbeat
}

// streamContext bounds a stream by the request, the controller lifetime and
// toast.maxstreamduration.
func (c *Controller) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d := c.Settings.Toast.MaxStreamDuration; d > 0 {
		ctx, cancel = context.WithTimeout(parent, d)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
