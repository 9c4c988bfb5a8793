package toast

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/healthdesk/internal/logger"
)

// ChangeKind tells a change handler what happened to the display list.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeExpired ChangeKind = "expired"
)

// Change is emitted for every addition to or removal from a surface.
type Change struct {
	Kind  ChangeKind
	Toast Toast
}

// Surface is a render surface: it owns the list of visible toasts and one
// expiry timer per toast.
type Surface struct {
	name     string
	clock    Clock
	logger   logger.Logger
	recorder Recorder
	onChange func(Change)
	capacity int

	sub *Subscription

	mu     sync.Mutex
	items  []Toast
	timers map[uint64]Timer
	closed bool
}

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithName labels the surface in logs and metrics ("server", "stream", "ws").
func WithName(name string) SurfaceOption {
	return func(s *Surface) { s.name = name }
}

// WithChangeHandler registers fn to be called after each change. fn runs on
// the announcing goroutine or the timer goroutine, never under the surface
// lock, and must not block.
func WithChangeHandler(fn func(Change)) SurfaceOption {
	return func(s *Surface) { s.onChange = fn }
}

// WithCapacity bounds the display list. When full, the oldest toast is
// evicted and reported as expired. Zero means unbounded.
func WithCapacity(n int) SurfaceOption {
	return func(s *Surface) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewSurface mounts a surface on bus. It registers exactly one observer,
// which is released by Close.
func NewSurface(bus *Bus, opts ...SurfaceOption) (*Surface, error) {
	if bus == nil {
		return nil, ErrNotInitialized
	}

	s := &Surface{
		name:     "default",
		clock:    bus.clock,
		recorder: bus.recorder,
		timers:   make(map[uint64]Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = bus.logger.Module("surface").With(logger.String("surface", s.name))

	sub, err := bus.Register(s.deliver)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	return s, nil
}

func (s *Surface) deliver(t Toast) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.items = append(s.items, t)

	var evicted []Toast
	for s.capacity > 0 && len(s.items) > s.capacity {
		oldest := s.items[0]
		s.items = slices.Delete(s.items, 0, 1)
		if timer, ok := s.timers[oldest.ID]; ok {
			timer.Stop()
			delete(s.timers, oldest.ID)
		}
		evicted = append(evicted, oldest)
	}
	s.mu.Unlock()

	s.recorder.AddActiveToasts(s.name, 1-len(evicted))
	s.emit(Change{Kind: ChangeAdded, Toast: t})
	for _, old := range evicted {
		s.logger.Debug("toast evicted", logger.Uint64("toast_id", old.ID))
		s.emit(Change{Kind: ChangeExpired, Toast: old})
	}
	s.arm(t)
}

// arm starts t's expiry timer. It runs after the added change has been
// emitted so a handler never sees a toast expire before it was added.
func (s *Surface) arm(t Toast) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !slices.ContainsFunc(s.items, func(it Toast) bool { return it.ID == t.ID }) {
		return
	}
	id := t.ID
	s.timers[id] = s.clock.AfterFunc(t.TTL, func() { s.expire(id) })
}

// expire removes the toast with the given id once its timer fires.
func (s *Surface) expire(id uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	idx := slices.IndexFunc(s.items, func(t Toast) bool { return t.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	t := s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	s.mu.Unlock()

	s.recorder.AddActiveToasts(s.name, -1)
	s.logger.Trace("toast expired", logger.Uint64("toast_id", id))
	s.emit(Change{Kind: ChangeExpired, Toast: t})
}

func (s *Surface) emit(c Change) {
	if s.onChange == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("surface change handler panicked",
				logger.Uint64("toast_id", c.Toast.ID),
				logger.String("panic", fmt.Sprint(rec)))
		}
	}()
	s.onChange(c)
}

// Active returns the visible toasts in arrival order.
func (s *Surface) Active() []Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Name returns the surface label.
func (s *Surface) Name() string {
	return s.name
}

// Close unmounts the surface: it unregisters from the bus and cancels every
// pending expiry. Safe to call more than once.
func (s *Surface) Close() {
	s.sub.Unregister()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	n := len(s.items)
	s.items = nil
	s.mu.Unlock()

	if n > 0 {
		s.recorder.AddActiveToasts(s.name, -n)
	}
}
