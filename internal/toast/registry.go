package toast

import (
	"fmt"
	"slices"
	"sync"

	"github.com/tphakala/healthdesk/internal/logger"
)

// Observer receives every delivered toast.
type Observer func(Toast)

type subscriber struct {
	id uint64
	fn Observer
}

// Registry holds the ordered observer set.
type Registry struct {
	mu          sync.Mutex
	subscribers []*subscriber
	nextID      uint64
	logger      logger.Logger
	recorder    Recorder
}

// NewRegistry creates an empty registry. A nil logger or recorder falls back
// to the global logger and a no-op recorder.
func NewRegistry(log logger.Logger, rec Recorder) *Registry {
	if log == nil {
		log = logger.Global().Module("toast")
	}
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Registry{logger: log, recorder: rec}
}

// Subscription is the handle returned by Register.
type Subscription struct {
	registry *Registry
	sub      *subscriber
	once     sync.Once
}

// Register appends fn to the observer set. Registering the same function
// twice yields two independent subscriptions.
func (r *Registry) Register(fn Observer) *Subscription {
	r.mu.Lock()
	r.nextID++
	sub := &subscriber{id: r.nextID, fn: fn}
	r.subscribers = append(r.subscribers, sub)
	n := len(r.subscribers)
	r.mu.Unlock()

	r.recorder.SetObservers(n)
	r.logger.Debug("observer registered",
		logger.Uint64("subscription", sub.id),
		logger.Int("observers", n))

	return &Subscription{registry: r, sub: sub}
}

// Unregister removes the observer. Safe to call more than once and from
// inside the observer itself.
func (s *Subscription) Unregister() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.registry.remove(s.sub)
	})
}

func (r *Registry) remove(target *subscriber) {
	r.mu.Lock()
	idx := slices.Index(r.subscribers, target)
	if idx >= 0 {
		// copy-on-write: snapshots taken by in-flight deliveries keep the old slice
		r.subscribers = slices.Delete(slices.Clone(r.subscribers), idx, idx+1)
	}
	n := len(r.subscribers)
	r.mu.Unlock()

	if idx < 0 {
		return
	}
	r.recorder.SetObservers(n)
	r.logger.Debug("observer unregistered",
		logger.Uint64("subscription", target.id),
		logger.Int("observers", n))
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// NotifyAll delivers t to every observer registered when the call starts,
// in registration order, and returns how many observers were invoked. The
// registry lock is not held while observers run.
func (r *Registry) NotifyAll(t Toast) int {
	r.mu.Lock()
	snapshot := r.subscribers
	r.mu.Unlock()

	for _, sub := range snapshot {
		r.invoke(sub, t)
	}
	return len(snapshot)
}

// invoke runs a single observer, containing any panic so that the rest of
// the snapshot still receives the toast.
func (r *Registry) invoke(sub *subscriber, t Toast) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recorder.RecordObserverPanic()
			r.logger.Error("toast observer panicked",
				logger.Uint64("subscription", sub.id),
				logger.Uint64("toast_id", t.ID),
				logger.String("panic", fmt.Sprint(rec)))
		}
	}()
	sub.fn(t)
}
