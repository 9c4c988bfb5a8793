package toast

import (
	"sync"
	"time"

	"github.com/tphakala/healthdesk/internal/logger"
)

// Bus is the capability handle for announcing toasts and registering
// observers. Every method on a nil *Bus returns ErrNotInitialized.
type Bus struct {
	registry   *Registry
	dispatcher *Dispatcher
	clock      Clock
	logger     logger.Logger
	recorder   Recorder
}

// Option configures a Bus.
type Option func(*Bus)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(b *Bus) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the module logger used by the bus and its surfaces.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Bus) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithDefaultTTL overrides DefaultTTL. Non-positive values are ignored.
func WithDefaultTTL(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 && b.dispatcher != nil {
			b.dispatcher.defaultTTL = d
		}
	}
}

// New composes a registry and a dispatcher into a Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		clock:    RealClock{},
		recorder: noopRecorder{},
	}
	// first pass picks up clock, logger and recorder
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logger.Global().Module("toast")
	}

	b.registry = NewRegistry(b.logger, b.recorder)
	b.dispatcher = &Dispatcher{
		registry:   b.registry,
		clock:      b.clock,
		defaultTTL: DefaultTTL,
		logger:     b.logger,
		recorder:   b.recorder,
	}
	// second pass applies options that need the dispatcher
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Announce shows a toast on every registered surface.
func (b *Bus) Announce(req Request) (Toast, error) {
	if b == nil {
		return Toast{}, ErrNotInitialized
	}
	return b.dispatcher.Announce(req)
}

// Success announces a success toast.
func (b *Bus) Success(title, description string) (Toast, error) {
	return b.Announce(Request{Title: title, Description: description, Variant: VariantSuccess})
}

// Error announces an error toast.
func (b *Bus) Error(title, description string) (Toast, error) {
	return b.Announce(Request{Title: title, Description: description, Variant: VariantError})
}

// Info announces an info toast.
func (b *Bus) Info(title, description string) (Toast, error) {
	return b.Announce(Request{Title: title, Description: description, Variant: VariantInfo})
}

// Register adds an observer. Surfaces are the usual callers.
func (b *Bus) Register(fn Observer) (*Subscription, error) {
	if b == nil {
		return nil, ErrNotInitialized
	}
	return b.registry.Register(fn), nil
}

// Observers returns the number of registered observers.
func (b *Bus) Observers() int {
	if b == nil {
		return 0
	}
	return b.registry.Len()
}

// Clock returns the clock the bus stamps toasts with.
func (b *Bus) Clock() Clock {
	if b == nil {
		return RealClock{}
	}
	return b.clock
}

var (
	instance *Bus
	mu       sync.RWMutex
)

// Initialize creates the process-wide bus. Later calls return the existing
// bus and ignore their options.
func Initialize(opts ...Option) *Bus {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = New(opts...)
	}
	return instance
}

// GetBus returns the process-wide bus or ErrNotInitialized.
func GetBus() (*Bus, error) {
	mu.RLock()
	defer mu.RUnlock()
	if instance == nil {
		return nil, ErrNotInitialized
	}
	return instance, nil
}

// SetBus replaces the process-wide bus (mainly for testing). nil resets it.
func SetBus(b *Bus) {
	mu.Lock()
	defer mu.Unlock()
	instance = b
}

// IsInitialized checks if the process-wide bus exists.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return instance != nil
}

// Announce forwards to the process-wide bus.
func Announce(req Request) (Toast, error) {
	b, err := GetBus()
	if err != nil {
		return Toast{}, err
	}
	return b.Announce(req)
}
