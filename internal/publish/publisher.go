// Package publish forwards appointment events to MQTT and reminder digests
// to push services. Deliveries run on a bounded worker pool behind a token
// bucket so a slow broker never blocks an API request. Integrations that
// are disabled in the configuration are no-ops.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/mqtt"
	"github.com/tphakala/healthdesk/internal/observability/metrics"
	"github.com/tphakala/healthdesk/internal/privacy"
	"github.com/tphakala/healthdesk/internal/reminder"
)

const (
	channelMQTT = "mqtt"
	channelPush = "push"

	defaultWorkers = 4
	defaultTimeout = 10 * time.Second
	defaultTopic   = "healthdesk"
)

// Event types carried in the MQTT payload.
const (
	EventAppointmentBooked = "appointment.booked"
	EventDailyDigest       = "reminder.digest"
)

// Sender delivers one push message. shoutrrr's router satisfies it.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Event is the JSON document published to MQTT.
type Event struct {
	Type        string                 `json:"type"`
	PublishedAt time.Time              `json:"published_at"`
	Appointment *datastore.Appointment `json:"appointment,omitempty"`
	Digest      *reminder.Digest       `json:"digest,omitempty"`
}

// Publisher fans events out to the configured integrations.
type Publisher struct {
	topic   string
	timeout time.Duration
	mqtt    mqtt.Client
	sender  Sender
	pool    *ants.Pool
	limiter *rate.Limiter
	metrics *metrics.PublishMetrics
	log     logger.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithMetrics records deliveries on m.
func WithMetrics(m *metrics.PublishMetrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMQTTClient replaces the broker client built from the settings.
func WithMQTTClient(c mqtt.Client) Option {
	return func(p *Publisher) { p.mqtt = c }
}

// WithSender replaces the shoutrrr sender built from the push URLs.
func WithSender(s Sender) Option {
	return func(p *Publisher) { p.sender = s }
}

// New builds a publisher from the mqtt and push settings.
func New(settings *conf.Settings, opts ...Option) (*Publisher, error) {
	push := settings.Push

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		topic:   strings.TrimSuffix(strings.TrimSpace(settings.MQTT.Topic), "/"),
		timeout: push.Timeout,
		log:     logger.Global().Module("publish"),
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	if p.topic == "" {
		p.topic = defaultTopic
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	for _, opt := range opts {
		opt(p)
	}

	limit := rate.Inf
	if push.RateLimit > 0 {
		limit = rate.Limit(push.RateLimit)
	}
	p.limiter = rate.NewLimiter(limit, max(push.Burst, 1))

	workers := push.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(v any) {
		p.log.Error("publish worker panic", logger.Any("panic", v))
	}))
	if err != nil {
		cancel()
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("workers", workers).
			Build()
	}
	p.pool = pool

	if settings.MQTT.Enabled && p.mqtt == nil {
		p.mqtt = mqtt.NewClient(mqtt.ConfigFromSettings(settings.MQTT), p.metrics, p.log.Module("mqtt"))
	}
	if !settings.MQTT.Enabled {
		p.mqtt = nil
	}

	if push.Enabled && p.sender == nil {
		sender, err := newShoutrrrSender(push.URLs, p.timeout)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.sender = sender
	}
	if !push.Enabled {
		p.sender = nil
	}

	return p, nil
}

func newShoutrrrSender(urls []string, timeout time.Duration) (Sender, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("push is enabled but no URLs are configured").
			Category(errors.CategoryConfiguration).
			Build()
	}
	router, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// the URL carries service tokens, keep it out of the error
		return nil, errors.Newf("invalid push URL: %s", privacy.ScrubMessage(err.Error())).
			Category(errors.CategoryConfiguration).
			Build()
	}
	router.Timeout = timeout
	router.SetLogger(log.New(io.Discard, "", 0))
	return router, nil
}

// Start connects to the broker. A failed first connection is logged and
// retried on the next publish.
func (p *Publisher) Start(ctx context.Context) {
	if p.mqtt == nil {
		p.log.Debug("mqtt publishing disabled")
		return
	}
	if err := p.mqtt.Connect(ctx); err != nil {
		p.log.Warn("initial mqtt connection failed", logger.Error(err))
		return
	}
	p.log.Info("mqtt publishing enabled", logger.String("topic", p.topic))
}

// AppointmentBooked publishes a booked appointment to <topic>/appointments.
func (p *Publisher) AppointmentBooked(a datastore.Appointment) {
	if p.mqtt == nil {
		return
	}
	ev := Event{Type: EventAppointmentBooked, PublishedAt: p.now(), Appointment: &a}
	if err := p.submit(channelMQTT, func(ctx context.Context) error {
		return p.publishMQTT(ctx, p.topic+"/appointments", ev)
	}); err != nil {
		p.log.Warn("appointment event not queued",
			logger.Uint64("appointment_id", uint64(a.ID)),
			logger.Error(err))
	}
}

// PublishDigest sends a reminder digest to <topic>/reminders and to every
// push URL. Delivery is asynchronous; the error reports queueing only.
func (p *Publisher) PublishDigest(_ context.Context, d reminder.Digest) error {
	var errs []error
	if p.mqtt != nil {
		ev := Event{Type: EventDailyDigest, PublishedAt: p.now(), Digest: &d}
		errs = append(errs, p.submit(channelMQTT, func(ctx context.Context) error {
			return p.publishMQTT(ctx, p.topic+"/reminders", ev)
		}))
	}
	if p.sender != nil {
		errs = append(errs, p.submit(channelPush, func(context.Context) error {
			return p.sendPush(d.Headline(), d.Summary())
		}))
	}
	return errors.Join(errs...)
}

func (p *Publisher) publishMQTT(ctx context.Context, topic string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if !p.mqtt.IsConnected() {
		if err := p.mqtt.Connect(ctx); err != nil {
			return err
		}
	}
	if p.metrics != nil {
		p.metrics.RecordMessageSize(len(payload))
	}
	return p.mqtt.Publish(ctx, topic, payload)
}

func (p *Publisher) sendPush(title, message string) error {
	if message == "" {
		message = title
	}
	params := stypes.Params{}
	params.SetTitle(title)
	for _, err := range p.sender.Send(message, &params) {
		if err != nil {
			return errors.New(fmt.Errorf("push delivery failed: %w", privacy.WrapError(err))).
				Category(errors.CategoryIntegration).
				Build()
		}
	}
	return nil
}

// submit queues job on the pool. The job waits for a limiter token and
// runs under the delivery timeout.
func (p *Publisher) submit(channel string, job func(ctx context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.Newf("publisher is closed").
			Category(errors.CategoryState).
			Build()
	}

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		p.deliver(channel, job)
	})
	if err != nil {
		p.wg.Done()
		return errors.New(err).
			Category(errors.CategoryLimit).
			Context("channel", channel).
			Build()
	}
	return nil
}

func (p *Publisher) deliver(channel string, job func(ctx context.Context) error) {
	if !p.limiter.Allow() {
		if p.metrics != nil {
			p.metrics.RecordRateLimited(channel)
		}
		if err := p.limiter.Wait(p.ctx); err != nil {
			p.record(channel, "dropped", 0)
			return
		}
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := job(ctx)
	elapsed := time.Since(start)
	if err != nil {
		p.record(channel, "error", elapsed)
		p.log.Warn("delivery failed",
			logger.String("channel", channel),
			logger.Duration("duration", elapsed),
			logger.Error(err))
		return
	}
	p.record(channel, "success", elapsed)
}

func (p *Publisher) record(channel, status string, d time.Duration) {
	if p.metrics != nil {
		p.metrics.RecordDelivery(channel, status, d.Seconds())
	}
}

// Close stops accepting work, waits for queued deliveries and disconnects.
// Safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		p.wg.Wait()
		p.cancel()
		p.pool.Release()
		if p.mqtt != nil {
			p.mqtt.Disconnect()
		}
	})
}
