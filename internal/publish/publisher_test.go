package publish

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability/metrics"
	"github.com/tphakala/healthdesk/internal/reminder"
)

type message struct {
	topic   string
	payload []byte
}

// fakeBroker records publishes instead of talking to a broker.
type fakeBroker struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	connects   int
	messages   []message
	disconnect int
}

func (b *fakeBroker) Connect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	if b.connectErr != nil {
		return b.connectErr
	}
	b.connected = true
	return nil
}

func (b *fakeBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return errors.NewStd("not connected")
	}
	b.messages = append(b.messages, message{topic, payload})
	return nil
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = false
	b.disconnect++
}

func (b *fakeBroker) published() []message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]message(nil), b.messages...)
}

type pushed struct {
	title, message string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []pushed
	err  error
}

func (s *fakeSender) Send(msg string, params *stypes.Params) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	title, _ := params.Title()
	s.sent = append(s.sent, pushed{title, msg})
	return []error{s.err}
}

func (s *fakeSender) all() []pushed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pushed(nil), s.sent...)
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.MQTT = conf.MQTTSettings{Enabled: true, Topic: "clinic/"}
	s.Push = conf.PushSettings{Workers: 2, Burst: 10, Timeout: time.Second}
	return s
}

func newTestPublisher(t *testing.T, settings *conf.Settings, opts ...Option) (*Publisher, *metrics.PublishMetrics) {
	t.Helper()
	m, err := metrics.NewPublishMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	opts = append([]Option{
		WithMetrics(m),
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)),
	}, opts...)
	p, err := New(settings, opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p, m
}

func bookedAppointment() datastore.Appointment {
	day, _ := datastore.ParseDate("2026-03-16")
	doctor := uint(3)
	return datastore.Appointment{
		ID:       42,
		Date:     day,
		Time:     &datastore.TimeOfDay{Hour: 14, Minute: 30},
		Purpose:  "Consultation",
		DoctorID: &doctor,
	}
}

func TestAppointmentBooked(t *testing.T) {
	broker := &fakeBroker{}
	p, m := newTestPublisher(t, testSettings(), WithMQTTClient(broker))
	p.Start(t.Context())

	p.AppointmentBooked(bookedAppointment())
	p.Close()

	msgs := broker.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "clinic/appointments", msgs[0].topic)

	var ev struct {
		Type        string `json:"type"`
		Appointment struct {
			ID       uint   `json:"id"`
			Date     string `json:"date"`
			Time     string `json:"time"`
			DoctorID uint   `json:"doctor_id"`
		} `json:"appointment"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].payload, &ev))
	assert.Equal(t, EventAppointmentBooked, ev.Type)
	assert.Equal(t, uint(42), ev.Appointment.ID)
	assert.Equal(t, "2026-03-16", ev.Appointment.Date)
	assert.Equal(t, "14:30:00", ev.Appointment.Time)
	assert.Equal(t, uint(3), ev.Appointment.DoctorID)

	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal().WithLabelValues(channelMQTT, "success")), 0)
	assert.Equal(t, 1, broker.disconnect)
}

func TestAppointmentBooked_ReconnectsLazily(t *testing.T) {
	broker := &fakeBroker{connectErr: errors.NewStd("broker down")}
	p, m := newTestPublisher(t, testSettings(), WithMQTTClient(broker))
	p.Start(t.Context())

	p.AppointmentBooked(bookedAppointment())
	p.Close()
	assert.Empty(t, broker.published())
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal().WithLabelValues(channelMQTT, "error")), 0)
	assert.Equal(t, 2, broker.connects, "start and the delivery both try to connect")
}

func TestPublishDigest(t *testing.T) {
	broker := &fakeBroker{connected: true}
	sender := &fakeSender{}
	settings := testSettings()
	settings.Push.Enabled = true
	p, _ := newTestPublisher(t, settings, WithMQTTClient(broker), WithSender(sender))

	day, _ := datastore.ParseDate("2026-03-16")
	d := reminder.Digest{Day: day, Count: 1, Appointments: []datastore.Appointment{bookedAppointment()}}
	require.NoError(t, p.PublishDigest(t.Context(), d))
	p.Close()

	msgs := broker.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "clinic/reminders", msgs[0].topic)
	assert.Contains(t, string(msgs[0].payload), `"type":"reminder.digest"`)
	assert.Contains(t, string(msgs[0].payload), `"count":1`)

	sent := sender.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "1 appointment scheduled today", sent[0].title)
	assert.Equal(t, "14:30 Consultation", sent[0].message)
}

func TestPublishDigest_PushFailure(t *testing.T) {
	sender := &fakeSender{err: errors.NewStd(`failed to send: Post "https://hooks.example/services/T000/B000/XXXX": timeout`)}
	settings := testSettings()
	settings.MQTT.Enabled = false
	settings.Push.Enabled = true
	p, m := newTestPublisher(t, settings, WithSender(sender))

	require.NoError(t, p.PublishDigest(t.Context(), reminder.Digest{}))
	p.Close()

	require.Len(t, sender.all(), 1)
	assert.Equal(t, "0 appointments scheduled today", sender.all()[0].message, "empty summary falls back to the headline")
	assert.InDelta(t, 1, testutil.ToFloat64(m.DeliveriesTotal().WithLabelValues(channelPush, "error")), 0)
}

func TestSendPush_ScrubsServiceURL(t *testing.T) {
	cause := errors.NewStd(`failed to send: Post "https://hooks.example/services/T000/B000/XXXX": timeout`)
	settings := testSettings()
	settings.MQTT.Enabled = false
	settings.Push.Enabled = true
	p, _ := newTestPublisher(t, settings, WithSender(&fakeSender{err: cause}))

	err := p.sendPush("title", "body")
	require.Error(t, err)
	assert.Equal(t, `push delivery failed: failed to send: Post "https://hooks.example/[REDACTED]": timeout`, err.Error())
	assert.NotContains(t, err.Error(), "XXXX")
	require.ErrorIs(t, err, cause)
	assert.True(t, errors.IsCategory(err, errors.CategoryIntegration))
}

func TestDisabledIntegrationsAreNoops(t *testing.T) {
	broker := &fakeBroker{connected: true}
	sender := &fakeSender{}
	settings := &conf.Settings{}
	p, _ := newTestPublisher(t, settings, WithMQTTClient(broker), WithSender(sender))

	p.Start(t.Context())
	p.AppointmentBooked(bookedAppointment())
	require.NoError(t, p.PublishDigest(t.Context(), reminder.Digest{Count: 2}))
	p.Close()

	assert.Empty(t, broker.published())
	assert.Empty(t, sender.all())
	assert.Zero(t, broker.connects)
}

func TestNew_PushWithoutURLs(t *testing.T) {
	settings := testSettings()
	settings.MQTT.Enabled = false
	settings.Push.Enabled = true
	_, err := New(settings, WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestSubmitAfterClose(t *testing.T) {
	broker := &fakeBroker{connected: true}
	p, _ := newTestPublisher(t, testSettings(), WithMQTTClient(broker))
	p.Close()

	p.AppointmentBooked(bookedAppointment())
	err := p.PublishDigest(t.Context(), reminder.Digest{})
	require.Error(t, err)
	assert.Empty(t, broker.published())
}

func TestRateLimited(t *testing.T) {
	broker := &fakeBroker{connected: true}
	settings := testSettings()
	settings.Push.RateLimit = 10
	settings.Push.Burst = 1
	settings.Push.Workers = 1
	p, m := newTestPublisher(t, settings, WithMQTTClient(broker))

	for range 3 {
		p.AppointmentBooked(bookedAppointment())
	}
	p.Close()

	assert.Len(t, broker.published(), 3, "limited deliveries wait rather than drop")
	assert.InDelta(t, 2, testutil.ToFloat64(m.RateLimited().WithLabelValues(channelMQTT)), 0)
}
