// Package reminder announces the day's appointments on a cron schedule.
//
// Each run loads today's appointments, shows one info toast on every
// mounted surface and hands the digest to a DigestPublisher for delivery
// outside the process.
package reminder

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/toast"
)

// DefaultSchedule runs the reminder at 08:00 every day.
const DefaultSchedule = "0 8 * * *"

// maxListed bounds the appointments named in the toast description.
const maxListed = 3

// runTimeout bounds one scheduled run.
const runTimeout = time.Minute

// Store is the part of the datastore the reminder reads.
type Store interface {
	AppointmentsOn(ctx context.Context, day datastore.Date) ([]datastore.Appointment, error)
}

// Announcer shows the digest toast. *toast.Bus satisfies it.
type Announcer interface {
	Info(title, description string) (toast.Toast, error)
}

// DigestPublisher delivers a digest beyond the toast bus.
type DigestPublisher interface {
	PublishDigest(ctx context.Context, d Digest) error
}

// Digest summarizes one day's appointments.
type Digest struct {
	Day          datastore.Date          `json:"day"`
	Count        int                     `json:"count"`
	Appointments []datastore.Appointment `json:"appointments"`
}

// Headline is the toast title for the digest.
func (d Digest) Headline() string {
	if d.Count == 1 {
		return "1 appointment scheduled today"
	}
	return fmt.Sprintf("%d appointments scheduled today", d.Count)
}

// Summary lists the first few appointments as "HH:MM purpose".
func (d Digest) Summary() string {
	parts := make([]string, 0, maxListed+1)
	for i, a := range d.Appointments {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(d.Appointments)-maxListed))
			break
		}
		entry := "anytime"
		if a.Time != nil {
			entry = fmt.Sprintf("%02d:%02d", a.Time.Hour, a.Time.Minute)
		}
		if purpose := strings.TrimSpace(a.Purpose); purpose != "" {
			entry += " " + purpose
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, ", ")
}

// Scheduler runs the reminder job.
type Scheduler struct {
	settings  conf.ReminderSettings
	store     Store
	announcer Announcer
	publisher DigestPublisher
	log       logger.Logger
	loc       *time.Location
	now       func() time.Time
	schedule  cron.Schedule

	mu   sync.Mutex
	cron *cron.Cron
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPublisher sets where digests go after the toast.
func WithPublisher(p DigestPublisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNow overrides the wall clock used to pick "today".
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates the schedule and timezone and returns a stopped Scheduler.
func New(settings conf.ReminderSettings, store Store, announcer Announcer, opts ...Option) (*Scheduler, error) {
	if store == nil || announcer == nil {
		return nil, errors.Newf("reminder requires a store and an announcer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	spec := strings.TrimSpace(settings.Schedule)
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("schedule", spec).
			Build()
	}
	settings.Schedule = spec

	loc := time.Local
	if tz := strings.TrimSpace(settings.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("timezone", tz).
				Build()
		}
	}

	s := &Scheduler{
		settings:  settings,
		store:     store,
		announcer: announcer,
		log:       logger.Global().Module("reminder"),
		loc:       loc,
		now:       time.Now,
		schedule:  schedule,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules the job. It is a no-op when reminders are disabled or
// the scheduler is already running. Runs stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.settings.Enabled {
		s.log.Debug("appointment reminders disabled")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(s.loc))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		if _, err := s.RunOnce(runCtx); err != nil {
			s.log.Error("appointment reminder failed", logger.Error(err))
		}
	}))
	s.cron.Start()

	s.log.Info("appointment reminders scheduled",
		logger.String("schedule", s.settings.Schedule),
		logger.String("timezone", s.loc.String()),
		logger.Time("next_run", s.schedule.Next(s.now().In(s.loc))))
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// Next reports the next scheduled run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// RunOnce builds today's digest, announces it and publishes it.
func (s *Scheduler) RunOnce(ctx context.Context) (Digest, error) {
	start := time.Now()
	day := datastore.NewDate(s.now().In(s.loc))

	appointments, err := s.store.AppointmentsOn(ctx, day)
	if err != nil {
		return Digest{}, errors.New(err).
			Category(errors.CategoryDatabase).
			Context("day", day.String()).
			Timing("reminder_load", time.Since(start)).
			Build()
	}

	d := Digest{Day: day, Count: len(appointments), Appointments: appointments}
	if _, err := s.announcer.Info(d.Headline(), d.Summary()); err != nil {
		s.log.Warn("failed to announce appointment digest", logger.Error(err))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDigest(ctx, d); err != nil {
			return d, err
		}
	}

	s.log.Info("appointment digest sent",
		logger.String("day", day.String()),
		logger.Int("count", d.Count),
		logger.Duration("duration", time.Since(start)))
	return d, nil
}
