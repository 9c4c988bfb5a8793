package toast

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
)

// Dispatcher turns requests into toasts and hands them to the registry.
type Dispatcher struct {
	registry   *Registry
	clock      Clock
	defaultTTL time.Duration
	seq        atomic.Uint64
	logger     logger.Logger
	recorder   Recorder
}

// Announce validates req, assigns the next id and delivers the toast to every
// registered observer exactly once. The returned error is always a
// validation error wrapping ErrMalformedRequest.
func (d *Dispatcher) Announce(req Request) (Toast, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSpace(req.Text)
	}
	if title == "" {
		d.recorder.RecordMalformed()
		return Toast{}, errors.New(ErrMalformedRequest).
			Component("toast").
			Category(errors.CategoryValidation).
			Context("reason", "title or text is required").
			Build()
	}

	variant := req.Variant
	if variant == "" {
		variant = VariantInfo
	}
	if !variant.Valid() {
		d.recorder.RecordMalformed()
		return Toast{}, errors.New(ErrMalformedRequest).
			Component("toast").
			Category(errors.CategoryValidation).
			Context("variant", string(variant)).
			Build()
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = d.defaultTTL
	}

	t := Toast{
		ID:          d.seq.Add(1),
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Variant:     variant,
		CreatedAt:   d.clock.Now(),
		TTL:         ttl,
	}

	d.recorder.RecordAnnouncement(string(variant))
	delivered := d.registry.NotifyAll(t)
	if delivered == 0 {
		d.recorder.RecordDropped()
		d.logger.Trace("toast dropped, no observers", logger.Uint64("toast_id", t.ID))
		return t, nil
	}

	d.logger.Debug("toast announced",
		logger.Uint64("toast_id", t.ID),
		logger.String("variant", string(t.Variant)),
		logger.Duration("ttl", t.TTL),
		logger.Int("observers", delivered))
	return t, nil
}
