// Package toast implements the in-process transient notification bus.
//
// Announcers call Bus.Announce with a Request; the bus stamps an id and a
// timestamp and hands the resulting Toast synchronously to every registered
// observer. Observers are normally render surfaces (see Surface) that keep a
// display list and drop each toast after its own TTL. Nothing is buffered:
// a toast announced while no surface is registered is dropped.
package toast

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tphakala/healthdesk/internal/errors"
)

// Variant is the presentation category of a toast.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantError   Variant = "error"
	VariantInfo    Variant = "info"
)

// DefaultTTL is how long a toast stays visible when the request names no TTL.
const DefaultTTL = 3000 * time.Millisecond

// Valid reports whether v is one of the known variants.
func (v Variant) Valid() bool {
	switch v {
	case VariantSuccess, VariantError, VariantInfo:
		return true
	}
	return false
}

// ParseVariant converts user input into a Variant. Empty input yields info.
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return VariantInfo, nil
	}
	if !v.Valid() {
		return "", errors.New(ErrMalformedRequest).
			Component("toast").
			Category(errors.CategoryValidation).
			Context("variant", s).
			Build()
	}
	return v, nil
}

// Request describes one announcement. Text is an alias for Title and is
// used only when Title is blank.
type Request struct {
	Text        string        `json:"text,omitempty"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Variant     Variant       `json:"variant,omitempty"`
	TTL         time.Duration `json:"-"`
}

// Toast is the immutable record created from a Request.
type Toast struct {
	ID          uint64
	Title       string
	Description string
	Variant     Variant
	CreatedAt   time.Time
	TTL         time.Duration
}

type toastJSON struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"createdAt"`
	TTLMs       int64     `json:"ttlMs"`
}

// MarshalJSON renders the TTL in milliseconds, the unit browsers schedule in.
func (t Toast) MarshalJSON() ([]byte, error) {
	return json.Marshal(toastJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Variant:     t.Variant,
		CreatedAt:   t.CreatedAt,
		TTLMs:       t.TTL.Milliseconds(),
	})
}

func (t *Toast) UnmarshalJSON(data []byte) error {
	var w toastJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Toast{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Variant:     w.Variant,
		CreatedAt:   w.CreatedAt,
		TTL:         time.Duration(w.TTLMs) * time.Millisecond,
	}
	return nil
}

var (
	// ErrNotInitialized is returned when the bus is used before it was composed.
	ErrNotInitialized = errors.NewStd("toast bus not initialized")

	// ErrMalformedRequest is wrapped by every validation failure of Announce.
	ErrMalformedRequest = errors.NewStd("malformed toast request")
)
