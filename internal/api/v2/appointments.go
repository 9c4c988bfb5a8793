// internal/api/v2/appointments.go
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/healthdesk/internal/datastore"
)

// AppointmentNotifier is told about every booked appointment. The publisher
// forwards these to MQTT.
type AppointmentNotifier interface {
	AppointmentBooked(a datastore.Appointment)
}

// WithAppointmentNotifier registers n for booking events.
func WithAppointmentNotifier(n AppointmentNotifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// AppointmentRequest is the body of POST /appointments. The booking form
// also sends the contact fields; they are accepted and discarded.
type AppointmentRequest struct {
	Date      string  `json:"date"`
	Time      *string `json:"time"`
	Purpose   string  `json:"purpose"`
	DoctorID  *uint   `json:"doctor_id"`
	PatientID *uint   `json:"patient_id"`

	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Department string `json:"department"`
}

func (c *Controller) initAppointmentRoutes() {
	c.Group.GET("/appointments", c.ListAppointments)
	c.Group.POST("/appointments", c.CreateAppointment, c.AuthMiddleware)
	c.Group.DELETE("/appointments/:id", c.DeleteAppointment, c.AuthMiddleware)
}

// ListAppointments handles GET /appointments, earliest date first
func (c *Controller) ListAppointments(ctx echo.Context) error {
	appointments, err := c.DS.ListAppointments(ctx.Request().Context())
	if err != nil {
		return c.failWithToast(ctx, err, msgLoadFailed)
	}
	if appointments == nil {
		appointments = []datastore.Appointment{}
	}
	return ctx.JSON(http.StatusOK, appointments)
}

// CreateAppointment handles POST /appointments
func (c *Controller) CreateAppointment(ctx echo.Context) error {
	var req AppointmentRequest
	if err := ctx.Bind(&req); err != nil {
		c.announceError(msgBookFailed, "")
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	date, err := datastore.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		c.announceError(msgRequiredFields, "")
		return c.HandleError(ctx, err, "Invalid date", http.StatusBadRequest)
	}

	a := datastore.Appointment{
		Date:      date,
		Purpose:   strings.TrimSpace(req.Purpose),
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
	}

	// an empty time from the form means no time was picked
	if req.Time != nil && strings.TrimSpace(*req.Time) != "" {
		at, err := datastore.ParseTimeOfDay(*req.Time)
		if err != nil {
			c.announceError(msgBookFailed, msgInvalidTime)
			return c.HandleError(ctx, err, msgInvalidTime, http.StatusBadRequest)
		}
		a.Time = &at
	}

	if err := c.DS.CreateAppointment(ctx.Request().Context(), &a); err != nil {
		return c.failWithToast(ctx, err, msgBookFailed)
	}

	c.announceSuccess("Appointment booked successfully!")
	if c.notifier != nil {
		c.notifier.AppointmentBooked(a)
	}
	return ctx.JSON(http.StatusOK, a)
}

// DeleteAppointment handles DELETE /appointments/:id
func (c *Controller) DeleteAppointment(ctx echo.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return c.HandleError(ctx, err, msgInvalidID, http.StatusBadRequest)
	}

	if err := c.DS.DeleteAppointment(ctx.Request().Context(), id); err != nil {
		return c.failWithToast(ctx, err, "Failed to cancel appointment.")
	}

	c.announceSuccess("Appointment cancelled.")
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}
