package api

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/toast"
)

func TestNew_RequiresBus(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, getTestSettings(t), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, toast.ErrNotInitialized)
}

func TestRoot(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v2/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestDoctors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v2/doctors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v2/doctors", map[string]string{
		"first_name": "Gregory",
		"last_name":  "House",
		"specialty":  "Diagnostics",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeJSON[datastore.Doctor](t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Diagnostics", created.Specialty)

	last := env.lastToast(t)
	assert.Equal(t, "Doctor added successfully.", last.Title)
	assert.Equal(t, toast.VariantSuccess, last.Variant)

	// the cached empty list must have been invalidated
	rec = env.do(t, http.MethodGet, "/api/v2/doctors", nil)
	doctors := decodeJSON[[]datastore.Doctor](t, rec)
	require.Len(t, doctors, 1)
	assert.Equal(t, "House", doctors[0].LastName)

	path := fmt.Sprintf("/api/v2/doctors/%d", created.ID)
	rec = env.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, path, nil)
	assertControllerError(t, rec, http.StatusNotFound, "Doctor not found")
	last = env.lastToast(t)
	assert.Equal(t, toast.VariantError, last.Variant)
	assert.Equal(t, "Doctor not found", last.Description)
}

func TestCreateDoctor_RequiredFields(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v2/doctors", map[string]string{"first_name": "  "})
	assertControllerError(t, rec, http.StatusBadRequest, "first_name and last_name are required")

	last := env.lastToast(t)
	assert.Equal(t, "Please fill in all required fields.", last.Title)
	assert.Equal(t, toast.VariantError, last.Variant)
}

func TestDeleteDoctor_InvalidID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, id := range []string{"abc", "0", "-1"} {
		rec := env.do(t, http.MethodDelete, "/api/v2/doctors/"+id, nil)
		assertControllerError(t, rec, http.StatusBadRequest, "Invalid id")
	}
}

func TestPatients(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v2/patients", map[string]string{
		"first_name": "Jane",
		"last_name":  "Doe",
		"dob":        "1990-04-01",
		"address":    "1 Main St",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"dob":"1990-04-01"`)
	assert.Equal(t, "Patient added successfully.", env.lastToast(t).Title)

	rec = env.do(t, http.MethodPost, "/api/v2/patients", map[string]string{
		"first_name": "John",
		"last_name":  "Roe",
		"dob":        "04/01/1990",
	})
	assertControllerError(t, rec, http.StatusBadRequest, "Invalid date of birth")

	rec = env.do(t, http.MethodGet, "/api/v2/patients", nil)
	patients := decodeJSON[[]datastore.Patient](t, rec)
	require.Len(t, patients, 1)

	rec = env.do(t, http.MethodDelete, "/api/v2/patients/999", nil)
	assertControllerError(t, rec, http.StatusNotFound, "Patient not found")
}

func TestPatientRecords(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := t.Context()

	p := datastore.Patient{FirstName: "Jane", LastName: "Doe"}
	require.NoError(t, env.ds.CreatePatient(ctx, &p))
	d := datastore.Doctor{FirstName: "Lisa", LastName: "Cuddy"}
	require.NoError(t, env.ds.CreateDoctor(ctx, &d))

	rec := env.do(t, http.MethodPost, "/api/v2/patient_records", map[string]any{
		"date": "2025-01-10", "patient_id": 999,
	})
	assertControllerError(t, rec, http.StatusBadRequest, "Invalid patient")
	assert.Equal(t, "Invalid patient", env.lastToast(t).Description)

	rec = env.do(t, http.MethodPost, "/api/v2/patient_records", map[string]any{
		"date": "2025-01-10", "patient_id": p.ID, "doctor_id": 999,
	})
	assertControllerError(t, rec, http.StatusBadRequest, "Invalid doctor")

	for _, date := range []string{"2025-01-10", "2025-03-02"} {
		rec = env.do(t, http.MethodPost, "/api/v2/patient_records", map[string]any{
			"date":       date,
			"notes":      "checkup",
			"height_in":  70,
			"patient_id": p.ID,
			"doctor_id":  d.ID,
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, "Record added successfully.", env.lastToast(t).Title)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v2/patient_records/%d", p.ID), nil)
	records := decodeJSON[[]datastore.PatientRecord](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, "2025-03-02", records[0].Date.String(), "newest first")
	require.NotNil(t, records[0].HeightIn)
	assert.Equal(t, 70, *records[0].HeightIn)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/patient_records/%d", records[0].ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v2/patient_records/%d", records[0].ID), nil)
	assertControllerError(t, rec, http.StatusNotFound, "Record not found")
}

func TestAppointments(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tests := []struct {
		name     string
		time     any
		wantCode int
		wantTime string
	}{
		{"24-hour", "14:30", http.StatusOK, "14:30:00"},
		{"12-hour", "02:30 PM", http.StatusOK, "14:30:00"},
		{"lowercase meridiem", "9:05 am", http.StatusOK, "09:05:00"},
		{"no time", nil, http.StatusOK, ""},
		{"garbage", "half past two", http.StatusBadRequest, ""},
		{"out of range", "25:00", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		body := map[string]any{
			"date":       "2025-06-01",
			"purpose":    tt.name,
			"full_name":  "Jane Doe",
			"email":      "jane@example.com",
			"phone":      "555-0100",
			"department": "Cardiology",
			"doctor_id":  12345,
		}
		if tt.time != nil {
			body["time"] = tt.time
		}
		rec := env.do(t, http.MethodPost, "/api/v2/appointments", body)

		if tt.wantCode != http.StatusOK {
			assertControllerError(t, rec, tt.wantCode, "Invalid time format. Use 'HH:MM' or 'HH:MM AM/PM'.")
			last := env.lastToast(t)
			assert.Equal(t, "Failed to book appointment. Please try again.", last.Title, tt.name)
			continue
		}

		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", tt.name, rec.Body.String())
		a := decodeJSON[datastore.Appointment](t, rec)
		assert.Nil(t, a.DoctorID, "%s: unknown doctor is dropped", tt.name)
		if tt.wantTime == "" {
			assert.Nil(t, a.Time, tt.name)
		} else {
			require.NotNil(t, a.Time, tt.name)
			assert.Equal(t, tt.wantTime, a.Time.String(), tt.name)
		}
		assert.Equal(t, "Appointment booked successfully!", env.lastToast(t).Title)
	}

	rec := env.do(t, http.MethodGet, "/api/v2/appointments", nil)
	appointments := decodeJSON[[]datastore.Appointment](t, rec)
	assert.Len(t, appointments, 4)

	rec = env.do(t, http.MethodDelete, "/api/v2/appointments/999", nil)
	assertControllerError(t, rec, http.StatusNotFound, "Not found")
}

type recordingNotifier struct {
	booked []datastore.Appointment
}

func (r *recordingNotifier) AppointmentBooked(a datastore.Appointment) {
	r.booked = append(r.booked, a)
}

func TestCreateAppointment_NotifiesPublisher(t *testing.T) {
	t.Parallel()
	n := &recordingNotifier{}
	env := newTestEnv(t, withControllerOption(WithAppointmentNotifier(n)))

	rec := env.do(t, http.MethodPost, "/api/v2/appointments", map[string]any{"date": "2025-06-01", "time": "08:00"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v2/appointments", map[string]any{"date": "2025-06-01", "time": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Len(t, n.booked, 1)
	assert.Equal(t, "2025-06-01", n.booked[0].Date.String())
}

func TestListDoctors_DatabaseFailure(t *testing.T) {
	t.Parallel()
	ds := new(MockDataStore)
	ds.On("ListDoctors", mock.Anything).Return(nil, errors.New(errors.NewStd("disk I/O error")).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build())
	env := newTestEnvWithStore(t, getTestSettings(t), ds)

	rec := env.do(t, http.MethodGet, "/api/v2/doctors", nil)
	assertControllerError(t, rec, http.StatusInternalServerError, "Internal server error")

	last := env.lastToast(t)
	assert.Equal(t, "Failed to load data.", last.Title)
	assert.Empty(t, last.Description, "internal errors are not shown to users")
	ds.AssertExpectations(t)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v2/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database_status"])
	assert.Equal(t, "sqlite", body["database_dialect"])
	assert.Contains(t, body, "system")
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	t.Parallel()
	ds := new(MockDataStore)
	ds.On("Ping", mock.Anything).Return(datastore.ErrNotOpen)
	env := newTestEnvWithStore(t, getTestSettings(t), ds)

	rec := env.do(t, http.MethodGet, "/api/v2/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "disconnected", body["database_status"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/v2/doctors", nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v2/doctors",
		map[string]string{"first_name": "A", "last_name": "B"}).Code)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `http_requests_total{method="GET",path="/api/v2/doctors",status_code="200"} 1`)
	assert.Contains(t, out, `toast_announcements_total{variant="success"} 1`)
	assert.Contains(t, out, "toast_observers 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, withSettings(func(s *conf.Settings) { s.Metrics.Enabled = false }))

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v2/doctors", nil)
	id := rec.Header().Get("X-Request-Id")
	assert.Len(t, id, 36)
	assert.Equal(t, 4, strings.Count(id, "-"))
}

func TestShutdown_ClosesServerSurface(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	require.Equal(t, 1, env.bus.Observers())

	env.c.Shutdown()
	assert.Equal(t, 0, env.bus.Observers())

	// a second Shutdown from cleanup is harmless
	_, err := env.bus.Success("after shutdown", "")
	require.NoError(t, err)
	assert.Empty(t, env.c.surface.Active())
}

func TestShutdown_RejectsNewStreams(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.c.Shutdown()

	rec := env.do(t, http.MethodGet, "/api/v2/toasts/stream", nil)
	assertControllerError(t, rec, http.StatusServiceUnavailable, "Server is shutting down")

	rec = env.do(t, http.MethodGet, "/api/v2/toasts/ws", nil)
	assertControllerError(t, rec, http.StatusServiceUnavailable, "Server is shutting down")
}

func TestShutdown_ConcurrentWithStreamStart(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			if env.c.beginStream() {
				env.c.wg.Done()
			}
		})
	}
	env.c.Shutdown()
	wg.Wait()

	assert.False(t, env.c.beginStream(), "no stream starts after shutdown")
}
