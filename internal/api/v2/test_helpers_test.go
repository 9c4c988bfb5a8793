package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/healthdesk/internal/conf"
	"github.com/tphakala/healthdesk/internal/datastore"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/observability"
	"github.com/tphakala/healthdesk/internal/toast"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// the go-cache janitor cannot be stopped
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
		// idle client connections from httptest servers wind down asynchronously
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

var testEpoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func discardLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
}

// getTestSettings returns a valid Settings instance for testing. This
// bypasses the global singleton and config file loading.
func getTestSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Main.Name = "HealthDesk Test"
	settings.WebServer.AllowedOrigins = []string{"*"}
	settings.WebServer.BodyLimit = "1M"
	settings.Database.Type = "sqlite"
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "health.db")
	settings.Toast = conf.ToastSettings{
		DefaultTTL:      toast.DefaultTTL,
		SurfaceCapacity: 10,
		StreamBuffer:    8,
		Heartbeat:       time.Hour,
		RateLimit:       conf.RateLimitSettings{Requests: 100, Burst: 100, Window: time.Minute},
	}
	settings.Security.TokenTTL = time.Hour
	settings.Metrics = conf.MetricsSettings{Enabled: true, Path: "/metrics"}
	return settings
}

type testEnv struct {
	c       *Controller
	e       *echo.Echo
	ds      datastore.Interface
	bus     *toast.Bus
	clock   *toast.ManualClock
	metrics *observability.Metrics
}

type envOption func(*conf.Settings, *[]Option)

func withSettings(fn func(*conf.Settings)) envOption {
	return func(s *conf.Settings, _ *[]Option) { fn(s) }
}

func withControllerOption(opt Option) envOption {
	return func(_ *conf.Settings, opts *[]Option) { *opts = append(*opts, opt) }
}

// newTestEnv wires a controller to a fresh SQLite store and a bus on a
// manual clock, so toasts only expire when the test advances time.
func newTestEnv(t *testing.T, envOpts ...envOption) *testEnv {
	t.Helper()
	settings := getTestSettings(t)

	ds, err := datastore.New(settings, datastore.WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { assert.NoError(t, ds.Close()) })

	return newTestEnvWithStore(t, settings, ds, envOpts...)
}

func newTestEnvWithStore(t *testing.T, settings *conf.Settings, ds datastore.Interface, envOpts ...envOption) *testEnv {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	clock := toast.NewManualClock(testEpoch)
	bus := toast.New(
		toast.WithClock(clock),
		toast.WithLogger(discardLogger()),
		toast.WithRecorder(m.Toast))

	opts := []Option{WithLogger(discardLogger()), WithMetrics(m)}
	for _, eo := range envOpts {
		eo(settings, &opts)
	}

	e := echo.New()
	c, err := New(e, ds, settings, bus, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	return &testEnv{c: c, e: e, ds: ds, bus: bus, clock: clock, metrics: m}
}

// do sends a request through the full middleware chain.
func (env *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// lastToast returns the newest toast on the server surface.
func (env *testEnv) lastToast(t *testing.T) toast.Toast {
	t.Helper()
	active := env.c.surface.Active()
	require.NotEmpty(t, active, "expected a toast on the server surface")
	return active[len(active)-1]
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// assertControllerError checks the ErrorResponse body of a failed call.
func assertControllerError(t *testing.T, rec *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	assert.Equal(t, code, rec.Code, rec.Body.String())
	resp := decodeJSON[ErrorResponse](t, rec)
	assert.Equal(t, message, resp.Message)
	assert.Equal(t, code, resp.Code)
	assert.Len(t, resp.CorrelationID, 8)
}

// MockDataStore fails or stubs the calls a test sets up; everything else
// panics through the nil embedded interface.
type MockDataStore struct {
	datastore.Interface
	mock.Mock
}

func (m *MockDataStore) ListDoctors(ctx context.Context) ([]datastore.Doctor, error) {
	args := m.Called(ctx)
	if v, ok := args.Get(0).([]datastore.Doctor); ok {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDataStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDataStore) Dialect() string {
	return "mock"
}

func ptr[T any](v T) *T { return &v }
