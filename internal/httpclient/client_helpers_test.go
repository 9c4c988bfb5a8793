package httpclient

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/toast"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	cfg := DefaultConfig()
	opts = append([]Option{WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))}, opts...)
	client := New(&cfg, opts...)
	t.Cleanup(client.Close)
	return client
}

// newMockClient routes every request through an httpmock transport.
func newMockClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	opts = append([]Option{WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC))}, opts...)
	client := New(&Config{Transport: mt}, opts...)
	return client, mt
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func closeResponseBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("failed to close response body: %v", err)
	}
}

type announced struct {
	title, description string
}

// recordingAnnouncer keeps every error toast it is asked to show.
type recordingAnnouncer struct {
	mu    sync.Mutex
	calls []announced
}

func (r *recordingAnnouncer) Error(title, description string) (toast.Toast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, announced{title, description})
	return toast.Toast{Title: title, Description: description, Variant: toast.VariantError}, nil
}

func (r *recordingAnnouncer) all() []announced {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]announced(nil), r.calls...)
}

func decodeBody(req *http.Request, v any) error {
	defer func() { _ = req.Body.Close() }()
	return json.NewDecoder(req.Body).Decode(v)
}
