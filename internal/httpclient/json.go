package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tphakala/healthdesk/internal/errors"
	"github.com/tphakala/healthdesk/internal/logger"
	"github.com/tphakala/healthdesk/internal/privacy"
	"github.com/tphakala/healthdesk/internal/toast"
)

// maxErrorBody caps how much of a failed response is kept as the message.
const maxErrorBody = 4 << 10

// Announcer receives error toasts for failed calls. *toast.Bus satisfies it.
type Announcer interface {
	Error(title, description string) (toast.Toast, error)
}

// StatusError is returned by JSON for a non-2xx response. Message is the
// response body text, or "<code> <status text>" when the body is empty.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

func newStatusError(resp *http.Response) *StatusError {
	msg := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); err == nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			msg = text
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// cancelOnClose pairs a response body with the cancel of the timeout context
// it was read under.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// JSON sends in (when non-nil) as a JSON body and decodes a successful
// response into out (when non-nil). Failures come back as *StatusError for
// HTTP errors or an enhanced network error, and are announced as an error
// toast when the client has an announcer.
func (c *Client) JSON(ctx context.Context, method, url string, in, out any, headers ...http.Header) error {
	start := time.Now()
	err := c.doJSON(ctx, method, url, in, out, headers)
	if err == nil {
		return nil
	}

	c.logger.Warn("http call failed",
		logger.String("method", method),
		logger.String("url", privacy.StripQuery(url)),
		logger.Duration("duration", time.Since(start)),
		logger.Error(err))
	c.announceFailure(err)
	return err
}

func (c *Client) doJSON(ctx context.Context, method, url string, in, out any, headers []http.Header) error {
	body := io.Reader(http.NoBody)
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.New(err).
				Category(errors.CategoryValidation).
				Context("operation", "encode_request").
				Build()
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryValidation).
			Context("method", method).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return errors.New(err).
			Category(category).
			Context("method", method).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(err).
			Category(errors.CategoryHTTP).
			Context("operation", "decode_response").
			Build()
	}
	return nil
}

func (c *Client) announceFailure(err error) {
	if c.announcer == nil {
		return
	}
	// the toast reaches every open surface, unlike the log line
	if _, aerr := c.announcer.Error("Request failed", privacy.ScrubMessage(err.Error())); aerr != nil {
		c.logger.Debug("failed to announce request failure", logger.Error(aerr))
	}
}
