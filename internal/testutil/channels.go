// Package testutil holds helpers shared by asynchronous tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Test timeouts.
const (
	// DefaultTestTimeout bounds waits on goroutines and background jobs.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout bounds waits on in-process hand-offs.
	ShortTestTimeout = 2 * time.Second

	// PollInterval is how often WaitFor rechecks its condition.
	PollInterval = 10 * time.Millisecond
)

// WaitFor polls cond until it holds or ShortTestTimeout passes.
func WaitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, ShortTestTimeout, PollInterval, msg)
}

// WaitForChannel waits for a signal on ch or fails after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}

// Receive returns the next value from ch or fails after timeout.
func Receive[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(timeout):
		require.FailNow(t, "timed out waiting for value")
	}
	var zero T
	return zero
}
