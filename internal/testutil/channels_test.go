package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitFor(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	go func() {
		for range 3 {
			n.Add(1)
		}
	}()
	WaitFor(t, func() bool { return n.Load() == 3 }, "counter reaches three")
}

func TestWaitForChannel(t *testing.T) {
	t.Parallel()
	done := make(chan struct{})
	go close(done)
	WaitForChannel(t, done, ShortTestTimeout, "done is closed")
}

func TestReceive(t *testing.T) {
	t.Parallel()
	ch := make(chan string, 1)
	go func() {
		time.Sleep(5 * time.Millisecond)
		ch <- "ready"
	}()
	assert.Equal(t, "ready", Receive(t, ch, ShortTestTimeout))
}
