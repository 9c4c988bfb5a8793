package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_FiresInDueOrder(t *testing.T) {
	t.Parallel()

	clock := NewManualClock(testEpoch)
	var fired []string
	clock.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	clock.AfterFunc(time.Second, func() { fired = append(fired, "a") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b1") })
	clock.AfterFunc(2*time.Second, func() { fired = append(fired, "b2") })

	clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b1", "b2"}, fired)
	assert.Equal(t, testEpoch.Add(2*time.Second), clock.Now())

	clock.Advance(time.Second)
	assert.Equal(t, []string{"a", "b1", "b2", "c"}, fired)
	assert.Zero(t, clock.Pending())
}

func TestManualClock_Stop(t *testing.T) {
	t.Parallel()

	clock := NewManualClock(testEpoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	clock.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManualClock_CallbackSeesDueTimeAndCanReschedule(t *testing.T) {
	t.Parallel()

	clock := NewManualClock(testEpoch)
	var at []time.Time
	clock.AfterFunc(time.Second, func() {
		at = append(at, clock.Now())
		clock.AfterFunc(time.Second, func() { at = append(at, clock.Now()) })
	})

	clock.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{
		testEpoch.Add(time.Second),
		testEpoch.Add(2 * time.Second),
	}, at)
	assert.Equal(t, testEpoch.Add(5*time.Second), clock.Now())
}

func TestManualClock_StopAfterFire(t *testing.T) {
	t.Parallel()

	clock := NewManualClock(testEpoch)
	timer := clock.AfterFunc(time.Second, func() {})
	clock.Advance(time.Second)
	assert.False(t, timer.Stop())
}
