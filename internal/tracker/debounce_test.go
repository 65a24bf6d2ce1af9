package tracker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(30*time.Millisecond, 0, func() { fired.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
	}
	assert.True(t, d.Pending())

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, d.Pending())
}

func TestDebouncer_Cancel(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, 0, func() { fired.Add(1) })

	assert.False(t, d.Cancel())
	d.Trigger()
	assert.True(t, d.Cancel())
	assert.False(t, d.Pending())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestDebouncer_FiresAgainAfterQuietPeriod(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(10*time.Millisecond, 0, func() { fired.Add(1) })

	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDebouncer_MaxWaitBoundsSteadyTriggers(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(50*time.Millisecond, 150*time.Millisecond, func() { fired.Add(1) })

	start := time.Now()
	for time.Since(start) < 400*time.Millisecond && fired.Load() == 0 {
		d.Trigger()
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int32(1), fired.Load())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDebouncer_MaxWaitRestartsAfterFire(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(20*time.Millisecond, 40*time.Millisecond, func() { fired.Add(1) })

	d.Trigger()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A fresh burst gets its own deadline rather than firing at once.
	d.Trigger()
	assert.True(t, d.Pending())
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}
