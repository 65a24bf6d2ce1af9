package tracker

import (
	"sync"
	"time"
)

// Debouncer runs fire once, delay after the most recent Trigger. A burst
// that keeps triggering still fires no later than maxWait after its first
// Trigger.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	maxWait  time.Duration
	fire     func()
	timer    *time.Timer
	deadline time.Time
}

// NewDebouncer returns a Debouncer with nothing scheduled. maxWait <= 0
// lets a steady stream of triggers postpone fire indefinitely.
func NewDebouncer(delay, maxWait time.Duration, fire func()) *Debouncer {
	return &Debouncer{delay: delay, maxWait: maxWait, fire: fire}
}

// Trigger schedules fire, replacing any pending schedule.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	wait := d.delay
	if d.timer != nil {
		d.timer.Stop()
	} else if d.maxWait > 0 {
		d.deadline = time.Now().Add(d.maxWait)
	}
	if d.maxWait > 0 {
		if left := time.Until(d.deadline); left < wait {
			wait = max(left, 0)
		}
	}
	var t *time.Timer
	t = time.AfterFunc(wait, func() {
		d.mu.Lock()
		current := d.timer == t
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			d.fire()
		}
	})
	d.timer = t
}

// Cancel drops the pending schedule and reports whether one existed.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	return true
}

// Pending reports whether fire is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
