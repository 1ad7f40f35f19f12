package counter

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into one trailing call of fn,
// made once Trigger has not been called for the delay. At most one timer is
// pending at any time: arming cancels the previous one.
type Debouncer struct {
	mu    sync.Mutex
	sched Scheduler
	delay time.Duration
	fn    func()
	timer Timer
	gen   uint64
}

// NewDebouncer creates a debouncer that calls fn on sched after delay.
func NewDebouncer(sched Scheduler, delay time.Duration, fn func()) *Debouncer {
	if sched == nil {
		sched = RealScheduler{}
	}
	return &Debouncer{sched: sched, delay: delay, fn: fn}
}

// Trigger cancels any pending call and arms a new one.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.sched.AfterFunc(d.delay, func() { d.fire(gen) })
}

// fire runs fn unless the timer it belongs to was superseded or stopped
// after it had already started.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Stop cancels the pending call, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

// Pending reports whether a call is armed.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
