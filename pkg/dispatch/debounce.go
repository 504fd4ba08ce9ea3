package dispatch

import (
	"time"
)

// Debouncer runs fn on a queue once no Trigger has happened for window.
//
// The quiet period is measured from the last Trigger, so a burst of page
// completions produces one reconciliation instead of one per page. All methods
// must be called from tasks running on the queue.
type Debouncer struct {
	queue  *Queue
	window time.Duration
	fn     func()
	now    func() time.Time

	last    time.Time
	pending bool
	seq     uint64
	timer   *time.Timer
}

// NewDebouncer creates a debouncer that posts fn onto q. A window of zero
// runs fn on the next queue tick.
func NewDebouncer(q *Queue, window time.Duration, fn func()) *Debouncer {
	if window < 0 {
		window = 0
	}
	return &Debouncer{
		queue:  q,
		window: window,
		fn:     fn,
		now:    time.Now,
	}
}

// Trigger records a mutation and schedules fn after the quiet window.
func (d *Debouncer) Trigger() {
	d.last = d.now()
	if d.pending {
		return
	}
	d.pending = true
	d.schedule(d.window)
}

// Pending reports whether fn is scheduled but has not yet run.
func (d *Debouncer) Pending() bool {
	return d.pending
}

// Flush runs a pending fn immediately.
func (d *Debouncer) Flush() {
	if !d.pending {
		return
	}
	d.Cancel()
	d.fn()
}

// Cancel drops a pending run.
func (d *Debouncer) Cancel() {
	d.pending = false
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) schedule(delay time.Duration) {
	d.seq++
	seq := d.seq

	if delay <= 0 {
		d.queue.Post(func() { d.fire(seq) })
		return
	}
	d.timer = time.AfterFunc(delay, func() {
		d.queue.Post(func() { d.fire(seq) })
	})
}

func (d *Debouncer) fire(seq uint64) {
	if !d.pending || seq != d.seq {
		return
	}

	if quiet := d.now().Sub(d.last); quiet < d.window {
		d.schedule(d.window - quiet)
		return
	}

	d.pending = false
	d.timer = nil
	d.fn()
}
