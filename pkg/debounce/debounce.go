// Package debounce delays an action until its triggers have gone quiet.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet period used for keystroke driven lookups.
const DefaultInterval = 300 * time.Millisecond

// Debouncer runs act once the quiet interval has passed since the last Trigger,
// with the argument of that last Trigger. Superseded triggers are dropped.
type Debouncer[T any] struct {
	mu      sync.Mutex
	after   time.Duration
	act     func(T)
	timer   *time.Timer
	gen     uint64
	stopped bool
}

// New creates a debouncer. A non-positive interval falls back to DefaultInterval.
func New[T any](after time.Duration, act func(T)) *Debouncer[T] {
	if after <= 0 {
		after = DefaultInterval
	}
	return &Debouncer[T]{
		after: after,
		act:   act,
	}
}

// Trigger schedules act(arg) and cancels any invocation still pending.
func (d *Debouncer[T]) Trigger(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.after, func() {
		d.fire(gen, arg)
	})
}

// fire runs act unless a newer Trigger or a Cancel happened after gen was issued.
// Timer.Stop cannot recall a callback that already started, so the check is needed.
func (d *Debouncer[T]) fire(gen uint64, arg T) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.act(arg)
}

// Cancel drops the pending invocation, if any. Later triggers work normally.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending invocation and ignores every later Trigger.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
	d.stopped = true
}

func (d *Debouncer[T]) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}
