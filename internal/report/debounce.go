package report

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period applied to search keystrokes.
const DefaultDebounce = 250 * time.Millisecond

// Debouncer collapses bursts of calls into one. By default fn runs once the
// calls have stopped for the wait interval, with the last value passed. In
// immediate mode fn runs on the first call of a burst and the trailing run is
// dropped. At most one timer is pending per Debouncer.
type Debouncer[T any] struct {
	wait      time.Duration
	immediate bool
	fn        func(T)

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a trailing-edge debouncer.
func NewDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, fn: fn}
}

// NewImmediateDebouncer returns a leading-edge debouncer.
func NewImmediateDebouncer[T any](wait time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{wait: wait, immediate: true, fn: fn}
}

// Call records an event. Any pending timer is replaced.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	callNow := d.immediate && d.timer == nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.wait, func() { d.fire(seq, v) })
	d.mu.Unlock()

	if callNow {
		d.fn(v)
	}
}

// Pending reports whether a timer is waiting to fire.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop drops any pending call.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

func (d *Debouncer[T]) fire(seq uint64, v T) {
	d.mu.Lock()
	// A timer that lost the race with Call or Stop must not run.
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if !d.immediate {
		d.fn(v)
	}
}
