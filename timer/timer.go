// Package timer provides the dynamic-interval timer every periodic loop in
// this server is driven by.  Unlike time.Ticker the interval is recomputed
// before every fire, so a loop can follow configuration that changes while it
// runs, and a timer can optionally fire once synchronously when first started.
package timer

import (
	"sync"
	"time"
)

// IntervalFunc computes the delay before the next fire from the number of
// fires so far.  It is called once per arm, so the result may change between
// fires.
type IntervalFunc func(count int) time.Duration

// Timer fires a callback on a dynamically recomputed interval.
//
// The timer never serializes callback invocations: if the callback outlives
// the interval, invocations overlap.  Callers that need at-most-one-in-flight
// behavior guard it themselves.
type Timer struct {
	mu        sync.Mutex
	callback  func(count int)
	next      IntervalFunc
	immediate bool
	count     int
	closed    bool
	pending   *time.Timer
}

// New returns a timer with a fixed interval.
func New(interval time.Duration, callback func(count int)) *Timer {
	return NewDynamic(func(int) time.Duration { return interval }, callback)
}

// NewDynamic returns a timer whose interval is recomputed by next before
// every arm.
func NewDynamic(next IntervalFunc, callback func(count int)) *Timer {
	return &Timer{callback: callback, next: next}
}

// Immediate makes the very first Start fire the callback synchronously,
// before any interval elapses.  It returns the timer for chaining at
// construction time.
func (t *Timer) Immediate() *Timer {
	t.mu.Lock()
	t.immediate = true
	t.mu.Unlock()
	return t
}

// Start arms the timer.  If the timer is immediate and has never fired, the
// callback runs synchronously first (counting as fire #1) and the interval
// countdown begins after it returns.  Starting an armed or closed timer is a
// no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.closed || t.pending != nil {
		t.mu.Unlock()
		return
	}
	if t.immediate && t.count == 0 {
		t.count++
		count := t.count
		t.armLocked()
		callback := t.callback
		t.mu.Unlock()
		callback(count)
		return
	}
	t.armLocked()
	t.mu.Unlock()
}

// Stop disarms the timer without discarding the fire count; Start re-arms it.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.disarmLocked()
	t.mu.Unlock()
}

// Close permanently disposes the timer and resets the fire count.  A closed
// timer cannot be restarted.
func (t *Timer) Close() {
	t.mu.Lock()
	t.disarmLocked()
	t.closed = true
	t.count = 0
	t.mu.Unlock()
}

// Active reports whether the timer is currently armed.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

// Count returns the number of fires so far.
func (t *Timer) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *Timer) armLocked() {
	d := t.next(t.count)
	t.pending = time.AfterFunc(d, t.fire)
}

func (t *Timer) disarmLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// fire re-arms before running the callback, so a slow callback does not
// stall the schedule.
func (t *Timer) fire() {
	t.mu.Lock()
	// pending == nil means Stop or Close won the race after AfterFunc
	// already triggered.
	if t.closed || t.pending == nil {
		t.mu.Unlock()
		return
	}
	t.count++
	count := t.count
	t.disarmLocked()
	t.armLocked()
	callback := t.callback
	t.mu.Unlock()
	callback(count)
}
