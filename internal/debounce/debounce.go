// Package debounce stabilises rapidly changing values. A Value only
// delivers the latest input, and only after it has been left alone for the
// configured delay.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the stabilisation window used when none is configured.
const DefaultDelay = time.Second

// Value debounces inputs of type T. At most one timer is live; every Set
// replaces it, and a callback from a superseded timer never runs.
type Value[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	gen     uint64
	pending bool
	latest  T
	stopped bool
}

// New creates a debounced value that calls fn with the stable input.
func New[T any](delay time.Duration, fn func(T)) *Value[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Value[T]{delay: delay, fn: fn}
}

// Set records v and restarts the delay.
func (d *Value[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.latest = v
	d.pending = true
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Value[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || !d.pending {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(v)
}

// Flush delivers the pending value now, if there is one.
func (d *Value[T]) Flush() {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	v := d.latest
	d.pending = false
	d.mu.Unlock()

	d.fn(v)
}

// Pending reports whether a value is waiting to be delivered.
func (d *Value[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending delivery. Later calls to Set are ignored.
func (d *Value[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
