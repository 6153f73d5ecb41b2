// Package countdown runs one cancellable per-question countdown.
//
// A Timer ticks at a fixed interval with the remaining time and, unless it
// is stopped first, calls its expiry callback exactly once. Stop joins the
// countdown goroutine, so once it returns true the expiry callback will
// never run for that timer.
package countdown

import (
	"sync"
	"time"
)

// TickFunc receives the time left after each tick. It runs on the countdown
// goroutine and must not block on anything that waits for Stop.
type TickFunc func(remaining time.Duration)

type state int

const (
	running state = iota
	stopped
	fired
)

// Timer is a single countdown. The zero value is not usable; use Start.
type Timer struct {
	mu    sync.Mutex
	state state
	stop  chan struct{}
	done  chan struct{}
}

// Start arms a countdown of duration d that ticks every interval.
// onTick may be nil. onExpiry is invoked on its own goroutine so it is free
// to take locks held by whoever calls Stop.
func Start(d, interval time.Duration, onTick TickFunc, onExpiry func()) *Timer {
	t := &Timer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run(d, interval, onTick, onExpiry)
	return t
}

func (t *Timer) run(d, interval time.Duration, onTick TickFunc, onExpiry func()) {
	defer close(t.done)

	deadline := time.NewTimer(d)
	defer deadline.Stop()

	var tick <-chan time.Time
	if interval > 0 && onTick != nil {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	remaining := d
	for {
		select {
		case <-t.stop:
			return
		case <-tick:
			remaining -= interval
			if remaining > 0 {
				onTick(remaining)
			}
		case <-deadline.C:
			if t.markFired() && onExpiry != nil {
				go onExpiry()
			}
			return
		}
	}
}

func (t *Timer) markFired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != running {
		return false
	}
	t.state = fired
	return true
}

// Stop cancels the countdown and waits for its goroutine to exit.
// It reports whether the call prevented the expiry callback; it returns
// false if the timer had already fired or been stopped.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	prevented := t.state == running
	if prevented {
		t.state = stopped
		close(t.stop)
	}
	t.mu.Unlock()

	<-t.done
	return prevented
}

// Fired reports whether the countdown reached zero.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == fired
}
