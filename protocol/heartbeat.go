package protocol

import (
	"time"

	"github.com/diamondburned/voicegateway/internal/lazytime"
)

// Ticker produces a lazy, infinite sequence of monotonically increasing
// nonces at a configurable period, starting one interval after Start.
// It is safely re-startable with a new interval without leaking the prior
// timer, matching C2's contract.
type Ticker struct {
	C <-chan uint64

	ticker  lazytime.Ticker
	c       chan uint64
	done    chan struct{}
	stopped chan struct{}
	nonce   uint64
}

// Start (re)starts the ticker at the given interval. Calling Start again
// before Stop replaces the running timer without leaking it. The nonce
// sequence keeps counting up across restarts.
func (t *Ticker) Start(interval time.Duration) {
	t.Stop()

	t.ticker.Reset(interval)
	t.c = make(chan uint64, 1)
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	t.C = t.c

	go run(t.ticker.C, t.c, t.done, t.stopped, &t.nonce)
}

// run owns nonce exclusively for its lifetime; Stop waits on stopped before
// the next Start touches it again, so no synchronization is needed on it.
func run(src <-chan time.Time, dst chan<- uint64, done <-chan struct{}, stopped chan<- struct{}, nonce *uint64) {
	defer close(stopped)

	for {
		select {
		case <-done:
			return
		case <-src:
			*nonce++
			select {
			case dst <- *nonce:
			case <-done:
				return
			}
		}
	}
}

// Stop stops the ticker, waits for its background goroutine to exit, and
// releases its resources. It does nothing if the ticker was never started.
func (t *Ticker) Stop() {
	t.ticker.Stop()

	if t.done != nil {
		close(t.done)
		<-t.stopped
		t.done = nil
		t.stopped = nil
	}

	t.C = nil
}
