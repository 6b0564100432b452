// Package backoff provides an exponential-backoff implementation partially
// taken from jpillora/backoff, generalized to accept the factor and jitter
// toggle as parameters instead of fixed constants, so a host's
// ReconnectOptions can drive it directly (P6).
package backoff

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

func init() {
	rand.Seed(time.Now().UnixNano())
}

// Backoff is a time.Duration counter, starting at Min. After every call to
// Next the current timing is multiplied by Factor, but it never exceeds Max.
type Backoff struct {
	min, max float64 // seconds
	factor   float64
	jitter   bool
	attempt  int32
}

// NewBackoff creates a new backoff counter. factor must be > 1; jitter
// spreads each duration uniformly between min and the computed duration.
func NewBackoff(min, max time.Duration, factor float64, jitter bool) Backoff {
	return Backoff{
		min:    min.Seconds(),
		max:    max.Seconds(),
		factor: factor,
		jitter: jitter,
	}
}

// Next returns the next backoff duration and advances the attempt counter.
func (b *Backoff) Next() time.Duration {
	return b.forAttempt(atomic.AddInt32(&b.attempt, 1) - 1)
}

// Attempt returns the number of times Next has been called.
func (b *Backoff) Attempt() uint32 {
	return uint32(atomic.LoadInt32(&b.attempt))
}

// Reset zeroes the attempt counter, so the next Next call returns min again.
func (b *Backoff) Reset() {
	atomic.StoreInt32(&b.attempt, 0)
}

// forAttempt returns the duration for a specific attempt. The first attempt
// should be 0.
func (b *Backoff) forAttempt(attempt int32) time.Duration {
	if b.min >= b.max {
		return duration(b.max)
	}

	if attempt < 0 {
		attempt = math.MaxInt32
	}

	dur := b.min * math.Pow(b.factor, float64(attempt))
	if b.jitter {
		dur = rand.Float64()*(dur-b.min) + b.min
	}

	if dur < b.min {
		return duration(b.min)
	}
	if dur > b.max {
		return duration(b.max)
	}

	return duration(dur)
}

// duration converts a seconds float64 to time.Duration without losing accuracy.
func duration(secs float64) time.Duration {
	int, frac := math.Modf(secs)
	return (time.Duration(int) * time.Second) + time.Duration(frac*float64(time.Second))
}
