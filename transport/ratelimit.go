package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// SendBurst determines the number of control-plane commands that can be
// sent all at once before being throttled.
var SendBurst = 5

// NewSendLimiter returns a rate limiter for throttling outbound control
// commands.
func NewSendLimiter() *rate.Limiter {
	const perMinute = 120
	return rate.NewLimiter(
		rate.Every(time.Minute/(perMinute-time.Duration(SendBurst))),
		SendBurst,
	)
}

// NewDialLimiter returns a rate limiter for throttling new connection
// attempts (including reconnects).
func NewDialLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(5*time.Second), 1)
}
