package voicegateway

import (
	"github.com/diamondburned/voicegateway/internal/backoff"
	"github.com/diamondburned/voicegateway/protocol"
)

// Action is the pure decision produced by classify (C5): either terminate
// the driver, or retry into a specific next state.
type Action uint8

// Known actions.
const (
	ActionStop Action = iota
	ActionRetry
)

// DefaultNonRetryableCloseCodes are voice close codes that terminate the
// driver rather than fall through the reconnect policy. 4014 is handled
// separately as a clean terminal disconnect (CloseCodeCleanDisconnect), not
// listed here, since it still yields Stop but with no error attached.
var DefaultNonRetryableCloseCodes = map[int]bool{
	4003: true, // not authenticated
	4004: true, // authentication failed
	4005: true, // already authenticated
	4006: true, // session no longer valid
	4011: true, // server not found
	4012: true, // unknown protocol
	4016: true, // unknown encryption mode
}

// classify is the pure reconnect-policy function from spec §4.5. It takes
// whether the attempt had reached CONNECTED at least once, the close
// status, the attempts already made, and the reconnect options, and returns
// the next Action plus — when retrying — the state the next attempt should
// enter.
func classify(reachedConnected bool, status CloseStatus, attempts uint32, opts ReconnectOptions, nonRetryable map[int]bool) (Action, protocol.State) {
	if nonRetryable[status.Code] || status.Code == CloseCodeCleanDisconnect {
		return ActionStop, protocol.Disconnected
	}

	if opts.MaxAttempts > 0 && attempts >= uint32(opts.MaxAttempts) {
		return ActionStop, protocol.Disconnected
	}

	if reachedConnected {
		return ActionRetry, protocol.Resuming
	}

	return ActionRetry, protocol.Connecting
}

// nextBackoff advances b and records in ctx the duration to wait before the
// next attempt (NextBackoff) and the number of attempts so far (Attempts).
// Every duration is bounded by the MaxBackoff b was built with. With jitter
// off, successive calls without an intervening reset produce non-decreasing
// durations (P6); with jitter on, each duration is drawn uniformly between
// FirstBackoff and that non-decreasing value, so a later duration can be
// shorter than an earlier one.
func nextBackoff(ctx *ReconnectContext, b *backoff.Backoff) {
	ctx.NextBackoff = b.Next()
	ctx.Attempts = b.Attempt()
}

// newAttemptBackoff constructs the backoff counter used for one Start call,
// grounded on opts.
func newAttemptBackoff(opts ReconnectOptions) backoff.Backoff {
	return backoff.NewBackoff(opts.FirstBackoff, opts.MaxBackoff, opts.Factor, opts.Jitter)
}
