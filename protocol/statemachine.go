package protocol

import "github.com/pkg/errors"

// State is the observable phase of one gateway attempt. It is monotonic
// within an attempt: CONNECTING -> CONNECTED -> (DISCONNECTED | RESUMING).
type State uint8

// Known states. Initial is Connecting; terminal is Disconnected.
const (
	Connecting State = iota
	Resuming
	Connected
	Disconnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Resuming:
		return "RESUMING"
	case Connected:
		return "CONNECTED"
	case Disconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// EventKind classifies the inbound trigger driving a transition.
type EventKind uint8

// Known event kinds, matching the rows of the transition table in §4.6.
// EventUnknown is deliberately the zero value: a decoded-but-unhandled
// payload (e.g. HeartbeatAckEvent, inbound SpeakingData) must classify as
// EventUnknown, never alias with a real event kind such as EventConnect.
const (
	EventUnknown EventKind = iota
	EventConnect                 // attempt just (re)connected
	EventHello
	EventReady
	EventSessionDescription
	EventResumed
	EventServerMigration
)

// Effect is a side effect the driver must perform as a consequence of a
// transition. The state machine itself is pure: it only names what must
// happen, never performs it.
type Effect uint8

// Known effects.
const (
	EffectStartHeartbeat Effect = iota
	EffectEmitIdentify
	EffectEmitResume
	EffectPerformIPDiscovery
	EffectEmitSelectProtocol
	EffectInstallTransformer
	EffectStartAudioTasks
	EffectResetReconnect
	EffectFulfillStart
	EffectAbortRetryAbrupt
)

// ErrUnhandledEvent describes a (state, event) pair with no row in the
// transition table. Transition reports that case by returning ok == false,
// not this error. It is not itself fatal — the caller (C7) decides whether to
// ignore it or surface a ProtocolError.
var ErrUnhandledEvent = errors.New("protocol: event not valid in current state")

type transitionKey struct {
	state State
	event EventKind
}

type transitionRow struct {
	next    State
	effects []Effect
}

// transitions is the explicit table from spec §4.6. CONNECTED's
// server-migration row leaves the state at CONNECTED: the driver aborts the
// whole attempt via retry-abrupt and a fresh attempt begins at CONNECTING.
var transitions = map[transitionKey]transitionRow{
	{Connecting, EventHello}: {
		next:    Connecting,
		effects: []Effect{EffectStartHeartbeat, EffectEmitIdentify},
	},
	{Resuming, EventConnect}: {
		next:    Resuming,
		effects: []Effect{EffectEmitResume},
	},
	{Resuming, EventResumed}: {
		next:    Connected,
		effects: []Effect{EffectResetReconnect},
	},
	{Connecting, EventReady}: {
		next:    Connecting,
		effects: []Effect{EffectPerformIPDiscovery, EffectEmitSelectProtocol},
	},
	{Connecting, EventSessionDescription}: {
		next: Connected,
		effects: []Effect{
			EffectInstallTransformer,
			EffectStartAudioTasks,
			EffectResetReconnect,
			EffectFulfillStart,
		},
	},
	// This row documents spec §4.6's CONNECTED/server-migration entry for
	// completeness. The driver never feeds EventServerMigration through
	// Transition: a migration arrives out-of-band (a host-supplied channel,
	// not a decoded control-plane frame) and is handled directly in the
	// driver's select loop, which builds the retry-abrupt outcome itself.
	{Connected, EventServerMigration}: {
		next:    Connected,
		effects: []Effect{EffectAbortRetryAbrupt},
	},
}

// Transition looks up the table row for (current, event) and returns the
// next state and the effects the driver must run, in order. ok is false if
// the event is not valid from the current state.
func Transition(current State, event EventKind) (next State, effects []Effect, ok bool) {
	row, found := transitions[transitionKey{current, event}]
	if !found {
		return current, nil, false
	}
	return row.next, row.effects, true
}
