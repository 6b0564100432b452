// Package voicegateway implements a voice gateway client: WebSocket
// control-plane negotiation, a companion UDP media channel with IP
// discovery, an authenticated-encryption packet transformer, and a
// reconnect/resume state machine layered with heartbeat and
// server-migration handling.
package voicegateway

import (
	"time"

	"github.com/diamondburned/voicegateway/discord"
	"github.com/diamondburned/voicegateway/protocol"
)

// State is the observable phase of one gateway attempt.
type State = protocol.State

// Observable states, re-exported from the protocol package so callers never
// need to import it directly.
const (
	Connecting   = protocol.Connecting
	Resuming     = protocol.Resuming
	Connected    = protocol.Connected
	Disconnected = protocol.Disconnected
)

// VoiceServerOptions identifies the voice server to connect to. It is
// supplied at Start and replaced atomically on server-migration events.
type VoiceServerOptions struct {
	Endpoint string
	Token    string
	GuildID  discord.GuildID
}

// Session holds the server-assigned session id, updated in place when the
// host signals a voice-state change (see DESIGN.md's resolution of the
// session-id-churn open question).
type Session struct {
	SessionID string
}

// CloseStatus describes why the WebSocket connection closed.
type CloseStatus struct {
	Code   int
	Reason string
}

// CloseCodeCleanDisconnect is a terminal but clean disconnect (the voice
// channel was deleted, or the client was kicked). It surfaces as
// DISCONNECTED with no error rather than a reconnect attempt.
const CloseCodeCleanDisconnect = 4014

// ReconnectOptions parameterizes the backoff used between reconnect
// attempts and bounds how many will be made.
type ReconnectOptions struct {
	FirstBackoff time.Duration
	MaxBackoff   time.Duration
	Factor       float64
	Jitter       bool
	MaxAttempts  int // 0 means unlimited
}

// DefaultReconnectOptions is a reasonable default policy.
var DefaultReconnectOptions = ReconnectOptions{
	FirstBackoff: time.Second,
	MaxBackoff:   30 * time.Second,
	Factor:       2,
	Jitter:       true,
	MaxAttempts:  0,
}

// ReconnectContext is mutable state created once per Start and reset on
// every successful transition into CONNECTED.
type ReconnectContext struct {
	Attempts    uint32
	NextBackoff time.Duration
}
