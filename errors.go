package voicegateway

import "github.com/pkg/errors"

// ProtocolError marks a malformed or out-of-order payload. It is never
// retried.
type ProtocolError struct {
	cause error
}

// Error implements error.
func (e *ProtocolError) Error() string { return "voicegateway: protocol error: " + e.cause.Error() }

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error { return e.cause }

func newProtocolError(cause error) *ProtocolError { return &ProtocolError{cause: cause} }

// CloseError wraps a close-status classified by the reconnect policy (C5).
type CloseError struct {
	Status CloseStatus
}

// Error implements error.
func (e *CloseError) Error() string {
	return "voicegateway: connection closed: " + e.Status.Reason
}

// SocketSetupError marks a failure to establish the UDP media socket or
// complete IP discovery. It is retryable within ipDiscoveryRetrySpec; once
// those retries are exhausted the attempt ends with a non-abrupt
// ErrReconnect (RETRY), so the reconnect policy, its backoff and
// ReconnectOptions.MaxAttempts apply.
type SocketSetupError struct {
	cause error
}

// Error implements error.
func (e *SocketSetupError) Error() string {
	return "voicegateway: socket setup failed: " + e.cause.Error()
}

// Unwrap returns the underlying cause.
func (e *SocketSetupError) Unwrap() error { return e.cause }

func newSocketSetupError(cause error) *SocketSetupError { return &SocketSetupError{cause: cause} }

// ErrServerMigration is an internal sentinel causing a clean session rebuild
// when the voice endpoint migrates mid-session.
var ErrServerMigration = errors.New("voicegateway: server migration requested")

// ErrReconnect wraps a close so the reconnect policy (C5) can observe
// whether the attempt had previously reached CONNECTED. Abrupt marks a
// RETRY_ABRUPTLY outcome (host-requested reconnect, server migration): the
// reconnect policy and its backoff are bypassed entirely in favor of an
// immediate fresh CONNECTING attempt.
type ErrReconnect struct {
	ReachedConnected bool
	Abrupt           bool
	Cause            error
}

// Error implements error.
func (e *ErrReconnect) Error() string {
	return "voicegateway: reconnect: " + e.Cause.Error()
}

// Unwrap returns the underlying cause.
func (e *ErrReconnect) Unwrap() error { return e.Cause }

// TimeoutError marks a heartbeat or IP-discovery timeout. It is mapped to a
// protocol error with retryable semantics.
type TimeoutError struct {
	cause error
}

// Error implements error.
func (e *TimeoutError) Error() string { return "voicegateway: timeout: " + e.cause.Error() }

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error { return e.cause }

func newTimeoutError(cause error) *TimeoutError { return &TimeoutError{cause: cause} }

// ErrAlreadyStarted is returned by Start when called more than once on the
// same client instance (Invariant 5).
var ErrAlreadyStarted = errors.New("voicegateway: Start called more than once")

// ErrNotConnected is returned by Reconnect when the client isn't currently
// CONNECTED.
var ErrNotConnected = errors.New("voicegateway: not connected")
