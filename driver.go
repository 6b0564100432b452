package voicegateway

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/diamondburned/voicegateway/internal/backoff"
	"github.com/diamondburned/voicegateway/internal/lazytime"
	"github.com/diamondburned/voicegateway/media"
	"github.com/diamondburned/voicegateway/protocol"
	"github.com/diamondburned/voicegateway/transport"
)

// scope collects per-attempt teardown funcs and releases them in LIFO order,
// grounded on the teacher's Session.ensureClosed/Manager.Close pattern of
// ordered, idempotent cleanup (spec §5 "composable disposal").
type scope struct {
	teardown []func()
}

// defer_ registers f to run when the scope closes. Named with a trailing
// underscore since defer is a keyword.
func (s *scope) defer_(f func()) {
	s.teardown = append(s.teardown, f)
}

// close runs every registered teardown func, most-recently-added first.
func (s *scope) close() {
	for i := len(s.teardown) - 1; i >= 0; i-- {
		s.teardown[i]()
	}
}

// DisconnectBehavior is the driver-internal decision kind distinguishing
// whether cleanup should await inner completions and whether the outer
// retry wrapper runs (spec Glossary).
type DisconnectBehavior uint8

// Known disconnect behaviors.
const (
	BehaviorStop DisconnectBehavior = iota
	BehaviorStopAbruptly
	BehaviorRetry
	BehaviorRetryAbruptly
)

// String implements fmt.Stringer.
func (b DisconnectBehavior) String() string {
	switch b {
	case BehaviorStop:
		return "STOP"
	case BehaviorStopAbruptly:
		return "STOP_ABRUPTLY"
	case BehaviorRetry:
		return "RETRY"
	case BehaviorRetryAbruptly:
		return "RETRY_ABRUPTLY"
	default:
		return "UNKNOWN"
	}
}

// behaviorFor classifies a runAttempt outcome into the DisconnectBehavior
// taxonomy from the Glossary (spec §4.7 point 4). The control flow in run
// already branches on the error's concrete type; this exists so every close
// is logged against the same vocabulary the spec uses.
func behaviorFor(err error) DisconnectBehavior {
	if err == nil {
		return BehaviorStop
	}

	var reconnect *ErrReconnect
	if errors.As(err, &reconnect) {
		if reconnect.Abrupt {
			return BehaviorRetryAbruptly
		}
		return BehaviorRetry
	}

	return BehaviorStopAbruptly
}

// driver owns one Client's entire connect/reconnect lifecycle (C7).
type driver struct {
	opts   *VoiceGatewayOptions
	events *broadcaster
	states *replayLast

	serverOptions VoiceServerOptions
	session       Session
	codec         protocol.Codec

	// ssrc is written once per attempt by runAttempt's receiver loop before
	// the audio send task starts reading it from speakingSender (spec §5:
	// "a volatile ssrc written once by the receiver task before start-up of
	// the send/receive tasks").
	ssrc atomic.Uint32

	reconnectCtx ReconnectContext
	backoff      backoff.Backoff
	backoffTimer lazytime.Timer

	// sendLimiter and dialLimiter persist across attempts for the lifetime
	// of the driver, since the control-plane rate budget (spec §6) is a
	// property of the session, not of any one attempt.
	sendLimiter *rate.Limiter
	dialLimiter *rate.Limiter

	disconnectErr chan error // fulfilled exactly once, on terminal STOP*

	stopRequested      chan struct{}
	reconnectRequested chan struct{}
}

func newDriver(opts *VoiceGatewayOptions) *driver {
	return &driver{
		opts:               opts,
		events:             newBroadcaster(),
		states:             newReplayLast(),
		serverOptions:      opts.VoiceServerOptions,
		session:            opts.Session,
		codec:              opts.codec(),
		backoff:            newAttemptBackoff(opts.ReconnectOptions),
		sendLimiter:        transport.NewSendLimiter(),
		dialLimiter:        transport.NewDialLimiter(),
		disconnectErr:      make(chan error, 1),
		stopRequested:      make(chan struct{}, 1),
		reconnectRequested: make(chan struct{}, 1),
	}
}

// requestStop asks the current attempt to end cleanly (Client.Disconnect).
// A no-op if an earlier request is already pending.
func (d *driver) requestStop() {
	select {
	case d.stopRequested <- struct{}{}:
	default:
	}
}

// requestReconnect asks the current attempt to end with RETRY_ABRUPTLY
// (Client.Reconnect). A no-op if an earlier request is already pending.
func (d *driver) requestReconnect() {
	select {
	case d.reconnectRequested <- struct{}{}:
	default:
	}
}

// run drives the full connect/reconnect lifecycle until ctx is cancelled or
// a non-retryable close terminates the driver.
func (d *driver) run(ctx context.Context) {
	defer d.events.close()
	defer d.states.close()

	logger := d.opts.logger()

	var serverUpdateCh <-chan VoiceServerOptions
	if d.opts.ServerUpdateTask != nil {
		serverUpdateCh = d.opts.ServerUpdateTask(ctx)
	}

	var stateUpdateCh <-chan Session
	if d.opts.StateUpdateTask != nil {
		stateUpdateCh = d.opts.StateUpdateTask(ctx)
	}

	attemptState := protocol.Connecting

	for {
		scope := &scope{}
		err := d.runAttempt(ctx, attemptState, scope, serverUpdateCh, stateUpdateCh)
		scope.close()

		logger.Debug().Stringer("behavior", behaviorFor(err)).Msg("attempt ended")

		if err == nil {
			d.finish(nil)
			return
		}

		if ctx.Err() != nil {
			d.finish(nil)
			return
		}

		var reconnect *ErrReconnect
		if !errors.As(err, &reconnect) {
			// Non-retryable protocol/socket error: terminal stop.
			d.finish(err)
			return
		}

		if reconnect.Abrupt {
			// RETRY_ABRUPTLY: bypass the reconnect policy entirely and
			// rebuild the session from scratch with no backoff (host
			// reconnect request or server migration).
			d.backoff.Reset()
			d.reconnectCtx = ReconnectContext{}
			attemptState = protocol.Connecting
			continue
		}

		status := closeStatusFromError(reconnect.Cause)

		action, next := classify(reconnect.ReachedConnected, status, d.reconnectCtx.Attempts, d.opts.ReconnectOptions, DefaultNonRetryableCloseCodes)
		if action == ActionStop {
			if status.Code == CloseCodeCleanDisconnect {
				d.finish(nil)
			} else {
				d.finish(&CloseError{Status: status})
			}
			return
		}

		nextBackoff(&d.reconnectCtx, &d.backoff)

		d.backoffTimer.Reset(d.reconnectCtx.NextBackoff)
		if err := d.backoffTimer.Wait(ctx); err != nil {
			d.backoffTimer.Stop()
			d.finish(nil)
			return
		}

		attemptState = next
	}
}

func (d *driver) finish(err error) {
	select {
	case d.disconnectErr <- err:
	default:
	}
}

// closeStatusFromError extracts a CloseStatus from a transport close event,
// defaulting to an unclassified code so classify still runs the CONNECTED
// check.
func closeStatusFromError(err error) CloseStatus {
	var closeEv *transport.CloseEvent
	if errors.As(err, &closeEv) {
		return CloseStatus{Code: closeEv.Code, Reason: closeEv.Error()}
	}
	return CloseStatus{Code: -1, Reason: err.Error()}
}

// runAttempt drives exactly one CONNECTING/RESUMING..CONNECTED..close span.
// A nil return means the attempt ended in a clean stop (context cancellation
// or a host Disconnect request). A non-nil, non-*ErrReconnect error is a
// terminal protocol/socket failure. An *ErrReconnect means the caller should
// consult the reconnect policy, unless its Abrupt bit is set, in which case
// the caller rebuilds from CONNECTING without consulting it.
func (d *driver) runAttempt(ctx context.Context, state protocol.State, sc *scope, serverUpdateCh <-chan VoiceServerOptions, stateUpdateCh <-chan Session) error {
	logger := d.opts.logger().With().
		Str("guild_id", d.serverOptions.GuildID.String()).
		Logger()

	conn := d.opts.transport()

	header := http.Header{}
	header.Set("User-Agent", d.opts.userAgent())

	addr := d.serverOptions.Endpoint + "?v=4"

	if err := d.dialLimiter.Wait(ctx); err != nil {
		return &ErrReconnect{ReachedConnected: false, Cause: err}
	}

	frames, err := conn.Dial(ctx, addr, header)
	if err != nil {
		return &ErrReconnect{ReachedConnected: false, Cause: errors.Wrap(err, "failed to dial voice websocket")}
	}
	sc.defer_(func() { conn.Close(true) })

	var ticker protocol.Ticker
	sc.defer_(ticker.Stop)

	outbound := make(chan protocol.Data, 16)
	outboundErr := make(chan error, 1)
	sc.defer_(func() { close(outbound) })

	go d.writeLoop(ctx, conn, outbound, outboundErr)

	d.states.publish(state)

	var (
		socket      *media.Socket
		transformer *media.Transformer
		resumeSent  bool
		extIP       string
		extPort     uint16
	)
	sc.defer_(func() {
		if socket != nil {
			socket.Close()
		}
	})
	sc.defer_(func() {
		if transformer != nil {
			transformer.Destroy()
		}
	})

	reachedConnected := false

	if state == protocol.Resuming && !resumeSent {
		if err := d.emit(ctx, outbound, &protocol.ResumeData{
			GuildID:   d.serverOptions.GuildID,
			UserID:    d.opts.SelfID,
			SessionID: d.session.SessionID,
		}); err != nil {
			return &ErrReconnect{ReachedConnected: false, Cause: err}
		}
		resumeSent = true
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-d.stopRequested:
			return nil

		case <-d.reconnectRequested:
			return &ErrReconnect{
				ReachedConnected: reachedConnected,
				Abrupt:           true,
				Cause:            errors.New("reconnect requested by host"),
			}

		case newServer, ok := <-serverUpdateCh:
			if !ok {
				continue
			}
			logger.Info().Str("endpoint", newServer.Endpoint).Msg("server migration requested")
			d.serverOptions = newServer
			return &ErrReconnect{
				ReachedConnected: reachedConnected,
				Abrupt:           true,
				Cause:            ErrServerMigration,
			}

		case newSession, ok := <-stateUpdateCh:
			if !ok {
				continue
			}
			d.session = newSession

		case err := <-outboundErr:
			return &ErrReconnect{ReachedConnected: reachedConnected, Cause: err}

		case nonce, ok := <-ticker.C:
			if !ok {
				continue
			}
			hb := protocol.HeartbeatData(nonce)
			if err := d.emit(ctx, outbound, &hb); err != nil {
				return &ErrReconnect{ReachedConnected: reachedConnected, Cause: err}
			}

		case frame, ok := <-frames:
			if !ok {
				return &ErrReconnect{ReachedConnected: reachedConnected, Cause: errors.New("frame channel closed unexpectedly")}
			}
			if frame.Close != nil {
				return &ErrReconnect{ReachedConnected: reachedConnected, Cause: frame.Close}
			}

			data, err := protocol.DecodeWith(d.codec, frame.Data)
			if err != nil {
				return newProtocolError(err)
			}

			if _, ok := data.(*protocol.Unknown); ok {
				// P2: lenient decode, no state advance.
				d.events.publish(VoiceGatewayEvent{Data: data})
				continue
			}

			kind := eventKind(data)

			next, effects, ok := protocol.Transition(state, kind)
			if !ok {
				// Event not valid in the current state: no state advance,
				// per the teacher's lenient HandleOP dispatch.
				d.events.publish(VoiceGatewayEvent{Data: data})
				continue
			}
			state = next
			d.states.publish(state)

			for _, effect := range effects {
				switch effect {
				case protocol.EffectStartHeartbeat:
					hello := data.(*protocol.HelloEvent)
					ticker.Start(time.Duration(hello.HeartbeatIntervalMs) * time.Millisecond)

				case protocol.EffectEmitIdentify:
					if err := d.emit(ctx, outbound, &protocol.IdentifyData{
						GuildID:   d.serverOptions.GuildID,
						UserID:    d.opts.SelfID,
						SessionID: d.session.SessionID,
						Token:     d.serverOptions.Token,
					}); err != nil {
						return &ErrReconnect{ReachedConnected: reachedConnected, Cause: err}
					}

				case protocol.EffectEmitResume:
					if !resumeSent {
						if err := d.emit(ctx, outbound, &protocol.ResumeData{
							GuildID:   d.serverOptions.GuildID,
							UserID:    d.opts.SelfID,
							SessionID: d.session.SessionID,
						}); err != nil {
							return &ErrReconnect{ReachedConnected: reachedConnected, Cause: err}
						}
						resumeSent = true
					}

				case protocol.EffectPerformIPDiscovery:
					ready := data.(*protocol.ReadyEvent)
					d.ssrc.Store(ready.SSRC)

					sock, err := media.Setup(ctx, ready.IP, ready.Port)
					if err != nil {
						return &ErrReconnect{ReachedConnected: reachedConnected, Cause: newSocketSetupError(err)}
					}
					socket = sock

					ip, port, err := socket.PerformIPDiscovery(ctx, ready.SSRC, d.opts.ipDiscoveryRetry(), d.opts.ipDiscoveryTimeout())
					if err != nil {
						return &ErrReconnect{ReachedConnected: reachedConnected, Cause: newSocketSetupError(err)}
					}
					extIP, extPort = ip, port

				case protocol.EffectEmitSelectProtocol:
					if err := d.emit(ctx, outbound, &protocol.SelectProtocolData{
						Protocol: "udp",
						Data: protocol.SelectProtocolDataBody{
							Address: extIP,
							Port:    extPort,
							Mode:    "xsalsa20_poly1305",
						},
					}); err != nil {
						return &ErrReconnect{ReachedConnected: reachedConnected, Cause: err}
					}

				case protocol.EffectInstallTransformer:
					sd := data.(*protocol.SessionDescriptionEvent)
					transformer = media.NewTransformer(d.ssrc.Load(), sd.SecretKey)

				case protocol.EffectStartAudioTasks:
					d.startAudioTasks(ctx, sc, socket, transformer, outbound)

				case protocol.EffectResetReconnect:
					d.backoff.Reset()
					d.reconnectCtx = ReconnectContext{}
					reachedConnected = true

				case protocol.EffectFulfillStart:
					// The caller's Start() is already unblocked by the
					// CONNECTED state publish above; nothing further to do.
				}
			}

			d.events.publish(VoiceGatewayEvent{Data: data})
		}
	}
}

// emit encodes and sends data over outbound. The channel is bounded and
// back-pressure errors on overflow rather than silently dropping (spec
// §4.7 item 2): a full channel surfaces as a reconnect-triggering error.
func (d *driver) emit(ctx context.Context, outbound chan<- protocol.Data, data protocol.Data) error {
	select {
	case outbound <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("outbound control channel is full")
	}
}

func (d *driver) writeLoop(ctx context.Context, conn transport.Connection, outbound <-chan protocol.Data, errc chan<- error) {
	for data := range outbound {
		b, err := protocol.EncodeWith(d.codec, data)
		if err != nil {
			errc <- errors.Wrap(err, "failed to encode outbound payload")
			return
		}

		if err := d.sendLimiter.Wait(ctx); err != nil {
			errc <- errors.Wrap(err, "rate limiter wait failed")
			return
		}

		if err := conn.Send(ctx, b); err != nil {
			errc <- errors.Wrap(err, "failed to send outbound payload")
			return
		}
	}
}

// startAudioTasks launches the host-injected send/receive task factories, if
// configured. The core does not define pacing or codec (Non-goal); it only
// wires the transport contracts (spec §9 "audio send/receive as injected
// factories").
func (d *driver) startAudioTasks(ctx context.Context, sc *scope, socket *media.Socket, transformer *media.Transformer, outbound chan<- protocol.Data) {
	if d.opts.SendTaskFactory != nil {
		speakingSender := func(flags uint32) error {
			return d.emit(ctx, outbound, &protocol.SpeakingData{Flags: flags, SSRC: d.ssrc.Load()})
		}
		stop := d.opts.SendTaskFactory(ctx, speakingSender, socket.Send, d.opts.AudioProvider, transformer)
		if stop != nil {
			sc.defer_(stop)
		}
	}

	if d.opts.ReceiveTaskFactory != nil {
		stop := d.opts.ReceiveTaskFactory(ctx, socket.Inbound(), transformer, d.opts.AudioReceiver)
		if stop != nil {
			sc.defer_(stop)
		}
	}
}

// eventKind maps a decoded payload to the state-machine event it drives.
// Server migration is not among these: it arrives out-of-band on
// serverUpdateCh and is handled directly in runAttempt's select loop (spec
// §4.6 row "CONNECTED | server-migration").
func eventKind(data protocol.Data) protocol.EventKind {
	switch data.(type) {
	case *protocol.HelloEvent:
		return protocol.EventHello
	case *protocol.ReadyEvent:
		return protocol.EventReady
	case *protocol.SessionDescriptionEvent:
		return protocol.EventSessionDescription
	case *protocol.ResumedEvent:
		return protocol.EventResumed
	default:
		return protocol.EventUnknown
	}
}
