package voicegateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/diamondburned/voicegateway/discord"
	"github.com/diamondburned/voicegateway/internal/moreatomic"
	"github.com/diamondburned/voicegateway/media"
	"github.com/diamondburned/voicegateway/protocol"
	"github.com/diamondburned/voicegateway/transport"
)

const defaultUserAgent = "DiscordBot(https://discord4j.com, 3)"

const defaultIPDiscoveryTimeout = 10 * time.Second

// AudioProvider supplies outgoing opus frames to a send task. The core does
// not define pacing or codec (Non-goal); ProvideFrame is called once per
// frame the send task wants to transmit.
type AudioProvider interface {
	ProvideFrame(ctx context.Context) (frame []byte, sampleCount uint32, err error)
}

// AudioReceiver consumes decoded inbound audio frames handed to it by a
// receive task.
type AudioReceiver interface {
	ReceiveFrame(ssrc uint32, frame []byte)
}

// SendTaskFactory builds the audio send task once SessionDescription has
// installed the packet transformer. sendSpeaking emits a Speaking payload;
// sendSink writes a sealed datagram to the voice socket. The returned stop
// func is registered with the attempt's scope.
type SendTaskFactory func(ctx context.Context, sendSpeaking func(flags uint32) error, sendSink func([]byte) error, provider AudioProvider, transformer *media.Transformer) (stop func())

// ReceiveTaskFactory builds the audio receive task. inbound yields raw
// datagrams off the voice socket; the task is responsible for opening them
// through transformer before handing frames to receiver.
type ReceiveTaskFactory func(ctx context.Context, inbound <-chan []byte, transformer *media.Transformer, receiver AudioReceiver) (stop func())

// VoiceGatewayOptions configures a Client. Only VoiceServerOptions, Session,
// and SelfID are required (spec §6). UserAgent, Logger, Transport, Codec,
// IPDiscoveryTimeout and IPDiscoveryRetrySpec fall back to defaults when
// unset. ReconnectOptions is used as given: its zero value means no backoff
// between attempts and no attempt limit, and DefaultReconnectOptions is not
// substituted for it.
type VoiceGatewayOptions struct {
	VoiceServerOptions VoiceServerOptions
	Session            Session
	SelfID             discord.UserID

	// UserAgent defaults to the literal required by spec §6. Logger
	// defaults to a disabled logger, matching the teacher's
	// ErrorLog func(error) {} no-op convention.
	UserAgent string
	Logger    *zerolog.Logger

	// Transport overrides the default gorilla/websocket Connection. Nil
	// selects transport.NewConn().
	Transport transport.Connection

	// Codec overrides the payload marshal/unmarshal driver (spec §6's
	// "jacksonResources" binding point). Nil selects protocol.DefaultCodec.
	Codec protocol.Codec

	ReconnectOptions ReconnectOptions

	AudioProvider      AudioProvider
	AudioReceiver      AudioReceiver
	SendTaskFactory    SendTaskFactory
	ReceiveTaskFactory ReceiveTaskFactory

	// DisconnectTask is invoked once, after the driver reaches a terminal
	// STOP following a successful Start, with the close status that ended
	// the session. A clean end (a 4014 close, a host Disconnect, or context
	// cancellation) reports CloseCodeCleanDisconnect; an error without a
	// close code reports Code -1 and the error text as Reason.
	DisconnectTask func(CloseStatus)

	// ServerUpdateTask, if set, is called once per Start with a context
	// scoped to the driver's lifetime and must return a channel the driver
	// reads new VoiceServerOptions from whenever the host's voice server
	// migrates (spec scenario 4).
	ServerUpdateTask func(ctx context.Context) <-chan VoiceServerOptions

	// StateUpdateTask mirrors ServerUpdateTask for session id churn (spec
	// §9's open question; resolved in DESIGN.md as update-in-place).
	StateUpdateTask func(ctx context.Context) <-chan Session

	// ChannelRetrieveTask backs Client.ChannelID.
	ChannelRetrieveTask func() discord.ChannelID

	IPDiscoveryTimeout   time.Duration
	IPDiscoveryRetrySpec media.DiscoveryRetry
}

func (o *VoiceGatewayOptions) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}
	return zerolog.Nop()
}

func (o *VoiceGatewayOptions) transport() transport.Connection {
	if o.Transport != nil {
		return o.Transport
	}
	return transport.NewConn()
}

func (o *VoiceGatewayOptions) codec() protocol.Codec {
	if o.Codec != nil {
		return o.Codec
	}
	return protocol.DefaultCodec
}

func (o *VoiceGatewayOptions) userAgent() string {
	if o.UserAgent != "" {
		return o.UserAgent
	}
	return defaultUserAgent
}

func (o *VoiceGatewayOptions) ipDiscoveryRetry() media.DiscoveryRetry {
	if o.IPDiscoveryRetrySpec.Attempts > 0 {
		return o.IPDiscoveryRetrySpec
	}
	return media.DefaultDiscoveryRetry
}

func (o *VoiceGatewayOptions) ipDiscoveryTimeout() time.Duration {
	if o.IPDiscoveryTimeout > 0 {
		return o.IPDiscoveryTimeout
	}
	return defaultIPDiscoveryTimeout
}

// Client is the external façade (C8) returned to the host application. The
// zero value is not usable; construct with NewClient.
type Client struct {
	opts   *VoiceGatewayOptions
	driver *driver

	started moreatomic.Bool // guards Invariant 5
}

// NewClient builds a Client from opts. opts is not copied; mutating it after
// Start is undefined.
func NewClient(opts *VoiceGatewayOptions) *Client {
	return &Client{
		opts:   opts,
		driver: newDriver(opts),
	}
}

// Start begins the connect/reconnect lifecycle and blocks until the first
// CONNECTED, a terminal error, or ctx is cancelled. It may be called only
// once per Client (Invariant 5); a second call returns ErrAlreadyStarted.
func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false) {
		return ErrAlreadyStarted
	}

	states := c.driver.states.subscribe()

	go c.driver.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-c.driver.disconnectErr:
			if err != nil {
				return err
			}
			// The driver finished before ever reaching CONNECTED.
			return errors.New("voicegateway: session ended before reaching CONNECTED")

		case v, ok := <-states:
			if !ok {
				return errors.New("voicegateway: session ended before reaching CONNECTED")
			}
			if v.(State) == Connected {
				go c.awaitDisconnect()
				return nil
			}
		}
	}
}

// awaitDisconnect drains disconnectErr once Start has returned successfully,
// invoking DisconnectTask exactly once (spec §4.7's handleClose contract).
func (c *Client) awaitDisconnect() {
	err := <-c.driver.disconnectErr

	if c.opts.DisconnectTask == nil {
		return
	}

	var closeErr *CloseError
	if errors.As(err, &closeErr) {
		c.opts.DisconnectTask(closeErr.Status)
	} else if err != nil {
		c.opts.DisconnectTask(closeStatusFromError(err))
	} else {
		c.opts.DisconnectTask(CloseStatus{Code: CloseCodeCleanDisconnect})
	}
}

// Events returns a live stream of decoded VoiceGatewayEvents with LATEST
// overflow (spec §4.8).
func (c *Client) Events() <-chan VoiceGatewayEvent {
	out := make(chan VoiceGatewayEvent)
	sub := c.driver.events.subscribe()

	go func() {
		defer close(out)
		for v := range sub {
			out <- v.(VoiceGatewayEvent)
		}
	}()

	return out
}

// StateEvents returns a replay-last stream of observed States (spec §4.8).
func (c *Client) StateEvents() <-chan State {
	out := make(chan State)
	sub := c.driver.states.subscribe()

	go func() {
		defer close(out)
		for v := range sub {
			out <- v.(State)
		}
	}()

	return out
}

// Disconnect requests a clean STOP if the client is currently CONNECTED;
// otherwise it is a no-op (spec §4.8).
func (c *Client) Disconnect() {
	if v, ok := c.driver.states.current(); !ok || v.(State) != Connected {
		return
	}
	c.driver.requestStop()
}

// Reconnect requests a RETRY_ABRUPT if the client is currently CONNECTED and
// blocks until the next CONNECTED or ctx is cancelled; otherwise it returns
// ErrNotConnected (spec §4.8).
func (c *Client) Reconnect(ctx context.Context) error {
	if v, ok := c.driver.states.current(); !ok || v.(State) != Connected {
		return ErrNotConnected
	}

	states := c.driver.states.subscribe()
	c.driver.requestReconnect()

	// subscribe immediately replays the current (still-CONNECTED) value;
	// skip it so we wait for the *next* CONNECTED, not the one that was
	// already true before the reconnect was requested.
	skippedCurrent := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-states:
			if !ok {
				return errors.New("voicegateway: session ended while reconnecting")
			}
			if !skippedCurrent {
				skippedCurrent = true
				continue
			}
			if v.(State) == Connected {
				return nil
			}
		}
	}
}

// GuildID returns the guild id this client was configured for.
func (c *Client) GuildID() discord.GuildID {
	return c.opts.VoiceServerOptions.GuildID
}

// ChannelID delegates to the injected ChannelRetrieveTask. It returns
// NullSnowflake-backed zero value if none was configured.
func (c *Client) ChannelID() discord.ChannelID {
	if c.opts.ChannelRetrieveTask == nil {
		return 0
	}
	return c.opts.ChannelRetrieveTask()
}
