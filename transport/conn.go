// Package transport provides the WebSocket control-plane transport seam
// (spec §6's "HTTP... transport libraries" out-of-scope-but-interfaced
// collaborator) along with its default gorilla/websocket implementation and
// the send/dial rate limiters layered on top of it.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/diamondburned/voicegateway/internal/moreatomic"
)

const rwBufferSize = 1 << 15

// ErrConnectionClosed is returned if the connection is already closed.
var ErrConnectionClosed = errors.New("transport: connection is closed")

// Frame is a single inbound unit off the wire: either a decoded message or a
// terminal close event.
type Frame struct {
	Data  []byte
	Close *CloseEvent
}

// CloseEvent describes why the connection stopped delivering frames.
type CloseEvent struct {
	Code int
	Err  error
}

// Unwrap returns the underlying error.
func (e *CloseEvent) Unwrap() error { return e.Err }

// Error implements error.
func (e *CloseEvent) Error() string {
	return fmt.Sprintf("transport: connection closed, code %d: %s", e.Code, e.Err)
}

// Connection abstracts the control-plane WebSocket so the driver (C7) never
// depends directly on a concrete transport library (spec §6). A conforming
// implementation need not be safe for concurrent use beyond Send being safe
// to call while Dial's returned channel is being drained.
type Connection interface {
	// Dial connects to addr and returns the channel of inbound frames. The
	// channel is closed once a Frame carrying a non-nil Close has been sent.
	Dial(ctx context.Context, addr string, header http.Header) (<-chan Frame, error)

	// Send writes b as a single text frame.
	Send(ctx context.Context, b []byte) error

	// Close closes the connection. If gracefully is true, a close frame is
	// sent first.
	Close(gracefully bool) error
}

// Conn is the default Connection, backed by gorilla/websocket.
type Conn struct {
	dialer websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	wr   *moreatomic.CtxMutex

	// CloseTimeout bounds how long a graceful close waits for the close
	// frame to be written. Defaults to 5s.
	CloseTimeout time.Duration
}

var _ Connection = (*Conn)(nil)

// NewConn creates a default Conn with sane dial timeouts and buffer sizes.
func NewConn() *Conn {
	return &Conn{
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   rwBufferSize,
			WriteBufferSize:  rwBufferSize,
		},
		CloseTimeout: 5 * time.Second,
	}
}

// Dial implements Connection.
func (c *Conn) Dial(ctx context.Context, addr string, header http.Header) (<-chan Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
	}

	conn, _, err := c.dialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial voice websocket")
	}

	c.conn = conn
	c.wr = moreatomic.NewCtxMutex()

	frames := make(chan Frame, 1)
	go readLoop(conn, frames)

	return frames, nil
}

func readLoop(conn *websocket.Conn, frames chan<- Frame) {
	defer close(frames)

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			code := -1
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
			}
			frames <- Frame{Close: &CloseEvent{Code: code, Err: err}}
			return
		}

		frames <- Frame{Data: b}
	}
}

// Send implements Connection.
func (c *Conn) Send(ctx context.Context, b []byte) error {
	c.mu.Lock()
	conn := c.conn
	wr := c.wr
	c.mu.Unlock()

	if conn == nil {
		return ErrConnectionClosed
	}

	if err := wr.Lock(ctx); err != nil {
		return err
	}
	defer wr.Unlock()

	if d, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(d)
		defer conn.SetWriteDeadline(time.Time{})
	}

	return conn.WriteMessage(websocket.TextMessage, b)
}

// Close implements Connection.
func (c *Conn) Close(gracefully bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrConnectionClosed
	}

	if gracefully {
		deadline := time.Now().Add(c.CloseTimeout)
		c.conn.SetWriteDeadline(deadline)
		c.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}

	err := c.conn.Close()
	c.conn = nil

	return err
}
