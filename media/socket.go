package media

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// ErrSocketClosed is returned from Send/Inbound operations once the socket
// has been closed.
var ErrSocketClosed = errors.New("media: socket is closed")

// DiscoveryRetry configures PerformIPDiscovery's retry behavior: how many
// attempts to make and how long to wait for each response before retrying.
// The overall operation is additionally bounded by the timeout passed to
// PerformIPDiscovery.
type DiscoveryRetry struct {
	Attempts   int
	PerAttempt time.Duration
}

// DefaultDiscoveryRetry is a reasonable default retry spec.
var DefaultDiscoveryRetry = DiscoveryRetry{
	Attempts:   3,
	PerAttempt: 2 * time.Second,
}

// Socket wraps a UDP endpoint dedicated to one CONNECTED span (Invariant 2):
// it is set up once IP discovery's target is known and discarded on close.
// It is not safe for concurrent use beyond the documented split (Send is
// write-only, Inbound's reader is read-only — see spec §5).
type Socket struct {
	conn net.Conn

	inbound chan []byte
	closed  chan struct{}
	dialer  net.Dialer
}

// Setup resolves and dials the remote UDP endpoint, fixing the remote
// address for the lifetime of the socket, and starts the background read
// loop feeding Inbound.
func Setup(ctx context.Context, ip string, port uint16) (*Socket, error) {
	addr := net.JoinHostPort(ip, strconv.Itoa(int(port)))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial voice UDP socket")
	}

	s := &Socket{
		conn:    conn,
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}

	go s.readLoop()

	return s, nil
}

func (s *Socket) readLoop() {
	defer close(s.inbound)

	buf := make([]byte, 1500)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			return
		}

		pkt := make([]byte, n)
		copy(pkt, buf[:n])

		select {
		case s.inbound <- pkt:
		case <-s.closed:
			return
		}
	}
}

// PerformIPDiscovery sends the 74-byte discovery request for ssrc and awaits
// a matching response, retrying per spec. The overall operation is bounded
// by timeout; exceeding it yields a retryable SocketSetupError-class error.
func (s *Socket) PerformIPDiscovery(ctx context.Context, ssrc uint32, retry DiscoveryRetry, timeout time.Duration) (externalIP string, externalPort uint16, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := buildDiscoveryRequest(ssrc)

	var lastErr error
	for attempt := 0; attempt < retry.Attempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", 0, errors.Wrap(ctx.Err(), "ip discovery timed out")
		default:
		}

		if _, err := s.conn.Write(req[:]); err != nil {
			return "", 0, errors.Wrap(err, "failed to send ip discovery request")
		}

		resp, err := s.awaitDiscoveryResponse(ctx, retry.PerAttempt)
		if err != nil {
			lastErr = err
			continue
		}

		return parseDiscoveryResponse(resp)
	}

	return "", 0, errors.Wrap(lastErr, "ip discovery exhausted retries")
}

func (s *Socket) awaitDiscoveryResponse(ctx context.Context, perAttempt time.Duration) ([]byte, error) {
	timer := time.NewTimer(perAttempt)
	defer timer.Stop()

	select {
	case pkt, ok := <-s.inbound:
		if !ok {
			return nil, ErrSocketClosed
		}
		return pkt, nil
	case <-timer.C:
		return nil, errors.New("timed out waiting for ip discovery response")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send writes b to the fixed remote endpoint. Back-pressure is not applied
// to media (spec §4.3).
func (s *Socket) Send(b []byte) error {
	select {
	case <-s.closed:
		return ErrSocketClosed
	default:
	}

	_, err := s.conn.Write(b)
	return err
}

// Inbound returns the channel of raw inbound datagrams. It is closed when
// the socket is closed or its read loop errors out.
func (s *Socket) Inbound() <-chan []byte {
	return s.inbound
}

// Close tears down the socket. It is idempotent.
func (s *Socket) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}

	return s.conn.Close()
}
