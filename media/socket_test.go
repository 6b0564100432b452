package media

import (
	"context"
	"net"
	"testing"
	"time"
)

// fakeDiscoveryPeer listens on loopback UDP and echoes a canned IP-discovery
// response for every request it receives.
func fakeDiscoveryPeer(t *testing.T, externalIP string, externalPort uint16) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	go func() {
		buf := make([]byte, discoveryPacketLen)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			if n != discoveryPacketLen {
				continue
			}

			var resp [discoveryPacketLen]byte
			copy(resp[discoveryIPFieldStart:], externalIP)
			resp[discoveryPortStart] = byte(externalPort >> 8)
			resp[discoveryPortEnd-1] = byte(externalPort)

			conn.WriteToUDP(resp[:], addr)
		}
	}()

	return conn
}

func TestSocketPerformIPDiscovery(t *testing.T) {
	peer := fakeDiscoveryPeer(t, "9.9.9.9", 6000)
	defer peer.Close()

	ctx := context.Background()
	addr := peer.LocalAddr().(*net.UDPAddr)

	socket, err := Setup(ctx, "127.0.0.1", uint16(addr.Port))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer socket.Close()

	ip, port, err := socket.PerformIPDiscovery(ctx, 12345, DefaultDiscoveryRetry, 5*time.Second)
	if err != nil {
		t.Fatalf("perform ip discovery: %v", err)
	}
	if ip != "9.9.9.9" {
		t.Fatalf("unexpected ip: %q", ip)
	}
	if port != 6000 {
		t.Fatalf("unexpected port: %d", port)
	}
}

func TestSocketPerformIPDiscoveryTimeout(t *testing.T) {
	// A listener that never replies.
	silent, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer silent.Close()

	ctx := context.Background()
	addr := silent.LocalAddr().(*net.UDPAddr)

	socket, err := Setup(ctx, "127.0.0.1", uint16(addr.Port))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer socket.Close()

	retry := DiscoveryRetry{Attempts: 2, PerAttempt: 50 * time.Millisecond}

	_, _, err = socket.PerformIPDiscovery(ctx, 1, retry, 500*time.Millisecond)
	if err == nil {
		t.Fatal("expected error on discovery timeout")
	}
}

func TestSocketSendAndClose(t *testing.T) {
	peer, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer peer.Close()

	addr := peer.LocalAddr().(*net.UDPAddr)

	socket, err := Setup(context.Background(), "127.0.0.1", uint16(addr.Port))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := socket.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := socket.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := socket.Send([]byte("after close")); err != ErrSocketClosed {
		t.Fatalf("expected ErrSocketClosed, got %v", err)
	}
}
