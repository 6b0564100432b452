package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoServer upgrades every request to a WebSocket and echoes back whatever
// text frames it receives, until told to close.
func echoServer(t *testing.T, closeCode int) *httptest.Server {
	t.Helper()

	var upgrader websocket.Upgrader

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(b) == "close" {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, "bye"))
				return
			}
			if err := conn.WriteMessage(mt, b); err != nil {
				return
			}
		}
	}))

	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + srv.URL[len("http"):]
}

func TestConnDialSendEcho(t *testing.T) {
	srv := echoServer(t, websocket.CloseNormalClosure)
	defer srv.Close()

	c := NewConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := c.Dial(ctx, wsURL(srv), http.Header{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close(false)

	if err := c.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-frames:
		if f.Close != nil {
			t.Fatalf("unexpected close frame: %v", f.Close)
		}
		if string(f.Data) != "hello" {
			t.Fatalf("expected echoed %q, got %q", "hello", f.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

func TestConnCloseEventCarriesCode(t *testing.T) {
	srv := echoServer(t, 4014)
	defer srv.Close()

	c := NewConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := c.Dial(ctx, wsURL(srv), http.Header{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close(false)

	if err := c.Send(ctx, []byte("close")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-frames:
		if f.Close == nil {
			t.Fatalf("expected a close frame, got data frame %q", f.Data)
		}
		if f.Close.Code != 4014 {
			t.Fatalf("expected close code 4014, got %d", f.Close.Code)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for close frame")
	}

	if _, ok := <-frames; ok {
		t.Fatal("expected frames channel to be closed after a close event")
	}
}

func TestConnSendAfterCloseFails(t *testing.T) {
	srv := echoServer(t, websocket.CloseNormalClosure)
	defer srv.Close()

	c := NewConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := c.Dial(ctx, wsURL(srv), http.Header{}); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := c.Close(true); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := c.Send(ctx, []byte("anything")); err != ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}
