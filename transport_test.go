package socketio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// newEchoServer starts a WebSocket server that echoes the first frame it
// reads, then sends one binary frame and waits for the client to close.
func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		ctx := r.Context()
		typ, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		if err := c.Write(ctx, typ, data); err != nil {
			return
		}
		if err := c.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
			return
		}
		c.Read(ctx)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDial_SendReceive(t *testing.T) {
	srv := newEchoServer(t)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	transport, err := Dial(ctx, wsURL(srv), &DialOptions{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}

	if err := transport.Send(ctx, "2:::"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	got, err := transport.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	if got != "2:::" {
		t.Errorf("Receive() = %q, want 2:::", got)
	}

	_, err = transport.Receive(ctx)
	var formatErr *PacketFormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("binary frame err = %v, want PacketFormatError", err)
	}

	if err := transport.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if err := transport.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := transport.Send(ctx, "2:::"); err != ErrClosed {
		t.Errorf("Send after Close err = %v, want ErrClosed", err)
	}
}

func TestDial_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv), &DialOptions{HTTPClient: srv.Client()})
	var setupErr *ConnectionSetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("err = %v, want ConnectionSetupError", err)
	}
	if setupErr.Op != "dial" {
		t.Errorf("Op = %s, want dial", setupErr.Op)
	}
}
