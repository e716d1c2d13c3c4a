package socketio

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
)

// Transport carries raw text frames between the client and the server.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, raw string) error
	Receive(ctx context.Context) (string, error)
	Close() error
}

// DialOptions configures the WebSocket connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during the upgrade.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the upgrade request.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// ReadLimit caps the size of a single incoming frame.
	// Zero means 32MB.
	ReadLimit int64
}

const defaultReadLimit = 32 * 1024 * 1024

// Dial opens the WebSocket channel for a negotiated session.
func Dial(ctx context.Context, url string, opts *DialOptions) (Transport, error) {
	dialOpts := &websocket.DialOptions{}
	readLimit := int64(defaultReadLimit)
	if opts != nil {
		if opts.HTTPHeader != nil {
			dialOpts.HTTPHeader = opts.HTTPHeader.Clone()
		}
		if opts.HTTPClient != nil {
			dialOpts.HTTPClient = opts.HTTPClient
		}
		if opts.ReadLimit > 0 {
			readLimit = opts.ReadLimit
		}
	}

	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, &ConnectionSetupError{Op: "dial", URL: url, Err: err}
	}

	conn.SetReadLimit(readLimit)

	return &wsTransport{conn: conn}, nil
}

// wsTransport implements Transport over WebSocket.
type wsTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Send writes one text frame.
func (t *wsTransport) Send(ctx context.Context, raw string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	return t.conn.Write(ctx, websocket.MessageText, []byte(raw))
}

// Receive blocks until the next frame arrives.
func (t *wsTransport) Receive(ctx context.Context) (string, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return "", ErrClosed
		}
		return "", err
	}

	if typ != websocket.MessageText {
		return "", &PacketFormatError{
			Reason: "unexpected binary frame of " + strconv.Itoa(len(data)) + " bytes",
		}
	}

	return string(data), nil
}

// Close closes the WebSocket with a normal closure status.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	return t.conn.Close(websocket.StatusNormalClosure, "")
}
