package socketio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Client is a connection to a socket.io server.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	conn    *connection
	cfg     clientConfig
	id      string
	session *Session
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics

	ctx    context.Context
	cancel context.CancelFunc

	// recvDone is closed when the receive loop exits; recvErr is set
	// before that and holds the reason.
	recvDone chan struct{}
	recvErr  error

	mu         sync.RWMutex
	namespaces map[string]*Namespace // defined namespaces by path
	closed     bool
}

// Connect performs the handshake with the server at host:port, opens the
// WebSocket channel and returns a running client. ctx bounds the handshake
// and the dial only; use Close to end the client.
func Connect(ctx context.Context, host string, port int, opts ...ClientOption) (*Client, error) {
	cfg := newClientConfig(opts)
	ep := Endpoint{Host: host, Port: port, Secure: cfg.secure}
	httpClient := cfg.client()

	spanCtx, span := cfg.tracer().Start(ctx, "socketio.handshake",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("socketio.url", ep.HandshakeURL())),
	)
	defer span.End()

	session, upgradeURL, err := Handshake(spanCtx, ep, httpClient)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("socketio.session_id", session.ID))

	transport, err := Dial(spanCtx, upgradeURL, &DialOptions{
		HTTPClient: httpClient,
		HTTPHeader: cfg.httpHeader,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return NewWithTransport(context.WithoutCancel(ctx), transport, session, opts...)
}

// NewWithTransport creates a Client over an established transport.
// This is useful for testing or custom transport implementations.
// Cancelling ctx stops the client's background goroutines.
func NewWithTransport(ctx context.Context, transport Transport, session *Session, opts ...ClientOption) (*Client, error) {
	if session == nil {
		session = &Session{}
	}

	cfg := newClientConfig(opts)
	id := uuid.New().String()
	logger := cfg.logger.With(
		slog.String("client_id", id),
		slog.String("session_id", session.ID),
	)
	m := newMetrics(cfg.registerer, id)

	ctx, cancel := context.WithCancel(ctx)

	c := &Client{
		conn:       newConnection(transport, m, logger, cfg.onSend),
		cfg:        cfg,
		id:         id,
		session:    session,
		logger:     logger,
		tracer:     cfg.tracer(),
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
		recvDone:   make(chan struct{}),
		namespaces: make(map[string]*Namespace),
	}

	// The default namespace exists before the receive loop starts so its
	// connect packet cannot be dropped.
	if _, err := c.Define(ctx, "", cfg.defaultBehavior(logger)); err != nil {
		cancel()
		transport.Close()
		return nil, err
	}

	// Losing the connection ends the receive loop with an error, which
	// cancels groupCtx and with it the heartbeat.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.heartbeatLoop(groupCtx, session.HeartbeatInterval())
	})
	group.Go(func() error {
		return c.receiveLoop(groupCtx)
	})

	return c, nil
}

// ID returns the client's instance id, used in logs and metric labels.
func (c *Client) ID() string {
	return c.id
}

// Session returns the parameters negotiated by the handshake.
func (c *Client) Session() *Session {
	return c.session
}

// Connected reports whether the client is open and still receiving: the
// transport has not been lost and no WaitForCallbacks drain has ended the
// receive loop.
func (c *Client) Connected() bool {
	return !c.isClosed() && c.conn.isConnected()
}

// Define joins the namespace at path and returns it. A namespace already
// defined at path is replaced.
func (c *Client) Define(ctx context.Context, path string, behavior Behavior) (*Namespace, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	ns := newNamespace(c, path, behavior)

	c.mu.Lock()
	prev, hadPrev := c.namespaces[path]
	c.namespaces[path] = ns
	c.mu.Unlock()

	if err := c.conn.sendControl(ctx, CodeConnect, path); err != nil {
		c.mu.Lock()
		if c.namespaces[path] == ns {
			if hadPrev {
				c.namespaces[path] = prev
			} else {
				delete(c.namespaces, path)
			}
		}
		c.mu.Unlock()
		return nil, err
	}

	return ns, nil
}

// Namespace returns the namespace defined at path.
func (c *Client) Namespace(path string) (*Namespace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ns, ok := c.namespaces[path]
	return ns, ok
}

func (c *Client) root() *Namespace {
	ns, ok := c.Namespace("")
	if !ok {
		return newNamespace(c, "", Behavior{})
	}
	return ns
}

// On registers cb for event on the default namespace.
func (c *Client) On(event string, cb Callback) {
	c.root().On(event, cb)
}

// Emit sends an event on the default namespace.
func (c *Client) Emit(ctx context.Context, event string, args ...any) error {
	return c.root().Emit(ctx, event, args...)
}

// EmitWithAck sends an event on the default namespace and runs ack with
// the server's reply.
func (c *Client) EmitWithAck(ctx context.Context, event string, ack Callback, args ...any) error {
	return c.root().EmitWithAck(ctx, event, ack, args...)
}

// Message sends data on the default namespace.
func (c *Client) Message(ctx context.Context, data any, ack Callback) error {
	return c.root().Message(ctx, data, ack)
}

// Disconnect leaves the namespace at path without touching the shared
// connection. An empty path closes the client.
func (c *Client) Disconnect(ctx context.Context, path string) error {
	if path == "" {
		return c.Close(ctx)
	}

	c.mu.Lock()
	if _, ok := c.namespaces[path]; !ok {
		c.mu.Unlock()
		return ErrNamespaceNotFound
	}
	delete(c.namespaces, path)
	c.mu.Unlock()

	if !c.Connected() {
		return nil
	}
	return c.conn.sendControl(ctx, CodeDisconnect, path)
}

// Close stops the heartbeat and receive goroutines and closes the
// transport. It is safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.close()
	c.cancel()
	c.metrics.unregister()

	c.logger.Debug("client closed")
	return err
}

// Wait blocks for d or until ctx is done.
func (c *Client) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitUntilClosed blocks until the receive loop stops, which happens when
// the connection is lost or closed, or until ctx is done.
func (c *Client) WaitUntilClosed(ctx context.Context) error {
	select {
	case <-c.recvDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitForCallbacks blocks until every pending acknowledgment callback has
// run. The receive loop stops once the last one resolves, so this is meant
// to be the final step before Close. It returns at once when nothing is
// pending, the receive loop's error if the connection is lost first, and
// ErrNotReceiving if the loop has already stopped with callbacks pending.
func (c *Client) WaitForCallbacks(ctx context.Context) error {
	if c.conn.beginDrain() {
		return nil
	}

	select {
	case <-c.recvDone:
		if c.recvErr != nil {
			return c.recvErr
		}
		if c.isClosed() {
			return ErrClosed
		}
		if c.conn.hasPendingCallbacks() {
			return ErrNotReceiving
		}
		return nil
	case <-ctx.Done():
		c.conn.endDrain()
		return ctx.Err()
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// checkOpen fails sends once the client is closed or nothing is left to
// read replies.
func (c *Client) checkOpen() error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.conn.isConnected() {
		return ErrNotReceiving
	}
	return nil
}
