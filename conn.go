package socketio

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// connection owns the transport after the handshake. One mutex guards
// every write together with the message id counter, the pending callback
// table and the drain flag, so a send never interleaves with another send
// and an id is always registered before its packet can be answered.
type connection struct {
	transport Transport
	metrics   *metrics
	logger    *slog.Logger
	onSend    func(Packet)

	mu        sync.Mutex
	nextID    uint64
	callbacks map[uint64]Callback
	draining  bool

	connected atomic.Bool
}

func newConnection(transport Transport, m *metrics, logger *slog.Logger, onSend func(Packet)) *connection {
	c := &connection{
		transport: transport,
		metrics:   m,
		logger:    logger,
		onSend:    onSend,
		callbacks: make(map[uint64]Callback),
	}
	c.connected.Store(true)
	return c
}

// sendControl sends a packet that carries no body and cannot be
// acknowledged: connect, disconnect and heartbeat.
func (c *connection) sendControl(ctx context.Context, code PacketCode, path string) error {
	return c.sendPacket(ctx, Packet{Code: code, Path: path}, nil)
}

// sendMessage sends a plain message for string data and a JSON message for
// anything else.
func (c *connection) sendMessage(ctx context.Context, data any, cb Callback, path string) error {
	p := Packet{Code: CodeMessage, Path: path}
	if text, ok := data.(string); ok {
		p.Data = text
	} else {
		encoded, err := marshalJSON(data)
		if err != nil {
			return &SendError{Op: CodeJSON.String(), Err: err}
		}
		p.Code = CodeJSON
		p.Data = encoded
	}
	return c.sendPacket(ctx, p, cb)
}

func (c *connection) sendEvent(ctx context.Context, name string, args []any, cb Callback, path string) error {
	body, err := EncodeEvent(name, args)
	if err != nil {
		return &SendError{Op: CodeEvent.String(), Err: err}
	}
	return c.sendPacket(ctx, Packet{Code: CodeEvent, Path: path, Data: body}, cb)
}

// sendAck replies to a packet that asked for an acknowledgment.
func (c *connection) sendAck(ctx context.Context, ackID, path string, args []any) error {
	body, err := FormatAck(ackID, args)
	if err != nil {
		return &SendError{Op: CodeAck.String(), Err: err}
	}
	return c.sendPacket(ctx, Packet{Code: CodeAck, Path: path, Data: body}, nil)
}

// sendPacket writes p, first registering cb under a fresh message id when
// cb is non-nil. If the write fails the registration is undone.
func (c *connection) sendPacket(ctx context.Context, p Packet, cb Callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id uint64
	if cb != nil {
		id = c.registerLocked(cb)
		p.AckID = strconv.FormatUint(id, 10) + ackMarker
	}

	if err := c.writeLocked(ctx, p); err != nil {
		if cb != nil {
			delete(c.callbacks, id)
			c.metrics.setPending(len(c.callbacks))
		}
		return err
	}
	return nil
}

// writeLocked encodes and writes p. The caller holds c.mu.
func (c *connection) writeLocked(ctx context.Context, p Packet) error {
	if c.onSend != nil {
		c.onSend(p)
	}

	c.logger.Debug("sending packet",
		slog.String("code", p.Code.String()),
		slog.String("ack_id", p.AckID),
		slog.String("path", p.Path),
	)

	if err := c.transport.Send(ctx, Encode(p)); err != nil {
		return &SendError{Op: p.Code.String(), Err: err}
	}
	c.metrics.sent(p.Code)
	return nil
}

// registerCallback stores cb under the next message id and returns the
// ack id to put on the wire.
func (c *connection) registerCallback(cb Callback) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.FormatUint(c.registerLocked(cb), 10) + ackMarker
}

func (c *connection) registerLocked(cb Callback) uint64 {
	c.nextID++
	c.callbacks[c.nextID] = cb
	c.metrics.setPending(len(c.callbacks))
	return c.nextID
}

// resolveCallback removes and returns the callback for id. Unknown ids
// report false.
func (c *connection) resolveCallback(id uint64) (Callback, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.callbacks[id]
	if !ok {
		return nil, false
	}
	delete(c.callbacks, id)
	c.metrics.setPending(len(c.callbacks))
	return cb, true
}

func (c *connection) hasPendingCallbacks() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.callbacks) > 0
}

// beginDrain arms the drain flag. It reports true, without arming, when no
// callbacks are pending.
func (c *connection) beginDrain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.callbacks) == 0 {
		return true
	}
	c.draining = true
	return false
}

func (c *connection) endDrain() {
	c.mu.Lock()
	c.draining = false
	c.mu.Unlock()
}

// drained reports whether a drain is armed and every callback has been
// resolved. A true result disarms the flag.
func (c *connection) drained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.draining && len(c.callbacks) == 0 {
		c.draining = false
		return true
	}
	return false
}

// receive blocks for the next packet. Transport failures become
// *ConnectionLostError; frames that cannot be decoded become
// *PacketFormatError.
func (c *connection) receive(ctx context.Context) (Packet, error) {
	raw, err := c.transport.Receive(ctx)
	if err != nil {
		var formatErr *PacketFormatError
		if errors.As(err, &formatErr) {
			return Packet{}, err
		}
		return Packet{}, &ConnectionLostError{Err: err}
	}

	p, err := Decode(raw)
	if err != nil {
		return Packet{}, err
	}
	c.metrics.received(p.Code)
	return p, nil
}

func (c *connection) isConnected() bool {
	return c.connected.Load()
}

func (c *connection) markDisconnected() {
	c.connected.Store(false)
}

func (c *connection) close() error {
	c.markDisconnected()
	return c.transport.Close()
}
