package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// receiveLoop reads packets and dispatches them in arrival order. It
// returns nil when cancelled, when the client is closed, or when a
// WaitForCallbacks drain completes, and a *ConnectionLostError when the
// transport goes away. Once it returns the client no longer reports itself
// connected.
func (c *Client) receiveLoop(ctx context.Context) (loopErr error) {
	defer func() {
		c.recvErr = loopErr
		c.conn.markDisconnected()
		c.metrics.unregister()
		close(c.recvDone)
	}()

	for {
		p, err := c.conn.receive(ctx)
		if ctx.Err() != nil || c.isClosed() {
			return nil
		}
		if err != nil {
			var lost *ConnectionLostError
			if errors.As(err, &lost) {
				c.logger.Warn("connection lost", slog.Any("error", err))
				return err
			}
			c.metrics.malformed()
			c.logger.Warn("dropping malformed packet", slog.Any("error", err))
			continue
		}

		if c.cfg.onReceive != nil {
			c.cfg.onReceive(p)
		}

		c.logger.Debug("received packet",
			slog.String("code", p.Code.String()),
			slog.String("ack_id", p.AckID),
			slog.String("path", p.Path),
		)

		if c.dispatch(ctx, p) {
			c.logger.Debug("acknowledgments drained")
			return nil
		}
	}
}

// dispatch routes one packet. It reports true when an acknowledgment
// completed a pending drain.
func (c *Client) dispatch(ctx context.Context, p Packet) bool {
	_, span := c.tracer.Start(ctx, "socketio.dispatch",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("socketio.code", p.Code.String()),
			attribute.String("socketio.path", p.Path),
		),
	)
	defer span.End()

	// Heartbeats and acknowledgments belong to the connection, not to a
	// namespace: message ids are shared by every path.
	switch p.Code {
	case CodeHeartbeat:
		return false
	case CodeAck:
		return c.handleAck(span, p)
	}

	ns, ok := c.Namespace(p.Path)
	if !ok {
		c.logger.Warn("received packet for undefined namespace",
			slog.String("path", p.Path),
			slog.String("code", p.Code.String()),
		)
		return false
	}

	switch p.Code {
	case CodeDisconnect:
		c.invoke(span, ns, "disconnect")
	case CodeConnect:
		c.invoke(span, ns, "connect")
	case CodeMessage:
		c.invoke(span, ns, "message", c.withAck(p, p.Data)...)
	case CodeJSON:
		var data any
		if err := json.Unmarshal([]byte(p.Data), &data); err != nil {
			c.malformed(span, &PacketFormatError{Raw: p.Data, Reason: "bad json message", Err: err})
			return false
		}
		c.invoke(span, ns, "message", c.withAck(p, data)...)
	case CodeEvent:
		name, args, err := DecodeEvent(p.Data)
		if err != nil {
			c.malformed(span, err)
			return false
		}
		span.SetAttributes(attribute.String("socketio.event", name))
		c.invoke(span, ns, name, c.withAck(p, args...)...)
	case CodeError:
		reason, advice := ParseError(p.Data)
		c.invoke(span, ns, "error", reason, advice)
	default:
		c.logger.Warn("received unexpected packet code",
			slog.String("code", p.Code.String()),
			slog.String("path", p.Path),
		)
	}
	return false
}

// handleAck runs the callback waiting on the acknowledged message id, then
// checks whether that settled a drain.
func (c *Client) handleAck(span trace.Span, p Packet) bool {
	id, args, err := ParseAck(p.Data)
	if err != nil {
		c.malformed(span, err)
		return false
	}

	cb, ok := c.conn.resolveCallback(id)
	if !ok {
		c.logger.Debug("acknowledgment for unknown message id", slog.Uint64("id", id))
		return false
	}

	c.call(span, "ack", cb, args...)
	return c.conn.drained()
}

// withAck appends an AckFunc to args when p asked for an acknowledgment.
func (c *Client) withAck(p Packet, args ...any) []any {
	if !p.WantsAck() {
		return args
	}
	ack := AckFunc(func(reply ...any) error {
		return c.conn.sendAck(c.ctx, p.AckID, p.Path, reply)
	})
	return append(args, ack)
}

func (c *Client) invoke(span trace.Span, ns *Namespace, event string, args ...any) {
	c.call(span, event, ns.handler(event), args...)
}

// call runs a handler, recovering a panic so one bad handler does not stop
// delivery.
func (c *Client) call(span trace.Span, event string, cb Callback, args ...any) {
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "handler panic")
			c.logger.Error("handler panicked",
				slog.String("event", event),
				slog.Any("panic", r),
			)
		}
	}()
	cb(args...)
}

func (c *Client) malformed(span trace.Span, err error) {
	span.RecordError(err)
	c.metrics.malformed()
	c.logger.Warn("dropping malformed packet", slog.Any("error", err))
}
