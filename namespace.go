package socketio

import (
	"context"
	"log/slog"
	"sync"
)

// Callback is application code run with the arguments of an event, a
// message or an acknowledgment.
type Callback func(args ...any)

// AckFunc replies to a packet whose sender asked for an acknowledgment.
// Handlers receive it as their last argument.
type AckFunc func(args ...any) error

// FindAck splits a trailing AckFunc off a handler's arguments. It returns
// a nil AckFunc when the packet did not request an acknowledgment.
func FindAck(args []any) (AckFunc, []any) {
	if n := len(args); n > 0 {
		if ack, ok := args[n-1].(AckFunc); ok {
			return ack, args[:n-1]
		}
	}
	return nil, args
}

// Behavior supplies the default handlers of a namespace. Any field may be
// left nil. Handlers registered with [Namespace.On] take precedence.
type Behavior struct {
	OnConnect    Callback
	OnDisconnect Callback

	// OnError receives the reason and the advice sent by the server.
	OnError Callback

	// OnMessage receives the message data, followed by an AckFunc if the
	// server asked for one. JSON messages arrive decoded.
	OnMessage Callback

	OnOpen      Callback
	OnClose     Callback
	OnRetry     Callback
	OnReconnect Callback

	// OnDefault receives every event nothing else handles. When nil the
	// event is logged and any requested acknowledgment is sent empty.
	OnDefault func(event string, args ...any)
}

// builtinEvent names the events a Behavior has a dedicated field for.
type builtinEvent uint8

const (
	eventCustom builtinEvent = iota
	eventConnect
	eventDisconnect
	eventError
	eventMessage
	eventOpen
	eventClose
	eventRetry
	eventReconnect
)

var builtinEvents = map[string]builtinEvent{
	"connect":    eventConnect,
	"disconnect": eventDisconnect,
	"error":      eventError,
	"message":    eventMessage,
	"open":       eventOpen,
	"close":      eventClose,
	"retry":      eventRetry,
	"reconnect":  eventReconnect,
}

func (b *Behavior) handler(kind builtinEvent) Callback {
	switch kind {
	case eventConnect:
		return b.OnConnect
	case eventDisconnect:
		return b.OnDisconnect
	case eventError:
		return b.OnError
	case eventMessage:
		return b.OnMessage
	case eventOpen:
		return b.OnOpen
	case eventClose:
		return b.OnClose
	case eventRetry:
		return b.OnRetry
	case eventReconnect:
		return b.OnReconnect
	default:
		return nil
	}
}

// LoggingBehavior returns a Behavior that reports server errors, messages
// and lifecycle events to logger. Connect and disconnect are ignored.
func LoggingBehavior(logger *slog.Logger) Behavior {
	lifecycle := func(name string) Callback {
		return func(args ...any) {
			logger.Info(name, slog.Any("args", args))
		}
	}

	return Behavior{
		OnConnect:    func(...any) {},
		OnDisconnect: func(...any) {},
		OnError: func(args ...any) {
			var reason, advice any
			if len(args) > 0 {
				reason = args[0]
			}
			if len(args) > 1 {
				advice = args[1]
			}
			logger.Error("server error", slog.Any("reason", reason), slog.Any("advice", advice))
		},
		OnMessage: func(args ...any) {
			_, args = FindAck(args)
			logger.Info("message", slog.Any("data", args))
		},
		OnOpen:      lifecycle("open"),
		OnClose:     lifecycle("close"),
		OnRetry:     lifecycle("retry"),
		OnReconnect: lifecycle("reconnect"),
	}
}

// Namespace is one logical channel multiplexed over the client's
// connection. It is safe for concurrent use by multiple goroutines.
type Namespace struct {
	client   *Client
	path     string
	behavior Behavior

	mu       sync.RWMutex
	handlers map[string]Callback
}

// newNamespace creates a namespace.
func newNamespace(client *Client, path string, behavior Behavior) *Namespace {
	return &Namespace{
		client:   client,
		path:     path,
		behavior: behavior,
		handlers: make(map[string]Callback),
	}
}

// Path returns the namespace path. The default namespace has an empty path.
func (n *Namespace) Path() string {
	return n.path
}

// On registers cb for event, replacing any earlier registration.
// A nil cb removes the registration.
func (n *Namespace) On(event string, cb Callback) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if cb == nil {
		delete(n.handlers, event)
		return
	}
	n.handlers[event] = cb
}

// Emit sends an event without asking for an acknowledgment.
func (n *Namespace) Emit(ctx context.Context, event string, args ...any) error {
	return n.EmitWithAck(ctx, event, nil, args...)
}

// EmitWithAck sends an event and runs ack with the server's reply.
// A nil ack behaves like Emit.
func (n *Namespace) EmitWithAck(ctx context.Context, event string, ack Callback, args ...any) error {
	if err := n.client.checkOpen(); err != nil {
		return err
	}
	return n.client.conn.sendEvent(ctx, event, args, ack, n.path)
}

// Message sends data as a plain message when it is a string and as a JSON
// message otherwise. A non-nil ack runs with the server's reply.
func (n *Namespace) Message(ctx context.Context, data any, ack Callback) error {
	if err := n.client.checkOpen(); err != nil {
		return err
	}
	return n.client.conn.sendMessage(ctx, data, ack, n.path)
}

// Disconnect leaves this namespace. Disconnecting the default namespace
// closes the client.
func (n *Namespace) Disconnect(ctx context.Context) error {
	return n.client.Disconnect(ctx, n.path)
}

// handler resolves the callback for event. The lookup runs on every
// dispatch: registrations made with On, then the Behavior field for a
// built-in event, then the default arm.
func (n *Namespace) handler(event string) Callback {
	n.mu.RLock()
	cb, ok := n.handlers[event]
	n.mu.RUnlock()
	if ok {
		return cb
	}

	if cb := n.behavior.handler(builtinEvents[event]); cb != nil {
		return cb
	}

	if n.behavior.OnDefault != nil {
		return func(args ...any) {
			n.behavior.OnDefault(event, args...)
		}
	}

	return func(args ...any) {
		n.unhandled(event, args)
	}
}

// unhandled logs an event nobody handles and acknowledges it with no
// arguments if the server asked for a reply.
func (n *Namespace) unhandled(event string, args []any) {
	ack, args := FindAck(args)

	n.client.logger.Info("unhandled event",
		slog.String("path", n.path),
		slog.String("event", event),
		slog.Any("args", args),
		slog.Bool("ack", ack != nil),
	)

	if ack != nil {
		if err := ack(); err != nil {
			n.client.logger.Warn("could not acknowledge event",
				slog.String("event", event),
				slog.Any("error", err),
			)
		}
	}
}
