package socketio

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed            = errors.New("socketio: connection closed")
	ErrNamespaceNotFound = errors.New("socketio: namespace not defined")
	ErrNotReceiving      = errors.New("socketio: receive loop stopped")
)

// ConnectionSetupError is returned when the handshake request or the
// WebSocket upgrade fails.
type ConnectionSetupError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionSetupError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("socketio: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("socketio: %s: %v", e.Op, e.Err)
}

func (e *ConnectionSetupError) Unwrap() error {
	return e.Err
}

// HandshakeParseError is returned when the handshake response cannot be
// used, including when the server does not offer the websocket transport.
type HandshakeParseError struct {
	Response string
	Reason   string
	Err      error
}

func (e *HandshakeParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("socketio: could not parse handshake %q: %s: %v", e.Response, e.Reason, e.Err)
	}
	return fmt.Sprintf("socketio: could not parse handshake %q: %s", e.Response, e.Reason)
}

func (e *HandshakeParseError) Unwrap() error {
	return e.Err
}

// ConnectionLostError reports that the transport closed or timed out.
// It ends the receive loop.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("socketio: lost connection: %v", e.Err)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Err
}

// PacketFormatError reports a single frame that could not be decoded.
// The receive loop logs it and keeps going.
type PacketFormatError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *PacketFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("socketio: invalid packet %q: %s: %v", e.Raw, e.Reason, e.Err)
	}
	return fmt.Sprintf("socketio: invalid packet %q: %s", e.Raw, e.Reason)
}

func (e *PacketFormatError) Unwrap() error {
	return e.Err
}

// SendError represents a failed write of an outgoing packet.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("socketio: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
