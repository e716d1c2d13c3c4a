package socketio

import (
	"errors"
	"strings"
	"testing"
)

func TestConnectionSetupError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &ConnectionSetupError{Op: "handshake", Err: underlying}

	if err.Error() != "socketio: handshake: connection refused" {
		t.Errorf("Error() = %s", err.Error())
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
}

func TestConnectionSetupError_WithURL(t *testing.T) {
	underlying := errors.New("connection refused")
	err := &ConnectionSetupError{Op: "dial", URL: "ws://example.com", Err: underlying}

	expected := "socketio: dial ws://example.com: connection refused"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestHandshakeParseError(t *testing.T) {
	err := &HandshakeParseError{Response: "abc:20:10:polling", Reason: "websocket transport not offered"}

	expected := `socketio: could not parse handshake "abc:20:10:polling": websocket transport not offered`
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestConnectionLostError(t *testing.T) {
	err := &ConnectionLostError{Err: ErrClosed}

	expected := "socketio: lost connection: socketio: connection closed"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
	if !errors.Is(err, ErrClosed) {
		t.Error("errors.Is should find ErrClosed in ConnectionLostError")
	}
}

func TestPacketFormatError(t *testing.T) {
	err := &PacketFormatError{Raw: "5:1", Reason: "unexpected field count 2"}

	expected := `socketio: invalid packet "5:1": unexpected field count 2`
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}
}

func TestSendError(t *testing.T) {
	underlying := errors.New("write failed")
	err := &SendError{Op: "event", Err: underlying}

	expected := "socketio: send event: write failed"
	if err.Error() != expected {
		t.Errorf("Error() = %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, underlying) {
		t.Error("errors.Is should return true for underlying error")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrClosed", ErrClosed, "socketio: connection closed"},
		{"ErrNamespaceNotFound", ErrNamespaceNotFound, "socketio: namespace not defined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %s, want %s", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	var wrapped error = &SendError{Op: "heartbeat", Err: &ConnectionLostError{Err: ErrClosed}}

	var sendErr *SendError
	if !errors.As(wrapped, &sendErr) {
		t.Error("errors.As should extract SendError")
	}
	var lostErr *ConnectionLostError
	if !errors.As(wrapped, &lostErr) {
		t.Error("errors.As should extract nested ConnectionLostError")
	}
	if !errors.Is(wrapped, ErrClosed) {
		t.Error("errors.Is should find ErrClosed through the chain")
	}
}

func TestSentinelErrors_Prefix(t *testing.T) {
	for _, err := range []error{ErrClosed, ErrNamespaceNotFound, ErrNotReceiving} {
		if !strings.HasPrefix(err.Error(), "socketio: ") {
			t.Errorf("%q lacks the socketio prefix", err)
		}
	}
}
