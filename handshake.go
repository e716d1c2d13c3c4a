package socketio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"
)

// TransportWebSocket is the only transport this client speaks.
const TransportWebSocket = "websocket"

// heartbeatMargin keeps the client's heartbeat ahead of the server's timeout.
const heartbeatMargin = 2 * time.Second

// Endpoint identifies a socket.io server.
type Endpoint struct {
	Host   string
	Port   int
	Secure bool
}

func (e Endpoint) baseURL(scheme string) string {
	hostport := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	return fmt.Sprintf("%s://%s/socket.io/%d", scheme, hostport, ProtocolVersion)
}

// HandshakeURL returns the URL of the handshake request.
func (e Endpoint) HandshakeURL() string {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	return e.baseURL(scheme) + "/"
}

// UpgradeURL returns the WebSocket URL for an established session.
func (e Endpoint) UpgradeURL(sessionID string) string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	return e.baseURL(scheme) + "/" + TransportWebSocket + "/" + sessionID
}

// Session holds the parameters negotiated by the handshake.
// It is not modified after the handshake returns.
type Session struct {
	ID                string
	HeartbeatTimeout  time.Duration
	ConnectionTimeout time.Duration
	Transports        []string
}

// Supports reports whether the server offered the named transport.
func (s *Session) Supports(transport string) bool {
	return slices.Contains(s.Transports, transport)
}

// HeartbeatInterval returns how often the client sends a heartbeat: the
// server's timeout less a two second margin. Timeouts too short for the
// margin fall back to half the timeout, and a zero timeout to one second.
func (s *Session) HeartbeatInterval() time.Duration {
	if d := s.HeartbeatTimeout - heartbeatMargin; d > 0 {
		return d
	}
	if d := s.HeartbeatTimeout / 2; d > 0 {
		return d
	}
	return time.Second
}

// ParseSession parses the first line of a handshake response:
// sessionID:heartbeatTimeout:connectionTimeout:transport,transport,...
func ParseSession(line string) (*Session, error) {
	line = strings.TrimRight(line, "\r\n")

	parts := strings.Split(line, ":")
	if len(parts) != 4 {
		return nil, &HandshakeParseError{
			Response: line,
			Reason:   "expected 4 fields, got " + strconv.Itoa(len(parts)),
		}
	}

	if parts[0] == "" {
		return nil, &HandshakeParseError{Response: line, Reason: "empty session id"}
	}

	heartbeat, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, &HandshakeParseError{Response: line, Reason: "bad heartbeat timeout", Err: err}
	}

	// The connection timeout is parsed but the client never acts on it.
	connTimeout := 0
	if parts[2] != "" {
		connTimeout, err = strconv.Atoi(parts[2])
		if err != nil {
			return nil, &HandshakeParseError{Response: line, Reason: "bad connection timeout", Err: err}
		}
	}

	session := &Session{
		ID:                parts[0],
		HeartbeatTimeout:  time.Duration(heartbeat) * time.Second,
		ConnectionTimeout: time.Duration(connTimeout) * time.Second,
		Transports:        strings.Split(parts[3], ","),
	}

	if !session.Supports(TransportWebSocket) {
		return nil, &HandshakeParseError{Response: line, Reason: "websocket transport not offered"}
	}

	return session, nil
}

// Handshake negotiates a session with the server and returns it together
// with the URL to upgrade to. If httpClient is nil, http.DefaultClient is
// used.
func Handshake(ctx context.Context, ep Endpoint, httpClient *http.Client) (*Session, string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	target := ep.HandshakeURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", &ConnectionSetupError{Op: "handshake", URL: target, Err: err}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", &ConnectionSetupError{Op: "handshake", URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &ConnectionSetupError{
			Op:  "handshake",
			URL: target,
			Err: fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, "", &ConnectionSetupError{Op: "handshake", URL: target, Err: err}
	}

	session, err := ParseSession(line)
	if err != nil {
		return nil, "", err
	}

	return session, ep.UpgradeURL(session.ID), nil
}
