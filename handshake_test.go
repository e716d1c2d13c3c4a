package socketio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

// endpointFor returns the Endpoint of a test server.
func endpointFor(t *testing.T, srv *httptest.Server) Endpoint {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return Endpoint{Host: host, Port: port}
}

func TestEndpoint_URLs(t *testing.T) {
	ep := Endpoint{Host: "example.com", Port: 8000}
	if got, want := ep.HandshakeURL(), "http://example.com:8000/socket.io/1/"; got != want {
		t.Errorf("HandshakeURL() = %s, want %s", got, want)
	}
	if got, want := ep.UpgradeURL("abc123"), "ws://example.com:8000/socket.io/1/websocket/abc123"; got != want {
		t.Errorf("UpgradeURL() = %s, want %s", got, want)
	}

	ep.Secure = true
	if got, want := ep.HandshakeURL(), "https://example.com:8000/socket.io/1/"; got != want {
		t.Errorf("HandshakeURL() = %s, want %s", got, want)
	}
	if got, want := ep.UpgradeURL("abc123"), "wss://example.com:8000/socket.io/1/websocket/abc123"; got != want {
		t.Errorf("UpgradeURL() = %s, want %s", got, want)
	}
}

func TestParseSession(t *testing.T) {
	session, err := ParseSession("abc123:20:10:websocket,polling\n")
	if err != nil {
		t.Fatalf("ParseSession error: %v", err)
	}

	if session.ID != "abc123" {
		t.Errorf("ID = %s, want abc123", session.ID)
	}
	if session.HeartbeatTimeout != 20*time.Second {
		t.Errorf("HeartbeatTimeout = %v, want 20s", session.HeartbeatTimeout)
	}
	if session.ConnectionTimeout != 10*time.Second {
		t.Errorf("ConnectionTimeout = %v, want 10s", session.ConnectionTimeout)
	}
	if session.HeartbeatInterval() != 18*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 18s", session.HeartbeatInterval())
	}
	if !session.Supports("polling") {
		t.Error("Supports(polling) = false, want true")
	}
}

func TestParseSession_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no websocket", "abc123:20:10:xhr-polling,jsonp-polling"},
		{"too few fields", "abc123:20:10"},
		{"too many fields", "abc123:20:10:websocket:extra"},
		{"bad heartbeat", "abc123:soon:10:websocket"},
		{"bad connection timeout", "abc123:20:later:websocket"},
		{"empty session id", ":20:10:websocket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSession(tt.input)
			var parseErr *HandshakeParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("err = %v, want HandshakeParseError", err)
			}
		})
	}
}

func TestSession_HeartbeatInterval_Short(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    time.Duration
	}{
		{25 * time.Second, 23 * time.Second},
		{2 * time.Second, time.Second},
		{0, time.Second},
	}

	for _, tt := range tests {
		s := &Session{HeartbeatTimeout: tt.timeout}
		if got := s.HeartbeatInterval(); got != tt.want {
			t.Errorf("HeartbeatInterval(%v) = %v, want %v", tt.timeout, got, tt.want)
		}
	}
}

func TestHandshake(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, "abc123:20:10:websocket,polling")
	}))
	defer srv.Close()

	ep := endpointFor(t, srv)
	session, upgradeURL, err := Handshake(context.Background(), ep, srv.Client())
	if err != nil {
		t.Fatalf("Handshake error: %v", err)
	}

	if gotPath != "/socket.io/1/" {
		t.Errorf("request path = %s, want /socket.io/1/", gotPath)
	}
	if session.ID != "abc123" {
		t.Errorf("ID = %s, want abc123", session.ID)
	}
	if session.HeartbeatInterval() != 18*time.Second {
		t.Errorf("HeartbeatInterval() = %v, want 18s", session.HeartbeatInterval())
	}
	if want := ep.UpgradeURL("abc123"); upgradeURL != want {
		t.Errorf("upgradeURL = %s, want %s", upgradeURL, want)
	}
}

func TestHandshake_NoWebSocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "abc123:20:10:xhr-polling\n")
	}))
	defer srv.Close()

	_, _, err := Handshake(context.Background(), endpointFor(t, srv), srv.Client())
	var parseErr *HandshakeParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want HandshakeParseError", err)
	}
}

func TestHandshake_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "handshake bad request", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := Handshake(context.Background(), endpointFor(t, srv), srv.Client())
	var setupErr *ConnectionSetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("err = %v, want ConnectionSetupError", err)
	}
	if setupErr.Op != "handshake" {
		t.Errorf("Op = %s, want handshake", setupErr.Op)
	}
}

func TestHandshake_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	ep := endpointFor(t, srv)
	srv.Close()

	_, _, err := Handshake(context.Background(), ep, nil)
	var setupErr *ConnectionSetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("err = %v, want ConnectionSetupError", err)
	}
}
