package socketio

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestClientOption_Defaults(t *testing.T) {
	cfg := newClientConfig(nil)

	if cfg.logger != slog.Default() {
		t.Error("logger is not slog.Default()")
	}
	if cfg.secure {
		t.Error("secure = true, want false")
	}
	if cfg.client() != http.DefaultClient {
		t.Error("client() is not http.DefaultClient")
	}
	if cfg.tracer() == nil {
		t.Error("tracer() is nil")
	}
	if b := cfg.defaultBehavior(cfg.logger); b.OnError == nil {
		t.Error("default behavior does not handle server errors")
	}
}

func TestClientOption_Secure(t *testing.T) {
	cfg := newClientConfig([]ClientOption{WithSecure()})

	if !cfg.secure {
		t.Error("secure = false, want true")
	}
}

func TestClientOption_Proxy(t *testing.T) {
	proxy, _ := url.Parse("http://proxy.local:3128")
	cfg := newClientConfig([]ClientOption{WithProxy(proxy)})

	tr, ok := cfg.client().Transport.(*http.Transport)
	if !ok {
		t.Fatalf("client transport = %T, want *http.Transport", cfg.client().Transport)
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/socket.io/1/", nil)
	got, err := tr.Proxy(req)
	if err != nil {
		t.Fatalf("Proxy error: %v", err)
	}
	if got.String() != proxy.String() {
		t.Errorf("proxy = %s, want %s", got, proxy)
	}
}

func TestClientOption_HTTPClientWinsOverProxy(t *testing.T) {
	proxy, _ := url.Parse("http://proxy.local:3128")
	custom := &http.Client{}
	cfg := newClientConfig([]ClientOption{WithProxy(proxy), WithHTTPClient(custom)})

	if cfg.client() != custom {
		t.Error("client() did not return the configured client")
	}
}

func TestClientOption_HTTPHeader(t *testing.T) {
	header := http.Header{"Cookie": []string{"a=b"}}
	cfg := newClientConfig([]ClientOption{WithHTTPHeader(header)})

	if cfg.httpHeader.Get("Cookie") != "a=b" {
		t.Errorf("Cookie = %q, want a=b", cfg.httpHeader.Get("Cookie"))
	}
}

func TestClientOption_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := newClientConfig([]ClientOption{WithMetrics(reg)})

	if cfg.registerer != reg {
		t.Error("registerer not set")
	}
}

func TestClientOption_TracerProvider(t *testing.T) {
	tp := noop.NewTracerProvider()
	cfg := newClientConfig([]ClientOption{WithTracerProvider(tp)})

	if cfg.tracerProvider != tp {
		t.Error("tracerProvider not set")
	}
}

func TestClientOption_DefaultBehavior(t *testing.T) {
	called := false
	cfg := newClientConfig([]ClientOption{WithDefaultBehavior(Behavior{
		OnConnect: func(...any) { called = true },
	})})

	b := cfg.defaultBehavior(cfg.logger)
	if b.OnConnect == nil {
		t.Fatal("OnConnect is nil")
	}
	b.OnConnect()
	if !called {
		t.Error("configured OnConnect not used")
	}
	if b.OnError != nil {
		t.Error("configured behavior was merged with the logging behavior")
	}
}

func TestClientOption_Multiple(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts := []ClientOption{
		WithLogger(logger),
		WithSecure(),
		WithOnSend(func(Packet) {}),
		WithOnReceive(func(Packet) {}),
	}
	cfg := newClientConfig(opts)

	if cfg.logger != logger {
		t.Error("logger not set")
	}
	if !cfg.secure {
		t.Error("secure not set")
	}
	if cfg.onSend == nil || cfg.onReceive == nil {
		t.Error("hooks not set")
	}
}

func TestProxyHTTPClient(t *testing.T) {
	if ProxyHTTPClient(nil) != http.DefaultClient {
		t.Error("ProxyHTTPClient(nil) is not http.DefaultClient")
	}

	proxy, _ := url.Parse("http://proxy.local:3128")
	client := ProxyHTTPClient(proxy)
	tr, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http.Transport", client.Transport)
	}
	if tr == http.DefaultTransport {
		t.Error("proxy client shares http.DefaultTransport")
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if got, _ := tr.Proxy(req); got == nil || got.Host != "proxy.local:3128" {
		t.Errorf("proxy = %v, want proxy.local:3128", got)
	}
}
