package socketio

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chrisboulton/socketio-go"

// ClientOption configures a socket.io client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger         *slog.Logger
	onSend         func(Packet)
	onReceive      func(Packet)
	secure         bool
	proxy          *url.URL
	httpClient     *http.Client
	httpHeader     http.Header
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	behavior       *Behavior
}

func newClientConfig(opts []ClientOption) clientConfig {
	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// WithLogger sets a structured logger for the client.
// The default is slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithOnSend sets a callback invoked before each packet is written.
// It runs while the connection's write lock is held and must not send.
func WithOnSend(fn func(Packet)) ClientOption {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked after each packet is decoded and
// before it is dispatched.
func WithOnReceive(fn func(Packet)) ClientOption {
	return func(c *clientConfig) {
		c.onReceive = fn
	}
}

// WithSecure uses https for the handshake and wss for the channel.
func WithSecure() ClientOption {
	return func(c *clientConfig) {
		c.secure = true
	}
}

// WithProxy routes the handshake and the WebSocket upgrade through proxy.
// It is ignored when WithHTTPClient is also given.
func WithProxy(proxy *url.URL) ClientOption {
	return func(c *clientConfig) {
		c.proxy = proxy
	}
}

// WithHTTPClient sets the HTTP client used for the handshake and the
// WebSocket upgrade.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithHTTPHeader adds headers to the WebSocket upgrade request.
func WithHTTPHeader(header http.Header) ClientOption {
	return func(c *clientConfig) {
		c.httpHeader = header
	}
}

// WithMetrics registers the client's Prometheus collectors with reg.
func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider used for
// handshake and dispatch spans. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *clientConfig) {
		c.tracerProvider = tp
	}
}

// WithDefaultBehavior sets the Behavior of the default namespace.
// The default is LoggingBehavior with the client's logger.
func WithDefaultBehavior(b Behavior) ClientOption {
	return func(c *clientConfig) {
		c.behavior = &b
	}
}

// client returns the HTTP client for the handshake and the upgrade.
func (c *clientConfig) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return ProxyHTTPClient(c.proxy)
}

// ProxyHTTPClient returns an HTTP client that sends every request through
// proxy. A nil proxy yields http.DefaultClient.
func ProxyHTTPClient(proxy *url.URL) *http.Client {
	if proxy == nil {
		return http.DefaultClient
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = http.ProxyURL(proxy)
	return &http.Client{Transport: tr}
}

func (c *clientConfig) tracer() trace.Tracer {
	tp := c.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName)
}

func (c *clientConfig) defaultBehavior(logger *slog.Logger) Behavior {
	if c.behavior != nil {
		return *c.behavior
	}
	return LoggingBehavior(logger)
}
