package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	socketio "github.com/chrisboulton/socketio-go"
)

type loader func(cmd *cobra.Command) (settings, error)

func handshakeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "handshake",
		Short: "Negotiate a session and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), s.Timeout)
			defer cancel()

			session, upgradeURL, err := socketio.Handshake(ctx, s.endpoint(), socketio.ProxyHTTPClient(s.Proxy))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:            %s\n", session.ID)
			fmt.Fprintf(out, "Heartbeat timeout:  %s\n", session.HeartbeatTimeout)
			fmt.Fprintf(out, "Heartbeat interval: %s\n", session.HeartbeatInterval())
			fmt.Fprintf(out, "Connection timeout: %s\n", session.ConnectionTimeout)
			fmt.Fprintf(out, "Transports:         %s\n", strings.Join(session.Transports, ", "))
			fmt.Fprintf(out, "Upgrade URL:        %s\n", upgradeURL)
			return nil
		},
	}
}

func emitCmd(load loader) *cobra.Command {
	var ack bool

	cmd := &cobra.Command{
		Use:   "emit <event> [arg...]",
		Short: "Emit one event",
		Long: `Emit one event on the configured namespace.

Each argument is sent as JSON when it parses as JSON and as a string
otherwise. With --ack the reply is printed as a JSON array.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			client, err := socketio.Connect(cmd.Context(), s.Host, s.Port, s.clientOptions()...)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())

			ns, err := namespace(cmd.Context(), client, s.Namespace, socketio.Behavior{})
			if err != nil {
				return err
			}

			event, eventArgs := args[0], parseArgs(args[1:])
			if !ack {
				return ns.Emit(cmd.Context(), event, eventArgs...)
			}

			out := newPrinter(cmd.OutOrStdout(), s.logger())
			err = ns.EmitWithAck(cmd.Context(), event, func(reply ...any) {
				out.print(reply)
			}, eventArgs...)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), s.Timeout)
			defer cancel()
			return client.WaitForCallbacks(ctx)
		},
	}

	cmd.Flags().BoolVarP(&ack, "ack", "a", false, "request an acknowledgment and print it")

	return cmd
}

func listenCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print every event received on a namespace",
		Long: `Print every event and message received on the configured namespace
as one JSON object per line, until interrupted or the server goes away.
Acknowledgment requests are answered with no arguments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := newPrinter(cmd.OutOrStdout(), s.logger())
			behavior := listenBehavior(out, s.Namespace)

			opts := s.clientOptions()
			if s.Namespace == "" {
				opts = append(opts, socketio.WithDefaultBehavior(behavior))
			}
			if s.MetricsAddr != "" {
				reg := prometheus.NewRegistry()
				opts = append(opts, socketio.WithMetrics(reg))
				go serveMetrics(s, reg)
			}

			client, err := socketio.Connect(ctx, s.Host, s.Port, opts...)
			if err != nil {
				return err
			}
			defer client.Close(context.Background())

			if _, err := namespace(ctx, client, s.Namespace, behavior); err != nil {
				return err
			}

			if err := client.WaitUntilClosed(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			if ctx.Err() == nil && !client.Connected() {
				return errors.New("connection lost")
			}
			return nil
		},
	}
}

// namespace returns the default namespace for an empty path and defines
// the namespace at path otherwise.
func namespace(ctx context.Context, client *socketio.Client, path string, behavior socketio.Behavior) (*socketio.Namespace, error) {
	if path == "" {
		ns, _ := client.Namespace("")
		return ns, nil
	}
	return client.Define(ctx, path, behavior)
}

func listenBehavior(out *printer, path string) socketio.Behavior {
	record := func(event string, args []any) {
		ack, args := socketio.FindAck(args)
		out.print(map[string]any{"path": path, "event": event, "args": args})
		if ack != nil {
			ack()
		}
	}
	lifecycle := func(event string) socketio.Callback {
		return func(args ...any) { record(event, args) }
	}

	return socketio.Behavior{
		OnConnect:    lifecycle("connect"),
		OnDisconnect: lifecycle("disconnect"),
		OnError:      lifecycle("error"),
		OnMessage:    lifecycle("message"),
		OnDefault: func(event string, args ...any) {
			record(event, args)
		},
	}
}

func serveMetrics(s settings, reg *prometheus.Registry) {
	logger := s.logger()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Info("serving metrics", "addr", s.MetricsAddr)
	if err := http.ListenAndServe(s.MetricsAddr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// parseArgs decodes each argument as JSON, keeping it as a string when it
// is not valid JSON.
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, r := range raw {
		var v any
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			v = r
		}
		args = append(args, v)
	}
	return args
}

// printer writes JSON lines; handlers may call it from the receive loop
// while the main goroutine prints too.
type printer struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

func newPrinter(w io.Writer, logger *slog.Logger) *printer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &printer{enc: enc, logger: logger}
}

func (p *printer) print(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(v); err != nil {
		p.logger.Error("could not print", "error", err)
	}
}
