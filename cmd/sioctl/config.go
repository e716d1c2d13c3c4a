package main

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	socketio "github.com/chrisboulton/socketio-go"
)

// settings is the resolved configuration of one sioctl run.
type settings struct {
	Host        string
	Port        int
	Secure      bool
	Proxy       *url.URL
	Namespace   string
	Timeout     time.Duration
	LogLevel    slog.Level
	MetricsAddr string
}

func defaultSettings() settings {
	return settings{
		Host:     "localhost",
		Port:     8080,
		Timeout:  10 * time.Second,
		LogLevel: slog.LevelWarn,
	}
}

type fileConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	Secure      bool   `toml:"secure"`
	Proxy       string `toml:"proxy"`
	Namespace   string `toml:"namespace"`
	Timeout     string `toml:"timeout"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"`
}

// loadSettings overlays the keys present in the file at path onto the
// defaults. An empty path yields the defaults.
func loadSettings(path string) (settings, error) {
	s := defaultSettings()
	if path == "" {
		return s, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("host") {
		if host := strings.TrimSpace(raw.Host); host != "" {
			s.Host = host
		}
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return settings{}, fmt.Errorf("invalid port %d", raw.Port)
		}
		s.Port = raw.Port
	}

	if meta.IsDefined("secure") {
		s.Secure = raw.Secure
	}

	if meta.IsDefined("proxy") {
		proxy, err := parseProxy(raw.Proxy)
		if err != nil {
			return settings{}, err
		}
		s.Proxy = proxy
	}

	if meta.IsDefined("namespace") {
		s.Namespace = strings.TrimSpace(raw.Namespace)
	}

	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return settings{}, fmt.Errorf("parse timeout: %w", err)
		}
		s.Timeout = d
	}

	if meta.IsDefined("log_level") {
		if err := s.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return settings{}, fmt.Errorf("parse log_level: %w", err)
		}
	}

	if meta.IsDefined("metrics_addr") {
		s.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return s, nil
}

func parseProxy(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	proxy, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy: %w", err)
	}
	return proxy, nil
}

// connFlags are the persistent flags that override the config file.
type connFlags struct {
	host        string
	port        int
	secure      bool
	proxy       string
	namespace   string
	timeout     time.Duration
	logLevel    string
	metricsAddr string
}

func (f *connFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVarP(&f.host, "host", "H", "", "server host")
	pf.IntVarP(&f.port, "port", "p", 0, "server port")
	pf.BoolVar(&f.secure, "secure", false, "use https and wss")
	pf.StringVar(&f.proxy, "proxy", "", "HTTP proxy URL")
	pf.StringVarP(&f.namespace, "namespace", "n", "", "namespace path, e.g. /chat")
	pf.DurationVarP(&f.timeout, "timeout", "t", 0, "handshake and acknowledgment timeout")
	pf.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// apply copies the flags the user set onto s.
func (f *connFlags) apply(cmd *cobra.Command, s settings) (settings, error) {
	changed := cmd.Flags().Changed

	if changed("host") {
		s.Host = f.host
	}
	if changed("port") {
		s.Port = f.port
	}
	if changed("secure") {
		s.Secure = f.secure
	}
	if changed("proxy") {
		proxy, err := parseProxy(f.proxy)
		if err != nil {
			return settings{}, err
		}
		s.Proxy = proxy
	}
	if changed("namespace") {
		s.Namespace = f.namespace
	}
	if changed("timeout") {
		s.Timeout = f.timeout
	}
	if changed("log-level") {
		if err := s.LogLevel.UnmarshalText([]byte(f.logLevel)); err != nil {
			return settings{}, fmt.Errorf("parse log-level: %w", err)
		}
	}
	if changed("metrics-addr") {
		s.MetricsAddr = f.metricsAddr
	}
	return s, nil
}

func (s settings) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: s.LogLevel}))
}

func (s settings) endpoint() socketio.Endpoint {
	return socketio.Endpoint{Host: s.Host, Port: s.Port, Secure: s.Secure}
}

// clientOptions turns s into options for socketio.Connect.
func (s settings) clientOptions() []socketio.ClientOption {
	opts := []socketio.ClientOption{socketio.WithLogger(s.logger())}
	if s.Secure {
		opts = append(opts, socketio.WithSecure())
	}
	if s.Proxy != nil {
		opts = append(opts, socketio.WithProxy(s.Proxy))
	}
	return opts
}
