package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

type options struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	server          *http.Server
	logger          *slog.Logger
	onStart         []func(*slog.Logger)
	onStop          []func(*slog.Logger)
}

// Option configures a Server at construction time.
type Option func(*options)

// WithAddr sets the listen address. Panics on an empty address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: WithAddr requires a non-empty address")
	}
	return func(o *options) { o.addr = addr }
}

// WithReadTimeout bounds reading of the full request, including the body.
func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("httpserver: WithReadTimeout requires a positive duration")
	}
	return func(o *options) { o.readTimeout = d }
}

// WithWriteTimeout bounds writing of the response.
func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("httpserver: WithWriteTimeout requires a positive duration")
	}
	return func(o *options) { o.writeTimeout = d }
}

// WithIdleTimeout bounds how long a keep-alive connection may sit idle.
func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("httpserver: WithIdleTimeout requires a positive duration")
	}
	return func(o *options) { o.idleTimeout = d }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("httpserver: WithShutdownTimeout requires a positive duration")
	}
	return func(o *options) { o.shutdownTimeout = d }
}

// WithServer reuses a caller-supplied http.Server. Fields already set
// on it win over package defaults; Handler is always overwritten by Run.
func WithServer(srv *http.Server) Option {
	if srv == nil {
		panic("httpserver: WithServer requires a non-nil server")
	}
	return func(o *options) { o.server = srv }
}

// WithLogger sets the logger passed to start and stop hooks. A nil
// logger falls back to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStartHook runs fn once the server begins listening.
func WithStartHook(fn func(*slog.Logger)) Option {
	if fn == nil {
		panic("httpserver: WithStartHook requires a non-nil hook")
	}
	return func(o *options) { o.onStart = append(o.onStart, fn) }
}

// WithStopHook runs fn after the server has shut down.
func WithStopHook(fn func(*slog.Logger)) Option {
	if fn == nil {
		panic("httpserver: WithStopHook requires a non-nil hook")
	}
	return func(o *options) { o.onStop = append(o.onStop, fn) }
}
