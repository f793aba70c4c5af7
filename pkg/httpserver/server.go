package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Server runs an http.Server with graceful shutdown on context
// cancellation or SIGINT/SIGTERM.
type Server struct {
	opts options

	mu       sync.Mutex
	inner    *http.Server
	shutOnce sync.Once
}

// New builds a Server from the given options. Options with invalid
// values panic at construction so misconfiguration fails fast.
func New(opts ...Option) *Server {
	o := options{
		addr:            ":8080",
		shutdownTimeout: 5 * time.Second,
		logger:          slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Server{opts: o}
}

// Run serves handler until ctx is cancelled, a termination signal
// arrives, or the listener fails. A nil handler serves 404s. Listen
// failures are wrapped with ErrStart.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.inner != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	srv := s.opts.server
	if srv == nil {
		srv = &http.Server{}
	}
	if srv.Addr == "" {
		srv.Addr = s.opts.addr
	}
	if srv.ReadTimeout == 0 {
		srv.ReadTimeout = s.opts.readTimeout
	}
	if srv.WriteTimeout == 0 {
		srv.WriteTimeout = s.opts.writeTimeout
	}
	if srv.IdleTimeout == 0 {
		srv.IdleTimeout = s.opts.idleTimeout
	}
	srv.Handler = handler
	s.inner = srv
	s.mu.Unlock()

	for _, hook := range s.opts.onStart {
		hook(s.opts.logger)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	var err error
	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case <-signals:
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case err = <-serveErr:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout. Repeated calls are no-ops. Failures are wrapped with
// ErrShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutOnce.Do(func() {
		s.mu.Lock()
		srv := s.inner
		s.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)

		for _, hook := range s.opts.onStop {
			hook(s.opts.logger)
		}
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
