package httpserver_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/httpserver"
)

func reserveAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func waitReachable(t *testing.T, addr string) {
	t.Helper()
	for range 100 {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server at %s never became reachable", addr)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	addr := reserveAddr(t)
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	}()
	waitReachable(t, addr)

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestManualShutdown(t *testing.T) {
	t.Parallel()

	addr := reserveAddr(t)
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
	)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background(), http.NewServeMux()) }()
	<-started
	waitReachable(t, addr)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, srv.Shutdown(context.Background()), "second shutdown must be a no-op")
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
}

func TestRunRejectsBadAddr(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr(":bogus"))
	err := srv.Run(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestRunRejectsSecondStart(t *testing.T) {
	t.Parallel()

	addr := reserveAddr(t)
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx, http.NewServeMux()) }()
	<-started

	err := srv.Run(context.Background(), http.NewServeMux())
	require.ErrorIs(t, err, httpserver.ErrStart)
	_ = srv.Shutdown(context.Background())
}

func TestLifecycleHooks(t *testing.T) {
	t.Parallel()

	addr := reserveAddr(t)
	var started, stopped atomic.Bool
	gate := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(*slog.Logger) {
			started.Store(true)
			close(gate)
		}),
		httpserver.WithStopHook(func(*slog.Logger) { stopped.Store(true) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, http.NewServeMux()) }()
	<-gate
	cancel()
	require.NoError(t, <-done)

	assert.True(t, started.Load())
	assert.True(t, stopped.Load())
}

func TestNewFromConfigAppliesSettings(t *testing.T) {
	t.Parallel()

	addr := reserveAddr(t)
	inner := &http.Server{}
	started := make(chan struct{})
	srv := httpserver.NewFromConfig(httpserver.Config{
		Addr:            addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    2 * time.Second,
		IdleTimeout:     3 * time.Second,
		ShutdownTimeout: 50 * time.Millisecond,
	},
		httpserver.WithServer(inner),
		httpserver.WithStartHook(func(*slog.Logger) { close(started) }),
	)

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background(), http.NewServeMux()) }()
	<-started

	assert.Equal(t, addr, inner.Addr)
	assert.Equal(t, time.Second, inner.ReadTimeout)
	assert.Equal(t, 2*time.Second, inner.WriteTimeout)
	assert.Equal(t, 3*time.Second, inner.IdleTimeout)
	assert.NotNil(t, inner.Handler)

	require.NoError(t, srv.Shutdown(context.Background()))
	require.NoError(t, <-done)
}

func TestOptionValidation(t *testing.T) {
	t.Parallel()

	for name, fn := range map[string]func(){
		"empty addr":       func() { httpserver.WithAddr("") },
		"read timeout":     func() { httpserver.WithReadTimeout(0) },
		"write timeout":    func() { httpserver.WithWriteTimeout(-time.Second) },
		"idle timeout":     func() { httpserver.WithIdleTimeout(0) },
		"shutdown timeout": func() { httpserver.WithShutdownTimeout(0) },
		"nil server":       func() { httpserver.WithServer(nil) },
		"nil start hook":   func() { httpserver.WithStartHook(nil) },
		"nil stop hook":    func() { httpserver.WithStopHook(nil) },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Panics(t, fn)
		})
	}

	assert.NotPanics(t, func() { httpserver.WithLogger(nil) })
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.DiscardHandler)

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(context.Background(), log).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("readiness ok", func(t *testing.T) {
		t.Parallel()
		ok := func(context.Context) error { return nil }
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(context.Background(), log, ok, ok).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("readiness failure", func(t *testing.T) {
		t.Parallel()
		failing := func(context.Context) error { return errors.New("pool exhausted") }
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(context.Background(), log, failing).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
