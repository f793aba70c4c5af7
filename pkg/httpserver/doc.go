// Package httpserver wraps net/http with graceful shutdown, functional
// options, and probe handlers.
//
// Run blocks until the context is cancelled, SIGINT/SIGTERM arrives, or
// the listener fails, then drains in-flight requests within the
// configured shutdown timeout. Construction goes through New or
// NewFromConfig with Option values; WithStartHook and WithStopHook
// attach lifecycle side effects. HealthCheckHandler serves liveness
// when called with no dependency checks and readiness when given some.
//
// Startup failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown, both inspectable via errors.Is.
package httpserver
