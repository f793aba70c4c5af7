package queue

import (
	"log/slog"
	"time"
)

// WorkerOption configures a worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	lanes              []Lane
	pullInterval       time.Duration
	lockTimeout        time.Duration
	shutdownTimeout    time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
}

// WithLanes restricts which lanes the worker drains. Order matters; the
// first lane is drained first.
func WithLanes(lanes ...Lane) WorkerOption {
	return func(o *workerOptions) {
		if len(lanes) > 0 {
			o.lanes = lanes
		}
	}
}

// WithPullInterval sets how often the worker polls for tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout sets the claim lock duration, which doubles as the
// per-task execution timeout.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight tasks.
func WithShutdownTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithMaxConcurrentTasks bounds concurrent task execution.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
