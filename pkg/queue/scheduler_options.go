package queue

import (
	"log/slog"
	"time"
)

// SchedulerOption configures a scheduler.
type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
}

// WithCheckInterval sets how often the scheduler looks for due tasks.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the scheduler logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// SchedulerTaskOption configures one registered periodic task.
type SchedulerTaskOption func(*schedulerTaskOptions)

type schedulerTaskOptions struct {
	lane       Lane
	maxRetries int8
}

// WithTaskLane sets the lane for the scheduled task.
func WithTaskLane(lane Lane) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if lane.Valid() {
			o.lane = lane
		}
	}
}

// WithTaskMaxRetries sets the queue-level retry budget (0-10).
func WithTaskMaxRetries(maxRetries int8) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}
