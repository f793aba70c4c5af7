package queue

import "time"

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultLane Lane
}

// WithDefaultLane sets the lane used when Enqueue is called without one.
func WithDefaultLane(lane Lane) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if lane.Valid() {
			o.defaultLane = lane
		}
	}
}

// EnqueueOption configures one Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	lane        Lane
	maxRetries  int8
	delay       time.Duration
	scheduledAt *time.Time
	taskName    string
}

// WithLane sets the lane for the task.
func WithLane(lane Lane) EnqueueOption {
	return func(o *enqueueOptions) {
		o.lane = lane
	}
}

// WithMaxRetries sets the queue-level retry budget (0-10).
func WithMaxRetries(maxRetries int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

// WithDelay delays the task's first execution.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if delay > 0 {
			o.delay = delay
		}
	}
}

// WithScheduledAt sets an absolute execution time, used by retry
// re-enqueues to honor a computed backoff.
func WithScheduledAt(scheduledAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &scheduledAt
	}
}

// WithTaskName overrides the payload-derived task name.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}
