package queue

import "errors"

var (
	// ErrRepositoryNil is returned when a nil repository is provided.
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrPayloadNil is returned when attempting to enqueue a nil payload.
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidLane is returned when a task targets an unknown lane.
	ErrInvalidLane = errors.New("unknown lane")

	// ErrNoTaskToClaim signals an empty poll, not a failure.
	ErrNoTaskToClaim = errors.New("no task to claim")

	// ErrHandlerNotFound is returned when no handler is registered for a
	// task name.
	ErrHandlerNotFound = errors.New("no handler registered for task type")

	// ErrNoHandlers is returned when a worker starts with nothing
	// registered.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrShutdownTimeout is returned when Stop gives up waiting for
	// in-flight tasks. Their locks expire and another worker picks them up.
	ErrShutdownTimeout = errors.New("worker shutdown timed out")

	// ErrTaskAlreadyRegistered is returned when a periodic task name is
	// registered twice.
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when a scheduler starts with
	// no registered tasks.
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")
)
