package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository is the storage contract for task creation.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer adds tasks to the queue.
type Enqueuer struct {
	repo        EnqueuerRepository
	defaultLane Lane
}

// NewEnqueuer creates an Enqueuer.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{defaultLane: DefaultLane}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{repo: repo, defaultLane: options.defaultLane}, nil
}

// Enqueue stores a new task. The payload is JSON-marshaled and the task
// name defaults to the payload's type name, so a typed handler registered
// for the same payload type picks it up without extra wiring.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{
		lane:       e.defaultLane,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !options.lane.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLane, options.lane)
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task %q in lane %q: %w", task.TaskName, task.Lane, err)
	}
	return nil
}

func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = defaultTaskName(payload)
	}

	scheduledAt := time.Now()
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = scheduledAt.Add(options.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Lane:        options.lane,
		TaskType:    TaskTypeOneTime,
		TaskName:    taskName,
		Payload:     payloadBytes,
		Status:      TaskStatusPending,
		RetryCount:  0,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}, nil
}
