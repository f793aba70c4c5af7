package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository is the storage contract for task processing.
type WorkerRepository interface {
	// ClaimTask atomically claims the next due task from the given lanes,
	// respecting lane drain order. Returns ErrNoTaskToClaim when idle.
	ClaimTask(ctx context.Context, workerID uuid.UUID, lanes []Lane, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks a task as completed.
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error, increments the retry count and either
	// reschedules the task or marks it failed.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	// MoveToDLQ moves an exhausted task to the dead letter queue.
	MoveToDLQ(ctx context.Context, taskID uuid.UUID) error
}

// Worker polls the queue and dispatches claimed tasks to registered
// handlers, bounded by a concurrency semaphore.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	lanes    []Lane
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex

	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopping atomic.Bool
}

// NewWorker creates a worker. By default it drains every lane.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		lanes:              Lanes(),
		pullInterval:       5 * time.Second,
		lockTimeout:        5 * time.Minute,
		shutdownTimeout:    30 * time.Second,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		handlers:        make(map[string]Handler),
		lanes:           options.lanes,
		workerID:        uuid.New(),
		sem:             make(chan struct{}, options.maxConcurrentTasks),
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}, nil
}

// RegisterHandlers registers task handlers by name.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins processing tasks in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.stopping.Store(false)
	go w.run()

	w.logger.Info("queue worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("lanes", w.lanes),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop shuts down the worker, waiting for in-flight tasks to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(w.shutdownTimeout):
		w.logger.Warn("shutdown timeout elapsed with tasks still in flight",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownTimeout))
		return ErrShutdownTimeout
	}

	w.logger.Info("queue worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run() {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// stopMu guards against adding to the WaitGroup after
				// Stop() started waiting on it.
				w.stopMu.Lock()
				if w.stopping.Load() {
					w.stopMu.Unlock()
					<-w.sem
					return
				}
				w.wg.Add(1)
				w.stopMu.Unlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.Error("failed to process task",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				// All slots busy, skip this tick.
			}
		}
	}
}

func (w *Worker) pullAndProcess() error {
	task, err := w.repo.ClaimTask(w.ctx, w.workerID, w.lanes, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoTaskToClaim) {
			return nil
		}
		return fmt.Errorf("claim task: %w", err)
	}
	if task == nil {
		return nil
	}

	w.logger.Debug("claimed task",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("lane", string(task.Lane)))

	return w.processTask(task)
}

func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				slog.String("task_id", task.ID.String()),
				slog.String("task_name", task.TaskName),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	// The handler context is detached from the worker lifecycle so a
	// graceful shutdown lets in-flight tasks finish.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, task.Payload)
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}
	return w.handleTaskSuccess(task, duration)
}

// handleMissingHandler moves the task straight to the DLQ: retries cannot
// succeed until the handler is deployed, and the DLQ keeps the task
// requeueable once it is.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName))

	errorMsg := "no handler registered for task type: " + task.TaskName
	if err := w.repo.FailTask(w.ctx, task.ID, errorMsg); err != nil {
		return fmt.Errorf("mark task %s failed: %w", task.ID, err)
	}
	if err := w.repo.MoveToDLQ(w.ctx, task.ID); err != nil {
		return fmt.Errorf("move task %s to DLQ: %w", task.ID, err)
	}
	return ErrHandlerNotFound
}

func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	w.logger.Error("task failed",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("retry_count", int(task.RetryCount)),
		slog.Int("max_retries", int(task.MaxRetries)),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	// FailTask records the error and either reschedules with backoff or
	// marks the task failed.
	if err := w.repo.FailTask(w.ctx, task.ID, execErr.Error()); err != nil {
		return fmt.Errorf("update task %s status to failed: %w", task.ID, err)
	}

	if task.RetryCount >= task.MaxRetries {
		if err := w.repo.MoveToDLQ(w.ctx, task.ID); err != nil {
			return fmt.Errorf("move task %s to DLQ after max retries: %w", task.ID, err)
		}
		w.logger.Warn("task moved to dead letter queue",
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.TaskName))
	}
	return nil
}

func (w *Worker) handleTaskSuccess(task *Task, duration time.Duration) error {
	if err := w.repo.CompleteTask(w.ctx, task.ID); err != nil {
		return fmt.Errorf("mark task %s completed: %w", task.ID, err)
	}

	w.logger.Debug("task completed",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.String("lane", string(task.Lane)),
		slog.Duration("duration", duration))
	return nil
}
