package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SchedulerRepository is the storage contract for periodic scheduling.
type SchedulerRepository interface {
	CreateTask(ctx context.Context, task *Task) error

	// GetPendingTaskByName returns a pending task with the given name, or
	// nil. Used to avoid double-creating periodic tasks across restarts.
	GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error)
}

// Scheduler creates queue tasks for registered periodic jobs: digest
// assembly and the archive sweep.
type Scheduler struct {
	repo     SchedulerRepository
	tasks    map[string]*scheduledTask
	mu       sync.RWMutex
	interval time.Duration
	logger   *slog.Logger
}

type scheduledTask struct {
	name            string
	schedule        Schedule
	lane            Lane
	maxRetries      int8
	lastScheduledAt *time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		repo:     repo,
		tasks:    make(map[string]*scheduledTask),
		interval: options.checkInterval,
		logger:   options.logger,
	}, nil
}

// AddTask registers a periodic task under a unique name.
func (s *Scheduler) AddTask(name string, schedule Schedule, opts ...SchedulerTaskOption) error {
	taskOpts := &schedulerTaskOptions{
		lane:       DefaultLane,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(taskOpts)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return ErrTaskAlreadyRegistered
	}

	s.tasks[name] = &scheduledTask{
		name:       name,
		schedule:   schedule,
		lane:       taskOpts.lane,
		maxRetries: taskOpts.maxRetries,
	}

	s.logger.Info("registered periodic task",
		slog.String("task_name", name),
		slog.String("schedule", schedule.String()))
	return nil
}

// Start runs the scheduler loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.checkTasks(ctx)
		}
	}
}

func (s *Scheduler) checkTasks(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*scheduledTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, task := range tasks {
		if err := s.scheduleTaskIfNeeded(ctx, task, now); err != nil {
			s.logger.Error("failed to schedule task",
				slog.String("task_name", task.name),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) scheduleTaskIfNeeded(ctx context.Context, task *scheduledTask, now time.Time) error {
	nextRun := s.calculateNextRun(task, now)
	if !s.dueFor(task, nextRun, now) {
		return nil
	}

	// A pending instance may already exist from a previous process.
	existing, err := s.repo.GetPendingTaskByName(ctx, task.name)
	if err == nil && existing != nil {
		s.updateTaskState(task.name, &existing.ScheduledAt)
		return nil
	}

	if err := s.createTask(ctx, task, nextRun); err != nil {
		return fmt.Errorf("create periodic task: %w", err)
	}
	s.updateTaskState(task.name, &nextRun)

	s.logger.Info("created periodic task",
		slog.String("task_name", task.name),
		slog.Time("scheduled_for", nextRun))
	return nil
}

func (s *Scheduler) calculateNextRun(task *scheduledTask, now time.Time) time.Time {
	if task.lastScheduledAt == nil {
		return task.schedule.Next(now)
	}
	return task.schedule.Next(*task.lastScheduledAt)
}

func (s *Scheduler) dueFor(task *scheduledTask, nextRun, now time.Time) bool {
	if task.lastScheduledAt == nil {
		return true
	}
	return !nextRun.After(now)
}

func (s *Scheduler) updateTaskState(taskName string, scheduledAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tasks[taskName]; ok {
		t.lastScheduledAt = scheduledAt
	}
}

func (s *Scheduler) createTask(ctx context.Context, task *scheduledTask, scheduledAt time.Time) error {
	return s.repo.CreateTask(ctx, &Task{
		ID:          uuid.New(),
		Lane:        task.lane,
		TaskType:    TaskTypePeriodic,
		TaskName:    task.name,
		Payload:     nil,
		Status:      TaskStatusPending,
		RetryCount:  0,
		MaxRetries:  task.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	})
}

// RemoveTask unregisters a periodic task.
func (s *Scheduler) RemoveTask(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, name)
}

// ListTasks returns the names of all registered periodic tasks.
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}
