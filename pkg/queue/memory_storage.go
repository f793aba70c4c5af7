package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements every queue repository interface in memory,
// for tests and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
	dlq   map[uuid.UUID]*DLQTask

	byLane   map[Lane][]uuid.UUID
	byStatus map[TaskStatus][]uuid.UUID

	lockTicker *time.Ticker
	done       chan struct{}
}

// NewMemoryStorage creates an in-memory queue store.
func NewMemoryStorage() *MemoryStorage {
	ms := &MemoryStorage{
		tasks:    make(map[uuid.UUID]*Task),
		dlq:      make(map[uuid.UUID]*DLQTask),
		byLane:   make(map[Lane][]uuid.UUID),
		byStatus: make(map[TaskStatus][]uuid.UUID),
		done:     make(chan struct{}),
	}

	// Reclaims tasks whose worker died mid-processing.
	ms.lockTicker = time.NewTicker(time.Second)
	go ms.lockExpirationManager()

	return ms
}

// Close stops the background lock reaper.
func (ms *MemoryStorage) Close() error {
	close(ms.done)
	ms.lockTicker.Stop()
	return nil
}

// CreateTask implements EnqueuerRepository and SchedulerRepository.
func (ms *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	taskCopy := *task
	ms.tasks[task.ID] = &taskCopy
	ms.byLane[task.Lane] = append(ms.byLane[task.Lane], task.ID)
	ms.byStatus[task.Status] = append(ms.byStatus[task.Status], task.ID)
	return nil
}

// ClaimTask implements WorkerRepository. Lane rank wins first, earliest
// scheduled time breaks ties within a lane.
func (ms *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, lanes []Lane, lockDuration time.Duration) (*Task, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	var best *Task

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]

		if !slices.Contains(lanes, task.Lane) {
			continue
		}
		if task.ScheduledAt.After(now) {
			continue
		}
		if task.LockedUntil != nil && task.LockedUntil.After(now) {
			continue
		}

		if best == nil ||
			task.Lane.rank() < best.Lane.rank() ||
			(task.Lane.rank() == best.Lane.rank() && task.ScheduledAt.Before(best.ScheduledAt)) {
			best = task
		}
	}

	if best == nil {
		return nil, ErrNoTaskToClaim
	}

	lockUntil := now.Add(lockDuration)
	best.Status = TaskStatusProcessing
	best.LockedUntil = &lockUntil
	best.LockedBy = &workerID

	ms.removeFromStatusIndex(best.ID, TaskStatusPending)
	ms.byStatus[TaskStatusProcessing] = append(ms.byStatus[TaskStatusProcessing], best.ID)

	taskCopy := *best
	return &taskCopy, nil
}

// CompleteTask implements WorkerRepository.
func (ms *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}
	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}

	now := time.Now()
	task.Status = TaskStatusCompleted
	task.ProcessedAt = &now
	task.LockedUntil = nil
	task.LockedBy = nil

	ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
	ms.byStatus[TaskStatusCompleted] = append(ms.byStatus[TaskStatusCompleted], taskID)
	return nil
}

// FailTask implements WorkerRepository.
func (ms *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}
	if task.Status != TaskStatusProcessing {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	if task.RetryCount >= task.MaxRetries {
		task.Status = TaskStatusFailed
		ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
		ms.byStatus[TaskStatusFailed] = append(ms.byStatus[TaskStatusFailed], taskID)
	} else {
		task.Status = TaskStatusPending
		ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
		ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)

		// Linear backoff between queue-level retries.
		backoff := time.Duration(task.RetryCount) * 30 * time.Second
		task.ScheduledAt = time.Now().Add(backoff)
	}
	return nil
}

// MoveToDLQ implements WorkerRepository.
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	task, exists := ms.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	entry := &DLQTask{
		ID:         uuid.New(),
		TaskID:     task.ID,
		Lane:       task.Lane,
		TaskType:   task.TaskType,
		TaskName:   task.TaskName,
		Payload:    task.Payload,
		RetryCount: task.RetryCount,
		FailedAt:   time.Now(),
		CreatedAt:  time.Now(),
	}
	if task.Error != nil {
		entry.Error = *task.Error
	}
	ms.dlq[entry.ID] = entry

	ms.removeFromStatusIndex(taskID, task.Status)
	ms.removeFromLaneIndex(taskID, task.Lane)
	delete(ms.tasks, taskID)
	return nil
}

// GetPendingTaskByName implements SchedulerRepository.
func (ms *MemoryStorage) GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, taskID := range ms.byStatus[TaskStatusPending] {
		task := ms.tasks[taskID]
		if task.TaskName == taskName {
			taskCopy := *task
			return &taskCopy, nil
		}
	}
	return nil, nil
}

// GetTask returns a copy of a task by ID, used by tests.
func (ms *MemoryStorage) GetTask(taskID uuid.UUID) (*Task, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	task, ok := ms.tasks[taskID]
	if !ok {
		return nil, false
	}
	taskCopy := *task
	return &taskCopy, true
}

// DLQEntries returns a snapshot of the dead letter queue.
func (ms *MemoryStorage) DLQEntries() []DLQTask {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]DLQTask, 0, len(ms.dlq))
	for _, entry := range ms.dlq {
		out = append(out, *entry)
	}
	return out
}

func (ms *MemoryStorage) removeFromStatusIndex(taskID uuid.UUID, status TaskStatus) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(id uuid.UUID) bool {
		return id == taskID
	})
}

func (ms *MemoryStorage) removeFromLaneIndex(taskID uuid.UUID, lane Lane) {
	ms.byLane[lane] = slices.DeleteFunc(ms.byLane[lane], func(id uuid.UUID) bool {
		return id == taskID
	})
}

func (ms *MemoryStorage) lockExpirationManager() {
	for {
		select {
		case <-ms.lockTicker.C:
			ms.expireLocks()
		case <-ms.done:
			return
		}
	}
}

// expireLocks resets processing tasks with expired locks back to pending
// so another worker can pick them up; retry counts are preserved.
func (ms *MemoryStorage) expireLocks() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	for _, taskID := range ms.byStatus[TaskStatusProcessing] {
		task := ms.tasks[taskID]
		if task.LockedUntil != nil && task.LockedUntil.Before(now) {
			task.Status = TaskStatusPending
			task.LockedUntil = nil
			task.LockedBy = nil

			ms.removeFromStatusIndex(taskID, TaskStatusProcessing)
			ms.byStatus[TaskStatusPending] = append(ms.byStatus[TaskStatusPending], taskID)
		}
	}
}
