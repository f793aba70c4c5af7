// Package queue is the delivery task queue: lanes ordered by notification
// priority, a polling worker, a periodic scheduler and a dead letter queue.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/zayyadi/paroll-sub001/pkg/notification"
)

// Lane is a named sub-queue. Workers drain lanes in priority order so a
// burst of low-priority traffic cannot starve critical deliveries.
type Lane string

const (
	LaneCritical Lane = "critical"
	LaneHigh     Lane = "high"
	LaneNormal   Lane = "normal"
	LaneLow      Lane = "low"
)

// DefaultLane is used when no lane is specified.
const DefaultLane = LaneNormal

// Lanes returns all lanes in drain order, most urgent first.
func Lanes() []Lane {
	return []Lane{LaneCritical, LaneHigh, LaneNormal, LaneLow}
}

// LaneFor maps a notification priority to its lane.
func LaneFor(p notification.Priority) Lane {
	switch p {
	case notification.PriorityCritical:
		return LaneCritical
	case notification.PriorityHigh:
		return LaneHigh
	case notification.PriorityLow:
		return LaneLow
	default:
		return LaneNormal
	}
}

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	switch l {
	case LaneCritical, LaneHigh, LaneNormal, LaneLow:
		return true
	}
	return false
}

// rank orders lanes for claim selection; lower drains first.
func (l Lane) rank() int {
	switch l {
	case LaneCritical:
		return 0
	case LaneHigh:
		return 1
	case LaneNormal:
		return 2
	default:
		return 3
	}
}

// TaskType distinguishes one-shot tasks from scheduler-created ones.
type TaskType string

const (
	TaskTypeOneTime  TaskType = "one-time"
	TaskTypePeriodic TaskType = "periodic"
)

// TaskStatus is the queue-level lifecycle of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is one unit of queued work.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Lane        Lane       `json:"lane"`
	TaskType    TaskType   `json:"task_type"`
	TaskName    string     `json:"task_name"`
	Payload     []byte     `json:"payload,omitempty"`
	Status      TaskStatus `json:"status"`
	RetryCount  int8       `json:"retry_count"`
	MaxRetries  int8       `json:"max_retries"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DLQTask is a task that exhausted its retries, kept for manual
// inspection and requeueing.
type DLQTask struct {
	ID         uuid.UUID `json:"id"`
	TaskID     uuid.UUID `json:"task_id"`
	Lane       Lane      `json:"lane"`
	TaskType   TaskType  `json:"task_type"`
	TaskName   string    `json:"task_name"`
	Payload    []byte    `json:"payload,omitempty"`
	Error      string    `json:"error"`
	RetryCount int8      `json:"retry_count"`
	FailedAt   time.Time `json:"failed_at"`
	CreatedAt  time.Time `json:"created_at"`
}
