package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage implements the queue repository interfaces on Postgres.
// Claims use FOR UPDATE SKIP LOCKED so multiple workers can poll the same
// lanes without contention.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a queue store over the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const taskColumns = `id, lane, task_type, task_name, payload, status,
	retry_count, max_retries, scheduled_at, locked_until, locked_by,
	processed_at, error, created_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Lane, &t.TaskType, &t.TaskName, &t.Payload, &t.Status,
		&t.RetryCount, &t.MaxRetries, &t.ScheduledAt, &t.LockedUntil,
		&t.LockedBy, &t.ProcessedAt, &t.Error, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask implements EnqueuerRepository and SchedulerRepository.
func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_tasks (
			id, lane, task_type, task_name, payload, status,
			retry_count, max_retries, scheduled_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Lane, task.TaskType, task.TaskName, task.Payload,
		task.Status, task.RetryCount, task.MaxRetries, task.ScheduledAt,
		task.CreatedAt,
	)
	return err
}

// ClaimTask implements WorkerRepository.
func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, lanes []Lane, lockDuration time.Duration) (*Task, error) {
	laneNames := make([]string, len(lanes))
	for i, l := range lanes {
		laneNames[i] = string(l)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE queue_tasks SET
			status = 'processing',
			locked_until = now() + $1,
			locked_by = $2
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE status = 'pending'
			  AND lane = ANY($3)
			  AND scheduled_at <= now()
			  AND (locked_until IS NULL OR locked_until <= now())
			ORDER BY
				CASE lane
					WHEN 'critical' THEN 0
					WHEN 'high' THEN 1
					WHEN 'normal' THEN 2
					ELSE 3
				END,
				scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		lockDuration, workerID, laneNames,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTaskToClaim
		}
		return nil, err
	}
	return task, nil
}

// CompleteTask implements WorkerRepository.
func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET
			status = 'completed',
			processed_at = now(),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1 AND status = 'processing'`,
		taskID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}
	return nil
}

// FailTask implements WorkerRepository. Linear backoff between queue-level
// retries; exhausted tasks flip to failed and await MoveToDLQ.
func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET
			retry_count = retry_count + 1,
			error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			scheduled_at = CASE WHEN retry_count + 1 >= max_retries
				THEN scheduled_at
				ELSE now() + make_interval(secs => (retry_count + 1) * 30)
			END
		WHERE id = $1 AND status = 'processing'`,
		taskID, errorMsg,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s is not in processing state", taskID)
	}
	return nil
}

// MoveToDLQ implements WorkerRepository.
func (s *PostgresStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		INSERT INTO queue_tasks_dlq (
			id, task_id, lane, task_type, task_name, payload,
			error, retry_count, failed_at, created_at
		)
		SELECT gen_random_uuid(), id, lane, task_type, task_name, payload,
			COALESCE(error, ''), retry_count, now(), now()
		FROM queue_tasks WHERE id = $1`,
		taskID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found", taskID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM queue_tasks WHERE id = $1`, taskID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetPendingTaskByName implements SchedulerRepository.
func (s *PostgresStorage) GetPendingTaskByName(ctx context.Context, taskName string) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM queue_tasks
		WHERE status = 'pending' AND task_name = $1
		ORDER BY scheduled_at
		LIMIT 1`,
		taskName,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// ReleaseExpiredLocks resets processing tasks with expired locks back to
// pending. Run it periodically so tasks from crashed workers recover.
func (s *PostgresStorage) ReleaseExpiredLocks(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE queue_tasks SET
			status = 'pending',
			locked_until = NULL,
			locked_by = NULL
		WHERE status = 'processing' AND locked_until < now()`,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
