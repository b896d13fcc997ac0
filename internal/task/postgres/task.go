package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
	taskpkg "github.com/frahmantamala/paygw-chargebee/internal/task"
)

type TaskQueue struct {
	db    *gorm.DB
	lease time.Duration
}

func NewTaskQueue(db *gorm.DB) taskpkg.Queue {
	return &TaskQueue{db: db, lease: taskpkg.Lease}
}

func (q *TaskQueue) Enqueue(ctx context.Context, t *task.ReconciliationTask) error {
	if err := q.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Claim uses the attempt counter as an optimistic version: a task goes to the
// claimer whose update still sees the attempt count it read.
func (q *TaskQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*task.ReconciliationTask, error) {
	db := q.db.WithContext(ctx)

	var due []*task.ReconciliationTask
	err := db.Where("status IN ? AND next_run_at <= ?", []task.Status{task.StatusPending, task.StatusRunning}, now).
		Order("next_run_at").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}

	claimed := make([]*task.ReconciliationTask, 0, len(due))
	for _, t := range due {
		if t.Status == task.StatusRunning && t.Exhausted() {
			// Lease expired on the final attempt.
			err := db.Model(&task.ReconciliationTask{}).
				Where("id = ? AND attempts = ?", t.ID, t.Attempts).
				Updates(map[string]interface{}{
					"status":     task.StatusFailed,
					"last_error": "lease expired on final attempt",
					"updated_at": now,
				}).Error
			if err != nil {
				return claimed, fmt.Errorf("expire task %s: %w", t.ID, err)
			}
			continue
		}

		seen := t.Attempts
		t.MarkRunning(now, now.Add(q.lease))
		result := db.Model(&task.ReconciliationTask{}).
			Where("id = ? AND attempts = ? AND status IN ?", t.ID, seen, []task.Status{task.StatusPending, task.StatusRunning}).
			Updates(map[string]interface{}{
				"status":      t.Status,
				"attempts":    t.Attempts,
				"next_run_at": t.NextRunAt,
				"updated_at":  t.UpdatedAt,
			})
		if result.Error != nil {
			return claimed, fmt.Errorf("claim task %s: %w", t.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			continue
		}
		claimed = append(claimed, t)
	}
	return claimed, nil
}

func (q *TaskQueue) Complete(ctx context.Context, t *task.ReconciliationTask, outcome string) error {
	t.MarkCompleted(time.Now().UTC(), outcome)
	return q.save(ctx, t)
}

func (q *TaskQueue) Fail(ctx context.Context, t *task.ReconciliationTask, cause error, nextRunAt time.Time) error {
	t.MarkFailed(time.Now().UTC(), cause, nextRunAt)
	return q.save(ctx, t)
}

func (q *TaskQueue) save(ctx context.Context, t *task.ReconciliationTask) error {
	err := q.db.WithContext(ctx).Model(&task.ReconciliationTask{}).
		Where("id = ?", t.ID).
		Updates(map[string]interface{}{
			"status":       t.Status,
			"next_run_at":  t.NextRunAt,
			"max_attempts": t.MaxAttempts,
			"last_error":   t.LastError,
			"last_outcome": t.LastOutcome,
			"updated_at":   t.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

func (q *TaskQueue) Get(ctx context.Context, id string) (*task.ReconciliationTask, error) {
	var t task.ReconciliationTask
	err := q.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, taskpkg.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
