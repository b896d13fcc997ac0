// Package redis keeps reconciliation tasks in Redis: one JSON document per
// task and a sorted set of task ids scored by their next run time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
	taskpkg "github.com/frahmantamala/paygw-chargebee/internal/task"
)

const (
	TaskKeyPrefix = "paygw:task:"
	DueKey        = "paygw:tasks:due"

	// finishedTTL keeps completed and failed tasks around for inspection.
	finishedTTL = 7 * 24 * time.Hour
)

type TaskQueue struct {
	client *goredis.Client
	lease  time.Duration
}

// claimScript moves a due id to its lease deadline in one step. The id
// never leaves the due set, so a worker that dies mid-claim leaves the task
// to come back when the lease runs out. Returns 0 when another worker has
// already moved it.
var claimScript = goredis.NewScript(`
local s = redis.call('ZSCORE', KEYS[1], ARGV[1])
if s and tonumber(s) <= tonumber(ARGV[2]) then
	redis.call('ZADD', KEYS[1], 'XX', ARGV[3], ARGV[1])
	return 1
end
return 0
`)

func NewTaskQueue(client *goredis.Client) taskpkg.Queue {
	return &TaskQueue{client: client, lease: taskpkg.Lease}
}

func taskKey(id string) string {
	return TaskKeyPrefix + id
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (q *TaskQueue) Enqueue(ctx context.Context, t *task.ReconciliationTask) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return q.store(ctx, t, true)
}

// store writes the task document and, when schedule is set, its due entry
// in one MULTI/EXEC.
func (q *TaskQueue) store(ctx context.Context, t *task.ReconciliationTask, schedule bool) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if schedule {
			pipe.Set(ctx, taskKey(t.ID), data, 0)
			pipe.ZAdd(ctx, DueKey, goredis.Z{Score: score(t.NextRunAt), Member: t.ID})
			return nil
		}
		pipe.Set(ctx, taskKey(t.ID), data, finishedTTL)
		pipe.ZRem(ctx, DueKey, t.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store task %s: %w", t.ID, err)
	}
	return nil
}

// Claim pushes due ids to the lease deadline; only the caller whose claim
// script moves the score owns the task.
func (q *TaskQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*task.ReconciliationTask, error) {
	ids, err := q.client.ZRangeByScore(ctx, DueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}

	leaseEnd := now.Add(q.lease)
	claimed := make([]*task.ReconciliationTask, 0, len(ids))
	for _, id := range ids {
		won, err := claimScript.Run(ctx, q.client, []string{DueKey},
			id, now.UnixMilli(), leaseEnd.UnixMilli()).Int()
		if err != nil {
			return claimed, fmt.Errorf("claim task %s: %w", id, err)
		}
		if won == 0 {
			continue
		}

		t, err := q.Get(ctx, id)
		if errors.Is(err, taskpkg.ErrTaskNotFound) {
			q.client.ZRem(ctx, DueKey, id)
			continue
		}
		if err != nil {
			return claimed, err
		}

		if t.Status == task.StatusRunning && t.Exhausted() {
			t.MarkFailed(now, errors.New("lease expired on final attempt"), now)
			if err := q.store(ctx, t, false); err != nil {
				return claimed, err
			}
			continue
		}

		t.MarkRunning(now, leaseEnd)
		if err := q.store(ctx, t, true); err != nil {
			return claimed, err
		}
		claimed = append(claimed, t)
	}
	return claimed, nil
}

func (q *TaskQueue) Complete(ctx context.Context, t *task.ReconciliationTask, outcome string) error {
	t.MarkCompleted(time.Now().UTC(), outcome)
	return q.store(ctx, t, false)
}

func (q *TaskQueue) Fail(ctx context.Context, t *task.ReconciliationTask, cause error, nextRunAt time.Time) error {
	t.MarkFailed(time.Now().UTC(), cause, nextRunAt)
	return q.store(ctx, t, t.Status == task.StatusPending)
}

func (q *TaskQueue) Get(ctx context.Context, id string) (*task.ReconciliationTask, error) {
	data, err := q.client.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, taskpkg.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}

	var t task.ReconciliationTask
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return &t, nil
}
