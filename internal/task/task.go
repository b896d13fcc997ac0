// Package task runs reconciliation for checkouts whose user never came back
// from the provider. Tasks are claimed from a Queue and handed to a pool of
// workers that call the reconciliation engine.
package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
)

// Lease is how long a claimed task stays invisible to other claimers. A
// worker that dies mid-task gives the task back once its lease runs out.
const Lease = 5 * time.Minute

var ErrTaskNotFound = internal.NewNotFoundError("reconciliation task not found", internal.ErrCodeRecordNotFound)

type Queue interface {
	Enqueue(ctx context.Context, t *task.ReconciliationTask) error
	// Claim hands out at most limit due tasks. A task is handed to one
	// claimer only until its lease expires.
	Claim(ctx context.Context, now time.Time, limit int) ([]*task.ReconciliationTask, error)
	Complete(ctx context.Context, t *task.ReconciliationTask, outcome string) error
	Fail(ctx context.Context, t *task.ReconciliationTask, cause error, nextRunAt time.Time) error
	Get(ctx context.Context, id string) (*task.ReconciliationTask, error)
}

func NewTask(sessionID string, pc payment.PurchaseContext, runAt time.Time, maxAttempts int) *task.ReconciliationTask {
	return &task.ReconciliationTask{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Context:     datatypes.NewJSONType(pc),
		Status:      task.StatusPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   runAt.UTC(),
	}
}
