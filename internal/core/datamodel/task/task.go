package task

import (
	"time"

	"gorm.io/datatypes"

	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ReconciliationTask is a durable request to reconcile one checkout session
// later, independent of whether the user ever returns from the provider.
type ReconciliationTask struct {
	ID          string                                      `gorm:"column:id;primaryKey;size:36" json:"id"`
	SessionID   string                                      `gorm:"column:session_id;size:255;not null;index" json:"session_id"`
	Context     datatypes.JSONType[payment.PurchaseContext] `gorm:"column:context;not null" json:"context"`
	Status      Status                                      `gorm:"column:status;size:20;not null;index:ix_paygw_tasks_due,priority:1" json:"status"`
	Attempts    int                                         `gorm:"column:attempts;not null;default:0" json:"attempts"`
	MaxAttempts int                                         `gorm:"column:max_attempts;not null;default:0" json:"max_attempts"`
	NextRunAt   time.Time                                   `gorm:"column:next_run_at;not null;index:ix_paygw_tasks_due,priority:2" json:"next_run_at"`
	LastError   string                                      `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	LastOutcome string                                      `gorm:"column:last_outcome;size:20" json:"last_outcome,omitempty"`
	CreatedAt   time.Time                                   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time                                   `gorm:"column:updated_at" json:"updated_at"`
}

func (ReconciliationTask) TableName() string {
	return "paygw_chargebee_tasks"
}

func (t *ReconciliationTask) PurchaseContext() payment.PurchaseContext {
	return t.Context.Data()
}

// Exhausted reports whether the task may not be retried again. Zero
// MaxAttempts means unlimited.
func (t *ReconciliationTask) Exhausted() bool {
	return t.MaxAttempts > 0 && t.Attempts >= t.MaxAttempts
}

func (t *ReconciliationTask) MarkRunning(now, leaseUntil time.Time) {
	t.Status = StatusRunning
	t.Attempts++
	t.NextRunAt = leaseUntil
	t.UpdatedAt = now
}

func (t *ReconciliationTask) MarkCompleted(now time.Time, outcome string) {
	t.Status = StatusCompleted
	t.LastOutcome = outcome
	t.LastError = ""
	t.UpdatedAt = now
}

// MarkFailed schedules a retry at nextRunAt, or fails the task for good once
// its attempts are used up.
func (t *ReconciliationTask) MarkFailed(now time.Time, cause error, nextRunAt time.Time) {
	t.LastError = cause.Error()
	t.UpdatedAt = now
	if t.Exhausted() {
		t.Status = StatusFailed
		return
	}
	t.Status = StatusPending
	t.NextRunAt = nextRunAt
}
