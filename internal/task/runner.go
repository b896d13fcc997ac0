package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/paygw-chargebee/internal"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/payment"
	"github.com/frahmantamala/paygw-chargebee/internal/core/datamodel/task"
	"github.com/frahmantamala/paygw-chargebee/internal/reconcile"
)

type Reconciler interface {
	Reconcile(ctx context.Context, sessionID string, pc payment.PurchaseContext) (*reconcile.Result, error)
}

type RunnerConfig struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	// RetryBackoff is multiplied by the attempt count.
	RetryBackoff time.Duration
}

type Worker struct {
	ID          int
	WorkerPool  chan chan *task.ReconciliationTask
	TaskChannel chan *task.ReconciliationTask
	Logger      *slog.Logger
}

func NewWorker(id int, workerPool chan chan *task.ReconciliationTask, logger *slog.Logger) *Worker {
	return &Worker{
		ID:          id,
		WorkerPool:  workerPool,
		TaskChannel: make(chan *task.ReconciliationTask),
		Logger:      logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, *task.ReconciliationTask)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			w.WorkerPool <- w.TaskChannel

			select {
			case t := <-w.TaskChannel:
				w.Logger.Debug("worker processing task", "worker_id", w.ID, "task_id", t.ID)
				processFunc(ctx, t)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Runner struct {
	queue      Queue
	reconciler Reconciler
	config     RunnerConfig
	logger     *slog.Logger
	now        func() time.Time
}

func NewRunner(queue Queue, reconciler Reconciler, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = time.Minute
	}
	return &Runner{
		queue:      queue,
		reconciler: reconciler,
		config:     config,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run polls the queue until ctx is cancelled, then waits for in-flight tasks.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	pool := make(chan chan *task.ReconciliationTask, r.config.Workers)
	for i := 0; i < r.config.Workers; i++ {
		NewWorker(i, pool, r.logger).Start(ctx, &wg, r.process)
	}

	r.logger.Info("reconciliation runner started",
		"workers", r.config.Workers,
		"batch_size", r.config.BatchSize,
		"poll_interval", r.config.PollInterval)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		r.dispatch(ctx, pool)

		select {
		case <-ctx.Done():
			r.logger.Info("reconciliation runner shutting down")
			wg.Wait()
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, pool chan chan *task.ReconciliationTask) {
	tasks, err := r.queue.Claim(ctx, r.now(), r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to claim reconciliation tasks", "error", err)
		return
	}

	for _, t := range tasks {
		select {
		case ch := <-pool:
			select {
			case ch <- t:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			// Unsent tasks come back when their lease expires.
			return
		}
	}
}

// RunOnce claims one batch and processes it in the calling goroutine.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	tasks, err := r.queue.Claim(ctx, r.now(), r.config.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, t := range tasks {
		r.process(ctx, t)
	}
	return len(tasks), nil
}

func (r *Runner) process(ctx context.Context, t *task.ReconciliationTask) {
	log := r.logger.With("task_id", t.ID, "session_id", t.SessionID, "attempt", t.Attempts)
	// Queue bookkeeping must land even while shutting down.
	storeCtx := context.WithoutCancel(ctx)

	result, err := r.reconciler.Reconcile(ctx, t.SessionID, t.PurchaseContext())
	if err != nil {
		if internal.HasCode(err, internal.ErrCodeVerificationMismatch) {
			// A mismatch is a fact about the invoice, not a transient fault.
			t.MaxAttempts = t.Attempts
		}
		next := r.now().Add(r.config.RetryBackoff * time.Duration(t.Attempts))
		if ferr := r.queue.Fail(storeCtx, t, err, next); ferr != nil {
			log.Error("failed to reschedule reconciliation task", "error", ferr)
			return
		}
		log.Warn("reconciliation task failed", "error", err, "status", t.Status, "next_run_at", t.NextRunAt)
		return
	}

	if err := r.queue.Complete(storeCtx, t, string(result.Outcome)); err != nil {
		log.Error("failed to complete reconciliation task", "error", err)
		return
	}
	log.Info("reconciliation task completed", "outcome", result.Outcome)
}
