package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/paygw-chargebee/internal/task"
)

var (
	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "Background workers",
	}
	workerReconcileCmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Run deferred reconciliation tasks",
		Long:  `Poll the task queue and reconcile checkout sessions whose users never came back`,
		RunE:  runReconcileWorker,
	}
	workerOnce bool
)

func init() {
	workerReconcileCmd.Flags().BoolVar(&workerOnce, "once", false, "process a single batch and exit")
	workerCmd.AddCommand(workerReconcileCmd)
	rootCmd.AddCommand(workerCmd)
}

func runReconcileWorker(cmd *cobra.Command, _ []string) error {
	deps, err := initializeDependencies()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	cfg := deps.Config.Tasks
	runner := task.NewRunner(deps.Queue, deps.Engine, task.RunnerConfig{
		Workers:      cfg.Workers,
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
		RetryBackoff: cfg.RetryBackoff,
	}, deps.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workerOnce {
		n, err := runner.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("failed to run reconciliation batch: %w", err)
		}
		deps.Logger.Info("reconciliation batch processed", "tasks", n, "backend", cfg.Backend)
		return nil
	}

	deps.Logger.Info("starting reconciliation worker", "backend", cfg.Backend)
	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	deps.Logger.Info("reconciliation worker stopped")
	return nil
}
