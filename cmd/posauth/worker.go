package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vndocker/pos-AI-community/config"
	"github.com/vndocker/pos-AI-community/signin"
	"github.com/vndocker/pos-AI-community/temporal"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for the sign-in workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), opts.cfg, opts.logger)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	set, err := newActivitySet(cfg, logger)
	if err != nil {
		return err
	}

	c, err := temporal.Dial(cfg.OrchestratorURL, cfg.TemporalNamespace, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	w := temporal.NewWorker(c, cfg.TaskQueue, set.Table(), signin.DefaultPolicies())
	if err := w.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	logger.Info("temporal worker started",
		slog.String("host", cfg.OrchestratorURL),
		slog.String("task_queue", cfg.TaskQueue),
	)

	<-ctx.Done()
	w.Stop()
	logger.Info("temporal worker stopped")
	return nil
}
