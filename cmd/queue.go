package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PromoBrothers/Projeto-2026/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Clone queue maintenance",
	}

	drain := &cobra.Command{
		Use:   "drain",
		Short: "Send every due queue item now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := app.Bootstrap(cfgPath)
			if err != nil {
				return err
			}
			a, err := app.Open(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.StartRecorder()

			rep, err := a.NewCloneDispatcher().ProcessNow(ctx)
			log.Info("drain finished", zap.Int("processed", rep.Processed), zap.Int("errors", rep.Errors))
			if err != nil {
				return fmt.Errorf("drain: %w", err)
			}
			return nil
		},
	}

	var days int
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete sent queue items older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := app.Bootstrap(cfgPath)
			if err != nil {
				return err
			}
			a, err := app.Open(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.QueueSvc.Prune(cmd.Context(), days)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			log.Info("prune finished", zap.Int64("deleted", n))
			return nil
		},
	}
	prune.Flags().IntVar(&days, "days", 0, "retention in days (0 = scheduler.clone_queue.retention_days)")

	cmd.AddCommand(drain, prune)
	return cmd
}
