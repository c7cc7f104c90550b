package worker

import (
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Run the scheduled product dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer stop()

		metrics.MustRegister(prometheus.DefaultRegisterer)
		a.StartRecorder()

		d := a.NewProductDispatcher()
		a.Log.Info(">> products dispatcher started",
			zap.Duration("poll", a.Cfg.Scheduler.Products.PollInterval),
			zap.String("policy", a.Cfg.Scheduler.Products.CompletionPolicy))
		d.Run(ctx)
		return nil
	},
}

var cloneQueueCmd = &cobra.Command{
	Use:   "clone-queue",
	Short: "Run the clone queue dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer stop()

		metrics.MustRegister(prometheus.DefaultRegisterer)
		a.StartRecorder()

		d := a.NewCloneDispatcher()
		a.Log.Info(">> clone queue dispatcher started",
			zap.Duration("poll", a.Cfg.Scheduler.CloneQueue.PollInterval),
			zap.Int("spacing_minutes", a.Settings.Load().SpacingMinutes))
		d.Run(ctx)
		return nil
	},
}
