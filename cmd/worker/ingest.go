package worker

import (
	"fmt"

	"github.com/PromoBrothers/Projeto-2026/internal/kafka"
	"github.com/PromoBrothers/Projeto-2026/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume cloned messages from Kafka into the clone queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer stop()

		kc := a.Cfg.Kafka
		if len(kc.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is empty")
		}
		if kc.GroupID == "" {
			kc.GroupID = "promo-ingest"
		}
		consumer := kafka.NewConsumer(kc)
		defer consumer.Close()

		a.Log.Info(">> ingest started", zap.Strings("brokers", kc.Brokers), zap.String("topic", kc.Topic), zap.String("group", kc.GroupID))
		return worker.NewIngest(consumer, a.QueueSvc, a.Log).Run(ctx)
	},
}
