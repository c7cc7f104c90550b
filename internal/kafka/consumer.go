package kafka

import (
	"context"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/segmentio/kafka-go"
)

// Consumer reads cloned messages for the ingest worker. Offsets are committed
// explicitly, only after a message has been queued or deliberately skipped.
type Consumer struct {
	r *kafka.Reader
}

type Message = kafka.Message

func NewConsumer(c config.KafkaConfig) *Consumer {
	return &Consumer{r: kafka.NewReader(readerConfig(c))}
}

// readerConfig maps config knobs onto the reader, filling unset ones.
func readerConfig(c config.KafkaConfig) kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       c.MinBytes,
		MaxBytes:       c.MaxBytes,
		CommitInterval: time.Duration(c.CommitInterval) * time.Millisecond,
		MaxWait:        time.Duration(c.MaxWait) * time.Millisecond,
	}
	if rc.Topic == "" {
		rc.Topic = "promo.clone"
	}
	if rc.MinBytes <= 0 {
		rc.MinBytes = 1 << 10 // 1KB
	}
	if rc.MaxBytes <= 0 {
		rc.MaxBytes = 10 << 20 // 10MB
	}
	if rc.CommitInterval <= 0 {
		rc.CommitInterval = time.Second
	}
	if rc.MaxWait <= 0 {
		rc.MaxWait = 500 * time.Millisecond
	}
	return rc
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }
