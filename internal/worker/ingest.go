package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/kafka"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/service/queue"
	"go.uber.org/zap"
)

// MessageSource is the Kafka side of ingest.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, m kafka.Message) error
}

// Enqueuer stores a cloned message in the clone queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, env model.CloneEnvelope) (*model.QueuedMessage, error)
}

// Ingest moves cloned messages from Kafka into the clone queue. A message is
// committed only after it is queued, or when it can never be queued.
type Ingest struct {
	src        MessageSource
	queue      Enqueuer
	retryEvery time.Duration
	log        *zap.Logger
}

func NewIngest(src MessageSource, q Enqueuer, log *zap.Logger) *Ingest {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingest{src: src, queue: q, retryEvery: time.Second, log: log.Named("ingest")}
}

// Run blocks until ctx is cancelled.
func (w *Ingest) Run(ctx context.Context) error {
	w.log.Info("ingest started")
	for {
		m, err := w.src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error("kafka fetch failed", zap.Error(err))
			if !sleepCtx(ctx, 200*time.Millisecond) {
				return nil
			}
			continue
		}
		if !w.handle(ctx, m) {
			return nil
		}
	}
}

// handle reports false when ctx ended before the message was settled.
func (w *Ingest) handle(ctx context.Context, m kafka.Message) bool {
	log := w.log.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	var env model.CloneEnvelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Warn("bad envelope json, skipping", zap.Error(err))
		w.commit(ctx, log, m)
		return true
	}

	for {
		qm, err := w.queue.Enqueue(ctx, env)
		if err == nil {
			log.Info("queued", zap.String("item_id", qm.ID), zap.Time("due", qm.DueAt))
			break
		}
		if errors.Is(err, queue.ErrEmptyMessage) {
			log.Warn("empty message, skipping", zap.String("grupo_origem", env.SourceGroup))
			break
		}
		log.Error("enqueue failed, retrying", zap.Error(err))
		if !sleepCtx(ctx, w.retryEvery) {
			return false
		}
	}

	w.commit(ctx, log, m)
	return true
}

func (w *Ingest) commit(ctx context.Context, log *zap.Logger, m kafka.Message) {
	if err := w.src.Commit(ctx, m); err != nil {
		log.Error("commit failed", zap.Error(err))
	}
}
