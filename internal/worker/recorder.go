package worker

import (
	"context"
	"sync"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"go.uber.org/zap"
)

// NopRecorder drops attempts; used when the ClickHouse log is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(model.DeliveryAttempt) {}

// BatchRecorder buffers delivery attempts and writes them to ClickHouse in
// size- or time-bounded batches. Record never blocks a dispatcher: when the
// buffer is full the attempt is dropped and logged.
type BatchRecorder struct {
	repo      repository.CHDeliveriesRepository
	in        chan model.DeliveryAttempt
	batchSize int
	batchWait time.Duration
	log       *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBatchRecorder(repo repository.CHDeliveriesRepository, batchSize int, batchWait time.Duration, log *zap.Logger) *BatchRecorder {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchWait <= 0 {
		batchWait = 2 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BatchRecorder{
		repo:      repo,
		in:        make(chan model.DeliveryAttempt, batchSize*4),
		batchSize: batchSize,
		batchWait: batchWait,
		log:       log.Named("recorder"),
	}
}

func (r *BatchRecorder) Record(a model.DeliveryAttempt) {
	select {
	case r.in <- a:
	default:
		r.log.Warn("buffer full, dropping attempt", zap.String("item_id", a.ItemID), zap.String("group_id", a.GroupID))
	}
}

// Start runs the flusher on its own context, independent of the dispatchers'
// shutdown signal, so attempts recorded while they wind down still get written.
// Close stops it.
func (r *BatchRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		r.Run(ctx)
	}(r.done)
}

// Close flushes what is buffered and waits for the final insert. Call it only
// after every dispatcher using the recorder has stopped.
func (r *BatchRecorder) Close() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run flushes until ctx is cancelled, then drains what is buffered.
func (r *BatchRecorder) Run(ctx context.Context) {
	tick := time.NewTicker(r.batchWait)
	defer tick.Stop()

	buf := make([]model.DeliveryAttempt, 0, r.batchSize)

	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}
		if err := r.repo.InsertBatch(ctx, buf); err != nil {
			r.log.Error("batch insert failed", zap.Int("rows", len(buf)), zap.Error(err))
		} else {
			r.log.Debug("flushed", zap.Int("rows", len(buf)))
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		drain:
			for {
				select {
				case a := <-r.in:
					buf = append(buf, a)
				default:
					break drain
				}
			}
			flush(final)
			cancel()
			return

		case a := <-r.in:
			buf = append(buf, a)
			if len(buf) >= r.batchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}
