package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/kafka"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/service/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	got   []model.CloneEnvelope
	fails int
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, env model.CloneEnvelope) (*model.QueuedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env.OriginalText == "" && env.AffiliateText == "" {
		return nil, queue.ErrEmptyMessage
	}
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("db down")
	}
	f.got = append(f.got, env)
	return &model.QueuedMessage{ID: "01X", DueAt: t0}, nil
}

func (f *fakeEnqueuer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestIngestCommitsAfterQueueing(t *testing.T) {
	src := &memSource{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"mensagem_original":"oi","grupo_origem":"src@g.us"}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"mensagem_original":"  "}`)},
		{Offset: 4, Value: []byte(`{"mensagem_com_afiliado":"aff"}`)},
	}}
	enq := &fakeEnqueuer{fails: 2}
	w := NewIngest(src, enq, nil)
	w.retryEvery = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(src.commits()) == 4 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3, 4}, src.commits())
	assert.Equal(t, 2, enq.count())
	assert.Equal(t, "src@g.us", enq.got[0].SourceGroup)
}

func TestBatchRecorderFlushes(t *testing.T) {
	repo := &memDeliveries{}
	r := NewBatchRecorder(repo, 2, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Record(model.DeliveryAttempt{ItemID: "a"})
	r.Record(model.DeliveryAttempt{ItemID: "b"})
	assert.Eventually(t, func() bool { return repo.total() == 2 }, time.Second, 5*time.Millisecond)

	r.Record(model.DeliveryAttempt{ItemID: "c"})
	cancel()
	<-done
	assert.Equal(t, 3, repo.total(), "pending rows flushed on shutdown")
}

func TestBatchRecorderOutlivesDispatcherShutdown(t *testing.T) {
	repo := &memDeliveries{}
	r := NewBatchRecorder(repo, 100, time.Hour, nil)
	r.Start()

	// the dispatcher's context is already gone while its last pass finishes
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := deliverer{dispatcher: model.DispatcherCloneQueue, gw: &fakeGateway{connected: true}, rec: r, now: time.Now, log: zap.NewNop()}
	_, err := d.deliver(ctx, "a", []string{"g1", "g2"}, "t", "")
	require.NoError(t, err)

	r.Close()
	assert.Equal(t, 2, repo.total())

	r.Close()
}

type memDeliveries struct {
	mu   sync.Mutex
	rows []model.DeliveryAttempt
}

func (m *memDeliveries) InsertBatch(_ context.Context, rows []model.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memDeliveries) List(context.Context, repository.DeliveryFilter) ([]model.DeliveryAttempt, error) {
	return nil, nil
}

func (m *memDeliveries) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
