package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/kafka"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
)

// ---- queue ----

type memQueue struct {
	mu          sync.Mutex
	rows        map[string]*model.QueuedMessage
	mutations   int
	beforeClaim func(id string)
}

func newMemQueue(rows ...model.QueuedMessage) *memQueue {
	q := &memQueue{rows: map[string]*model.QueuedMessage{}}
	for i := range rows {
		r := rows[i]
		q.rows[r.ID] = &r
	}
	return q
}

func (q *memQueue) row(id string) model.QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.rows[id]
}

func (q *memQueue) setStatus(id string, st model.QueueStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rows[id].Status = st
}

func (q *memQueue) Insert(_ context.Context, m model.QueuedMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rows[m.ID] = &m
	q.mutations++
	return nil
}

func (q *memQueue) Get(_ context.Context, id string) (*model.QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (q *memQueue) List(context.Context, model.QueueStatus, int) ([]model.QueuedMessage, error) {
	return nil, nil
}

func (q *memQueue) Stats(context.Context) (model.QueueStats, error) { return model.QueueStats{}, nil }

func (q *memQueue) LastPendingDue(context.Context) (*time.Time, error) { return nil, nil }

func (q *memQueue) NextDue(_ context.Context, now time.Time) (*model.QueuedMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*model.QueuedMessage
	for _, r := range q.rows {
		if r.Status == model.StatusPending && !r.DueAt.After(now) {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].DueAt.Before(due[j].DueAt)
	})
	cp := *due[0]
	return &cp, nil
}

func (q *memQueue) Claim(_ context.Context, id string, now time.Time) (bool, error) {
	if q.beforeClaim != nil {
		q.beforeClaim(id)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	r := q.rows[id]
	if r == nil || r.Status != model.StatusPending {
		return false, nil
	}
	r.Status = model.StatusSending
	r.UpdatedAt = now
	q.mutations++
	return true, nil
}

func (q *memQueue) inFlight(id string) (*model.QueuedMessage, error) {
	r := q.rows[id]
	if r == nil || r.Status != model.StatusSending {
		return nil, repository.ErrNotFound
	}
	q.mutations++
	return r, nil
}

func (q *memQueue) MarkSent(_ context.Context, id string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, err := q.inFlight(id)
	if err != nil {
		return err
	}
	r.Status = model.StatusSent
	r.SentAt = &now
	r.LastError = nil
	r.NextRetryAt = nil
	return nil
}

func (q *memQueue) MarkFailed(_ context.Context, id string, f repository.Failure) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, err := q.inFlight(id)
	if err != nil {
		return err
	}
	r.Status = model.StatusError
	reason := f.Reason
	r.LastError = &reason
	if f.IncrementAttempts {
		r.Attempts++
	}
	r.NextRetryAt = f.NextRetryAt
	r.UpdatedAt = f.Now
	return nil
}

func (q *memQueue) Release(_ context.Context, id string, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, err := q.inFlight(id)
	if err != nil {
		return err
	}
	r.Status = model.StatusPending
	r.UpdatedAt = now
	return nil
}

func (q *memQueue) RequeueRetries(_ context.Context, now time.Time, maxAttempts int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, r := range q.rows {
		if r.Status == model.StatusError && r.NextRetryAt != nil && !r.NextRetryAt.After(now) && r.Attempts < maxAttempts {
			r.Status = model.StatusPending
			r.DueAt = *r.NextRetryAt
			r.NextRetryAt = nil
			r.LastError = nil
			n++
		}
	}
	q.mutations += int(n)
	return n, nil
}

func (q *memQueue) RecoverStale(_ context.Context, before, now time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, r := range q.rows {
		if r.Status == model.StatusSending && r.UpdatedAt.Before(before) {
			r.Status = model.StatusPending
			r.UpdatedAt = now
			n++
		}
	}
	q.mutations += int(n)
	return n, nil
}

func (q *memQueue) Requeue(context.Context, string, time.Time, time.Time) error { return nil }

func (q *memQueue) Delete(context.Context, string) (bool, error) { return false, nil }

func (q *memQueue) PruneSent(context.Context, time.Time) (int64, error) { return 0, nil }

func (q *memQueue) mutationCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mutations
}

// ---- products ----

type memProducts struct {
	mu       sync.Mutex
	rows     map[string]*model.Product
	cleared  []string
	schedule map[string]time.Time
}

func newMemProducts(ps ...model.Product) *memProducts {
	m := &memProducts{rows: map[string]*model.Product{}, schedule: map[string]time.Time{}}
	for i := range ps {
		p := ps[i]
		m.rows[p.ID] = &p
	}
	return m
}

func (m *memProducts) ListScheduled(context.Context, int) ([]model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Product
	for _, p := range m.rows {
		if p.Agendamento != nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agendamento.Before(*out[j].Agendamento) })
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*model.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) SetSchedule(_ context.Context, id string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Agendamento = at
	if at == nil {
		m.cleared = append(m.cleared, id)
	} else {
		m.schedule[id] = *at
	}
	return nil
}

func (m *memProducts) get(id string) model.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

// ---- gateway ----

type sent struct {
	group, text, image string
}

type fakeGateway struct {
	mu        sync.Mutex
	connected bool
	failures  map[string]error
	sends     []sent
	statusN   int
	onSend    func(n int)
}

func (g *fakeGateway) Connected(context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusN++
	return g.connected
}

func (g *fakeGateway) SendMessage(_ context.Context, group, text, image string) error {
	g.mu.Lock()
	g.sends = append(g.sends, sent{group, text, image})
	n := len(g.sends)
	err := g.failures[group]
	if err == nil {
		err = g.failures[text]
	}
	hook := g.onSend
	g.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (g *fakeGateway) setConnected(v bool) {
	g.mu.Lock()
	g.connected = v
	g.mu.Unlock()
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sends)
}

var errBoom = errors.New("gateway status=502 body=")

// ---- destinations / recorder ----

type staticDest []string

func (s staticDest) Resolve(context.Context) []string { return s }

type memRecorder struct {
	mu   sync.Mutex
	rows []model.DeliveryAttempt
}

func (r *memRecorder) Record(a model.DeliveryAttempt) {
	r.mu.Lock()
	r.rows = append(r.rows, a)
	r.mu.Unlock()
}

func (r *memRecorder) all() []model.DeliveryAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DeliveryAttempt(nil), r.rows...)
}

// ---- kafka ----

type memSource struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (s *memSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.msgs) > 0 {
		m := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *memSource) Commit(_ context.Context, m kafka.Message) error {
	s.mu.Lock()
	s.committed = append(s.committed, m.Offset)
	s.mu.Unlock()
	return nil
}

func (s *memSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}
