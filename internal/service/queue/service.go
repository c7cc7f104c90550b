package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/util"
)

var (
	ErrEmptyMessage = errors.New("message has no text")
	ErrInvalidDays  = errors.New("retention days must be positive")
)

// Store is the slice of the queue repository the service needs.
type Store interface {
	Insert(ctx context.Context, m model.QueuedMessage) error
	Get(ctx context.Context, id string) (*model.QueuedMessage, error)
	List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueuedMessage, error)
	Stats(ctx context.Context) (model.QueueStats, error)
	LastPendingDue(ctx context.Context) (*time.Time, error)
	Requeue(ctx context.Context, id string, dueAt, now time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
	PruneSent(ctx context.Context, cutoff time.Time) (int64, error)
}

// Settings is the operator-editable spacing document.
type Settings interface {
	Load() config.QueueSettings
	Spacing() time.Duration
	Save(qs config.QueueSettings) error
}

// Service owns enqueueing into the clone queue and its housekeeping.
type Service struct {
	store         Store
	settings      Settings
	firstDelay    time.Duration
	retentionDays int
	now           func() time.Time

	// serializes slot computation with the insert so two concurrent enqueues
	// cannot pick the same due time
	mu sync.Mutex
}

func New(store Store, settings Settings, cfg config.CloneQueueConfig) *Service {
	fd := cfg.FirstDelay
	if fd <= 0 {
		fd = time.Minute
	}
	rd := cfg.RetentionDays
	if rd <= 0 {
		rd = 7
	}
	return &Service{
		store:         store,
		settings:      settings,
		firstDelay:    fd,
		retentionDays: rd,
		now:           time.Now,
	}
}

// Enqueue stores a cloned message as pendente. Without an explicit due time
// it is spaced after the last pending one: max(now+firstDelay, last+spacing).
func (s *Service) Enqueue(ctx context.Context, env model.CloneEnvelope) (*model.QueuedMessage, error) {
	orig := strings.TrimSpace(env.OriginalText)
	aff := strings.TrimSpace(env.AffiliateText)
	if orig == "" && aff == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	due := now.Add(s.firstDelay)
	if env.DueAt != nil {
		due = env.DueAt.UTC()
	} else {
		slot, err := s.nextSlot(ctx, now)
		if err != nil {
			return nil, err
		}
		due = slot
	}

	m := model.QueuedMessage{
		ID:              util.NewID(),
		OriginalText:    orig,
		AffiliateText:   aff,
		SourceGroup:     env.SourceGroup,
		SourceGroupName: env.SourceGroupName,
		DueAt:           due.Truncate(time.Second),
		Status:          model.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if img := strings.TrimSpace(env.ImageURL); img != "" {
		m.ImageURL = &img
	}

	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert queued message: %w", err)
	}
	metrics.QueueTransitionsTotal.WithLabelValues(model.StatusPending.String()).Inc()
	return &m, nil
}

func (s *Service) nextSlot(ctx context.Context, now time.Time) (time.Time, error) {
	due := now.Add(s.firstDelay)
	last, err := s.store.LastPendingDue(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("last pending due: %w", err)
	}
	if last != nil {
		if next := last.Add(s.settings.Spacing()); next.After(due) {
			due = next
		}
	}
	return due, nil
}

func (s *Service) List(ctx context.Context, status model.QueueStatus, limit int) ([]model.QueuedMessage, error) {
	return s.store.List(ctx, status, limit)
}

func (s *Service) Get(ctx context.Context, id string) (*model.QueuedMessage, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Stats(ctx context.Context) (model.QueueStats, error) {
	return s.store.Stats(ctx)
}

// Delete reports false when the id does not exist.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

// Requeue moves an erro row back to pendente, at dueAt or at the next free
// slot when dueAt is nil.
func (s *Service) Requeue(ctx context.Context, id string, dueAt *time.Time) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var due time.Time
	if dueAt != nil {
		due = dueAt.UTC()
	} else {
		slot, err := s.nextSlot(ctx, now)
		if err != nil {
			return time.Time{}, err
		}
		due = slot
	}
	due = due.Truncate(time.Second)
	if err := s.store.Requeue(ctx, id, due, now); err != nil {
		return time.Time{}, err
	}
	metrics.QueueTransitionsTotal.WithLabelValues(model.StatusPending.String()).Inc()
	return due, nil
}

// Prune deletes enviado rows sent more than days ago; days <= 0 uses the
// configured retention.
func (s *Service) Prune(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, ErrInvalidDays
	}
	if days == 0 {
		days = s.retentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	return s.store.PruneSent(ctx, cutoff)
}

func (s *Service) Settings() config.QueueSettings {
	return s.settings.Load()
}

func (s *Service) UpdateSettings(qs config.QueueSettings) error {
	return s.settings.Save(qs)
}
