package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/util"
	"go.uber.org/zap"
)

// SendReport is the outcome of a manual send.
type SendReport struct {
	Results []model.GroupResult `json:"resultados"`
	Sent    int                 `json:"total_enviado"`
	Failed  int                 `json:"total_falhou"`
}

// ProductDispatcher delivers scheduled products once their agendamento is due.
type ProductDispatcher struct {
	*Loop

	products repository.ProductsRepository
	gw       Gateway
	dest     Destinations
	send     deliverer
	manual   deliverer
	policy   string
	backoff  Backoff
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger

	// failed delivery passes per product under all_or_nothing; in memory only,
	// a restart gives every product a fresh budget
	mu       sync.Mutex
	attempts map[string]int
}

func NewProductDispatcher(
	cfg config.ProductsConfig,
	loc *time.Location,
	products repository.ProductsRepository,
	gw Gateway,
	dest Destinations,
	rec Recorder,
	log *zap.Logger,
) *ProductDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	if loc == nil {
		loc = time.UTC
	}
	policy := cfg.CompletionPolicy
	if policy == "" {
		policy = config.PolicyBestEffort
	}
	log = log.Named("products")

	d := &ProductDispatcher{
		products: products,
		gw:       gw,
		dest:     dest,
		policy:   policy,
		backoff:  NewBackoff(cfg.Retry),
		loc:      loc,
		now:      time.Now,
		log:      log,
		attempts: make(map[string]int),
	}
	d.send = deliverer{dispatcher: model.DispatcherProducts, gw: gw, rec: rec, delay: cfg.GroupDelay, now: d.clock, log: log}
	d.manual = deliverer{dispatcher: model.DispatcherManual, gw: gw, rec: rec, delay: cfg.GroupDelay, now: d.clock, log: log}
	d.Loop = NewLoop("products", cfg.PollInterval, d.cycle, log)
	return d
}

func (d *ProductDispatcher) clock() time.Time { return d.now() }

func (d *ProductDispatcher) cycle(ctx context.Context) {
	items, err := d.products.ListScheduled(ctx, 0)
	if err != nil {
		d.log.Error("list scheduled products failed", zap.Error(err))
		metrics.PollCyclesTotal.WithLabelValues(model.DispatcherProducts, "error").Inc()
		return
	}

	now := d.now().In(d.loc)
	due := make([]model.Product, 0, len(items))
	for _, p := range items {
		if p.Due(now) {
			due = append(due, p)
		}
	}
	if len(due) == 0 {
		metrics.PollCyclesTotal.WithLabelValues(model.DispatcherProducts, "idle").Inc()
		return
	}

	if !d.gw.Connected(ctx) {
		d.log.Warn("gateway not connected, leaving products scheduled", zap.Int("due", len(due)))
		metrics.PollCyclesTotal.WithLabelValues(model.DispatcherProducts, "skipped").Inc()
		return
	}

	groups := d.dest.Resolve(ctx)
	for _, p := range due {
		if ctx.Err() != nil {
			return
		}
		d.deliverProduct(ctx, p, groups)
	}
	metrics.PollCyclesTotal.WithLabelValues(model.DispatcherProducts, "worked").Inc()
}

func (d *ProductDispatcher) deliverProduct(ctx context.Context, p model.Product, groups []string) {
	log := d.log.With(
		zap.String("item_id", p.ID),
		zap.String("titulo", p.ShortTitle()),
		zap.Time("agendamento", p.Agendamento.In(d.loc)),
	)

	text := p.Text()
	if text == "" {
		log.Error("skipping product", zap.Error(ErrMissingText))
		return
	}
	if len(groups) == 0 {
		log.Warn("skipping product", zap.Error(ErrNoDestinations))
		return
	}

	log.Info("due, delivering", zap.Int("groups", len(groups)))
	_, derr := d.send.deliver(ctx, p.ID, groups, text, p.Image())

	// the outcome is written even if shutdown started mid-pass
	wctx := context.WithoutCancel(ctx)

	if derr == nil || d.policy == config.PolicyBestEffort {
		if derr != nil {
			log.Warn("partial delivery, clearing schedule anyway", zap.Error(derr))
		}
		d.complete(wctx, log, p.ID)
		return
	}

	n := d.bumpAttempts(p.ID)
	delay, ok := d.backoff.Delay(n)
	if !ok {
		log.Error("giving up after repeated failures, needs manual action",
			zap.Int("attempt", n), zap.Error(derr))
		d.complete(wctx, log, p.ID)
		return
	}
	next := d.now().Add(delay)
	if err := d.products.SetSchedule(wctx, p.ID, &next); err != nil {
		log.Error("reschedule failed", zap.Error(err))
		return
	}
	log.Warn("delivery failed, rescheduled",
		zap.Int("attempt", n), zap.Time("next", next.In(d.loc)), zap.Error(derr))
}

func (d *ProductDispatcher) complete(ctx context.Context, log *zap.Logger, id string) {
	d.mu.Lock()
	delete(d.attempts, id)
	d.mu.Unlock()

	if err := d.products.SetSchedule(ctx, id, nil); err != nil {
		log.Error("clear schedule failed", zap.Error(err))
		return
	}
	log.Info("schedule cleared")
}

func (d *ProductDispatcher) bumpAttempts(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts[id]++
	return d.attempts[id]
}

// SendNow delivers a product right away to an explicit group list. Schedule
// state is left untouched.
func (d *ProductDispatcher) SendNow(ctx context.Context, productID string, groups []string) (SendReport, error) {
	p, err := d.products.GetByID(ctx, productID)
	if err != nil {
		return SendReport{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	text := p.Text()
	if text == "" {
		return SendReport{}, ErrMissingText
	}
	groups = util.UniqueGroupIDs(groups)
	if len(groups) == 0 {
		return SendReport{}, ErrNoDestinations
	}

	results, _ := d.manual.deliver(ctx, p.ID, groups, text, p.Image())
	sent, failed := countResults(results)
	return SendReport{Results: results, Sent: sent, Failed: failed}, nil
}
