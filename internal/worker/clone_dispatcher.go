package worker

import (
	"context"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"go.uber.org/zap"
)

const reasonNotConnected = "gateway not connected"

type outcome int

const (
	outcomeIdle outcome = iota
	outcomeLost
	outcomeSent
	outcomeFailed
	outcomeGatewayDown
	outcomeStoreError
)

// SettingsSource is re-read at the start of every cycle.
type SettingsSource interface {
	Load() config.QueueSettings
}

// DrainReport is the outcome of a manual drain.
type DrainReport struct {
	Processed int `json:"processadas"`
	Errors    int `json:"erros"`
}

// CloneDispatcher sends clone queue rows one at a time as they come due.
type CloneDispatcher struct {
	*Loop

	queue          repository.QueueRepository
	gw             Gateway
	dest           Destinations
	send           deliverer
	settings       SettingsSource
	backoff        Backoff
	sendingTimeout time.Duration
	drainDelay     time.Duration
	now            func() time.Time
	log            *zap.Logger
}

func NewCloneDispatcher(
	cfg config.CloneQueueConfig,
	queue repository.QueueRepository,
	gw Gateway,
	dest Destinations,
	settings SettingsSource,
	rec Recorder,
	log *zap.Logger,
) *CloneDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = NopRecorder{}
	}
	log = log.Named("clone-queue")

	d := &CloneDispatcher{
		queue:          queue,
		gw:             gw,
		dest:           dest,
		settings:       settings,
		backoff:        NewBackoff(cfg.Retry),
		sendingTimeout: cfg.SendingTimeout,
		drainDelay:     cfg.DrainDelay,
		now:            time.Now,
		log:            log,
	}
	d.send = deliverer{dispatcher: model.DispatcherCloneQueue, gw: gw, rec: rec, delay: cfg.GroupDelay, now: d.clock, log: log}
	d.Loop = NewLoop("clone-queue", cfg.PollInterval, d.cycle, log)
	return d
}

func (d *CloneDispatcher) clock() time.Time { return d.now() }

func (d *CloneDispatcher) cycle(ctx context.Context) {
	d.reloadSettings()

	now := d.now()
	if n, err := d.queue.RequeueRetries(ctx, now, d.backoff.MaxAttempts()); err != nil {
		d.log.Error("requeue retries failed", zap.Error(err))
	} else if n > 0 {
		d.log.Info("retries back in queue", zap.Int64("rows", n))
		metrics.QueueTransitionsTotal.WithLabelValues(model.StatusPending.String()).Add(float64(n))
	}

	if d.sendingTimeout > 0 {
		if n, err := d.queue.RecoverStale(ctx, now.Add(-d.sendingTimeout), now); err != nil {
			d.log.Error("recover stale sends failed", zap.Error(err))
		} else if n > 0 {
			d.log.Warn("reverted rows stuck in enviando", zap.Int64("rows", n))
			metrics.QueueTransitionsTotal.WithLabelValues(model.StatusPending.String()).Add(float64(n))
		}
	}

	out, _ := d.processNext(ctx, false)
	result := "worked"
	switch out {
	case outcomeIdle, outcomeLost:
		result = "idle"
	case outcomeStoreError:
		result = "error"
	}
	metrics.PollCyclesTotal.WithLabelValues(model.DispatcherCloneQueue, result).Inc()
}

// reloadSettings re-reads the settings file so operator edits show up in the
// cycle log; enqueue reads the same file for the spacing it applies.
func (d *CloneDispatcher) reloadSettings() {
	qs := d.settings.Load()
	d.log.Debug("cycle", zap.Int("spacing_minutes", qs.SpacingMinutes))
}

// processNext claims the earliest due row and takes it out of enviando.
// In a drain, losing the gateway puts the row back to pendente instead.
func (d *CloneDispatcher) processNext(ctx context.Context, drain bool) (outcome, error) {
	now := d.now()
	m, err := d.queue.NextDue(ctx, now)
	if err != nil {
		d.log.Error("fetch next due failed", zap.Error(err))
		return outcomeStoreError, err
	}
	if m == nil {
		return outcomeIdle, nil
	}

	log := d.log.With(zap.String("item_id", m.ID), zap.Int("attempt", m.Attempts+1))

	ok, err := d.queue.Claim(ctx, m.ID, now)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		return outcomeStoreError, err
	}
	if !ok {
		log.Debug("claimed elsewhere, skipping")
		return outcomeLost, nil
	}
	metrics.QueueTransitionsTotal.WithLabelValues(model.StatusSending.String()).Inc()

	// from here on the row is ours and must leave enviando
	wctx := context.WithoutCancel(ctx)

	if !d.gw.Connected(wctx) {
		if drain {
			if err := d.queue.Release(wctx, m.ID, d.now()); err != nil {
				log.Error("release failed", zap.Error(err))
			} else {
				metrics.QueueTransitionsTotal.WithLabelValues(model.StatusPending.String()).Inc()
			}
			log.Warn("gateway not connected, drain stopped")
			return outcomeGatewayDown, ErrGatewayUnavailable
		}
		d.fail(wctx, log, m, reasonNotConnected, false, true)
		return outcomeFailed, ErrGatewayUnavailable
	}

	groups := d.dest.Resolve(wctx)
	if len(groups) == 0 {
		d.fail(wctx, log, m, ErrNoDestinations.Error(), false, false)
		return outcomeFailed, ErrNoDestinations
	}

	_, derr := d.send.deliver(wctx, m.ID, groups, m.Text(), m.Image())
	if derr != nil {
		d.fail(wctx, log, m, derr.Error(), true, true)
		return outcomeFailed, derr
	}

	if err := d.queue.MarkSent(wctx, m.ID, d.now()); err != nil {
		log.Error("mark sent failed", zap.Error(err))
		return outcomeStoreError, err
	}
	metrics.QueueTransitionsTotal.WithLabelValues(model.StatusSent.String()).Inc()
	log.Info("sent", zap.Int("groups", len(groups)))
	return outcomeSent, nil
}

// fail moves the row to erro. Only delivery failures count as an attempt;
// rows failed without retry wait for a manual re-queue.
func (d *CloneDispatcher) fail(ctx context.Context, log *zap.Logger, m *model.QueuedMessage, reason string, countAttempt, retry bool) {
	now := d.now()
	attempts := m.Attempts
	if countAttempt {
		attempts++
	}

	f := repository.Failure{Reason: reason, IncrementAttempts: countAttempt, Now: now}
	if retry && attempts < d.backoff.MaxAttempts() {
		if delay, ok := d.backoff.Delay(max(attempts, 1)); ok {
			at := now.Add(delay)
			f.NextRetryAt = &at
		}
	}

	if err := d.queue.MarkFailed(ctx, m.ID, f); err != nil {
		log.Error("mark failed failed", zap.Error(err))
		return
	}
	metrics.QueueTransitionsTotal.WithLabelValues(model.StatusError.String()).Inc()

	fields := []zap.Field{zap.String("reason", reason), zap.Int("tentativas", attempts)}
	if f.NextRetryAt != nil {
		fields = append(fields, zap.Time("retry_at", *f.NextRetryAt))
	}
	log.Warn("moved to erro", fields...)
}

// ProcessNow drains every due row synchronously. It stops early with
// ErrGatewayUnavailable if the gateway drops, or with the store error if the
// queue cannot be read.
func (d *CloneDispatcher) ProcessNow(ctx context.Context) (DrainReport, error) {
	var rep DrainReport
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		out, err := d.processNext(ctx, true)
		switch out {
		case outcomeIdle:
			return rep, nil
		case outcomeLost:
			continue
		case outcomeGatewayDown:
			return rep, err
		case outcomeStoreError:
			rep.Errors++
			return rep, err
		case outcomeSent:
			rep.Processed++
		case outcomeFailed:
			rep.Errors++
		}
		if !sleepCtx(ctx, d.drainDelay) {
			return rep, ctx.Err()
		}
	}
}
