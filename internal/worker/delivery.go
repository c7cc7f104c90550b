package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/gateway"
	"github.com/PromoBrothers/Projeto-2026/internal/metrics"
	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Gateway is what the dispatchers need from the messaging gateway client.
type Gateway interface {
	Connected(ctx context.Context) bool
	SendMessage(ctx context.Context, groupID, text, imageURL string) error
}

// Destinations resolves the groups a scheduled message goes to.
type Destinations interface {
	Resolve(ctx context.Context) []string
}

// Recorder receives one entry per group delivery attempt.
type Recorder interface {
	Record(a model.DeliveryAttempt)
}

type deliverer struct {
	dispatcher string
	gw         Gateway
	rec        Recorder
	delay      time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// deliver sends text to every group in order, pausing between groups. Once
// started, a pass runs to the end even if ctx is cancelled, so an item is
// never finalized after reaching only part of its groups. A "no session"
// answer stops the pass: the remaining groups are failed without being called.
// The returned error aggregates every group failure, nil if all succeeded.
func (d *deliverer) deliver(ctx context.Context, itemID string, groups []string, text, image string) ([]model.GroupResult, error) {
	passCtx := context.WithoutCancel(ctx)
	results := make([]model.GroupResult, 0, len(groups))

	var merr *multierror.Error
	var stop error
	for i, g := range groups {
		if i > 0 && stop == nil {
			sleepCtx(passCtx, d.delay)
		}

		err := stop
		if err == nil {
			err = d.gw.SendMessage(passCtx, g, text, image)
			if errors.Is(err, gateway.ErrNoSession) {
				stop = err
			}
		}

		res := model.GroupResult{GroupID: g, Success: err == nil}
		if err != nil {
			res.Error = err.Error()
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", g, err))
			metrics.DeliveriesTotal.WithLabelValues(d.dispatcher, "failed").Inc()
			d.log.Warn("group delivery failed", zap.String("item_id", itemID), zap.String("group_id", g), zap.Error(err))
		} else {
			metrics.DeliveriesTotal.WithLabelValues(d.dispatcher, "sent").Inc()
			d.log.Info("delivered", zap.String("item_id", itemID), zap.String("group_id", g))
		}
		results = append(results, res)

		d.rec.Record(model.DeliveryAttempt{
			Dispatcher:  d.dispatcher,
			ItemID:      itemID,
			GroupID:     g,
			Success:     res.Success,
			Error:       res.Error,
			AttemptedAt: d.now().UTC(),
		})
	}

	if merr == nil {
		return results, nil
	}
	total := len(groups)
	merr.ErrorFormat = func(es []error) string {
		parts := make([]string, len(es))
		for i, e := range es {
			parts[i] = e.Error()
		}
		return fmt.Sprintf("failed on %d of %d groups: %s", len(es), total, strings.Join(parts, "; "))
	}
	return results, merr
}

func countResults(rs []model.GroupResult) (sent, failed int) {
	for _, r := range rs {
		if r.Success {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}
