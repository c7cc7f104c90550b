package destination

import (
	"context"
	"slices"
	"time"

	"github.com/PromoBrothers/Projeto-2026/internal/model"
	"github.com/PromoBrothers/Projeto-2026/internal/util"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const cacheKey = "active-groups"

// GroupLister is the part of the groups repository the resolver reads.
type GroupLister interface {
	ListActive(ctx context.Context) ([]model.DestinationGroup, error)
}

// Resolver answers "which groups should a message go to right now".
// Persisted active groups win; the configured fallback list is used only when
// none are active (or the store is unreachable). An empty answer is not an
// error: callers treat it as "cannot deliver".
type Resolver struct {
	groups   GroupLister
	fallback []string
	c        *cache.Cache
	log      *zap.Logger
}

func NewResolver(groups GroupLister, fallback []string, ttl time.Duration, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		groups:   groups,
		fallback: util.UniqueGroupIDs(fallback),
		log:      log.Named("destinations"),
	}
	if ttl > 0 {
		r.c = cache.New(ttl, 2*ttl)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context) []string {
	if r.c != nil {
		if v, ok := r.c.Get(cacheKey); ok {
			return slices.Clone(v.([]string))
		}
	}

	rows, err := r.groups.ListActive(ctx)
	if err != nil {
		// not cached: the next call should try the store again
		r.log.Error("list active groups failed, using fallback", zap.Error(err))
		return slices.Clone(r.fallback)
	}

	ids := make([]string, 0, len(rows))
	for _, g := range rows {
		ids = append(ids, g.GroupID)
	}
	ids = util.UniqueGroupIDs(ids)
	if len(ids) == 0 && len(r.fallback) > 0 {
		r.log.Warn("no active groups persisted, using fallback list", zap.Int("groups", len(r.fallback)))
		ids = r.fallback
	}

	if r.c != nil {
		r.c.SetDefault(cacheKey, ids)
	}
	// callers get their own copy; the cached slice is never handed out
	return slices.Clone(ids)
}

// Invalidate drops the cached answer; group changes call it so they apply on
// the very next delivery.
func (r *Resolver) Invalidate() {
	if r.c != nil {
		r.c.Delete(cacheKey)
	}
}
