package app

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"phenohub/internal/adapters/observability"
	"phenohub/internal/domain"
)

const (
	passProvider = "provider"
	passCultivar = "cultivar"
)

// MetricsAggregator rebuilds the derived score fields of providers and
// cultivars from their published reports. It holds no state between runs, so
// a partial run is always safe to repeat.
type MetricsAggregator struct {
	store   domain.MetricsStore
	cache   domain.Cache
	workers int
	limiter *rate.Limiter
}

type AggregatorOption func(*MetricsAggregator)

// WithWorkers bounds how many entities are recomputed at once. 1 runs the
// pass strictly sequentially.
func WithWorkers(n int) AggregatorOption {
	return func(a *MetricsAggregator) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithWriteRate caps metric writes per second across a pass. 0 disables it.
func WithWriteRate(perSec int) AggregatorOption {
	return func(a *MetricsAggregator) {
		if perSec > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
		}
	}
}

// WithCache makes each pass drop cached catalog views it may have made stale.
func WithCache(c domain.Cache) AggregatorOption {
	return func(a *MetricsAggregator) { a.cache = c }
}

func NewMetricsAggregator(s domain.MetricsStore, opts ...AggregatorOption) *MetricsAggregator {
	a := &MetricsAggregator{store: s, workers: 1}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RecalcAll runs the provider pass and then the cultivar pass. The first
// failure stops the run and is returned.
func (a *MetricsAggregator) RecalcAll(ctx context.Context) error {
	if err := a.RecalcProviderMetrics(ctx); err != nil {
		return err
	}
	return a.RecalcCultivarMetrics(ctx)
}

func (a *MetricsAggregator) RecalcProviderMetrics(ctx context.Context) error {
	return a.pass(ctx, passProvider, a.store.ListProviderIDs, a.updateProvider)
}

func (a *MetricsAggregator) RecalcCultivarMetrics(ctx context.Context) error {
	return a.pass(ctx, passCultivar, a.store.ListCultivarIDs, a.updateCultivar)
}

func (a *MetricsAggregator) updateProvider(ctx context.Context, id int64) error {
	st, err := a.store.ProviderStats(ctx, id)
	if err != nil {
		return err
	}
	if st.Count == 0 {
		st = domain.ScoreStats{}
	}
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.store.UpdateProviderMetrics(ctx, id, domain.ProviderMetrics{
		AvgScore:      Round1(st.Overall),
		ShippingScore: Round1(st.Shipping),
		VitalityScore: Round1(st.Vitality),
		ReportCount:   st.Count,
	})
}

func (a *MetricsAggregator) updateCultivar(ctx context.Context, id int64) error {
	st, err := a.store.CultivarStats(ctx, id)
	if err != nil {
		return err
	}
	if st.Count == 0 {
		st = domain.ScoreStats{}
	}
	if err := a.wait(ctx); err != nil {
		return err
	}
	return a.store.UpdateCultivarMetrics(ctx, id, domain.CultivarMetrics{
		AvgRating:   Round1(st.Overall),
		ReportCount: st.Count,
	})
}

func (a *MetricsAggregator) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

func (a *MetricsAggregator) pass(
	ctx context.Context,
	name string,
	list func(context.Context) ([]int64, error),
	update func(context.Context, int64) error,
) (err error) {
	start := time.Now()
	var updated atomic.Int64
	defer func() {
		observability.ObserveRecalc(name, int(updated.Load()), err, time.Since(start))
		if updated.Load() > 0 {
			a.invalidate(ctx, name)
		}
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("pass", name).
			Int64("updated", updated.Load()).
			Dur("took", time.Since(start)).
			Msg("metrics recalculation")
	}()

	ids, err := list(ctx)
	if err != nil {
		return fmt.Errorf("list %s ids: %w", name, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil // an earlier entity already failed
			}
			if err := update(gctx, id); err != nil {
				return fmt.Errorf("recalc %s %d: %w", name, id, err)
			}
			updated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// a canceled parent with no entity failure still means an incomplete pass
	return ctx.Err()
}

// invalidate drops cached views of the pass's entity kind. Cache errors are
// logged only; stale entries expire on their TTL.
func (a *MetricsAggregator) invalidate(ctx context.Context, pass string) {
	if a.cache == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, p := range cachePrefixes(pass) {
		if err := a.cache.DelPrefix(ctx, p); err != nil {
			log.Warn().Err(err).Str("prefix", p).Msg("cache invalidation failed")
		}
	}
}

func cachePrefixes(pass string) []string {
	if pass == passProvider {
		return []string{"provider:", "providers:"}
	}
	return []string{"cultivar:", "cultivars:"}
}

// Round1 rounds to one decimal place, halves away from zero. Non-finite
// input yields 0.
func Round1(v float64) float64 {
	r := math.Round(v*10) / 10
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}
