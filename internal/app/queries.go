package app

import (
	"context"
	"fmt"
	"time"

	"phenohub/internal/domain"
	"phenohub/internal/media"
)

type QueryService struct {
	repo     domain.CatalogRepository
	cache    domain.Cache
	cacheTTL time.Duration
	media    media.Normalizer
}

// NewQueryService caches views in c. A repository that reports itself as not
// live never reads or writes the cache, so stand-in data stays local.
func NewQueryService(r domain.CatalogRepository, c domain.Cache, ttl time.Duration, n media.Normalizer) *QueryService {
	if l, ok := r.(interface{ Live() bool }); ok && !l.Live() {
		c = nil
	}
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, media: n}
}

func (s *QueryService) GetProvider(ctx context.Context, id int64) (ProviderView, error) {
	return cached(ctx, s, fmt.Sprintf("provider:%d", id), func() (ProviderView, error) {
		p, err := s.repo.GetProvider(ctx, id)
		if err != nil {
			return ProviderView{}, err
		}
		return providerView(s.media, p), nil
	})
}

func (s *QueryService) ListProviders(ctx context.Context, limit int) ([]ProviderView, error) {
	return cached(ctx, s, fmt.Sprintf("providers:%d", limit), func() ([]ProviderView, error) {
		ps, err := s.repo.ListProviders(ctx, limit)
		if err != nil {
			return nil, err
		}
		return mapSlice(ps, func(p domain.Provider) ProviderView { return providerView(s.media, p) }), nil
	})
}

func (s *QueryService) GetCultivar(ctx context.Context, id int64) (CultivarView, error) {
	return cached(ctx, s, fmt.Sprintf("cultivar:%d", id), func() (CultivarView, error) {
		c, err := s.repo.GetCultivar(ctx, id)
		if err != nil {
			return CultivarView{}, err
		}
		return cultivarView(s.media, c), nil
	})
}

func (s *QueryService) ListCultivars(ctx context.Context, limit int) ([]CultivarView, error) {
	return cached(ctx, s, fmt.Sprintf("cultivars:%d", limit), func() ([]CultivarView, error) {
		cs, err := s.repo.ListCultivars(ctx, limit)
		if err != nil {
			return nil, err
		}
		return mapSlice(cs, func(c domain.Cultivar) CultivarView { return cultivarView(s.media, c) }), nil
	})
}

// ListProviderReports returns a provider's published reports, newest first.
func (s *QueryService) ListProviderReports(ctx context.Context, providerID int64, limit int) ([]ReportView, error) {
	key := fmt.Sprintf("provider:%d:reports:%d", providerID, limit)
	return cached(ctx, s, key, func() ([]ReportView, error) {
		if _, err := s.repo.GetProvider(ctx, providerID); err != nil {
			return nil, err
		}
		rs, err := s.repo.ListReports(ctx, domain.ReportsQuery{
			ProviderID: providerID,
			Status:     domain.StatusPublished,
			Limit:      limit,
		})
		if err != nil {
			return nil, err
		}
		return mapSlice(rs, func(r domain.Report) ReportView { return reportView(s.media, r) }), nil
	})
}

// ModerationQueue lists reports in a given status for admins. Never cached.
func (s *QueryService) ModerationQueue(ctx context.Context, st domain.ReportStatus, limit int) ([]ReportView, error) {
	rs, err := s.repo.ListReports(ctx, domain.ReportsQuery{Status: st, Limit: limit})
	if err != nil {
		return nil, err
	}
	return mapSlice(rs, func(r domain.Report) ReportView { return reportView(s.media, r) }), nil
}

// cached serves key from the cache or loads and stores it. Cache failures
// degrade to a plain load.
func cached[T any](ctx context.Context, s *QueryService, key string, load func() (T, error)) (T, error) {
	var out T
	if s.cache != nil {
		if ok, err := s.cache.Get(ctx, key, &out); ok && err == nil {
			return out, nil
		}
	}
	out, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}
