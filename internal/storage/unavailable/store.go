// Package unavailable is the store used when no database is configured or
// reachable at startup. Catalog reads serve a small built-in sample so pages
// still render; every write and every metrics operation fails with
// domain.ErrStoreUnavailable.
package unavailable

import (
	"context"
	"sort"

	"phenohub/internal/domain"
)

type Store struct {
	providers []domain.Provider
	cultivars []domain.Cultivar
}

func New() *Store {
	return &Store{providers: sampleProviders(), cultivars: sampleCultivars()}
}

func (s *Store) Live() bool { return false }

func (s *Store) ListProviderIDs(context.Context) ([]int64, error) {
	return nil, domain.ErrStoreUnavailable
}

func (s *Store) ListCultivarIDs(context.Context) ([]int64, error) {
	return nil, domain.ErrStoreUnavailable
}

func (s *Store) ProviderStats(context.Context, int64) (domain.ScoreStats, error) {
	return domain.ScoreStats{}, domain.ErrStoreUnavailable
}

func (s *Store) CultivarStats(context.Context, int64) (domain.ScoreStats, error) {
	return domain.ScoreStats{}, domain.ErrStoreUnavailable
}

func (s *Store) UpdateProviderMetrics(context.Context, int64, domain.ProviderMetrics) error {
	return domain.ErrStoreUnavailable
}

func (s *Store) UpdateCultivarMetrics(context.Context, int64, domain.CultivarMetrics) error {
	return domain.ErrStoreUnavailable
}

func (s *Store) GetProvider(_ context.Context, id int64) (domain.Provider, error) {
	for _, p := range s.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Provider{}, domain.ErrNotFound
}

func (s *Store) ListProviders(_ context.Context, limit int) ([]domain.Provider, error) {
	out := append([]domain.Provider(nil), s.providers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgScore > out[j].AvgScore })
	return head(out, limit), nil
}

func (s *Store) GetCultivar(_ context.Context, id int64) (domain.Cultivar, error) {
	for _, c := range s.cultivars {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Cultivar{}, domain.ErrNotFound
}

func (s *Store) ListCultivars(_ context.Context, limit int) ([]domain.Cultivar, error) {
	out := append([]domain.Cultivar(nil), s.cultivars...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AvgRating > out[j].AvgRating })
	return head(out, limit), nil
}

// ListReports has no sample data; reports are never faked.
func (s *Store) ListReports(context.Context, domain.ReportsQuery) ([]domain.Report, error) {
	return []domain.Report{}, nil
}

func (s *Store) CreateReport(context.Context, domain.Report) (domain.Report, error) {
	return domain.Report{}, domain.ErrStoreUnavailable
}

func (s *Store) SetReportStatus(context.Context, int64, domain.ReportStatus) error {
	return domain.ErrStoreUnavailable
}

func (s *Store) DeleteReports(context.Context, []int64) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}

func (s *Store) PurgeReports(context.Context, domain.PurgeFilter) (int64, error) {
	return 0, domain.ErrStoreUnavailable
}

func head[T any](in []T, limit int) []T {
	if limit >= 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
