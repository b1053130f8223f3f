package domain

import "context"

// MetricsStore is everything the metrics aggregator needs from storage.
type MetricsStore interface {
	ListProviderIDs(ctx context.Context) ([]int64, error)
	ListCultivarIDs(ctx context.Context) ([]int64, error)

	// Count and means over PUBLISHED reports only.
	ProviderStats(ctx context.Context, providerID int64) (ScoreStats, error)
	CultivarStats(ctx context.Context, cultivarID int64) (ScoreStats, error)

	UpdateProviderMetrics(ctx context.Context, providerID int64, m ProviderMetrics) error
	UpdateCultivarMetrics(ctx context.Context, cultivarID int64, m CultivarMetrics) error
}

type CatalogRepository interface {
	GetProvider(ctx context.Context, id int64) (Provider, error)
	ListProviders(ctx context.Context, limit int) ([]Provider, error)
	GetCultivar(ctx context.Context, id int64) (Cultivar, error)
	ListCultivars(ctx context.Context, limit int) ([]Cultivar, error)
	ListReports(ctx context.Context, q ReportsQuery) ([]Report, error)
}

type ReportRepository interface {
	// CreateReport returns ErrNotFound when the provider or cultivar does not exist.
	CreateReport(ctx context.Context, r Report) (Report, error)
	SetReportStatus(ctx context.Context, id int64, st ReportStatus) error
	DeleteReports(ctx context.Context, ids []int64) (int64, error)
	PurgeReports(ctx context.Context, f PurgeFilter) (int64, error)
}

// Store is the full data-access surface. It has a live MySQL variant and an
// unavailable variant selected once at startup.
type Store interface {
	MetricsStore
	CatalogRepository
	ReportRepository
	Live() bool
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) error
}

type ReportsQuery struct {
	ProviderID int64 // 0 = any
	CultivarID int64 // 0 = any
	Status     ReportStatus
	Limit      int
}
