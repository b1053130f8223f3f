package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"phenohub/internal/domain"
	"phenohub/internal/media"
)

// Recalculator is satisfied by *MetricsAggregator.
type Recalculator interface {
	RecalcAll(ctx context.Context) error
}

type ReportService struct {
	repo   domain.ReportRepository
	recalc Recalculator
	media  media.Normalizer
}

func NewReportService(r domain.ReportRepository, rc Recalculator, n media.Normalizer) *ReportService {
	return &ReportService{repo: r, recalc: rc, media: n}
}

type DeleteResult struct {
	Deleted      int64 `json:"deleted"`
	Recalculated bool  `json:"recalculated"`
}

// Submit stores a new report as PENDING. Pending reports do not count towards
// any aggregate, so no recalculation is needed here.
func (s *ReportService) Submit(ctx context.Context, in ReportInput) (ReportView, error) {
	r, err := s.repo.CreateReport(ctx, mapReportInput(in))
	if err != nil {
		return ReportView{}, err
	}
	log.Info().
		Int64("report", r.ID).
		Int64("provider", r.ProviderID).
		Int64("cultivar", r.CultivarID).
		Msg("report submitted")
	return reportView(s.media, r), nil
}

// Moderate changes a report's status and rebuilds the aggregates it feeds.
func (s *ReportService) Moderate(ctx context.Context, id int64, st domain.ReportStatus) error {
	if err := s.repo.SetReportStatus(ctx, id, st); err != nil {
		return err
	}
	log.Info().Int64("report", id).Str("status", string(st)).Msg("report moderated")
	if err := s.recalc.RecalcAll(ctx); err != nil {
		return fmt.Errorf("recalculate metrics after moderating report %d: %w", id, err)
	}
	return nil
}

// DeleteReports removes reports by id. The aggregator only runs when rows
// were actually deleted.
func (s *ReportService) DeleteReports(ctx context.Context, ids []int64) (DeleteResult, error) {
	n, err := s.repo.DeleteReports(ctx, ids)
	if err != nil {
		return DeleteResult{}, err
	}
	return s.afterDelete(ctx, n, "delete")
}

// Purge removes every report matching f, then recalculates when anything went.
func (s *ReportService) Purge(ctx context.Context, f domain.PurgeFilter) (DeleteResult, error) {
	if f.Empty() {
		return DeleteResult{}, domain.ErrEmptyFilter
	}
	n, err := s.repo.PurgeReports(ctx, f)
	if err != nil {
		return DeleteResult{}, err
	}
	return s.afterDelete(ctx, n, "purge")
}

func (s *ReportService) afterDelete(ctx context.Context, n int64, op string) (DeleteResult, error) {
	res := DeleteResult{Deleted: n}
	log.Info().Str("op", op).Int64("deleted", n).Msg("reports removed")
	if n == 0 {
		return res, nil
	}
	if err := s.recalc.RecalcAll(ctx); err != nil {
		return res, fmt.Errorf("recalculate metrics after %s: %w", op, err)
	}
	res.Recalculated = true
	return res, nil
}
