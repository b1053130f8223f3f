package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	drv "github.com/go-sql-driver/mysql"

	"phenohub/internal/adapters/observability"
	"phenohub/internal/domain"
)

// MySQL error 1452: a foreign key constraint fails on insert.
const errNoReferencedRow = 1452

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// observe records one store call; use with a named error return.
func observe(op string, start time.Time, err *error) {
	observability.ObserveStore(op, *err, time.Since(start))
}

// Repo is the live store.
type Repo struct{ db *sql.DB }

var _ domain.Store = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Live() bool { return true }

/********** metrics **********/

func (r *Repo) ListProviderIDs(ctx context.Context) (ids []int64, err error) {
	defer observe("list_provider_ids", time.Now(), &err)
	return r.listIDs(ctx, listProviderIDsSQL)
}

func (r *Repo) ListCultivarIDs(ctx context.Context) (ids []int64, err error) {
	defer observe("list_cultivar_ids", time.Now(), &err)
	return r.listIDs(ctx, listCultivarIDsSQL)
}

func (r *Repo) listIDs(ctx context.Context, q string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *Repo) ProviderStats(ctx context.Context, providerID int64) (st domain.ScoreStats, err error) {
	defer observe("provider_stats", time.Now(), &err)
	return r.stats(ctx, providerStatsSQL, providerID)
}

func (r *Repo) CultivarStats(ctx context.Context, cultivarID int64) (st domain.ScoreStats, err error) {
	defer observe("cultivar_stats", time.Now(), &err)
	return r.stats(ctx, cultivarStatsSQL, cultivarID)
}

func (r *Repo) stats(ctx context.Context, q string, id int64) (domain.ScoreStats, error) {
	var st domain.ScoreStats
	err := r.db.QueryRowContext(ctx, q, id).Scan(&st.Count, &st.Overall, &st.Shipping, &st.Vitality)
	if err != nil {
		return domain.ScoreStats{}, err
	}
	return st, nil
}

func (r *Repo) UpdateProviderMetrics(ctx context.Context, providerID int64, m domain.ProviderMetrics) (err error) {
	defer observe("update_provider_metrics", time.Now(), &err)
	_, err = r.db.ExecContext(ctx, updateProviderMetricsSQL,
		m.AvgScore, m.ShippingScore, m.VitalityScore, m.ReportCount, providerID)
	return err
}

func (r *Repo) UpdateCultivarMetrics(ctx context.Context, cultivarID int64, m domain.CultivarMetrics) (err error) {
	defer observe("update_cultivar_metrics", time.Now(), &err)
	_, err = r.db.ExecContext(ctx, updateCultivarMetricsSQL, m.AvgRating, m.ReportCount, cultivarID)
	return err
}

/********** catalog reads **********/

type scanner interface{ Scan(dest ...any) error }

func scanProvider(s scanner) (domain.Provider, error) {
	var p domain.Provider
	var website, logo sql.NullString
	if err := s.Scan(&p.ID, &p.Name, &website, &logo,
		&p.AvgScore, &p.ShippingScore, &p.VitalityScore, &p.ReportCount); err != nil {
		return domain.Provider{}, err
	}
	p.Website = strPtr(website)
	p.LogoURL = strPtr(logo)
	return p, nil
}

func scanCultivar(s scanner) (domain.Cultivar, error) {
	var c domain.Cultivar
	var breeder, img sql.NullString
	if err := s.Scan(&c.ID, &c.Name, &breeder, &img, &c.AvgRating, &c.ReportCount); err != nil {
		return domain.Cultivar{}, err
	}
	c.Breeder = strPtr(breeder)
	c.ImageURL = strPtr(img)
	return c, nil
}

func scanReport(s scanner) (domain.Report, error) {
	var rp domain.Report
	var status string
	var notes, img sql.NullString
	if err := s.Scan(&rp.ID, &rp.ProviderID, &rp.CultivarID, &status,
		&rp.Overall, &rp.Shipping, &rp.Vitality, &notes, &img, &rp.CreatedAt); err != nil {
		return domain.Report{}, err
	}
	rp.Status = domain.ReportStatus(status)
	rp.Notes = strPtr(notes)
	rp.ImageURL = strPtr(img)
	return rp, nil
}

func (r *Repo) GetProvider(ctx context.Context, id int64) (p domain.Provider, err error) {
	defer observe("get_provider", time.Now(), &err)
	p, err = scanProvider(r.db.QueryRowContext(ctx, getProviderSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Provider{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProviders(ctx context.Context, limit int) (out []domain.Provider, err error) {
	defer observe("list_providers", time.Now(), &err)
	return queryAll(ctx, r.db, scanProvider, listProvidersSQL, limit)
}

func (r *Repo) GetCultivar(ctx context.Context, id int64) (c domain.Cultivar, err error) {
	defer observe("get_cultivar", time.Now(), &err)
	c, err = scanCultivar(r.db.QueryRowContext(ctx, getCultivarSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cultivar{}, domain.ErrNotFound
	}
	return c, err
}

func (r *Repo) ListCultivars(ctx context.Context, limit int) (out []domain.Cultivar, err error) {
	defer observe("list_cultivars", time.Now(), &err)
	return queryAll(ctx, r.db, scanCultivar, listCultivarsSQL, limit)
}

func (r *Repo) ListReports(ctx context.Context, q domain.ReportsQuery) (out []domain.Report, err error) {
	defer observe("list_reports", time.Now(), &err)
	where, args := reportsWhere(q.ProviderID, q.CultivarID, q.Status, time.Time{})
	stmt := "SELECT " + reportCols + " FROM reports" + where + " ORDER BY created_at DESC, id DESC LIMIT ?"
	return queryAll(ctx, r.db, scanReport, stmt, append(args, q.Limit)...)
}

func queryAll[T any](ctx context.Context, db *sql.DB, scan func(scanner) (T, error), q string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// reportsWhere builds a WHERE clause from the non-zero filters.
func reportsWhere(providerID, cultivarID int64, st domain.ReportStatus, before time.Time) (string, []any) {
	var conds []string
	var args []any
	if providerID != 0 {
		conds = append(conds, "provider_id = ?")
		args = append(args, providerID)
	}
	if cultivarID != 0 {
		conds = append(conds, "cultivar_id = ?")
		args = append(args, cultivarID)
	}
	if st != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(st))
	}
	if !before.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, before.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

/********** report writes **********/

func (r *Repo) CreateReport(ctx context.Context, rp domain.Report) (out domain.Report, err error) {
	defer observe("create_report", time.Now(), &err)
	if rp.Status == "" {
		rp.Status = domain.StatusPending
	}
	if rp.CreatedAt.IsZero() {
		rp.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	res, err := r.db.ExecContext(ctx, insertReportSQL,
		rp.ProviderID, rp.CultivarID, string(rp.Status),
		rp.Overall, rp.Shipping, rp.Vitality,
		valStr(rp.Notes), valStr(rp.ImageURL), rp.CreatedAt,
	)
	if err != nil {
		var me *drv.MySQLError
		if errors.As(err, &me) && me.Number == errNoReferencedRow {
			return domain.Report{}, fmt.Errorf("provider %d or cultivar %d: %w", rp.ProviderID, rp.CultivarID, domain.ErrNotFound)
		}
		return domain.Report{}, err
	}
	if rp.ID, err = res.LastInsertId(); err != nil {
		return domain.Report{}, err
	}
	return rp, nil
}

func (r *Repo) SetReportStatus(ctx context.Context, id int64, st domain.ReportStatus) (err error) {
	defer observe("set_report_status", time.Now(), &err)
	res, err := r.db.ExecContext(ctx, setReportStatusSQL, string(st), id)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the status was already st
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	if err := r.db.QueryRowContext(ctx, reportExistsSQL, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}

func (r *Repo) DeleteReports(ctx context.Context, ids []int64) (n int64, err error) {
	defer observe("delete_reports", time.Now(), &err)
	if len(ids) == 0 {
		return 0, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE id IN ("+marks+")", args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repo) PurgeReports(ctx context.Context, f domain.PurgeFilter) (n int64, err error) {
	defer observe("purge_reports", time.Now(), &err)
	if f.Empty() {
		return 0, domain.ErrEmptyFilter
	}
	where, args := reportsWhere(f.ProviderID, 0, f.Status, f.OlderThan)
	res, err := r.db.ExecContext(ctx, "DELETE FROM reports"+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
