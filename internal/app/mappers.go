package app

import (
	"time"

	"phenohub/internal/domain"
	"phenohub/internal/media"
)

/********** read models served over HTTP **********/

type ProviderView struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Website       *string     `json:"website,omitempty"`
	Logo          media.Links `json:"logo"`
	AvgScore      float64     `json:"avg_score"`
	ShippingScore float64     `json:"shipping_score"`
	VitalityScore float64     `json:"vitality_score"`
	ReportCount   int         `json:"report_count"`
}

type CultivarView struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Breeder     *string     `json:"breeder,omitempty"`
	Image       media.Links `json:"image"`
	AvgRating   float64     `json:"avg_rating"`
	ReportCount int         `json:"report_count"`
}

type ReportView struct {
	ID         int64               `json:"id"`
	ProviderID int64               `json:"provider_id"`
	CultivarID int64               `json:"cultivar_id"`
	Status     domain.ReportStatus `json:"status"`
	Overall    float64             `json:"overall"`
	Shipping   float64             `json:"shipping"`
	Vitality   float64             `json:"vitality"`
	Notes      *string             `json:"notes,omitempty"`
	Image      media.Links         `json:"image"`
	CreatedAt  time.Time           `json:"created_at"`
}

/********** domain -> view **********/

func providerView(n media.Normalizer, p domain.Provider) ProviderView {
	return ProviderView{
		ID:            p.ID,
		Name:          p.Name,
		Website:       p.Website,
		Logo:          n.NormalizePtr(p.LogoURL),
		AvgScore:      p.AvgScore,
		ShippingScore: p.ShippingScore,
		VitalityScore: p.VitalityScore,
		ReportCount:   p.ReportCount,
	}
}

func cultivarView(n media.Normalizer, c domain.Cultivar) CultivarView {
	return CultivarView{
		ID:          c.ID,
		Name:        c.Name,
		Breeder:     c.Breeder,
		Image:       n.NormalizePtr(c.ImageURL),
		AvgRating:   c.AvgRating,
		ReportCount: c.ReportCount,
	}
}

func reportView(n media.Normalizer, r domain.Report) ReportView {
	return ReportView{
		ID:         r.ID,
		ProviderID: r.ProviderID,
		CultivarID: r.CultivarID,
		Status:     r.Status,
		Overall:    r.Overall,
		Shipping:   r.Shipping,
		Vitality:   r.Vitality,
		Notes:      r.Notes,
		Image:      n.NormalizePtr(r.ImageURL),
		CreatedAt:  r.CreatedAt,
	}
}

func mapSlice[T, V any](in []T, f func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, x := range in {
		out = append(out, f(x))
	}
	return out
}

/********** request payload -> domain **********/

// ReportInput is the body of a report submission.
type ReportInput struct {
	ProviderID int64    `json:"provider_id" validate:"required,gt=0"`
	CultivarID int64    `json:"cultivar_id" validate:"required,gt=0"`
	Overall    *float64 `json:"overall" validate:"required,gte=0,lte=5"`
	Shipping   *float64 `json:"shipping" validate:"required,gte=0,lte=5"`
	Vitality   *float64 `json:"vitality" validate:"required,gte=0,lte=5"`
	Notes      *string  `json:"notes" validate:"omitempty,max=2000"`
	ImageURL   *string  `json:"image_url" validate:"omitempty,url"`
}

// StatusInput carries the raw status; domain.ParseStatus decides which
// spellings are accepted.
type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

type DeleteReportsInput struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

func mapReportInput(in ReportInput) domain.Report {
	return domain.Report{
		ProviderID: in.ProviderID,
		CultivarID: in.CultivarID,
		Status:     domain.StatusPending,
		Overall:    deref(in.Overall),
		Shipping:   deref(in.Shipping),
		Vitality:   deref(in.Vitality),
		Notes:      blankToNil(in.Notes),
		ImageURL:   blankToNil(in.ImageURL),
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func blankToNil(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
