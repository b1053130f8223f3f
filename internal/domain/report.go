package domain

import (
	"strings"
	"time"
)

type ReportStatus string

const (
	StatusPending   ReportStatus = "PENDING"
	StatusPublished ReportStatus = "PUBLISHED"
	StatusRejected  ReportStatus = "REJECTED"
)

// ParseStatus accepts any letter case and returns ErrInvalidStatus for unknown values.
func ParseStatus(s string) (ReportStatus, error) {
	switch st := ReportStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPublished, StatusRejected:
		return st, nil
	}
	return "", ErrInvalidStatus
}

type Report struct {
	ID         int64
	ProviderID int64
	CultivarID int64
	Status     ReportStatus
	Overall    float64
	Shipping   float64
	Vitality   float64
	Notes      *string
	ImageURL   *string
	CreatedAt  time.Time
}

// ScoreStats is the count and raw means over a set of published reports.
// Means are zero when Count is zero.
type ScoreStats struct {
	Count    int
	Overall  float64
	Shipping float64
	Vitality float64
}

// PurgeFilter selects reports for bulk deletion. Zero-valued fields are ignored;
// at least one field must be set.
type PurgeFilter struct {
	Status     ReportStatus
	ProviderID int64
	OlderThan  time.Time
}

func (f PurgeFilter) Empty() bool {
	return f.Status == "" && f.ProviderID == 0 && f.OlderThan.IsZero()
}
