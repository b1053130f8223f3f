package domain

type Cultivar struct {
	ID          int64
	Name        string
	Breeder     *string
	ImageURL    *string
	AvgRating   float64 // derived
	ReportCount int     // derived
}

type CultivarMetrics struct {
	AvgRating   float64
	ReportCount int
}
