package domain

// Provider is a cutting provider. The score fields and ReportCount are derived
// from published reports and only written by the metrics aggregator.
type Provider struct {
	ID            int64
	Name          string
	Website       *string
	LogoURL       *string
	AvgScore      float64
	ShippingScore float64
	VitalityScore float64
	ReportCount   int
}

type ProviderMetrics struct {
	AvgScore      float64
	ShippingScore float64
	VitalityScore float64
	ReportCount   int
}
