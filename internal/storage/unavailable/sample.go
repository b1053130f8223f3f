package unavailable

import "phenohub/internal/domain"

func str(s string) *string { return &s }

func sampleProviders() []domain.Provider {
	return []domain.Provider{
		{ID: 1, Name: "Emerald Cuttings", Website: str("https://emerald.example"),
			LogoURL: str("https://tmpfiles.org/1001/emerald.png"),
			AvgScore: 4.6, ShippingScore: 4.4, VitalityScore: 4.8, ReportCount: 27},
		{ID: 2, Name: "North Coast Clones", Website: str("https://ncc.example"),
			AvgScore: 4.1, ShippingScore: 3.8, VitalityScore: 4.3, ReportCount: 14},
		{ID: 3, Name: "Desert Root Nursery",
			LogoURL:  str("https://tmpfiles.org/dl/1003/desert.jpg"),
			AvgScore: 3.7, ShippingScore: 4.0, VitalityScore: 3.5, ReportCount: 9},
	}
}

func sampleCultivars() []domain.Cultivar {
	return []domain.Cultivar{
		{ID: 1, Name: "Gelato 41", Breeder: str("Cookies"),
			ImageURL: str("https://tmpfiles.org/2001/gelato.jpg"), AvgRating: 4.5, ReportCount: 18},
		{ID: 2, Name: "Runtz", Breeder: str("Runtz"), AvgRating: 4.2, ReportCount: 11},
		{ID: 3, Name: "Blue Dream", AvgRating: 3.9, ReportCount: 21},
	}
}
