package scoring

import (
	"propure/server/internal/models"
	"propure/server/internal/stats"
)

const (
	idealSales   = 50
	idealRentals = 40

	minSalesSample   = 10
	minRentalsSample = 8
)

// Completeness is a confidence indicator, not a market signal.
type Completeness struct {
	SalesScore  float64
	RentalScore float64
	Penalty     float64
	Score       int
}

func ratioScore(actual, ideal int) float64 {
	return stats.Clamp(float64(actual)/float64(ideal), 0, 1)
}

// DataCompleteness scores sample size and field coverage of the sold records
// (those with a sold price) and the rental listings.
func DataCompleteness(sold, rentals []models.PropertyRecord) Completeness {
	var salesFields float64
	for _, p := range sold {
		present := 0
		if p.SoldPrice != nil {
			present++
		}
		if p.DaysOnMarket != nil {
			present++
		}
		if p.SoldAt != nil {
			present++
		}
		salesFields += float64(present) / 3
	}
	salesFields /= float64(max(len(sold), 1))

	var rentalFields float64
	for _, p := range rentals {
		present := 0
		if _, ok := ResolveRentalPrice(p); ok {
			present++
		}
		if p.Features.Bedrooms != nil {
			present++
		}
		rentalFields += float64(present) / 2
	}
	rentalFields /= float64(max(len(rentals), 1))

	c := Completeness{
		SalesScore:  ratioScore(len(sold), idealSales)*0.6 + salesFields*0.4,
		RentalScore: ratioScore(len(rentals), idealRentals)*0.6 + rentalFields*0.4,
		Penalty:     1,
	}
	if len(sold) < minSalesSample || len(rentals) < minRentalsSample {
		c.Penalty = 0.6
	}
	c.Score = int(round((c.SalesScore*0.55 + c.RentalScore*0.35 + c.Penalty*0.1) * 100))
	return c
}
