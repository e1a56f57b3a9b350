package scoring

import (
	"propure/server/internal/models"
	"propure/server/internal/stats"
)

// CashFlow is the cash flow score and the sub-scores it was built from.
type CashFlow struct {
	Yield         *float64
	Vacancy       *float64
	RentalGrowth  *float64
	DaysOnMarket  *float64
	StockOnMarket *float64
	Affordability *float64
	Score         *float64
}

// RentalGrowth is the average year over year change, in percent, of the
// mean resolved rent grouped by listing year.
func RentalGrowth(rentals []models.PropertyRecord) (float64, bool) {
	byYear := make(map[int][]float64)
	for _, p := range rentals {
		if p.ListedDate == nil {
			continue
		}
		rent, ok := ResolveRentalPrice(p)
		if !ok {
			continue
		}
		year := p.ListedDate.Year()
		byYear[year] = append(byYear[year], rent)
	}

	years := sortedYears(byYear)
	var rates []float64
	for i := 1; i < len(years); i++ {
		prev, _ := stats.Mean(byYear[years[i-1]])
		cur, _ := stats.Mean(byYear[years[i]])
		if prev > 0 {
			rates = append(rates, (cur-prev)/prev*100)
		}
	}
	return stats.Mean(rates)
}

// ScoreCashFlow combines yield, vacancy, rent growth, market speed, stock
// and affordability. The vacancy term rises with vacancy.
func ScoreCashFlow(m Market, rentals []models.PropertyRecord, affordability *float64) CashFlow {
	c := CashFlow{Affordability: affordability}

	if m.GrossYield != nil {
		c.Yield = scaled(*m.GrossYield, true, 0, 10)
	}
	if m.VacancyRate != nil {
		c.Vacancy = scaled(*m.VacancyRate, true, 0, 10)
	}

	rg, ok := RentalGrowth(rentals)
	c.RentalGrowth = scaled(rg, ok, -5, 10)

	if m.AverageDaysOnMarket != nil {
		v := stats.NormalizeInverse(*m.AverageDaysOnMarket, 0, 90, 0, 100)
		c.DaysOnMarket = &v
	}
	if m.StockOnMarket != nil {
		c.StockOnMarket = scaled(*m.StockOnMarket, true, 0, 5)
	}

	c.Score = boundedScore(stats.WeightedAverage([]stats.Component{
		{Score: c.Yield, Weight: 0.30},
		{Score: c.Vacancy, Weight: 0.25},
		{Score: c.RentalGrowth, Weight: 0.15},
		{Score: c.DaysOnMarket, Weight: 0.10},
		{Score: c.StockOnMarket, Weight: 0.10},
		{Score: c.Affordability, Weight: 0.10},
	}))
	return c
}
