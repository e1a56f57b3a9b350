package scoring

import (
	"math"

	"propure/server/internal/models"
	"propure/server/internal/stats"
)

const (
	weeksPerYear = 52

	// Share of property value assumed to go to annual holding costs.
	expenseRatio = 0.1
)

// Market holds the descriptive suburb figures every score is derived from.
type Market struct {
	// Sold records that carry a sold price
	Sold       []models.PropertyRecord
	SoldPrices []float64

	TypicalValue         *float64
	MedianValue          *float64
	AverageDaysOnMarket  *float64
	AuctionClearanceRate *float64

	Renters        *float64
	Owners         *float64
	TotalDwellings *float64

	RenterProportion *float64
	VacancyRate      *float64

	AverageWeeklyRent *float64
	GrossYield        *float64
	NetYield          *float64

	SaleListings  int
	StockOnMarket *float64

	AverageWeeklyIncome    *float64
	AveragePopulation      *float64
	AverageMonthlyMortgage *float64

	Latest *models.DemographicSnapshot
}

func percent(num, den float64) *float64 {
	if den <= 0 {
		return nil
	}
	v := num / den * 100
	return &v
}

// averageOf averages the values pick returns for each snapshot, ignoring
// missing values and, when positiveOnly, non-positive ones.
func averageOf(snapshots []models.DemographicSnapshot, positiveOnly bool, pick func(models.DemographicSnapshot) *float64) *float64 {
	var values []float64
	for _, s := range snapshots {
		v, ok := finite(pick(s))
		if !ok || (positiveOnly && v <= 0) {
			continue
		}
		values = append(values, v)
	}
	return stats.Ptr(stats.Mean(values))
}

// AveragePopulation averages the positive population counts across snapshots.
func AveragePopulation(snapshots []models.DemographicSnapshot) *float64 {
	return averageOf(snapshots, true, func(s models.DemographicSnapshot) *float64 { return s.TotalPopulation })
}

// LatestSnapshot returns the snapshot with the newest ScrapedAt, or nil.
func LatestSnapshot(snapshots []models.DemographicSnapshot) *models.DemographicSnapshot {
	var latest *models.DemographicSnapshot
	for i := range snapshots {
		if latest == nil || snapshots[i].ScrapedAt.After(latest.ScrapedAt) {
			latest = &snapshots[i]
		}
	}
	return latest
}

// Summarize derives the market figures for one suburb.
func Summarize(in Inputs) Market {
	m := Market{SaleListings: len(in.Sale)}

	for _, p := range in.Sold {
		if v, ok := finite(p.SoldPrice); ok {
			m.Sold = append(m.Sold, p)
			m.SoldPrices = append(m.SoldPrices, v)
		}
	}

	m.TypicalValue = stats.Ptr(stats.Mean(m.SoldPrices))
	m.MedianValue = stats.Ptr(stats.Median(m.SoldPrices))

	var dom []float64
	var auctions int
	for _, p := range m.Sold {
		if p.DaysOnMarket != nil {
			dom = append(dom, float64(*p.DaysOnMarket))
		}
		if p.SoldAt != nil && *p.SoldAt == models.SoldAtAuction {
			auctions++
		}
	}
	m.AverageDaysOnMarket = stats.Ptr(stats.Mean(dom))
	m.AuctionClearanceRate = percent(float64(auctions), float64(len(m.Sold)))

	// Tenure counts are averaged across the available census years.
	m.Renters = averageOf(in.Demographics, false, func(s models.DemographicSnapshot) *float64 { return s.Rented })
	m.Owners = averageOf(in.Demographics, false, func(s models.DemographicSnapshot) *float64 { return s.OwnerOccupied })
	if m.Renters != nil && m.Owners != nil {
		total := *m.Renters + *m.Owners
		m.TotalDwellings = &total
		m.RenterProportion = percent(*m.Renters, total)
		m.StockOnMarket = percent(float64(m.SaleListings), total)
	}
	if m.Renters != nil {
		m.VacancyRate = percent(float64(len(in.Rentals)), *m.Renters)
	}

	m.AverageWeeklyRent = stats.Ptr(stats.Mean(ResolvedRents(in.Rentals)))
	if m.AverageWeeklyRent != nil && m.TypicalValue != nil && *m.TypicalValue > 0 {
		grossAnnual := *m.AverageWeeklyRent * weeksPerYear
		m.GrossYield = percent(grossAnnual, *m.TypicalValue)

		if m.VacancyRate != nil {
			vacancyAdjusted := grossAnnual * (1 - *m.VacancyRate/100)
			expenses := *m.TypicalValue * expenseRatio
			m.NetYield = percent(vacancyAdjusted-expenses, *m.TypicalValue)
		}
	}

	m.AverageWeeklyIncome = averageOf(in.Demographics, true, func(s models.DemographicSnapshot) *float64 { return s.MedianWeeklyHouseholdIncome })
	m.AveragePopulation = AveragePopulation(in.Demographics)
	m.AverageMonthlyMortgage = averageOf(in.Demographics, false, func(s models.DemographicSnapshot) *float64 { return s.MedianMonthlyMortgageRepayment })
	m.Latest = LatestSnapshot(in.Demographics)

	return m
}

func ptr(v float64) *float64 { return &v }

func round(v float64) float64 {
	return math.Round(v)
}

// boundedScore rounds a raw composite and clamps it to 0-100.
func boundedScore(raw float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	v := round(stats.Clamp(raw, 0, 100))
	return &v
}
