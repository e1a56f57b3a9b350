package scoring

import (
	"sort"

	"propure/server/internal/models"
	"propure/server/internal/stats"
)

var (
	professionalLabels = []string{
		"Managers",
		"Professionals",
		"Technicians and Trades Workers",
	}
	employedLabels = []string{
		"Employed, worked full-time",
		"Employed, worked part-time",
		"Employed",
	}
)

// minPriceGrowthYears is the number of distinct sold years the price growth
// window spans.
const minPriceGrowthYears = 4

// CapitalGrowth is the capital growth score with its 0-100 components.
type CapitalGrowth struct {
	PriceGrowth      *float64
	IncomeGrowth     *float64
	Infrastructure   *float64
	Workforce        *float64
	CBDProximity     *float64
	AuctionClearance *float64
	Affordability    *float64
	Score            *float64
}

// PriceGrowth is the CAGR in percent between the median sold price of the
// fourth-latest sold year and that of the latest one.
func PriceGrowth(sold []models.PropertyRecord) (float64, bool) {
	grouped := GroupSoldByYear(sold)
	years := sortedYears(grouped)
	if len(years) < minPriceGrowthYears {
		return 0, false
	}

	startYear := years[len(years)-minPriceGrowthYears]
	endYear := years[len(years)-1]

	start, _ := stats.Median(grouped[startYear])
	end, _ := stats.Median(grouped[endYear])

	cagr, ok := stats.CAGR(start, end, float64(endYear-startYear))
	if !ok {
		return 0, false
	}
	return cagr * 100, true
}

// IncomeGrowth is the CAGR in percent of median weekly household income from
// the earliest to the latest snapshot year.
func IncomeGrowth(snapshots []models.DemographicSnapshot) (float64, bool) {
	type point struct {
		year   int
		income float64
	}
	var points []point
	for _, s := range snapshots {
		income, ok := finite(s.MedianWeeklyHouseholdIncome)
		year, hasYear := s.Year()
		if !ok || !hasYear {
			continue
		}
		points = append(points, point{year: year, income: income})
	}
	if len(points) < 2 {
		return 0, false
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].year < points[j].year })

	first, last := points[0], points[len(points)-1]
	cagr, ok := stats.CAGR(first.income, last.income, float64(last.year-first.year))
	if !ok {
		return 0, false
	}
	return cagr * 100, true
}

// ProfessionalWorkforceShare averages, across snapshot years, the percentage
// of employed residents working in professional occupations.
func ProfessionalWorkforceShare(snapshots []models.DemographicSnapshot) (float64, bool) {
	byYear := make(map[int][]models.DemographicSnapshot)
	for _, s := range snapshots {
		if year, ok := s.Year(); ok {
			byYear[year] = append(byYear[year], s)
		}
	}

	var shares []float64
	for _, year := range sortedYears(byYear) {
		var employed, professionals float64
		for _, s := range byYear[year] {
			employed += s.EmploymentStatus.SumOf(employedLabels...)
			professionals += s.OccupationTopResponses.SumOf(professionalLabels...)
		}
		if employed > 0 {
			shares = append(shares, professionals/employed*100)
		}
	}
	return stats.Mean(shares)
}

// AffordabilityScore maps the price to annual income ratio, bounded to
// 3..15, onto 100..0.
func AffordabilityScore(typicalValue, weeklyIncome *float64) *float64 {
	if typicalValue == nil || weeklyIncome == nil || *typicalValue <= 0 || *weeklyIncome <= 0 {
		return nil
	}
	const minRatio, maxRatio = 3.0, 15.0

	ratio := *typicalValue / (*weeklyIncome * weeksPerYear)
	clamped := stats.Clamp(ratio, minRatio, maxRatio)
	score := round((maxRatio - clamped) / (maxRatio - minRatio) * 100)
	return &score
}

func scaled(v float64, ok bool, min, max float64) *float64 {
	if !ok {
		return nil
	}
	s := stats.NormalizeToScale(v, min, max, 0, 100)
	return &s
}

// ScoreCapitalGrowth combines the growth drivers. infrastructure is on 0-10
// and cbdProximity on 0-100; either may be nil.
func ScoreCapitalGrowth(m Market, demographics []models.DemographicSnapshot, infrastructure, cbdProximity *float64) CapitalGrowth {
	g := CapitalGrowth{CBDProximity: cbdProximity}

	pg, ok := PriceGrowth(m.Sold)
	g.PriceGrowth = scaled(pg, ok, -5, 15)

	ig, ok := IncomeGrowth(demographics)
	g.IncomeGrowth = scaled(ig, ok, 0, 10)

	if infrastructure != nil {
		v := stats.Clamp(*infrastructure, 0, 10) * 10
		g.Infrastructure = &v
	}

	wf, ok := ProfessionalWorkforceShare(demographics)
	g.Workforce = scaled(wf, ok, 20, 60)

	if m.AuctionClearanceRate != nil {
		g.AuctionClearance = scaled(*m.AuctionClearanceRate, true, 50, 90)
	}

	g.Affordability = AffordabilityScore(m.TypicalValue, m.AverageWeeklyIncome)

	g.Score = boundedScore(stats.WeightedAverage([]stats.Component{
		{Score: g.PriceGrowth, Weight: 0.25},
		{Score: g.IncomeGrowth, Weight: 0.20},
		{Score: g.Infrastructure, Weight: 0.15},
		{Score: g.Workforce, Weight: 0.15},
		{Score: g.CBDProximity, Weight: 0.10},
		{Score: g.AuctionClearance, Weight: 0.10},
		{Score: g.Affordability, Weight: 0.05},
	}))
	return g
}
