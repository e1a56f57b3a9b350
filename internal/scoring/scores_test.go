package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propure/server/internal/models"
)

func snapshot(year int) models.DemographicSnapshot {
	return models.DemographicSnapshot{
		Postcode:  "3121",
		ScrapedAt: time.Date(year, time.August, 1, 0, 0, 0, 0, time.UTC),
	}
}

func auctionSales(years ...int) []models.PropertyRecord {
	var sold []models.PropertyRecord
	for i, year := range years {
		r := soldRecord(float64(500000+i*50000), year)
		r.SoldAt = soldAt(models.SoldAtAuction)
		sold = append(sold, r)
	}
	return sold
}

func TestPriceGrowth(t *testing.T) {
	_, ok := PriceGrowth(auctionSales(2020, 2021, 2022))
	assert.False(t, ok, "three sold years are not enough")

	sold := []models.PropertyRecord{
		soldRecord(100, 2019),
		soldRecord(90, 2020),
		soldRecord(150, 2021),
		soldRecord(200, 2022),
		soldRecord(190, 2023),
		soldRecord(210, 2023),
	}
	got, ok := PriceGrowth(sold)
	require.True(t, ok)
	// 2020 median 90 to 2023 median 200 over 3 years
	assert.InDelta(t, 30.5, got, 0.1)
}

func TestCapitalGrowth_ThreeYearsRenormalizes(t *testing.T) {
	m := Summarize(Inputs{Sold: auctionSales(2020, 2021, 2022)})

	g := ScoreCapitalGrowth(m, nil, nil, fp(50))

	assert.Nil(t, g.PriceGrowth)
	assert.Nil(t, g.IncomeGrowth)
	assert.Nil(t, g.Workforce)
	assert.Nil(t, g.Affordability)
	require.NotNil(t, g.AuctionClearance)
	assert.Equal(t, 100.0, *g.AuctionClearance)
	require.NotNil(t, g.Score)
	// (50*0.10 + 100*0.10) / 0.20
	assert.Equal(t, 75.0, *g.Score)
}

func TestCapitalGrowth_FourYearsAddsPriceTerm(t *testing.T) {
	m := Summarize(Inputs{Sold: auctionSales(2020, 2021, 2022, 2023)})

	g := ScoreCapitalGrowth(m, nil, nil, nil)

	require.NotNil(t, g.PriceGrowth)
	require.NotNil(t, g.Score)
	assert.GreaterOrEqual(t, *g.Score, 0.0)
	assert.LessOrEqual(t, *g.Score, 100.0)
}

func TestCapitalGrowth_AllMissingIsNil(t *testing.T) {
	g := ScoreCapitalGrowth(Summarize(Inputs{}), nil, nil, nil)
	assert.Nil(t, g.Score)
}

func TestCapitalGrowth_InfrastructureIsRescaled(t *testing.T) {
	g := ScoreCapitalGrowth(Summarize(Inputs{}), nil, fp(4.2), nil)

	require.NotNil(t, g.Infrastructure)
	assert.InDelta(t, 42.0, *g.Infrastructure, 1e-9)
	assert.Equal(t, 42.0, *g.Score)
}

func TestIncomeGrowth(t *testing.T) {
	a := snapshot(2016)
	a.MedianWeeklyHouseholdIncome = fp(1000)
	b := snapshot(2021)
	b.MedianWeeklyHouseholdIncome = fp(1500)
	c := snapshot(2018)

	got, ok := IncomeGrowth([]models.DemographicSnapshot{b, c, a})
	require.True(t, ok)
	assert.InDelta(t, 8.45, got, 0.01)

	_, ok = IncomeGrowth([]models.DemographicSnapshot{a})
	assert.False(t, ok)

	same := snapshot(2016)
	same.MedianWeeklyHouseholdIncome = fp(1200)
	_, ok = IncomeGrowth([]models.DemographicSnapshot{a, same})
	assert.False(t, ok, "snapshots from one year have no span")
}

func TestProfessionalWorkforceShare(t *testing.T) {
	s2016 := snapshot(2016)
	s2016.EmploymentStatus = models.Distribution{
		{Label: "Employed, worked full-time", Count: 600},
		{Label: "Employed, worked part-time", Count: 400},
		{Label: "Unemployed", Count: 50},
	}
	s2016.OccupationTopResponses = models.Distribution{
		{Label: "Managers", Count: 150},
		{Label: "Professionals", Count: 250},
		{Label: "Labourers", Count: 100},
	}
	s2021 := snapshot(2021)
	s2021.EmploymentStatus = models.Distribution{{Label: "Employed", Count: 1000}}
	s2021.OccupationTopResponses = models.Distribution{{Label: "Technicians and Trades Workers", Count: 200}}

	got, ok := ProfessionalWorkforceShare([]models.DemographicSnapshot{s2016, s2021})
	require.True(t, ok)
	// 40% and 20%
	assert.InDelta(t, 30.0, got, 1e-9)

	_, ok = ProfessionalWorkforceShare([]models.DemographicSnapshot{snapshot(2021)})
	assert.False(t, ok)
}

func TestAffordabilityScore(t *testing.T) {
	tests := []struct {
		name     string
		typical  *float64
		income   *float64
		expected *float64
	}{
		{name: "ratio of five", typical: fp(520000), income: fp(2000), expected: fp(83)},
		{name: "cheaper than floor", typical: fp(100000), income: fp(2000), expected: fp(100)},
		{name: "dearer than ceiling", typical: fp(5000000), income: fp(2000), expected: fp(0)},
		{name: "missing income", typical: fp(520000), income: nil, expected: nil},
		{name: "missing value", typical: nil, income: fp(2000), expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AffordabilityScore(tt.typical, tt.income))
		})
	}
}

func TestRentalGrowth(t *testing.T) {
	rentals := []models.PropertyRecord{
		{Price: "$400 pw", ListedDate: date(2022, time.February, 1)},
		{PriceFrom: fp(380), PriceTo: fp(420), ListedDate: date(2022, time.May, 1)},
		{Price: "$440 pw", ListedDate: date(2023, time.January, 9)},
		{Price: "$999 pw"},
	}

	got, ok := RentalGrowth(rentals)
	require.True(t, ok)
	assert.InDelta(t, 10.0, got, 1e-9)

	c := ScoreCashFlow(Summarize(Inputs{Rentals: rentals}), rentals, nil)
	require.NotNil(t, c.RentalGrowth)
	assert.Equal(t, 100.0, *c.RentalGrowth)
}

func TestCashFlow_AllMissingIsNil(t *testing.T) {
	c := ScoreCashFlow(Summarize(Inputs{}), nil, nil)
	assert.Nil(t, c.Score)
}

func TestCashFlow_VacancyIsScoredDirectly(t *testing.T) {
	low := ScoreCashFlow(Market{VacancyRate: fp(1)}, nil, nil)
	high := ScoreCashFlow(Market{VacancyRate: fp(8)}, nil, nil)

	require.NotNil(t, low.Score)
	require.NotNil(t, high.Score)
	assert.Greater(t, *high.Score, *low.Score)
}

func TestMarketRisk(t *testing.T) {
	assert.Nil(t, MarketRisk(Market{}))

	got := MarketRisk(Market{VacancyRate: fp(6), AverageDaysOnMarket: fp(45)})
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got)

	got = MarketRisk(Market{VacancyRate: fp(2.5), AverageDaysOnMarket: fp(95)})
	assert.Equal(t, 45.0, *got)

	got = MarketRisk(Market{AverageDaysOnMarket: fp(10)})
	assert.Equal(t, 10.0, *got)
}

func TestMarketRisk_VolatilityAddsUpToThirty(t *testing.T) {
	sold := []models.PropertyRecord{
		soldRecord(100, 2020),
		soldRecord(150, 2021),
		soldRecord(100, 2022),
	}
	m := Summarize(Inputs{Sold: sold})

	got := MarketRisk(m)
	require.NotNil(t, got)
	// tiers 5 + 5, growth rates +50% and -33% saturate the volatility range
	assert.InDelta(t, 40.0, *got, 1e-9)
}

func lowRiskSnapshot() models.DemographicSnapshot {
	s := snapshot(2021)
	s.MedianWeeklyHouseholdIncome = fp(2000)
	s.MedianMonthlyMortgageRepayment = fp(2600)
	s.OwnerOccupied = fp(700)
	s.Rented = fp(300)
	s.TenureType = models.Distribution{
		{Label: "Owned outright", Count: 500},
		{Label: "Owned with a mortgage", Count: 200},
		{Label: "Rented", Count: 300},
	}
	s.IndustryTopResponses = models.Distribution{
		{Label: "Hospitals", Count: 50},
		{Label: "Primary Education", Count: 50},
	}
	s.DwellingStructure = models.Distribution{{Label: "Separate house", Count: 100}}
	return s
}

func TestInterestRateSensitivity(t *testing.T) {
	s := lowRiskSnapshot()

	got, ok := InterestRateSensitivity(&s, fp(624000))
	require.True(t, ok)
	// burden 0.3 -> 50, price to income 6 -> 25, mortgage ratio 0.2 -> 0
	assert.Equal(t, 29.0, got)

	_, ok = InterestRateSensitivity(&s, nil)
	assert.False(t, ok)
	_, ok = InterestRateSensitivity(nil, fp(624000))
	assert.False(t, ok)
}

func TestFinancialRisk(t *testing.T) {
	s := lowRiskSnapshot()
	m := Market{
		TypicalValue:           fp(624000),
		AverageMonthlyMortgage: fp(2600),
		Latest:                 &s,
	}

	got := FinancialRisk(m, fp(80))
	require.NotNil(t, got)
	// ltv tier 5 + positive cash flow 5 + 29 * 0.3
	assert.InDelta(t, 18.7, *got, 1e-9)

	got = FinancialRisk(m, fp(30))
	assert.InDelta(t, 43.7, *got, 1e-9)

	got = FinancialRisk(Market{}, fp(55))
	require.NotNil(t, got)
	assert.Equal(t, 20.0, *got)

	assert.Nil(t, FinancialRisk(Market{}, nil))
}

func TestLiquidityRisk(t *testing.T) {
	assert.Nil(t, LiquidityRisk(Market{}))
	assert.Nil(t, LiquidityRisk(Market{TotalDwellings: fp(1000)}))

	m := Market{
		Sold:                 make([]models.PropertyRecord, 50),
		TotalDwellings:       fp(1000),
		AverageDaysOnMarket:  fp(70),
		StockOnMarket:        fp(4.5),
		AuctionClearanceRate: fp(67.5),
	}
	got := LiquidityRisk(m)
	require.NotNil(t, got)
	// turnover 0.05 -> 50, dom 50, stock 50, auction 50
	assert.Equal(t, 50.0, *got)
}

func TestLiquidityRisk_UnknownTermsDropOut(t *testing.T) {
	m := Market{
		Sold:                 make([]models.PropertyRecord, 50),
		TotalDwellings:       fp(1000),
		StockOnMarket:        fp(4.5),
		AuctionClearanceRate: fp(67.5),
	}
	got := LiquidityRisk(m)
	require.NotNil(t, got)
	assert.Equal(t, 50.0, *got, "unknown days on market must not count as zero")

	m.AuctionClearanceRate = nil
	m.StockOnMarket = nil
	got = LiquidityRisk(m)
	require.NotNil(t, got)
	// turnover alone
	assert.Equal(t, 50.0, *got)
}

func TestConcentrationRisk(t *testing.T) {
	s := lowRiskSnapshot()

	got := ConcentrationRisk(&s)
	require.NotNil(t, got)
	// industry 0.5 -> 25, dwelling 1 -> 30, renter share 0.3 -> 20 * 0.2
	assert.Equal(t, 59.0, *got)

	assert.Nil(t, ConcentrationRisk(nil))
	empty := snapshot(2021)
	assert.Nil(t, ConcentrationRisk(&empty))
}

func TestConcentrationRisk_MissingIndustryRenormalizes(t *testing.T) {
	s := lowRiskSnapshot()
	s.IndustryTopResponses = nil

	got := ConcentrationRisk(&s)
	require.NotNil(t, got)
	// (dwelling 100 * 0.3 + renter share 20 * 0.2) / 0.5
	assert.Equal(t, 68.0, *got)
}

func TestInterestRateSensitivity_UnknownTenureDropsOut(t *testing.T) {
	s := lowRiskSnapshot()
	s.OwnerOccupied = nil
	s.Rented = nil

	got, ok := InterestRateSensitivity(&s, fp(624000))
	require.True(t, ok)
	// (50 * 0.4 + 25 * 0.35) / 0.75
	assert.Equal(t, 38.0, got)
}

func TestSummarize_PartialTenure(t *testing.T) {
	owners := snapshot(2021)
	owners.OwnerOccupied = fp(800)

	m := Summarize(Inputs{
		Sale:         make([]models.PropertyRecord, 3),
		Demographics: []models.DemographicSnapshot{owners},
	})

	require.NotNil(t, m.Owners)
	assert.Nil(t, m.Renters)
	assert.Nil(t, m.RenterProportion)
	assert.Nil(t, m.TotalDwellings)
	assert.Nil(t, m.StockOnMarket)
	assert.Nil(t, m.VacancyRate)
}

func TestScoreRisk_AllMissingIsNil(t *testing.T) {
	r := ScoreRisk(Market{}, nil)
	assert.Nil(t, r.Score)
	assert.Nil(t, r.Breakdown.MarketRisk)
	assert.Nil(t, r.Breakdown.FinancialRisk)
	assert.Nil(t, r.Breakdown.LiquidityRisk)
	assert.Nil(t, r.Breakdown.ConcentrationRisk)
}

func TestScoreRisk_RenormalizesOverPresentSubRisks(t *testing.T) {
	s := lowRiskSnapshot()
	m := Market{VacancyRate: fp(6), AverageDaysOnMarket: fp(45), Latest: &s}

	r := ScoreRisk(m, nil)

	require.NotNil(t, r.Score)
	assert.Nil(t, r.Breakdown.FinancialRisk)
	assert.Nil(t, r.Breakdown.LiquidityRisk)
	// (50 * 0.4 + 59 * 0.1) / 0.5
	assert.Equal(t, 52.0, *r.Score)
}

func TestDataCompleteness(t *testing.T) {
	empty := DataCompleteness(nil, nil)
	assert.Equal(t, 0.6, empty.Penalty)
	assert.Equal(t, 6, empty.Score)

	var sold, rentals []models.PropertyRecord
	for i := 0; i < 50; i++ {
		r := soldRecord(600000, 2022)
		r.DaysOnMarket = ip(30)
		r.SoldAt = soldAt(models.SoldPrivateTreaty)
		sold = append(sold, r)
	}
	for i := 0; i < 40; i++ {
		rentals = append(rentals, models.PropertyRecord{Price: "$600", Features: models.Features{Bedrooms: fp(2)}})
	}

	full := DataCompleteness(sold, rentals)
	assert.Equal(t, 1.0, full.Penalty)
	assert.Equal(t, 100, full.Score)
}
