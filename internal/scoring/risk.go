package scoring

import (
	"strings"

	"propure/server/internal/models"
	"propure/server/internal/stats"
)

// Risk is the composite risk score with its four sub-risks.
type Risk struct {
	Breakdown models.RiskBreakdown
	Score     *float64
}

type cashFlowStatus int

const (
	cashFlowUnknown cashFlowStatus = iota
	cashFlowNegative
	cashFlowNeutral
	cashFlowPositive
)

func statusOf(cashFlowScore *float64) cashFlowStatus {
	switch {
	case cashFlowScore == nil:
		return cashFlowUnknown
	case *cashFlowScore > 70:
		return cashFlowPositive
	case *cashFlowScore > 40:
		return cashFlowNeutral
	default:
		return cashFlowNegative
	}
}

// PriceVolatility is the standard deviation, in percent, of the yearly
// growth of median sold prices.
func PriceVolatility(sold []models.PropertyRecord) (float64, bool) {
	sd, ok := stats.StdDev(AnnualGrowthRates(YearlyMedianPrices(sold)))
	if !ok {
		return 0, false
	}
	return sd * 100, true
}

func vacancyTier(vacancy *float64) float64 {
	switch {
	case vacancy != nil && *vacancy > 5:
		return 40
	case vacancy != nil && *vacancy > 3:
		return 25
	case vacancy != nil && *vacancy > 2:
		return 15
	default:
		return 5
	}
}

func daysOnMarketTier(dom *float64) float64 {
	switch {
	case dom != nil && *dom > 90:
		return 30
	case dom != nil && *dom > 60:
		return 20
	case dom != nil && *dom > 30:
		return 10
	default:
		return 5
	}
}

// MarketRisk adds vacancy and days on market tiers to up to 30 points of
// price volatility. Nil when none of the three signals is known.
func MarketRisk(m Market) *float64 {
	volatility, hasVolatility := PriceVolatility(m.Sold)
	if m.VacancyRate == nil && m.AverageDaysOnMarket == nil && !hasVolatility {
		return nil
	}

	risk := vacancyTier(m.VacancyRate) + daysOnMarketTier(m.AverageDaysOnMarket)
	if hasVolatility {
		risk += stats.NormalizeToScale(volatility, 0, 15, 0, 100) / 100 * 30
	}
	return &risk
}

// InterestRateSensitivity scores 0-100 how exposed owners are to rate rises,
// using the latest snapshot.
func InterestRateSensitivity(latest *models.DemographicSnapshot, typicalValue *float64) (float64, bool) {
	if latest == nil || typicalValue == nil || *typicalValue <= 0 {
		return 0, false
	}
	weeklyIncome, ok := finite(latest.MedianWeeklyHouseholdIncome)
	if !ok || weeklyIncome <= 0 {
		return 0, false
	}
	monthlyMortgage, ok := finite(latest.MedianMonthlyMortgageRepayment)
	if !ok || monthlyMortgage <= 0 {
		return 0, false
	}

	annualIncome := weeklyIncome * weeksPerYear
	burden := monthlyMortgage / (annualIncome / 12)
	priceToIncome := *typicalValue / annualIncome

	var mortgaged float64
	for _, t := range latest.TenureType {
		if strings.Contains(strings.ToLower(t.Label), "mortgage") {
			mortgaged = t.Count
			break
		}
	}
	var mortgageScore *float64
	owned, hasOwned := finite(latest.OwnerOccupied)
	rented, hasRented := finite(latest.Rented)
	if tenure := owned + rented; hasOwned && hasRented && tenure > 0 {
		mortgageScore = ptr(stats.NormalizeToScale(mortgaged/tenure, 0.2, 0.6, 0, 100))
	}

	burdenScore := stats.NormalizeToScale(burden, 0.15, 0.45, 0, 100)
	priceScore := stats.NormalizeToScale(priceToIncome, 4, 12, 0, 100)
	sensitivity, _ := stats.WeightedAverage([]stats.Component{
		{Score: &burdenScore, Weight: 0.4},
		{Score: &priceScore, Weight: 0.35},
		{Score: mortgageScore, Weight: 0.25},
	})
	return round(sensitivity), true
}

func loanToValueTier(ltv *float64) float64 {
	switch {
	case ltv != nil && *ltv > 0.9:
		return 40
	case ltv != nil && *ltv > 0.8:
		return 25
	case ltv != nil && *ltv > 0.7:
		return 15
	default:
		return 5
	}
}

// FinancialRisk combines a loan to value proxy, the cash flow status and up
// to 30 points of interest rate sensitivity.
func FinancialRisk(m Market, cashFlowScore *float64) *float64 {
	var ltv *float64
	if m.TypicalValue != nil && *m.TypicalValue > 0 && m.AverageMonthlyMortgage != nil && *m.AverageMonthlyMortgage > 0 {
		v := *m.AverageMonthlyMortgage * 12 / *m.TypicalValue
		ltv = &v
	}
	sensitivity, hasSensitivity := InterestRateSensitivity(m.Latest, m.TypicalValue)
	status := statusOf(cashFlowScore)

	if ltv == nil && status == cashFlowUnknown && !hasSensitivity {
		return nil
	}

	risk := loanToValueTier(ltv)
	switch status {
	case cashFlowNegative:
		risk += 30
	case cashFlowNeutral:
		risk += 15
	default:
		risk += 5
	}
	if hasSensitivity {
		risk += sensitivity * 30 / 100
	}
	return &risk
}

// LiquidityRisk weighs turnover, days on market, stock and auction results.
// Nil without dwellings or sales. Unknown terms drop out of the weighting.
func LiquidityRisk(m Market) *float64 {
	if m.TotalDwellings == nil || *m.TotalDwellings <= 0 || len(m.Sold) == 0 {
		return nil
	}

	turnover := stats.NormalizeInverse(float64(len(m.Sold)) / *m.TotalDwellings, 0.02, 0.08, 0, 100)
	var dom, stock, auction *float64
	if v, ok := finite(m.AverageDaysOnMarket); ok {
		dom = ptr(stats.NormalizeToScale(v, 20, 120, 0, 100))
	}
	if v, ok := finite(m.StockOnMarket); ok {
		stock = ptr(stats.NormalizeToScale(v, 1, 8, 0, 100))
	}
	if v, ok := finite(m.AuctionClearanceRate); ok {
		auction = ptr(stats.NormalizeInverse(v, 50, 85, 0, 100))
	}

	return boundedScore(stats.WeightedAverage([]stats.Component{
		{Score: &turnover, Weight: 0.35},
		{Score: dom, Weight: 0.25},
		{Score: stock, Weight: 0.20},
		{Score: auction, Weight: 0.20},
	}))
}

// ConcentrationRisk measures how narrow the local economy and housing stock
// are, from the latest snapshot.
func ConcentrationRisk(latest *models.DemographicSnapshot) *float64 {
	if latest == nil {
		return nil
	}
	var industry, dwelling, renters *float64
	if v, ok := stats.HHI(latest.IndustryTopResponses.Counts()); ok {
		industry = ptr(v * 100)
	}
	if v, ok := stats.HHI(latest.DwellingStructure.Counts()); ok {
		dwelling = ptr(v * 100)
	}
	rented, hasRented := finite(latest.Rented)
	owned, hasOwned := finite(latest.OwnerOccupied)
	if hasRented && hasOwned && rented+owned > 0 {
		renters = ptr(stats.NormalizeToScale(rented/(rented+owned), 0.2, 0.7, 0, 100))
	}

	return boundedScore(stats.WeightedAverage([]stats.Component{
		{Score: industry, Weight: 0.5},
		{Score: dwelling, Weight: 0.3},
		{Score: renters, Weight: 0.2},
	}))
}

// ScoreRisk builds the four sub-risks and their weighted composite.
func ScoreRisk(m Market, cashFlowScore *float64) Risk {
	r := Risk{Breakdown: models.RiskBreakdown{
		MarketRisk:        MarketRisk(m),
		FinancialRisk:     FinancialRisk(m, cashFlowScore),
		LiquidityRisk:     LiquidityRisk(m),
		ConcentrationRisk: ConcentrationRisk(m.Latest),
	}}

	r.Score = boundedScore(stats.WeightedAverage([]stats.Component{
		{Score: r.Breakdown.MarketRisk, Weight: 0.4},
		{Score: r.Breakdown.FinancialRisk, Weight: 0.3},
		{Score: r.Breakdown.LiquidityRisk, Weight: 0.2},
		{Score: r.Breakdown.ConcentrationRisk, Weight: 0.1},
	}))
	return r
}
