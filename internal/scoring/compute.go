// Package scoring turns a suburb's listings and census snapshots into its
// investment metrics. Everything here is a pure function of its inputs.
package scoring

import "propure/server/internal/models"

// Inputs is everything known about one suburb. Infrastructure (0-10) and
// CBDProximity (0-100) come from geospatial enrichment and may be nil.
type Inputs struct {
	Sold         []models.PropertyRecord
	Sale         []models.PropertyRecord
	Rentals      []models.PropertyRecord
	Demographics []models.DemographicSnapshot

	Infrastructure *float64
	CBDProximity   *float64
}

// Analysis is the metrics bundle along with the intermediate breakdowns.
type Analysis struct {
	Market        Market
	CapitalGrowth CapitalGrowth
	CashFlow      CashFlow
	Risk          Risk
	Completeness  Completeness
	Bundle        models.MetricsBundle
}

// Compute derives the market figures, all four scores and the persisted
// bundle for one suburb.
func Compute(in Inputs) Analysis {
	m := Summarize(in)

	growth := ScoreCapitalGrowth(m, in.Demographics, in.Infrastructure, in.CBDProximity)
	cashFlow := ScoreCashFlow(m, in.Rentals, growth.Affordability)
	risk := ScoreRisk(m, cashFlow.Score)
	completeness := DataCompleteness(m.Sold, in.Rentals)

	return Analysis{
		Market:        m,
		CapitalGrowth: growth,
		CashFlow:      cashFlow,
		Risk:          risk,
		Completeness:  completeness,
		Bundle: models.MetricsBundle{
			TypicalValue:          m.TypicalValue,
			MedianValue:           m.MedianValue,
			AverageDaysOnMarket:   m.AverageDaysOnMarket,
			AuctionClearanceRate:  m.AuctionClearanceRate,
			RenterProportion:      m.RenterProportion,
			VacancyRate:           m.VacancyRate,
			NetYield:              m.NetYield,
			StockOnMarket:         m.StockOnMarket,
			CapitalGrowthScore:    growth.Score,
			CashFlowScore:         cashFlow.Score,
			RiskScore:             risk.Score,
			Risk:                  risk.Breakdown,
			DataCompletenessScore: completeness.Score,
		},
	}
}
