package models

import "time"

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	Northeast LatLng `gorm:"embedded;embeddedPrefix:ne_" json:"northeast"`
	Southwest LatLng `gorm:"embedded;embeddedPrefix:sw_" json:"southwest"`
}

type SuburbGeometry struct {
	Center   LatLng `gorm:"embedded;embeddedPrefix:center_" json:"center"`
	Boundary Bounds `gorm:"embedded;embeddedPrefix:boundary_" json:"boundary"`
}

// RiskBreakdown holds the four sub-risks, each on 0-100.
type RiskBreakdown struct {
	MarketRisk        *float64 `json:"market_risk"`
	FinancialRisk     *float64 `json:"financial_risk"`
	LiquidityRisk     *float64 `json:"liquidity_risk"`
	ConcentrationRisk *float64 `json:"concentration_risk"`
}

// MetricsBundle is the computed output for one suburb. A nil field means
// there was not enough data to derive it.
type MetricsBundle struct {
	TypicalValue          *float64      `json:"typical_value"`
	MedianValue           *float64      `json:"median_value"`
	AverageDaysOnMarket   *float64      `json:"average_days_on_market"`
	AuctionClearanceRate  *float64      `json:"auction_clearance_rate"`
	RenterProportion      *float64      `json:"renter_proportion"`
	VacancyRate           *float64      `json:"vacancy_rate"`
	NetYield              *float64      `json:"net_yield"`
	StockOnMarket         *float64      `json:"stock_on_market"`
	CapitalGrowthScore    *float64      `json:"capital_growth_score"`
	CashFlowScore         *float64      `json:"cash_flow_score"`
	RiskScore             *float64      `json:"risk_score"`
	Risk                  RiskBreakdown `gorm:"embedded;embeddedPrefix:risk_" json:"risk"`
	DataCompletenessScore int           `json:"data_completeness_score"`
}

type SuburbMetrics struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Postcode   string         `gorm:"uniqueIndex;not null" json:"postcode"`
	Suburb     string         `json:"suburb"`
	State      string         `json:"state"`
	Geometry   SuburbGeometry `gorm:"embedded;embeddedPrefix:geo_" json:"geometry"`
	Metrics    MetricsBundle  `gorm:"embedded;embeddedPrefix:metric_" json:"metrics"`
	RecordedAt time.Time      `json:"recorded_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
