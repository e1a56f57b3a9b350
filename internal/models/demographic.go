package models

import "time"

type LabelCount struct {
	Label      string   `json:"label"`
	Count      float64  `json:"count"`
	Percentage *float64 `json:"percentage,omitempty"`
}

// Distribution is a labelled count breakdown such as tenure type or industry.
type Distribution []LabelCount

// Counts returns the counts in label order.
func (d Distribution) Counts() []float64 {
	counts := make([]float64, len(d))
	for i, item := range d {
		counts[i] = item.Count
	}
	return counts
}

// SumOf adds the counts of every item whose label is in labels.
func (d Distribution) SumOf(labels ...string) float64 {
	var total float64
	for _, item := range d {
		for _, label := range labels {
			if item.Label == label {
				total += item.Count
				break
			}
		}
	}
	return total
}

// DemographicSnapshot is one postcode's census statistics as observed at ScrapedAt.
type DemographicSnapshot struct {
	ID                             uint         `gorm:"primaryKey" json:"id"`
	Postcode                       string       `gorm:"uniqueIndex:idx_demographics_postcode_year;not null" json:"postcode"`
	Suburb                         string       `json:"suburb,omitempty"`
	State                          string       `json:"state,omitempty"`
	CensusYear                     int          `gorm:"uniqueIndex:idx_demographics_postcode_year" json:"census_year,omitempty"`
	TotalPopulation                *float64     `json:"total_population,omitempty"`
	MedianWeeklyHouseholdIncome    *float64     `json:"median_weekly_household_income,omitempty"`
	MedianMonthlyMortgageRepayment *float64     `json:"median_monthly_mortgage_repayment,omitempty"`
	OwnerOccupied                  *float64     `json:"owner_occupied,omitempty"`
	Rented                         *float64     `json:"rented,omitempty"`
	TenureType                     Distribution `gorm:"type:text;serializer:json" json:"tenure_type,omitempty"`
	DwellingStructure              Distribution `gorm:"type:text;serializer:json" json:"dwelling_structure,omitempty"`
	EmploymentStatus               Distribution `gorm:"type:text;serializer:json" json:"employment_status,omitempty"`
	OccupationTopResponses         Distribution `gorm:"type:text;serializer:json" json:"occupation_top_responses,omitempty"`
	IndustryTopResponses           Distribution `gorm:"type:text;serializer:json" json:"industry_top_responses,omitempty"`
	ScrapedAt                      time.Time    `gorm:"index" json:"scraped_at"`
	CreatedAt                      time.Time    `json:"created_at"`
}

// Year is the observation year, unknown when ScrapedAt was never set.
func (d DemographicSnapshot) Year() (int, bool) {
	if d.ScrapedAt.IsZero() {
		return 0, false
	}
	return d.ScrapedAt.Year(), true
}
