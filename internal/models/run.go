package models

import "time"

type SuburbError struct {
	Suburb string `json:"suburb"`
	Error  string `json:"error"`
}

// SuburbRunResult summarises one suburb metrics run. Success is false only
// when at least one suburb failed.
type SuburbRunResult struct {
	RunID          string        `json:"run_id,omitempty"`
	UpdatedSuburbs []string      `json:"updated_suburbs"`
	FailedSuburbs  []string      `json:"failed_suburbs"`
	SuccessCount   int           `json:"success_count"`
	FailureCount   int           `json:"failure_count"`
	Success        bool          `json:"success"`
	Errors         []SuburbError `json:"errors"`
	// Error is set when the run aborted before every suburb was attempted.
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type TypeResult struct {
	ListingType   ListingType `json:"listing_type"`
	Success       bool        `json:"success"`
	ListingsCount int         `json:"listings_count"`
	Error         string      `json:"error,omitempty"`
}

// SyncRunResult summarises one listing sync run. Results is keyed by
// ScrapeLocation.Key.
type SyncRunResult struct {
	RunID          string                  `json:"run_id,omitempty"`
	Locations      []ScrapeLocation        `json:"locations"`
	TotalLocations int                     `json:"total_locations"`
	Completed      int                     `json:"completed"`
	Pending        int                     `json:"pending"`
	Results        map[string][]TypeResult `json:"results"`
	FetchedAt      time.Time               `json:"fetched_at"`
}

// CompletedLocations returns the locations whose every listing type synced.
func (r *SyncRunResult) CompletedLocations() []ScrapeLocation {
	var out []ScrapeLocation
	for _, l := range r.Locations {
		if l.Status == LocationCompleted {
			out = append(out, l)
		}
	}
	return out
}

// DemographicsResult is the outcome of one census lookup.
type DemographicsResult struct {
	Suburb     string `json:"suburb"`
	Postcode   string `json:"postcode"`
	CensusYear int    `json:"census_year"`
	Success    bool   `json:"success"`
	// Stored is false when a newer snapshot of the same year was already kept.
	Stored bool   `json:"stored"`
	Error  string `json:"error,omitempty"`
}

type DemographicsRunResult struct {
	RunID          string               `json:"run_id,omitempty"`
	TotalLocations int                  `json:"total_locations"`
	Succeeded      int                  `json:"succeeded"`
	Failed         int                  `json:"failed"`
	Results        []DemographicsResult `json:"results"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at"`
}
