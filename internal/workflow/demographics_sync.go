package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
	"propure/server/internal/processor"
)

// DefaultCensusYear is fetched when no census years are configured.
const DefaultCensusYear = 2021

type DemographicsScraper interface {
	ScrapeDemographics(ctx context.Context, loc models.LocationRef, censusYear int) (*models.DemographicSnapshot, error)
}

type DemographicsStore interface {
	UpsertDemographics(ctx context.Context, snapshot models.DemographicSnapshot) (bool, error)
}

// DemographicsDeps are the collaborators of a DemographicsSyncWorkflow.
type DemographicsDeps struct {
	Locations LocationStore
	Scraper   DemographicsScraper
	Store     DemographicsStore
}

// DemographicsSyncWorkflow fills the demographic store with census snapshots
// for every configured location, one lookup at a time.
type DemographicsSyncWorkflow struct {
	deps        DemographicsDeps
	steps       *processor.StepRunner
	censusYears []int
	logger      *logrus.Logger
}

func NewDemographicsSyncWorkflow(deps DemographicsDeps, steps *processor.StepRunner, censusYears []int, logger *logrus.Logger) *DemographicsSyncWorkflow {
	if logger == nil {
		logger = logrus.New()
	}
	if len(censusYears) == 0 {
		censusYears = []int{DefaultCensusYear}
	}
	return &DemographicsSyncWorkflow{
		deps:        deps,
		steps:       steps,
		censusYears: censusYears,
		logger:      logger,
	}
}

// Run fetches and stores every census year of every location. A failed
// lookup is recorded and the run moves on. The returned error is set only
// when the locations could not be loaded.
func (w *DemographicsSyncWorkflow) Run(ctx context.Context) (*models.DemographicsRunResult, error) {
	result := &models.DemographicsRunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := w.logger.WithField("run_id", result.RunID)

	locations, err := processor.Do(ctx, w.steps, "load locations", w.deps.Locations.ListLocations)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	if len(locations) == 0 {
		logger.Warn("No locations configured, fetching demographics for fallback location")
		locations = []models.ScrapeLocation{FallbackLocation}
	}
	result.TotalLocations = len(locations)

	logger.WithFields(logrus.Fields{
		"locations":    len(locations),
		"census_years": w.censusYears,
	}).Info("Starting demographics sync")

	for _, loc := range locations {
		for _, year := range w.censusYears {
			if ctx.Err() != nil {
				break
			}
			res := w.SyncLocation(ctx, loc, year)
			result.Results = append(result.Results, res)
			if res.Success {
				result.Succeeded++
			} else {
				result.Failed++
			}
		}
	}
	result.FinishedAt = time.Now().UTC()

	logger.WithFields(logrus.Fields{
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Finished demographics sync")
	return result, nil
}

// SyncLocation fetches one census year of a location and stores it.
func (w *DemographicsSyncWorkflow) SyncLocation(ctx context.Context, loc models.ScrapeLocation, censusYear int) (res models.DemographicsResult) {
	res = models.DemographicsResult{
		Suburb:     loc.Suburb,
		Postcode:   strings.TrimSpace(loc.Postcode),
		CensusYear: censusYear,
	}
	logger := w.logger.WithFields(logrus.Fields{
		"suburb":      loc.Suburb,
		"postcode":    res.Postcode,
		"census_year": censusYear,
	})
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Stored = false
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		if !res.Success {
			logger.WithField("error", res.Error).Error("Demographics sync failed")
		}
	}()

	if res.Postcode == "" {
		res.Error = "missing postcode"
		return res
	}

	snapshot, err := processor.Do(ctx, w.steps, "fetch demographics", func(ctx context.Context) (*models.DemographicSnapshot, error) {
		return w.deps.Scraper.ScrapeDemographics(ctx, loc.Ref(), censusYear)
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}
	snapshot.Postcode = res.Postcode
	if snapshot.Suburb == "" {
		snapshot.Suburb = loc.Suburb
	}
	if snapshot.State == "" {
		snapshot.State = loc.State
	}
	if snapshot.CensusYear == 0 {
		snapshot.CensusYear = censusYear
	}

	stored, err := processor.Do(ctx, w.steps, "store demographics", func(ctx context.Context) (bool, error) {
		return w.deps.Store.UpsertDemographics(ctx, *snapshot)
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.Stored = stored
	logger.WithField("stored", stored).Info("Demographics synced")
	return res
}
