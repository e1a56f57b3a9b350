package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propure/server/internal/models"
	"propure/server/internal/processor"
)

// FallbackLocation is synced when no locations are configured.
var FallbackLocation = models.ScrapeLocation{Suburb: "Sydney", State: "NSW", Postcode: "2000"}

type LocationStore interface {
	ListLocations(ctx context.Context) ([]models.ScrapeLocation, error)
}

type ListingScraper interface {
	ScrapeListings(ctx context.Context, loc models.LocationRef, listingType models.ListingType, page int) ([]models.PropertyRecord, error)
}

type ListingStore interface {
	UpsertListings(ctx context.Context, records []models.PropertyRecord) (int, error)
}

// SyncDeps are the collaborators of a ListingSyncWorkflow.
type SyncDeps struct {
	Locations LocationStore
	Scraper   ListingScraper
	Listings  ListingStore
}

// ListingSyncWorkflow scrapes and stores listings for every pending location.
type ListingSyncWorkflow struct {
	deps         SyncDeps
	steps        *processor.StepRunner
	listingTypes []models.ListingType
	logger       *logrus.Logger
}

func NewListingSyncWorkflow(deps SyncDeps, steps *processor.StepRunner, listingTypes []models.ListingType, logger *logrus.Logger) *ListingSyncWorkflow {
	if logger == nil {
		logger = logrus.New()
	}
	if len(listingTypes) == 0 {
		listingTypes = []models.ListingType{models.ListingTypeSale, models.ListingTypeRent, models.ListingTypeSold}
	}
	return &ListingSyncWorkflow{
		deps:         deps,
		steps:        steps,
		listingTypes: listingTypes,
		logger:       logger,
	}
}

// Run syncs every configured location in turn. A location is completed only
// when every listing type synced. The returned error is set only when the
// locations could not be loaded.
func (w *ListingSyncWorkflow) Run(ctx context.Context) (*models.SyncRunResult, error) {
	runID := uuid.NewString()
	logger := w.logger.WithField("run_id", runID)

	locations, err := processor.Do(ctx, w.steps, "load locations", w.deps.Locations.ListLocations)
	if err != nil {
		return nil, fmt.Errorf("failed to load locations: %w", err)
	}
	if len(locations) == 0 {
		logger.Warn("No locations configured, syncing fallback location")
		locations = []models.ScrapeLocation{FallbackLocation}
	}

	result := &models.SyncRunResult{
		RunID:          runID,
		Locations:      make([]models.ScrapeLocation, len(locations)),
		TotalLocations: len(locations),
		Results:        make(map[string][]models.TypeResult, len(locations)),
	}
	copy(result.Locations, locations)

	logger.WithField("locations", len(locations)).Info("Starting listing sync")
	for i := range result.Locations {
		loc := &result.Locations[i]
		loc.Status = models.LocationPending
		if ctx.Err() != nil {
			continue
		}

		results := w.SyncLocation(ctx, *loc)
		result.Results[loc.Key()] = results
		if allSucceeded(results) {
			loc.Status = models.LocationCompleted
		}
	}

	for _, loc := range result.Locations {
		if loc.Status == models.LocationCompleted {
			result.Completed++
		} else {
			result.Pending++
		}
	}
	result.FetchedAt = time.Now().UTC()

	logger.WithFields(logrus.Fields{
		"completed": result.Completed,
		"pending":   result.Pending,
	}).Info("Finished listing sync")
	return result, nil
}

// SyncLocation scrapes and stores every listing type of one location
// concurrently. Results follow the configured listing type order.
func (w *ListingSyncWorkflow) SyncLocation(ctx context.Context, loc models.ScrapeLocation) []models.TypeResult {
	results := make([]models.TypeResult, len(w.listingTypes))

	var wg sync.WaitGroup
	for i, t := range w.listingTypes {
		wg.Add(1)
		go func(i int, t models.ListingType) {
			defer wg.Done()
			results[i] = w.syncType(ctx, loc, t)
		}(i, t)
	}
	wg.Wait()
	return results
}

func (w *ListingSyncWorkflow) syncType(ctx context.Context, loc models.ScrapeLocation, listingType models.ListingType) (res models.TypeResult) {
	res.ListingType = listingType
	logger := w.logger.WithFields(logrus.Fields{
		"suburb":       loc.Suburb,
		"postcode":     loc.Postcode,
		"listing_type": listingType,
	})
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		if !res.Success {
			logger.WithField("error", res.Error).Error("Listing sync failed")
		}
	}()

	records, err := processor.Do(ctx, w.steps, "scrape "+string(listingType)+" listings", func(ctx context.Context) ([]models.PropertyRecord, error) {
		return w.deps.Scraper.ScrapeListings(ctx, loc.Ref(), listingType, 1)
	})
	if err != nil {
		res.Error = err.Error()
		return res
	}

	if len(records) > 0 {
		stored, err := processor.Do(ctx, w.steps, "store "+string(listingType)+" listings", func(ctx context.Context) (int, error) {
			return w.deps.Listings.UpsertListings(ctx, records)
		})
		if err != nil {
			res.Error = err.Error()
			return res
		}
		logger.WithField("stored", stored).Debug("Stored listings")
	}

	res.Success = true
	res.ListingsCount = len(records)
	return res
}

func allSucceeded(results []models.TypeResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return len(results) > 0
}
