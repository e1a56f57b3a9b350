// Package workflow orchestrates the suburb metrics and listing sync runs.
// Every external call goes through a processor.StepRunner so transient
// failures are retried at the step boundary.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"propure/server/internal/geocoding"
	"propure/server/internal/geometry"
	"propure/server/internal/models"
	"propure/server/internal/processor"
	"propure/server/internal/scoring"
)

var ErrNoDemographics = errors.New("no demographic data available")

const abortedReason = "workflow aborted"

type SuburbState string

const (
	StateFetching   SuburbState = "fetching"
	StateComputing  SuburbState = "computing"
	StatePersisting SuburbState = "persisting"
	StateDone       SuburbState = "done"
	StateFailed     SuburbState = "failed"
)

type ListingFetcher interface {
	FetchAll(ctx context.Context, loc models.LocationRef, listingType models.ListingType) ([]models.PropertyRecord, error)
}

type DemographicsSource interface {
	FetchDemographics(ctx context.Context, postcode string) ([]models.DemographicSnapshot, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geocoding.Result, error)
}

type Enricher interface {
	InfrastructureDensityScore(ctx context.Context, center *models.LatLng, population float64) *float64
	CBDProximityScore(ctx context.Context, address, state string) *float64
}

type MetricsStore interface {
	UpsertSuburbMetrics(ctx context.Context, m models.SuburbMetrics) error
}

// SuburbDeps are the collaborators of a SuburbMetricsWorkflow. Enricher may
// be nil, in which case the geospatial scores are left out.
type SuburbDeps struct {
	Listings     ListingFetcher
	Demographics DemographicsSource
	Geocoder     Geocoder
	Enricher     Enricher
	Store        MetricsStore
}

// SuburbMetricsWorkflow computes and persists metrics for a list of suburbs in
// fixed-size batches.
type SuburbMetricsWorkflow struct {
	deps        SuburbDeps
	steps       *processor.StepRunner
	concurrency int
	logger      *logrus.Logger
	now         func() time.Time
}

func NewSuburbMetricsWorkflow(deps SuburbDeps, steps *processor.StepRunner, concurrency int, logger *logrus.Logger) *SuburbMetricsWorkflow {
	if logger == nil {
		logger = logrus.New()
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	return &SuburbMetricsWorkflow{
		deps:        deps,
		steps:       steps,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Run computes and stores the metrics of every location, a batch of
// concurrency suburbs at a time. A failing suburb never affects its
// siblings. Results are reported in input order.
func (w *SuburbMetricsWorkflow) Run(ctx context.Context, locations []models.ScrapeLocation) *models.SuburbRunResult {
	result := &models.SuburbRunResult{
		RunID:          uuid.NewString(),
		UpdatedSuburbs: []string{},
		FailedSuburbs:  []string{},
		Errors:         []models.SuburbError{},
		StartedAt:      w.now().UTC(),
	}
	logger := w.logger.WithField("run_id", result.RunID)
	logger.WithField("suburbs", len(locations)).Info("Starting suburb metrics run")

	outcomes := make([]error, len(locations))
	attempted := make([]bool, len(locations))

	if err := w.runBatches(ctx, locations, outcomes, attempted, logger); err != nil {
		result.Error = fmt.Sprintf("%s: %v", abortedReason, err)
		logger.WithError(err).Error("Suburb metrics run aborted")
	}

	for i, loc := range locations {
		switch {
		case !attempted[i]:
			result.FailedSuburbs = append(result.FailedSuburbs, loc.Suburb)
			result.Errors = append(result.Errors, models.SuburbError{Suburb: loc.Suburb, Error: abortedReason})
		case outcomes[i] != nil:
			result.FailedSuburbs = append(result.FailedSuburbs, loc.Suburb)
			result.Errors = append(result.Errors, models.SuburbError{Suburb: loc.Suburb, Error: outcomes[i].Error()})
		default:
			result.UpdatedSuburbs = append(result.UpdatedSuburbs, loc.Suburb)
		}
	}

	result.SuccessCount = len(result.UpdatedSuburbs)
	result.FailureCount = len(result.FailedSuburbs)
	result.Success = result.FailureCount == 0 && result.Error == ""
	result.FinishedAt = w.now().UTC()

	logger.WithFields(logrus.Fields{
		"updated": result.SuccessCount,
		"failed":  result.FailureCount,
	}).Info("Finished suburb metrics run")
	return result
}

// runBatches fills outcomes and attempted. It returns an error when the loop
// itself cannot continue.
func (w *SuburbMetricsWorkflow) runBatches(ctx context.Context, locations []models.ScrapeLocation, outcomes []error, attempted []bool, logger *logrus.Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	for start := 0; start < len(locations); start += w.concurrency {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		end := min(start+w.concurrency, len(locations))
		logger.WithFields(logrus.Fields{
			"batch_start": start,
			"batch_end":   end,
		}).Debug("Processing suburb batch")

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			attempted[i] = true
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				outcomes[i] = w.processSuburbSafe(ctx, locations[i], logger)
			}(i)
		}
		wg.Wait()
	}
	return nil
}

func (w *SuburbMetricsWorkflow) processSuburbSafe(ctx context.Context, loc models.ScrapeLocation, logger *logrus.Entry) (err error) {
	logger = logger.WithFields(logrus.Fields{
		"suburb":   loc.Suburb,
		"state":    loc.State,
		"postcode": loc.Postcode,
	})
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.WithField("stack", string(debug.Stack())).Error("Recovered suburb panic")
		}
		if err != nil {
			logger.WithError(err).WithField("step", StateFailed).Error("Suburb failed")
		}
	}()
	return w.ProcessSuburb(ctx, loc, logger)
}

type suburbData struct {
	sold, sale, rentals []models.PropertyRecord
	demographics        []models.DemographicSnapshot
}

func (w *SuburbMetricsWorkflow) fetch(ctx context.Context, loc models.ScrapeLocation) (*suburbData, error) {
	data := &suburbData{}
	ref := loc.Ref()

	listings := func(t models.ListingType, into *[]models.PropertyRecord) func() error {
		return recovering(func() error {
			records, err := processor.Do(ctx, w.steps, "fetch "+string(t)+" listings", func(ctx context.Context) ([]models.PropertyRecord, error) {
				return w.deps.Listings.FetchAll(ctx, ref, t)
			})
			*into = records
			return err
		})
	}

	var g errgroup.Group
	g.Go(listings(models.ListingTypeSold, &data.sold))
	g.Go(listings(models.ListingTypeRent, &data.rentals))
	g.Go(listings(models.ListingTypeSale, &data.sale))
	g.Go(recovering(func() error {
		snapshots, err := processor.Do(ctx, w.steps, "fetch demographics", func(ctx context.Context) ([]models.DemographicSnapshot, error) {
			return w.deps.Demographics.FetchDemographics(ctx, loc.Postcode)
		})
		data.demographics = snapshots
		return err
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

// ProcessSuburb runs one suburb through fetching, computing and persisting.
func (w *SuburbMetricsWorkflow) ProcessSuburb(ctx context.Context, loc models.ScrapeLocation, logger *logrus.Entry) error {
	if logger == nil {
		logger = logrus.NewEntry(w.logger)
	}

	logger.WithField("step", StateFetching).Debug("Fetching suburb data")
	data, err := w.fetch(ctx, loc)
	if err != nil {
		return err
	}
	if len(data.demographics) == 0 {
		return ErrNoDemographics
	}

	logger.WithField("step", StateComputing).Debug("Computing suburb metrics")
	geocoded, err := processor.Do(ctx, w.steps, "geocode suburb", func(ctx context.Context) (*geocoding.Result, error) {
		res, err := w.deps.Geocoder.Geocode(ctx, loc.Address())
		if errors.Is(err, geocoding.ErrNoResults) {
			return nil, processor.Permanent(err)
		}
		return res, err
	})
	if err != nil {
		return fmt.Errorf("failed to geocode %s: %w", loc.Address(), err)
	}
	geo := geometry.FromGeocode(geocoded.Lat, geocoded.Lng, geocoded.Bounds)

	inputs := scoring.Inputs{
		Sold:         data.sold,
		Sale:         data.sale,
		Rentals:      data.rentals,
		Demographics: data.demographics,
	}
	if w.deps.Enricher != nil {
		w.enrich(ctx, loc, geo.Center, &inputs, logger)
	}
	analysis := scoring.Compute(inputs)

	logger.WithField("step", StatePersisting).Debug("Persisting suburb metrics")
	record := models.SuburbMetrics{
		Postcode:   loc.Postcode,
		Suburb:     loc.Suburb,
		State:      loc.State,
		Geometry:   geo,
		Metrics:    analysis.Bundle,
		RecordedAt: w.now().UTC(),
	}
	if err := w.steps.Run(ctx, "upsert suburb metrics", func(ctx context.Context) error {
		return w.deps.Store.UpsertSuburbMetrics(ctx, record)
	}); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"step":              StateDone,
		"capital_growth":    analysis.Bundle.CapitalGrowthScore,
		"cash_flow":         analysis.Bundle.CashFlowScore,
		"risk":              analysis.Bundle.RiskScore,
		"data_completeness": analysis.Bundle.DataCompletenessScore,
	}).Info("Updated suburb metrics")
	return nil
}

// enrich fills the geospatial scores. Both lookups are best effort.
func (w *SuburbMetricsWorkflow) enrich(ctx context.Context, loc models.ScrapeLocation, center models.LatLng, inputs *scoring.Inputs, logger *logrus.Entry) {
	var population float64
	if p := scoring.AveragePopulation(inputs.Demographics); p != nil {
		population = *p
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer logPanic(logger, "infrastructure")
		inputs.Infrastructure = w.deps.Enricher.InfrastructureDensityScore(ctx, &center, population)
	}()
	go func() {
		defer wg.Done()
		defer logPanic(logger, "cbd proximity")
		inputs.CBDProximity = w.deps.Enricher.CBDProximityScore(ctx, loc.Address(), loc.State)
	}()
	wg.Wait()
}

// recovering turns a panic in fn into an error so it cannot escape a
// goroutine.
func recovering(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}
}

func logPanic(logger *logrus.Entry, lookup string) {
	if r := recover(); r != nil {
		logger.WithField("lookup", lookup).Errorf("Enrichment panicked: %v", r)
	}
}
