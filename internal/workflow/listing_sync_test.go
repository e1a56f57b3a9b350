package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propure/server/internal/models"
)

type fakeLocationStore struct {
	locations []models.ScrapeLocation
	err       error
}

func (s *fakeLocationStore) ListLocations(ctx context.Context) ([]models.ScrapeLocation, error) {
	return s.locations, s.err
}

type fakeScraper struct {
	mu      sync.Mutex
	scraped []string
	fail    map[string]bool
	empty   map[models.ListingType]bool
}

func (s *fakeScraper) ScrapeListings(ctx context.Context, loc models.LocationRef, t models.ListingType, page int) ([]models.PropertyRecord, error) {
	s.mu.Lock()
	s.scraped = append(s.scraped, loc.Suburb+"|"+string(t))
	s.mu.Unlock()

	if s.fail[loc.Suburb+"|"+string(t)] {
		return nil, errors.New("spider failed")
	}
	if s.empty[t] {
		return nil, nil
	}
	return []models.PropertyRecord{
		{ExternalID: loc.Postcode + "-1", ListingType: t},
		{ExternalID: loc.Postcode + "-2", ListingType: t},
	}, nil
}

type fakeListingStore struct {
	mu      sync.Mutex
	batches int
	stored  int
}

func (s *fakeListingStore) UpsertListings(ctx context.Context, records []models.PropertyRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.stored += len(records)
	return len(records), nil
}

func newSyncWorkflow(locations *fakeLocationStore, scraper *fakeScraper, store *fakeListingStore) *ListingSyncWorkflow {
	return NewListingSyncWorkflow(SyncDeps{
		Locations: locations,
		Scraper:   scraper,
		Listings:  store,
	}, testSteps(), nil, quietLogger())
}

func TestListingSync_AllTypesComplete(t *testing.T) {
	store := &fakeListingStore{}
	w := newSyncWorkflow(&fakeLocationStore{locations: suburbs[:2]}, &fakeScraper{}, store)

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalLocations)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 0, result.Pending)
	assert.Len(t, result.CompletedLocations(), 2)
	assert.Equal(t, 6, store.batches)
	assert.Equal(t, 12, store.stored)

	types := result.Results[suburbs[0].Key()]
	require.Len(t, types, 3)
	assert.Equal(t, models.ListingTypeSale, types[0].ListingType)
	assert.Equal(t, models.ListingTypeRent, types[1].ListingType)
	assert.Equal(t, models.ListingTypeSold, types[2].ListingType)
	for _, r := range types {
		assert.True(t, r.Success)
		assert.Equal(t, 2, r.ListingsCount)
	}
}

func TestListingSync_OneFailedTypeLeavesLocationPending(t *testing.T) {
	scraper := &fakeScraper{fail: map[string]bool{"Fitzroy|rent": true}}
	w := newSyncWorkflow(&fakeLocationStore{locations: suburbs[:2]}, scraper, &fakeListingStore{})

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 1, result.Pending)
	assert.Equal(t, models.LocationCompleted, result.Locations[0].Status)
	assert.Equal(t, models.LocationPending, result.Locations[1].Status)

	fitzroy := result.Results[suburbs[1].Key()]
	assert.True(t, fitzroy[0].Success)
	assert.False(t, fitzroy[1].Success)
	assert.Contains(t, fitzroy[1].Error, "spider failed")
	assert.True(t, fitzroy[2].Success)
}

func TestListingSync_EmptyScrapeSkipsStore(t *testing.T) {
	store := &fakeListingStore{}
	scraper := &fakeScraper{empty: map[models.ListingType]bool{models.ListingTypeSold: true}}
	w := newSyncWorkflow(&fakeLocationStore{locations: suburbs[:1]}, scraper, store)

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 2, store.batches)
	assert.Equal(t, 0, result.Results[suburbs[0].Key()][2].ListingsCount)
}

func TestListingSync_FallsBackToSydney(t *testing.T) {
	scraper := &fakeScraper{}
	w := newSyncWorkflow(&fakeLocationStore{}, scraper, &fakeListingStore{})

	result, err := w.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Locations, 1)
	assert.Equal(t, "Sydney", result.Locations[0].Suburb)
	assert.Equal(t, "2000", result.Locations[0].Postcode)
	assert.Contains(t, scraper.scraped, "Sydney|sale")
}

func TestListingSync_LoadFailure(t *testing.T) {
	w := newSyncWorkflow(&fakeLocationStore{err: errors.New("db down")}, &fakeScraper{}, &fakeListingStore{})

	result, err := w.Run(context.Background())
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "db down")
}

func TestListingSync_CancelledLeavesLocationsPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scraper := &fakeScraper{}
	w := NewListingSyncWorkflow(SyncDeps{
		Locations: &fakeLocationStore{locations: suburbs},
		Scraper:   scraper,
		Listings:  &fakeListingStore{},
	}, testSteps(), nil, quietLogger())

	result, err := w.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Completed)
	assert.Equal(t, len(suburbs), result.Pending)
	assert.Empty(t, scraper.scraped)
}
