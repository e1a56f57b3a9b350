package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propure/server/internal/models"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewTestDB()
	require.NoError(t, err)
	require.NoError(t, MigrateSchema(db))

	d := New(db, nil)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func fp(v float64) *float64 { return &v }

func listing(id string, listingType models.ListingType, loc models.LocationRef) models.PropertyRecord {
	return models.PropertyRecord{
		ExternalID:  id,
		Suburb:      loc.Suburb,
		State:       loc.State,
		Postcode:    loc.Postcode,
		ListingType: listingType,
		ScrapedAt:   time.Now().UTC(),
	}
}

var (
	richmond  = models.LocationRef{Suburb: "Richmond", State: "VIC", Postcode: "3121"}
	footscray = models.LocationRef{Suburb: "Footscray", State: "VIC", Postcode: "3011"}
)

func TestUpsertListings_DedupesAndIsIdempotent(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	first := listing("a1", models.ListingTypeRent, richmond)
	first.Price = "$500 pw"
	second := listing("a1", models.ListingTypeRent, richmond)
	second.Price = "$520 pw"
	other := listing("b2", models.ListingTypeRent, richmond)
	anonymous := listing("", models.ListingTypeRent, richmond)

	written, err := d.UpsertListings(ctx, []models.PropertyRecord{first, other, second, anonymous})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	written, err = d.UpsertListings(ctx, []models.PropertyRecord{second, other})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	var stored []models.PropertyRecord
	require.NoError(t, d.DB().Order("external_id").Find(&stored).Error)
	require.Len(t, stored, 2)
	assert.Equal(t, "a1", stored[0].ExternalID)
	assert.Equal(t, "$520 pw", stored[0].Price)
	assert.Equal(t, models.DefaultListingSource, stored[0].Source)
}

func TestUpsertListings_SameIDDifferentSource(t *testing.T) {
	d := setupTestDB(t)

	a := listing("x", models.ListingTypeSale, richmond)
	b := listing("x", models.ListingTypeSale, richmond)
	b.Source = "REA"

	written, err := d.UpsertListings(context.Background(), []models.PropertyRecord{a, b})
	require.NoError(t, err)
	assert.Equal(t, 2, written)
}

func TestFetchListings_Pagination(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	var records []models.PropertyRecord
	for i := 0; i < 5; i++ {
		records = append(records, listing(fmt.Sprintf("r%d", i), models.ListingTypeSold, richmond))
	}
	records = append(records,
		listing("f1", models.ListingTypeSold, footscray),
		listing("s1", models.ListingTypeSale, richmond),
	)
	_, err := d.UpsertListings(ctx, records)
	require.NoError(t, err)

	page, err := d.FetchListings(ctx, models.ListingQuery{
		Locations:   []models.LocationRef{richmond},
		ListingType: models.ListingTypeSold,
		Page:        1,
		PageSize:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Data, 2)

	last, err := d.FetchListings(ctx, models.ListingQuery{
		Locations:   []models.LocationRef{richmond},
		ListingType: models.ListingTypeSold,
		Page:        3,
		PageSize:    2,
	})
	require.NoError(t, err)
	assert.Len(t, last.Data, 1)

	both, err := d.FetchListings(ctx, models.ListingQuery{
		Locations:   []models.LocationRef{richmond, footscray},
		ListingType: models.ListingTypeSold,
		Page:        1,
		PageSize:    100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, both.TotalPages)
	assert.Len(t, both.Data, 6)
}

func TestFetchListings_EmptyAndInvalid(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	page, err := d.FetchListings(ctx, models.ListingQuery{ListingType: models.ListingTypeRent, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPages)
	assert.Empty(t, page.Data)

	page, err = d.FetchListings(ctx, models.ListingQuery{
		Locations:   []models.LocationRef{richmond},
		ListingType: models.ListingTypeRent,
		PageSize:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalPages)

	_, err = d.FetchListings(ctx, models.ListingQuery{Locations: []models.LocationRef{richmond}})
	assert.Error(t, err)
}

func TestDemographics(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	newer := models.DemographicSnapshot{
		Postcode:        "3121",
		TotalPopulation: fp(28000),
		TenureType:      models.Distribution{{Label: "Rented", Count: 5200}},
		ScrapedAt:       time.Date(2021, time.August, 10, 0, 0, 0, 0, time.UTC),
	}
	older := models.DemographicSnapshot{
		Postcode:  "3121",
		ScrapedAt: time.Date(2016, time.August, 9, 0, 0, 0, 0, time.UTC),
	}
	elsewhere := models.DemographicSnapshot{Postcode: "2000", ScrapedAt: time.Now()}
	for _, s := range []models.DemographicSnapshot{newer, older, elsewhere} {
		stored, err := d.UpsertDemographics(ctx, s)
		require.NoError(t, err)
		assert.True(t, stored)
	}

	snapshots, err := d.FetchDemographics(ctx, "3121")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 2016, snapshots[0].ScrapedAt.Year())
	assert.Equal(t, 2021, snapshots[1].ScrapedAt.Year())
	assert.Equal(t, models.Distribution{{Label: "Rented", Count: 5200}}, snapshots[1].TenureType)
	require.NotNil(t, snapshots[1].TotalPopulation)
	assert.Equal(t, 28000.0, *snapshots[1].TotalPopulation)

	none, err := d.FetchDemographics(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUpsertDemographics_KeepsNewestPerYear(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	first := models.DemographicSnapshot{
		Postcode:        "3121",
		CensusYear:      2021,
		TotalPopulation: fp(28000),
		ScrapedAt:       time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
	stored, err := d.UpsertDemographics(ctx, first)
	require.NoError(t, err)
	assert.True(t, stored)

	stale := first
	stale.TotalPopulation = fp(1)
	stale.ScrapedAt = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	stored, err = d.UpsertDemographics(ctx, stale)
	require.NoError(t, err)
	assert.False(t, stored)

	fresher := first
	fresher.TotalPopulation = fp(29000)
	fresher.ScrapedAt = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	stored, err = d.UpsertDemographics(ctx, fresher)
	require.NoError(t, err)
	assert.True(t, stored)

	snapshots, err := d.FetchDemographics(ctx, "3121")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.NotNil(t, snapshots[0].TotalPopulation)
	assert.Equal(t, 29000.0, *snapshots[0].TotalPopulation)
	assert.Equal(t, 2025, snapshots[0].ScrapedAt.Year())

	other := models.DemographicSnapshot{Postcode: "3121", CensusYear: 2016, ScrapedAt: first.ScrapedAt}
	stored, err = d.UpsertDemographics(ctx, other)
	require.NoError(t, err)
	assert.True(t, stored)

	snapshots, err = d.FetchDemographics(ctx, "3121")
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)

	_, err = d.UpsertDemographics(ctx, models.DemographicSnapshot{})
	assert.Error(t, err)
}

func TestSuburbMetricsUpsert(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	_, err := d.GetSuburbMetrics(ctx, "3121")
	assert.ErrorIs(t, err, ErrNotFound)

	m := models.SuburbMetrics{
		Postcode: "3121",
		Suburb:   "Richmond",
		State:    "VIC",
		Metrics: models.MetricsBundle{
			CapitalGrowthScore:    fp(61),
			Risk:                  models.RiskBreakdown{MarketRisk: fp(35)},
			DataCompletenessScore: 40,
		},
	}
	require.NoError(t, d.UpsertSuburbMetrics(ctx, m))

	m.Metrics.CapitalGrowthScore = fp(70)
	m.Metrics.Risk.MarketRisk = nil
	m.Geometry.Center = models.LatLng{Lat: -37.82, Lng: 145.0}
	require.NoError(t, d.UpsertSuburbMetrics(ctx, m))

	stored, err := d.GetSuburbMetrics(ctx, "3121")
	require.NoError(t, err)
	require.NotNil(t, stored.Metrics.CapitalGrowthScore)
	assert.Equal(t, 70.0, *stored.Metrics.CapitalGrowthScore)
	assert.Nil(t, stored.Metrics.Risk.MarketRisk)
	assert.Equal(t, -37.82, stored.Geometry.Center.Lat)
	assert.False(t, stored.RecordedAt.IsZero())

	all, err := d.ListSuburbMetrics(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.Error(t, d.UpsertSuburbMetrics(ctx, models.SuburbMetrics{}))
}

func TestLocations(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	added, err := d.SeedLocations(ctx, []models.ScrapeLocation{
		{Suburb: "Sydney", State: "nsw", Postcode: "2000"},
		{Suburb: "Richmond", State: "VIC", Postcode: "3121"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = d.SeedLocations(ctx, []models.ScrapeLocation{{Suburb: "Sydney", State: "NSW", Postcode: "2000"}})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	loc, err := d.UpsertLocation(ctx, models.ScrapeLocation{Suburb: "Richmond", State: "vic", Postcode: "3121"})
	require.NoError(t, err)
	assert.NotZero(t, loc.ID)

	loc, err = d.UpsertLocation(ctx, models.ScrapeLocation{Suburb: " Parramatta ", State: "NSW", Postcode: "2150"})
	require.NoError(t, err)
	assert.Equal(t, "Parramatta", loc.Suburb)

	_, err = d.UpsertLocation(ctx, models.ScrapeLocation{Suburb: "Nowhere"})
	assert.Error(t, err)

	locations, err := d.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 3)
	assert.Equal(t, "NSW", locations[0].State)
	assert.Equal(t, "Parramatta", locations[2].Suburb)
}
