// Package enrichment scores a suburb's surroundings from Google Maps data:
// weighted points of interest per resident and driving distance to the
// nearest CBD. Both scores are best effort and come back nil on failure.
package enrichment

import (
	"context"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"propure/server/config"
	"propure/server/internal/models"
	"propure/server/internal/stats"
)

type PlaceCounter interface {
	NearbySearch(ctx context.Context, lat, lng float64, placeType string, radius int) (int, error)
}

type DistanceMatrix interface {
	DrivingDistances(ctx context.Context, origin string, destinations []string) ([]float64, error)
}

type Category struct {
	Name       string
	Weight     float64
	PlaceTypes []string
}

var Categories = []Category{
	{Name: "transport", Weight: 3, PlaceTypes: []string{"subway_station", "train_station", "bus_station", "transit_station", "airport"}},
	{Name: "commercial", Weight: 2.5, PlaceTypes: []string{"office", "industrial_estate", "business_park", "corporate_office"}},
	{Name: "education", Weight: 2, PlaceTypes: []string{"school", "university"}},
	{Name: "health", Weight: 1.5, PlaceTypes: []string{"hospital", "medical_center"}},
	{Name: "retail", Weight: 1, PlaceTypes: []string{"shopping_mall", "supermarket", "movie_theater", "park"}},
}

const (
	DefaultRadius = 5000

	// Observed per-capita band; values outside it are clamped.
	minPerCapita = 0.00005
	maxPerCapita = 0.0035

	maxCBDDistanceKm = 50.0
)

type Enricher struct {
	places    PlaceCounter
	distances DistanceMatrix
	radius    int
	logger    *logrus.Logger
}

func NewEnricher(places PlaceCounter, distances DistanceMatrix, radius int, logger *logrus.Logger) *Enricher {
	if radius <= 0 {
		radius = DefaultRadius
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Enricher{
		places:    places,
		distances: distances,
		radius:    radius,
		logger:    logger,
	}
}

// CategoryCounts runs one nearby search per place type, all concurrently,
// and totals the results per category.
func (e *Enricher) CategoryCounts(ctx context.Context, center models.LatLng) (map[string]int, error) {
	counts := make(map[string]int, len(Categories))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, category := range Categories {
		for _, placeType := range category.PlaceTypes {
			name, placeType := category.Name, placeType
			g.Go(func() error {
				n, err := e.places.NearbySearch(ctx, center.Lat, center.Lng, placeType, e.radius)
				if err != nil {
					return err
				}
				mu.Lock()
				counts[name] += n
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// InfrastructureDensityScore maps weighted places per resident onto 0-10.
func (e *Enricher) InfrastructureDensityScore(ctx context.Context, center *models.LatLng, population float64) *float64 {
	if center == nil || population <= 0 || math.IsNaN(population) {
		return nil
	}

	counts, err := e.CategoryCounts(ctx, *center)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"lat": center.Lat,
			"lng": center.Lng,
		}).Warn("Infrastructure search failed")
		return nil
	}

	var weighted float64
	for _, category := range Categories {
		weighted += float64(counts[category.Name]) * category.Weight
	}

	score := stats.NormalizeToScale(weighted/population, minPerCapita, maxPerCapita, 0, 10)
	return &score
}

// CBDProximityScore is 100 at a CBD falling linearly to 0 at 50 km or more,
// using the nearest routable CBD of the state.
func (e *Enricher) CBDProximityScore(ctx context.Context, address, state string) *float64 {
	cbds := config.CBDsForState(state)
	if len(cbds) == 0 {
		return nil
	}

	distances, err := e.distances.DrivingDistances(ctx, address, cbds)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"address": address,
			"state":   state,
		}).Warn("CBD distance lookup failed")
		return nil
	}
	if len(distances) == 0 {
		return nil
	}

	nearest := distances[0]
	for _, d := range distances[1:] {
		nearest = math.Min(nearest, d)
	}

	clamped := math.Min(nearest, maxCBDDistanceKm)
	score := math.Round((maxCBDDistanceKm - clamped) / maxCBDDistanceKm * 100)
	return &score
}
