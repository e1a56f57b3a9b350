package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"propure/server/internal/models"
)

type mockMaps struct {
	mock.Mock
}

func (m *mockMaps) NearbySearch(ctx context.Context, lat, lng float64, placeType string, radius int) (int, error) {
	args := m.Called(placeType, radius)
	return args.Int(0), args.Error(1)
}

func (m *mockMaps) DrivingDistances(ctx context.Context, origin string, destinations []string) ([]float64, error) {
	args := m.Called(origin, destinations)
	km, _ := args.Get(0).([]float64)
	return km, args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestInfrastructureDensityScore(t *testing.T) {
	maps := new(mockMaps)
	maps.On("NearbySearch", "train_station", 5000).Return(10, nil)
	maps.On("NearbySearch", "school", 5000).Return(5, nil)
	maps.On("NearbySearch", mock.Anything, 5000).Return(0, nil)

	e := NewEnricher(maps, maps, 0, quietLogger())
	center := &models.LatLng{Lat: -37.82, Lng: 145.0}

	// 10 * 3 + 5 * 2 = 40 weighted places over 20000 residents = 0.002
	score := e.InfrastructureDensityScore(context.Background(), center, 20000)
	require.NotNil(t, score)
	assert.InDelta(t, (0.002-0.00005)/(0.0035-0.00005)*10, *score, 1e-9)

	// a tiny population saturates the band
	score = e.InfrastructureDensityScore(context.Background(), center, 1)
	require.NotNil(t, score)
	assert.Equal(t, 10.0, *score)

	total := 0
	for _, c := range Categories {
		total += len(c.PlaceTypes)
	}
	maps.AssertNumberOfCalls(t, "NearbySearch", 2*total)
}

func TestInfrastructureDensityScore_MissingInputs(t *testing.T) {
	maps := new(mockMaps)
	e := NewEnricher(maps, maps, 5000, quietLogger())

	assert.Nil(t, e.InfrastructureDensityScore(context.Background(), nil, 1000))
	assert.Nil(t, e.InfrastructureDensityScore(context.Background(), &models.LatLng{}, 0))
	maps.AssertNotCalled(t, "NearbySearch", mock.Anything, mock.Anything)
}

func TestInfrastructureDensityScore_SearchFailure(t *testing.T) {
	maps := new(mockMaps)
	maps.On("NearbySearch", "hospital", 2000).Return(0, errors.New("quota exceeded"))
	maps.On("NearbySearch", mock.Anything, 2000).Return(1, nil)

	e := NewEnricher(maps, maps, 2000, quietLogger())
	score := e.InfrastructureDensityScore(context.Background(), &models.LatLng{Lat: -33.8, Lng: 151.2}, 5000)
	assert.Nil(t, score)
}

func TestCBDProximityScore(t *testing.T) {
	tests := []struct {
		name      string
		distances []float64
		err       error
		expected  *float64
	}{
		{name: "nearest wins", distances: []float64{30, 12.5, 48}, expected: ptr(75)},
		{name: "beyond cap", distances: []float64{80, 120}, expected: ptr(0)},
		{name: "at the CBD", distances: []float64{0}, expected: ptr(100)},
		{name: "nothing routable", distances: nil, expected: nil},
		{name: "lookup error", err: errors.New("timeout"), expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maps := new(mockMaps)
			maps.On("DrivingDistances", "Richmond, VIC, 3121", mock.AnythingOfType("[]string")).Return(tt.distances, tt.err)

			e := NewEnricher(maps, maps, 5000, quietLogger())
			assert.Equal(t, tt.expected, e.CBDProximityScore(context.Background(), "Richmond, VIC, 3121", "VIC"))
			maps.AssertExpectations(t)
		})
	}
}

func TestCBDProximityScore_UsesStateDestinations(t *testing.T) {
	maps := new(mockMaps)
	maps.On("DrivingDistances", "Hobart, TAS, 7000", []string{"Hobart CBD TAS", "Launceston TAS"}).Return([]float64{1.2}, nil)

	e := NewEnricher(maps, maps, 5000, quietLogger())
	score := e.CBDProximityScore(context.Background(), "Hobart, TAS, 7000", "tas")

	require.NotNil(t, score)
	assert.Equal(t, 98.0, *score)
}

func TestCBDProximityScore_UnknownState(t *testing.T) {
	maps := new(mockMaps)
	e := NewEnricher(maps, maps, 5000, quietLogger())

	assert.Nil(t, e.CBDProximityScore(context.Background(), "Somewhere", "XX"))
	maps.AssertNotCalled(t, "DrivingDistances", mock.Anything, mock.Anything)
}

func ptr(v float64) *float64 { return &v }
