package geometry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"propure/server/internal/models"
)

// FallbackDelta is the half width, in degrees, of the box drawn around a
// center when the geocoder returned no bounds.
const FallbackDelta = 0.01

// FromGeocode builds a suburb's geometry from a geocoded center and its
// optional bounds.
func FromGeocode(lat, lng float64, bounds *models.Bounds) models.SuburbGeometry {
	center := orb.Point{lng, lat}

	var bound orb.Bound
	if bounds != nil {
		bound = orb.MultiPoint{
			{bounds.Southwest.Lng, bounds.Southwest.Lat},
			{bounds.Northeast.Lng, bounds.Northeast.Lat},
		}.Bound()
	} else {
		bound = center.Bound().Pad(FallbackDelta)
	}

	return models.SuburbGeometry{
		Center: models.LatLng{Lat: lat, Lng: lng},
		Boundary: models.Bounds{
			Northeast: models.LatLng{Lat: bound.Top(), Lng: bound.Right()},
			Southwest: models.LatLng{Lat: bound.Bottom(), Lng: bound.Left()},
		},
	}
}

// Bound converts stored bounds back to an orb.Bound.
func Bound(b models.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Southwest.Lng, b.Southwest.Lat},
		Max: orb.Point{b.Northeast.Lng, b.Northeast.Lat},
	}
}

func Contains(g models.SuburbGeometry, lat, lng float64) bool {
	return Bound(g.Boundary).Contains(orb.Point{lng, lat})
}

// Feature renders a suburb's bounding box as a polygon feature carrying its
// scores.
func Feature(m models.SuburbMetrics) *geojson.Feature {
	feature := geojson.NewFeature(Bound(m.Geometry.Boundary).ToPolygon())
	feature.ID = m.Postcode
	feature.Properties = geojson.Properties{
		"postcode":                m.Postcode,
		"suburb":                  m.Suburb,
		"state":                   m.State,
		"center":                  []float64{m.Geometry.Center.Lng, m.Geometry.Center.Lat},
		"capital_growth_score":    m.Metrics.CapitalGrowthScore,
		"cash_flow_score":         m.Metrics.CashFlowScore,
		"risk_score":              m.Metrics.RiskScore,
		"data_completeness_score": m.Metrics.DataCompletenessScore,
		"typical_value":           m.Metrics.TypicalValue,
		"net_yield":               m.Metrics.NetYield,
		"vacancy_rate":            m.Metrics.VacancyRate,
		"recorded_at":             m.RecordedAt.Format(time.RFC3339),
	}
	return feature
}

func FeatureCollection(metrics []models.SuburbMetrics) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range metrics {
		fc.Append(Feature(m))
	}
	return fc
}

// SaveFeatureCollection writes fc as indented GeoJSON, creating the parent
// directory when needed.
func SaveFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}
