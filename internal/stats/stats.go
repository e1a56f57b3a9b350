// Package stats holds the numeric primitives the suburb scores are built from.
// Functions that can be undefined for their input return an ok flag instead
// of a zero value.
package stats

import (
	"math"
	"sort"
)

// Median sorts a copy of values; even lengths average the two middle values.
func Median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}

// Mean is the arithmetic average.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}

// CAGR is the compound annual growth rate (end/start)^(1/periods) - 1 as a fraction.
func CAGR(start, end, periods float64) (float64, bool) {
	if start <= 0 || end <= 0 || periods <= 0 {
		return 0, false
	}
	return math.Pow(end/start, 1/periods) - 1, true
}

// Clamp limits value to [min, max].
func Clamp(value, min, max float64) float64 {
	return math.Max(min, math.Min(max, value))
}

// NormalizeToScale clamps value to [min, max] and maps it linearly onto [scaleMin, scaleMax].
func NormalizeToScale(value, min, max, scaleMin, scaleMax float64) float64 {
	clamped := Clamp(value, min, max)
	return (clamped-min)/(max-min)*(scaleMax-scaleMin) + scaleMin
}

// NormalizeInverse is the mirror of NormalizeToScale: min maps to scaleMax.
func NormalizeInverse(value, min, max, scaleMin, scaleMax float64) float64 {
	clamped := Clamp(value, min, max)
	return (max-clamped)/(max-min)*(scaleMax-scaleMin) + scaleMin
}

// Component is one input of a weighted average. A nil Score is missing.
type Component struct {
	Score  *float64
	Weight float64
}

// WeightedAverage combines only the present components, rescaling their
// weights to sum to 1. It is undefined when no component is present.
func WeightedAverage(components []Component) (float64, bool) {
	var sum, totalWeight float64
	for _, c := range components {
		if c.Score == nil || math.IsNaN(*c.Score) || math.IsInf(*c.Score, 0) {
			continue
		}
		sum += *c.Score * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return 0, false
	}
	return sum / totalWeight, true
}

// StdDev is the sample standard deviation (n-1 denominator).
func StdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	mean, _ := Mean(values)

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance), true
}

// HHI is the Herfindahl-Hirschman index of a count distribution, in [0, 1].
func HHI(counts []float64) (float64, bool) {
	var total float64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0, false
	}

	var hhi float64
	for _, c := range counts {
		share := c / total
		hhi += share * share
	}
	return hhi, true
}

// Ptr returns &v when ok, nil otherwise.
func Ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
