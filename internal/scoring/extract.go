package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"propure/server/internal/models"
	"propure/server/internal/stats"
)

// ParsePrice pulls the digits out of a free text price such as "$650 pw".
func ParsePrice(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	if cleaned == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func finite(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// ResolveRentalPrice prefers the direct price, then the rounded midpoint of
// the advertised range, then whichever single bound is present.
func ResolveRentalPrice(p models.PropertyRecord) (float64, bool) {
	if v, ok := ParsePrice(p.Price); ok {
		return v, true
	}

	from, hasFrom := finite(p.PriceFrom)
	to, hasTo := finite(p.PriceTo)
	switch {
	case hasFrom && hasTo:
		return math.Round((from + to) / 2), true
	case hasFrom:
		return from, true
	case hasTo:
		return to, true
	}
	return 0, false
}

// ResolvedRents returns the resolvable rents, skipping records without one.
func ResolvedRents(rentals []models.PropertyRecord) []float64 {
	rents := make([]float64, 0, len(rentals))
	for _, r := range rentals {
		if v, ok := ResolveRentalPrice(r); ok {
			rents = append(rents, v)
		}
	}
	return rents
}

// GroupSoldByYear buckets sold prices by the calendar year of the sale.
// Records missing a positive price or a sold date are skipped.
func GroupSoldByYear(sold []models.PropertyRecord) map[int][]float64 {
	grouped := make(map[int][]float64)
	for _, p := range sold {
		if p.SoldPrice == nil || *p.SoldPrice == 0 || p.SoldDate == nil {
			continue
		}
		year := p.SoldDate.Year()
		grouped[year] = append(grouped[year], *p.SoldPrice)
	}
	return grouped
}

// YearPoint is one value of a yearly series.
type YearPoint struct {
	Year  int
	Value float64
}

// YearlyMedianPrices is the median sold price per year, sorted by year.
func YearlyMedianPrices(sold []models.PropertyRecord) []YearPoint {
	grouped := GroupSoldByYear(sold)

	series := make([]YearPoint, 0, len(grouped))
	for year, prices := range grouped {
		if m, ok := stats.Median(prices); ok {
			series = append(series, YearPoint{Year: year, Value: m})
		}
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Year < series[j].Year })
	return series
}

// AnnualGrowthRates is the fractional change between consecutive points,
// skipping pairs where either side is zero.
func AnnualGrowthRates(series []YearPoint) []float64 {
	var rates []float64
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1].Value, series[i].Value
		if prev == 0 || cur == 0 {
			continue
		}
		rates = append(rates, (cur-prev)/prev)
	}
	return rates
}

func sortedYears[T any](grouped map[int]T) []int {
	years := make([]int, 0, len(grouped))
	for y := range grouped {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
