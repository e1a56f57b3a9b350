package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		input    []float64
		expected float64
		ok       bool
	}{
		{name: "empty", input: nil, ok: false},
		{name: "odd length", input: []float64{3, 1, 2}, expected: 2, ok: true},
		{name: "even length", input: []float64{4, 1, 3, 2}, expected: 2.5, ok: true},
		{name: "single value", input: []float64{7}, expected: 7, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMedian_DoesNotReorderInput(t *testing.T) {
	input := []float64{3, 1, 2}
	Median(input)
	assert.Equal(t, []float64{3, 1, 2}, input)
}

func TestCAGR(t *testing.T) {
	got, ok := CAGR(100, 200, 4)
	assert.True(t, ok)
	assert.InDelta(t, 0.1892, got, 0.0001)

	for _, args := range [][3]float64{{0, 200, 4}, {100, 0, 4}, {100, 200, 0}, {-1, 200, 4}} {
		_, ok := CAGR(args[0], args[1], args[2])
		assert.False(t, ok, "CAGR%v should be undefined", args)
	}
}

func TestNormalizeToScale(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeToScale(-5, 0, 100, 0, 10))
	assert.Equal(t, 10.0, NormalizeToScale(150, 0, 100, 0, 10))
	assert.Equal(t, 5.0, NormalizeToScale(50, 0, 100, 0, 10))

	prev := NormalizeToScale(-10, 0, 100, 0, 10)
	for v := -10.0; v <= 110; v += 5 {
		cur := NormalizeToScale(v, 0, 100, 0, 10)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestNormalizeInverse(t *testing.T) {
	assert.Equal(t, 100.0, NormalizeInverse(0.01, 0.02, 0.08, 0, 100))
	assert.Equal(t, 0.0, NormalizeInverse(0.2, 0.02, 0.08, 0, 100))
	assert.InDelta(t, 50.0, NormalizeInverse(67.5, 50, 85, 0, 100), 1e-9)
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name       string
		components []Component
		expected   float64
		ok         bool
	}{
		{
			name: "all present reduces to weighted mean",
			components: []Component{
				{Score: f(80), Weight: 0.5},
				{Score: f(40), Weight: 0.3},
				{Score: f(10), Weight: 0.2},
			},
			expected: 80*0.5 + 40*0.3 + 10*0.2,
			ok:       true,
		},
		{
			name: "missing components are renormalized",
			components: []Component{
				{Score: f(80), Weight: 0.25},
				{Score: nil, Weight: 0.5},
				{Score: f(20), Weight: 0.25},
			},
			expected: 50,
			ok:       true,
		},
		{
			name: "all missing is undefined",
			components: []Component{
				{Score: nil, Weight: 0.4},
				{Score: nil, Weight: 0.6},
			},
			ok: false,
		},
		{
			name: "single present component keeps its score",
			components: []Component{
				{Score: nil, Weight: 0.9},
				{Score: f(33), Weight: 0.1},
			},
			expected: 33,
			ok:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := WeightedAverage(tt.components)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestStdDev(t *testing.T) {
	_, ok := StdDev([]float64{1})
	assert.False(t, ok)

	got, ok := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.True(t, ok)
	assert.InDelta(t, 2.138, got, 0.001)
}

func TestHHI(t *testing.T) {
	_, ok := HHI([]float64{0, 0})
	assert.False(t, ok)

	got, ok := HHI([]float64{50, 50})
	assert.True(t, ok)
	assert.InDelta(t, 0.5, got, 1e-9)

	got, _ = HHI([]float64{100})
	assert.Equal(t, 1.0, got)
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr(3, false))
	assert.Equal(t, 3.0, *Ptr(3, true))
}
