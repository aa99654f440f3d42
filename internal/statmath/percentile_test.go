package statmath

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile_SinglePoint(t *testing.T) {
	assert.Equal(t, 0.995, Percentile([]float64{0.995}, 50))
	assert.Equal(t, 0.995, Percentile([]float64{0.995}, 0.1))
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := SortedCopy([]float64{1, 2, 3, 4, 5})
	assert.InDelta(t, 1.0, Percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 5.0, Percentile(sorted, 100), 1e-9)
	assert.InDelta(t, 3.0, Percentile(sorted, 50), 1e-9)
	assert.InDelta(t, 2.0, Percentile(sorted, 25), 1e-9)
}

func TestPercentile_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestBootstrapCI_SinglePointShortCircuits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	statFn := func(d []float64) float64 { return Percentile(SortedCopy(d), 1) }
	lower, upper := BootstrapCI([]float64{0.999}, rng, 1000, statFn, 2.5, 97.5)
	assert.Equal(t, 0.999, lower)
	assert.Equal(t, 0.999, upper)
}

func TestBootstrapCI_BoundsAroundPointEstimate(t *testing.T) {
	data := make([]float64, 50)
	for i := range data {
		data[i] = 0.99 + float64(i)*0.0001
	}
	rng := rand.New(rand.NewSource(42))
	statFn := func(d []float64) float64 { return Percentile(SortedCopy(d), 50) }
	lower, upper := BootstrapCI(data, rng, 1000, statFn, 2.5, 97.5)
	assert.LessOrEqual(t, lower, upper)
	point := statFn(data)
	assert.InDelta(t, point, lower, 0.01)
	assert.InDelta(t, point, upper, 0.01)
}
