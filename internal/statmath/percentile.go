// Package statmath holds the small numeric primitives the tier calculators
// share: rank-interpolated percentiles and bootstrap confidence intervals.
// Both C5 (availability) and C6 (latency) build on the same two functions,
// so the resampling behavior and rounding rules only need to be right once.
package statmath

import (
	"math/rand"
	"sort"
)

// Percentile returns the value at percentile p (0..100) of a pre-sorted
// ascending slice, using linear interpolation between the two nearest
// ranks. A single-element slice short-circuits to that element regardless
// of p.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// SortedCopy returns an ascending-sorted copy of data, leaving the input
// untouched.
func SortedCopy(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	sort.Float64s(out)
	return out
}

// BootstrapCI draws `resamples` samples-with-replacement of the same size
// as data, applies statFn to each resample, and reports the lowerPctl and
// upperPctl percentiles (0..100) of the resulting bootstrap distribution.
// A single data point short-circuits to (statFn(data), statFn(data)), since
// every resample of a one-element population is that element.
func BootstrapCI(data []float64, rng *rand.Rand, resamples int, statFn func([]float64) float64, lowerPctl, upperPctl float64) (float64, float64) {
	if len(data) <= 1 {
		v := statFn(data)
		return v, v
	}

	estimates := make([]float64, resamples)
	resample := make([]float64, len(data))
	for i := 0; i < resamples; i++ {
		for j := range resample {
			resample[j] = data[rng.Intn(len(data))]
		}
		estimates[i] = statFn(resample)
	}

	sort.Float64s(estimates)
	return Percentile(estimates, lowerPctl), Percentile(estimates, upperPctl)
}
