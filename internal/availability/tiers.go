package availability

import (
	"math/rand"

	"sloengine/internal/statmath"
	"sloengine/pkg/apperror"
)

// TierLevel names one of the three recommendation tiers.
type TierLevel string

const (
	TierConservative TierLevel = "conservative"
	TierBalanced     TierLevel = "balanced"
	TierAggressive   TierLevel = "aggressive"
)

// Tier is one row of the three-tier availability recommendation, expressed
// as a percentage (ratio * 100) per §4.5.
type Tier struct {
	Level              TierLevel
	TargetPercent      float64
	ErrorBudgetMinutes float64
	BreachProbability  float64
	CILowerPercent     float64
	CIUpperPercent     float64
}

// monthlyMinutes is the 30-day accounting month used for error budgets.
const monthlyMinutes = 43_200.0

// tierPercentiles maps each tier to the percentile of the bucket
// distribution it targets, per §4.5.
var tierPercentiles = map[TierLevel]float64{
	TierConservative: 0.1,
	TierBalanced:      1,
	TierAggressive:    5,
}

// Options parameterizes the bootstrap procedure so callers (and tests) can
// hold resample count and percentile bounds steady without touching the
// calculation itself.
type Options struct {
	BootstrapResamples int
	ConfidenceLowerPctl float64
	ConfidenceUpperPctl float64
}

// DefaultOptions matches the design constants: 1,000 resamples, 95% CI.
func DefaultOptions() Options {
	return Options{BootstrapResamples: 1000, ConfidenceLowerPctl: 2.5, ConfidenceUpperPctl: 97.5}
}

// ComputeTiers builds the three availability tiers from a non-empty,
// chronological bucket series and the C4 composite bound. rng drives the
// bootstrap resampling; callers seed it deterministically per service for
// reproducible recommendations.
func ComputeTiers(buckets []float64, compositeBound float64, rng *rand.Rand, opts Options) (map[TierLevel]Tier, error) {
	if len(buckets) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "availability bucket distribution must be non-empty")
	}
	if err := validateRatio(compositeBound, "composite_bound"); err != nil {
		return nil, err
	}
	for _, b := range buckets {
		if err := validateRatio(b, "bucket_ratio"); err != nil {
			return nil, err
		}
	}

	sorted := statmath.SortedCopy(buckets)
	tiers := make(map[TierLevel]Tier, 3)

	for _, level := range []TierLevel{TierConservative, TierBalanced, TierAggressive} {
		pctl := tierPercentiles[level]
		target := statmath.Percentile(sorted, pctl)

		// Conservative and Balanced are capped at the dependency ceiling;
		// Aggressive represents achievable potential absent that ceiling.
		if level != TierAggressive && target > compositeBound {
			target = compositeBound
		}

		breach := breachProbability(buckets, target)

		statFn := func(d []float64) float64 { return statmath.Percentile(statmath.SortedCopy(d), pctl) }
		ciLower, ciUpper := statmath.BootstrapCI(buckets, rng, opts.BootstrapResamples, statFn, opts.ConfidenceLowerPctl, opts.ConfidenceUpperPctl)
		if level != TierAggressive {
			if ciLower > compositeBound {
				ciLower = compositeBound
			}
			if ciUpper > compositeBound {
				ciUpper = compositeBound
			}
		}

		tiers[level] = Tier{
			Level:             level,
			TargetPercent:     target * 100,
			ErrorBudgetMinutes: errorBudgetMinutes(target * 100),
			BreachProbability: breach,
			CILowerPercent:    ciLower * 100,
			CIUpperPercent:    ciUpper * 100,
		}
	}

	return tiers, nil
}

// breachProbability is the fraction of buckets strictly below target.
func breachProbability(buckets []float64, target float64) float64 {
	below := 0
	for _, b := range buckets {
		if b < target {
			below++
		}
	}
	return float64(below) / float64(len(buckets))
}

// errorBudgetMinutes converts a percentage target to monthly error-budget
// minutes over a 30-day accounting month: (100-p)/100 * 43200.
func errorBudgetMinutes(targetPercent float64) float64 {
	return (100 - targetPercent) / 100 * monthlyMinutes
}
