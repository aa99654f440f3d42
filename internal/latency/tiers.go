// Package latency implements the Latency Tier Calculator (C6): percentile
// targets with a noise margin, breach-probability estimation, and bootstrap
// confidence intervals over a window of historical latency samples.
package latency

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

// Sample is one window's latency percentile aggregate, the input unit C6
// operates over (the pipeline may supply several windows of history).
type Sample struct {
	P50Ms  float64
	P95Ms  float64
	P99Ms  float64
	P999Ms float64
}

// Tier is one row of the three-tier latency recommendation.
type Tier struct {
	Level             TierLevel
	TargetMs          float64
	TargetMsRounded   int
	PercentileLabel   string
	BreachProbability float64
	CILowerMs         float64
	CIUpperMs         float64
}

const (
	defaultMargin = 0.05
	sharedMargin  = 0.10
)

// Options parameterizes the noise margin and bootstrap procedure.
type Options struct {
	SharedInfrastructure bool
	Margin               float64 // 0 selects the default (0.05, or 0.10 when SharedInfrastructure)
	BootstrapResamples   int
	ConfidenceLowerPctl  float64
	ConfidenceUpperPctl  float64
}

// DefaultOptions matches the design constants: 1,000 resamples, 95% CI,
// margin selected by SharedInfrastructure.
func DefaultOptions(sharedInfrastructure bool) Options {
	return Options{
		SharedInfrastructure: sharedInfrastructure,
		BootstrapResamples:   1000,
		ConfidenceLowerPctl:  2.5,
		ConfidenceUpperPctl:  97.5,
	}
}

func (o Options) margin() float64 {
	if o.Margin > 0 {
		return o.Margin
	}
	if o.SharedInfrastructure {
		return sharedMargin
	}
	return defaultMargin
}

type tierSpec struct {
	level       TierLevel
	label       string
	extract     func(Sample) float64
	applyMargin bool
}

var specs = []tierSpec{
	{level: TierConservative, label: "p999", extract: func(s Sample) float64 { return s.P999Ms }, applyMargin: true},
	{level: TierBalanced, label: "p99", extract: func(s Sample) float64 { return s.P99Ms }, applyMargin: true},
	{level: TierAggressive, label: "p95", extract: func(s Sample) float64 { return s.P95Ms }, applyMargin: false},
}

// ComputeTiers builds the three latency tiers from a non-empty sequence of
// per-window samples. rng drives bootstrap resampling.
func ComputeTiers(samples []Sample, rng *rand.Rand, opts Options) (map[TierLevel]Tier, error) {
	if len(samples) == 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "latency sample sequence must be non-empty")
	}
	for _, s := range samples {
		if s.P50Ms < 0 || s.P95Ms < 0 || s.P99Ms < 0 || s.P999Ms < 0 {
			return nil, apperror.New(apperror.CodeInvalidInput, "latency percentiles must be non-negative")
		}
		if s.P50Ms > s.P95Ms || s.P95Ms > s.P99Ms || s.P99Ms > s.P999Ms {
			return nil, apperror.New(apperror.CodeInvalidInput, "latency percentiles must satisfy p50 <= p95 <= p99 <= p999")
		}
	}

	margin := opts.margin()
	tiers := make(map[TierLevel]Tier, 3)

	for _, spec := range specs {
		series := make([]float64, len(samples))
		for i, s := range samples {
			series[i] = spec.extract(s)
		}

		maxVal := maxOf(series)
		target := maxVal
		if spec.applyMargin {
			target = maxVal * (1 + margin)
		}

		breach := breachProbability(series, target)

		statFn := func(d []float64) float64 { return maxOf(d) }
		ciLower, ciUpper := statmath.BootstrapCI(series, rng, opts.BootstrapResamples, statFn, opts.ConfidenceLowerPctl, opts.ConfidenceUpperPctl)
		if spec.applyMargin {
			ciLower *= 1 + margin
			ciUpper *= 1 + margin
		}

		tiers[spec.level] = Tier{
			Level:             spec.level,
			TargetMs:          target,
			TargetMsRounded:   int(target + 0.5),
			PercentileLabel:   spec.label,
			BreachProbability: breach,
			CILowerMs:         ciLower,
			CIUpperMs:         ciUpper,
		}
	}

	return tiers, nil
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// breachProbability is the fraction of samples whose percentile value
// strictly exceeds the tier target.
func breachProbability(series []float64, target float64) float64 {
	over := 0
	for _, v := range series {
		if v > target {
			over++
		}
	}
	return float64(over) / float64(len(series))
}
