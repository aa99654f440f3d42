// Package attribution implements the Attribution Engine (C7): a fixed
// heuristic weight table per SLI type, normalized into an ordered list of
// feature contributions that the pipeline attaches to each recommendation's
// explanation.
package attribution

import (
	"fmt"
	"sort"

	"sloengine/pkg/apperror"
)

// SLIType selects which weight table applies.
type SLIType string

const (
	SLIAvailability SLIType = "availability"
	SLILatency      SLIType = "latency"
)

// Contribution is one feature's normalized share of the explanation, with
// a human-readable detail string for display.
type Contribution struct {
	Feature      string
	Contribution float64
	Detail       string
}

var weights = map[SLIType]map[string]float64{
	SLIAvailability: {
		"historical_availability_mean": 0.40,
		"downstream_dependency_risk":   0.30,
		"external_api_reliability":     0.15,
		"deployment_frequency":         0.15,
	},
	SLILatency: {
		"p99_latency_historical": 0.50,
		"call_chain_depth":       0.22,
		"noisy_neighbor_margin":  0.15,
		"traffic_seasonality":    0.13,
	},
}

// Attribute computes the ordered, normalized feature attributions for the
// given SLI type. features must carry exactly the weight table's keys; a
// mismatch is reported as InvalidInput naming the missing and extra keys.
func Attribute(sliType SLIType, features map[string]float64) ([]Contribution, error) {
	table, ok := weights[sliType]
	if !ok {
		return nil, apperror.New(apperror.CodeInvalidInput, fmt.Sprintf("unknown sli type %q", sliType))
	}

	if err := validateKeys(table, features); err != nil {
		return nil, err
	}

	raw := make(map[string]float64, len(table))
	var sum float64
	for feature, weight := range table {
		r := features[feature] * weight
		raw[feature] = r
		sum += r
	}

	contributions := make([]Contribution, 0, len(table))
	for feature := range table {
		var c float64
		if sum == 0 {
			c = 1.0 / float64(len(table))
		} else {
			c = raw[feature] / sum
		}
		contributions = append(contributions, Contribution{
			Feature:      feature,
			Contribution: c,
			Detail:       fmt.Sprintf("%s: %v", feature, features[feature]),
		})
	}

	sort.Slice(contributions, func(i, j int) bool {
		return abs(contributions[i].Contribution) > abs(contributions[j].Contribution)
	})

	return contributions, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func validateKeys(table map[string]float64, features map[string]float64) error {
	var missing, extra []string
	for k := range table {
		if _, ok := features[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range features {
		if _, ok := table[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		err := apperror.New(apperror.CodeInvalidInput, "feature map does not match the weight table's keys")
		if len(missing) > 0 {
			err = err.WithDetails("missing", missing)
		}
		if len(extra) > 0 {
			err = err.WithDetails("extra", extra)
		}
		return err
	}
	return nil
}
