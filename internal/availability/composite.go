// Package availability implements the Composite Availability reducer (C4)
// and the Availability Tier Calculator (C5): together they turn a service's
// historical availability and its downstream dependency subgraph into a
// dependency-capped three-tier recommendation.
package availability

import (
	"fmt"

	"sloengine/pkg/apperror"
)

// Dependency is one downstream edge's contribution to the composite
// calculation, already resolved to an availability ratio.
type Dependency struct {
	ServiceID        int64
	Availability     float64
	IsHard           bool
	IsRedundantGroup bool
}

// CompositeResult is the achievable-availability upper bound for a service
// given its dependency subgraph, together with the bottleneck explanation
// and per-dependency contribution map required by the pipeline's
// dependency-impact block.
type CompositeResult struct {
	Composite           float64
	Bottleneck          string
	SoftDependencyCount int
	Contributions       map[int64]float64
}

func validateRatio(v float64, label string) error {
	if v < 0 || v > 1 {
		return apperror.NewWithField(apperror.CodeInvalidInput, fmt.Sprintf("%s must be within [0,1]", label), label)
	}
	return nil
}

// Composite reduces selfAvailability and the hard dependency set to an
// achievable-availability upper bound per §4.4: serial hard dependencies
// multiply directly, all redundant-group members form a single parallel
// group (1 - product(1-Ri)), and soft dependencies are dropped but counted.
func Composite(selfAvailability float64, deps []Dependency) (*CompositeResult, error) {
	if err := validateRatio(selfAvailability, "self_availability"); err != nil {
		return nil, err
	}

	var serial []Dependency
	var group []Dependency
	softCount := 0

	for _, d := range deps {
		if err := validateRatio(d.Availability, "dependency_availability"); err != nil {
			return nil, err
		}
		if !d.IsHard {
			softCount++
			continue
		}
		if d.IsRedundantGroup {
			group = append(group, d)
		} else {
			serial = append(serial, d)
		}
	}

	contributions := make(map[int64]float64, len(serial)+len(group))
	composite := selfAvailability

	for _, d := range serial {
		composite *= d.Availability
		contributions[d.ServiceID] = d.Availability
	}

	var groupR float64
	if len(group) > 0 {
		unavailability := 1.0
		for _, d := range group {
			unavailability *= 1 - d.Availability
			contributions[d.ServiceID] = d.Availability
		}
		groupR = 1 - unavailability
		composite *= groupR
	}

	bottleneck := bottleneckDescription(serial, group, groupR, softCount)

	return &CompositeResult{
		Composite:           composite,
		Bottleneck:          bottleneck,
		SoftDependencyCount: softCount,
		Contributions:       contributions,
	}, nil
}

func bottleneckDescription(serial, group []Dependency, groupR float64, softCount int) string {
	if len(serial) == 0 && len(group) == 0 {
		if softCount > 0 {
			return fmt.Sprintf("No hard dependencies (%d soft dependency(ies) excluded)", softCount)
		}
		return "No dependencies"
	}

	var serialMin *Dependency
	for i := range serial {
		if serialMin == nil || serial[i].Availability < serialMin.Availability {
			serialMin = &serial[i]
		}
	}

	if len(group) == 0 {
		return fmt.Sprintf("Serial dependency %d at %.4f%% is the bottleneck", serialMin.ServiceID, serialMin.Availability*100)
	}

	var groupWeakest *Dependency
	for i := range group {
		if groupWeakest == nil || group[i].Availability < groupWeakest.Availability {
			groupWeakest = &group[i]
		}
	}

	if serialMin == nil || groupR < serialMin.Availability {
		return fmt.Sprintf("Redundant group of %d (weakest member %d at %.4f%%, group R=%.6f) is the bottleneck", len(group), groupWeakest.ServiceID, groupWeakest.Availability*100, groupR)
	}
	return fmt.Sprintf("Serial dependency %d at %.4f%% is the bottleneck", serialMin.ServiceID, serialMin.Availability*100)
}
