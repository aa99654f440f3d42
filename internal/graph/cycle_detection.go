package graph

import (
	"context"

	"sloengine/pkg/apperror"
	"sloengine/pkg/logger"
)

// CycleDetectionRun summarizes one pass of the cycle-detection use case.
type CycleDetectionRun struct {
	CyclesFound   int
	AlertsCreated int
	AlertsKnown   int
}

// CycleDetectionUseCase runs Tarjan's algorithm over the live adjacency
// snapshot and turns any newly observed cycle into a persisted alert,
// mirroring the original DetectCircularDependenciesUseCase: snapshot ->
// detect -> map ids to business ids -> dedupe against existing alerts ->
// create.
type CycleDetectionUseCase struct {
	Store  Store
	Alerts AlertRepository
}

// NewCycleDetectionUseCase builds the use case over a graph store and an
// alert repository.
func NewCycleDetectionUseCase(store Store, alerts AlertRepository) *CycleDetectionUseCase {
	return &CycleDetectionUseCase{Store: store, Alerts: alerts}
}

// Execute snapshots the adjacency graph, detects cycles, and persists an
// open alert for every cycle not already known. A cycle whose alert already
// exists (exact path match) is counted but not re-created, matching the
// original's exists_for_cycle dedupe.
func (u *CycleDetectionUseCase) Execute(ctx context.Context) (*CycleDetectionRun, error) {
	adjacency, err := u.Store.AdjacencySnapshot(ctx)
	if err != nil {
		return nil, err
	}

	cycles := DetectCycles(adjacency)
	run := &CycleDetectionRun{CyclesFound: len(cycles)}

	for _, cycle := range cycles {
		path, err := u.businessIDsFor(ctx, cycle)
		if err != nil {
			return nil, err
		}

		known, err := u.Alerts.ExistsForCycle(ctx, path)
		if err != nil {
			return nil, err
		}
		if known {
			run.AlertsKnown++
			continue
		}

		alert := &CircularDependencyAlert{CyclePath: path, Status: AlertStatusOpen}
		if err := u.Alerts.Create(ctx, alert); err != nil {
			// A concurrent detection pass may have raced us to create the
			// same alert; that's a Conflict, not a failed run.
			if apperror.Is(err, apperror.CodeRecommendationConflict) {
				run.AlertsKnown++
				continue
			}
			return nil, err
		}
		run.AlertsCreated++
		logger.Warn("circular dependency detected", "cycle", path, "alert_id", alert.ID)
	}

	return run, nil
}

// businessIDsFor resolves a cycle's internal ids, in discovery order, back
// to the business identifiers CircularDependencyAlert.CyclePath stores.
func (u *CycleDetectionUseCase) businessIDsFor(ctx context.Context, cycle []int64) ([]string, error) {
	services, err := u.Store.ServicesByIDs(ctx, cycle)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]string, len(services))
	for _, s := range services {
		byID[s.ID] = s.BusinessID
	}

	path := make([]string, len(cycle))
	for i, id := range cycle {
		if businessID, ok := byID[id]; ok {
			path[i] = businessID
		} else {
			path[i] = ""
		}
	}
	return path, nil
}
