// Package batch implements the Batch Orchestrator (C10): it fans the
// pipeline orchestrator out over every eligible service under a bounded
// concurrency discipline, aggregating per-service outcomes without letting
// one failure cancel its siblings.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sloengine/internal/graph"
	"sloengine/internal/pipeline"
	"sloengine/pkg/logger"
	"sloengine/pkg/metrics"
)

// maxInFlight bounds simultaneously-executing per-service pipelines, per
// §4.10 step 3. The reference repo's SolverPool gates concurrency with a
// buffered channel used as a counting semaphore; this orchestrator follows
// the same shape with golang.org/x/sync/semaphore.Weighted, which composes
// more naturally with context cancellation (Acquire takes a ctx and returns
// its error once the ctx is done) than a raw channel send would.
const maxInFlight = 20

// listPageCap is the "large page cap" §4.10 step 1 calls for.
const listPageCap = 10_000

// Request is the batch orchestrator entry DTO.
type Request struct {
	SLITypeFilter         pipeline.SLIFilter
	LookbackDays          int
	ExcludeDiscoveredOnly bool
}

// Failure records one service's generate() failure.
type Failure struct {
	ServiceBusinessID string
	Error             string
}

// Summary is the batch orchestrator's aggregate result.
type Summary struct {
	Total           int
	Successful      int
	Failed          int
	Skipped         int
	DurationSeconds float64
	Failures        []Failure
}

// Orchestrator is the Batch Orchestrator (C10).
type Orchestrator struct {
	Graph    graph.Store
	Pipeline *pipeline.Orchestrator
	Metrics  *metrics.Metrics
	sem      *semaphore.Weighted
}

// NewOrchestrator builds a batch orchestrator over a graph store and a
// pipeline orchestrator, bounding per-service fan-out at maxInFlight.
func NewOrchestrator(store graph.Store, pl *pipeline.Orchestrator, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{Graph: store, Pipeline: pl, Metrics: m, sem: semaphore.NewWeighted(maxInFlight)}
}

// Run executes the batch: list eligible services, fan out a generate() call
// per service bounded at maxInFlight in-flight, and aggregate outcomes. A
// per-service failure never aborts the batch.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Summary, error) {
	start := time.Now()

	services, err := o.Graph.ListServices(ctx, listPageCap, false)
	if err != nil {
		return nil, err
	}

	summary := &Summary{Total: len(services)}
	var eligible []*graph.Service
	for _, svc := range services {
		if req.ExcludeDiscoveredOnly && svc.Discovered {
			summary.Skipped++
			continue
		}
		eligible = append(eligible, svc)
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, svc := range eligible {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			// Context cancelled: record the remaining services as failed
			// rather than silently dropping them from the tally.
			mu.Lock()
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{ServiceBusinessID: svc.BusinessID, Error: err.Error()})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(svc *graph.Service) {
			defer wg.Done()
			defer o.sem.Release(1)

			_, err := o.Pipeline.Generate(ctx, pipeline.GenerateRequest{
				ServiceBusinessID:     svc.BusinessID,
				SLITypeFilter:         req.SLITypeFilter,
				RequestedLookbackDays: req.LookbackDays,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{ServiceBusinessID: svc.BusinessID, Error: err.Error()})
				logger.Warn("batch: pipeline run failed", "service", svc.BusinessID, "error", err)
				return
			}
			summary.Successful++
		}(svc)
	}

	wg.Wait()

	summary.DurationSeconds = time.Since(start).Seconds()
	if o.Metrics != nil {
		o.Metrics.RecordBatchRun(time.Duration(summary.DurationSeconds*float64(time.Second)), summary.Successful, summary.Failed, summary.Skipped)
	}
	logger.Info("batch run complete",
		"total", summary.Total, "successful", summary.Successful, "failed", summary.Failed, "skipped", summary.Skipped,
		"duration_seconds", fmt.Sprintf("%.2f", summary.DurationSeconds))

	return summary, nil
}
