// Package telemetry defines the Telemetry Port the recommendation pipeline
// queries for historical availability and latency data, together with a
// seed-driven mock implementation for development and tests.
package telemetry

import (
	"context"
	"time"
)

// AvailabilitySliData is the availability indicator over a window.
type AvailabilitySliData struct {
	ServiceBusinessID string
	GoodEvents        int64
	TotalEvents       int64
	Ratio             float64
	WindowStart       time.Time
	WindowEnd         time.Time
	SampleCount       int64
}

// ErrorRate is the derived error rate, 1 - Ratio.
func (d *AvailabilitySliData) ErrorRate() float64 {
	return 1 - d.Ratio
}

// LatencySliData is the latency percentile indicator over a window.
type LatencySliData struct {
	ServiceBusinessID string
	P50Ms             float64
	P95Ms             float64
	P99Ms             float64
	P999Ms            float64
	WindowStart       time.Time
	WindowEnd         time.Time
	SampleCount       int64
}

// Port is the interface the pipeline orchestrator queries; a real
// implementation backs it with Prometheus/Mimir, this module only ships a
// seed-driven mock (C3 is otherwise out of scope per the engine's purpose).
type Port interface {
	// Availability returns the availability SLI for the window, or nil
	// when no data is available.
	Availability(ctx context.Context, serviceBusinessID string, windowDays int) (*AvailabilitySliData, error)

	// LatencyPercentiles returns the latency SLI for the window, or nil
	// when no data is available.
	LatencyPercentiles(ctx context.Context, serviceBusinessID string, windowDays int) (*LatencySliData, error)

	// RollingAvailability returns one availability ratio per bucket,
	// chronologically ordered; empty when no data.
	RollingAvailability(ctx context.Context, serviceBusinessID string, windowDays, bucketHours int) ([]float64, error)

	// DataCompleteness reports the fraction of expected samples present
	// for the window, in [0,1].
	DataCompleteness(ctx context.Context, serviceBusinessID string, windowDays int) (float64, error)
}

// DefaultDependencyAvailability is substituted for a hard-sync dependency
// whose own telemetry has no data (§4.4).
const DefaultDependencyAvailability = 0.999
