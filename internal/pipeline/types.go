// Package pipeline implements the Pipeline Orchestrator (C9): per-service
// recommendation generation, cold-start lookback extension, and response DTO
// assembly over the graph store, telemetry port, and recommendation
// repository.
package pipeline

import (
	"time"

	"sloengine/internal/recommendation"
)

// SLIFilter selects which SLI types a generate call covers.
type SLIFilter string

const (
	FilterAvailability SLIFilter = "availability"
	FilterLatency      SLIFilter = "latency"
	FilterAll          SLIFilter = "all"
)

func (f SLIFilter) wantsAvailability() bool { return f == FilterAvailability || f == FilterAll }
func (f SLIFilter) wantsLatency() bool      { return f == FilterLatency || f == FilterAll }

// GenerateRequest is the pipeline entry DTO.
type GenerateRequest struct {
	ServiceBusinessID     string
	SLITypeFilter         SLIFilter
	RequestedLookbackDays int
	ForceRegenerate       bool
}

// Window is an ISO-8601-ready lookback window.
type Window struct {
	Start time.Time
	End   time.Time
}

// RecommendationDTO is one generated (or cache-hit) SLI recommendation in
// the response.
type RecommendationDTO struct {
	SLIType     recommendation.SLIType
	Metric      string
	Tiers       map[recommendation.TierLevel]recommendation.Tier
	Explanation recommendation.Explanation
	DataQuality recommendation.DataQuality
	FromCache   bool
}

// GenerateResponse is the pipeline entry response DTO. A nil response (with
// a nil error) means the service was not found.
type GenerateResponse struct {
	ServiceBusinessID string
	GeneratedAt       time.Time
	LookbackWindow    Window
	Recommendations   []RecommendationDTO
	Warnings          []string
}
