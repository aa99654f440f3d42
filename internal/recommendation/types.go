// Package recommendation holds the SloRecommendation entity and the
// Recommendation Repository (C8): active/superseded/expired lifecycle with
// a transactional supersede-then-save primitive enforcing "at most one
// active recommendation per (service, sli type)".
package recommendation

import "time"

// SLIType is the kind of service level indicator a recommendation covers.
type SLIType string

const (
	SLIAvailability SLIType = "availability"
	SLILatency      SLIType = "latency"
)

// Status is the lifecycle state of a persisted recommendation.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
	StatusExpired    Status = "expired"
)

// TierLevel names one of the three recommendation tiers.
type TierLevel string

const (
	TierConservative TierLevel = "conservative"
	TierBalanced     TierLevel = "balanced"
	TierAggressive   TierLevel = "aggressive"
)

// Tier is one row of a three-tier recommendation. ErrorBudgetMinutes and
// the CI pair are optional for latency tiers; PercentileLabel and
// TargetMs are optional for availability tiers.
type Tier struct {
	Level              TierLevel
	Target             float64
	ErrorBudgetMinutes *float64
	BreachProbability  float64
	CILower            *float64
	CIUpper            *float64
	PercentileLabel    string
	TargetMs           *int
}

// Attribution is one feature's normalized contribution to the explanation.
type Attribution struct {
	Feature      string
	Contribution float64
	Detail       string
}

// DependencyImpact summarizes the composite availability reduction behind
// an availability recommendation. Absent for latency recommendations.
type DependencyImpact struct {
	CompositeBound      float64
	Bottleneck          string
	HardDependencyCount int
	SoftDependencyCount int
	Contributions       map[int64]float64
}

// Explanation is the human-readable rationale attached to a recommendation.
type Explanation struct {
	Summary          string
	Attributions     []Attribution
	DependencyImpact *DependencyImpact
}

// DataQuality describes how much the pipeline trusted the telemetry window
// it generated the recommendation from.
type DataQuality struct {
	Completeness       float64
	Gaps               []string
	ConfidenceNote     string
	ColdStart          bool
	LookbackDaysActual int
}

// SloRecommendation is the persisted unit C8 manages.
type SloRecommendation struct {
	ID          int64
	ServiceID   int64
	SLIType     SLIType
	Metric      string
	Tiers       map[TierLevel]Tier
	Explanation Explanation
	DataQuality DataQuality
	WindowStart time.Time
	WindowEnd   time.Time
	GeneratedAt time.Time
	ExpiresAt   time.Time
	Status      Status
}

// DefaultExpiry is the default validity window: 24 hours from generation.
const DefaultExpiry = 24 * time.Hour
