// Package graph holds the dependency graph store: services, their directed
// dependency edges, circular-dependency alerts, bounded traversal, and
// strongly-connected-component cycle detection.
package graph

import (
	"time"

	"sloengine/pkg/apperror"
)

// Criticality classifies how important a service is to the business.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// ServiceType distinguishes services owned internally from external ones
// with a published SLA.
type ServiceType string

const (
	ServiceTypeInternal ServiceType = "internal"
	ServiceTypeExternal ServiceType = "external"
)

// CommunicationMode describes how a dependency edge is invoked.
type CommunicationMode string

const (
	CommunicationSync  CommunicationMode = "sync"
	CommunicationAsync CommunicationMode = "async"
)

// EdgeCriticality classifies how essential a dependency edge is to its
// caller's own availability.
type EdgeCriticality string

const (
	EdgeCriticalityHard     EdgeCriticality = "hard"
	EdgeCriticalitySoft     EdgeCriticality = "soft"
	EdgeCriticalityDegraded EdgeCriticality = "degraded"
)

// DiscoverySource names where an edge observation came from.
type DiscoverySource string

const (
	DiscoveryManual           DiscoverySource = "manual"
	DiscoveryOTelServiceGraph DiscoverySource = "otel_service_graph"
	DiscoveryKubernetes       DiscoverySource = "kubernetes"
	DiscoveryServiceMesh      DiscoverySource = "service_mesh"
)

// AlertStatus is the lifecycle state of a CircularDependencyAlert.
type AlertStatus string

const (
	AlertStatusOpen         AlertStatus = "open"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Direction selects which adjacency a traversal follows.
type Direction string

const (
	DirectionDownstream Direction = "downstream"
	DirectionUpstream   Direction = "upstream"
	DirectionBoth       Direction = "both"
)

const autoDiscoveredMarker = "auto_discovered"

// Service is a node in the dependency graph.
type Service struct {
	ID           int64
	BusinessID   string
	Criticality  Criticality
	OwningTeam   string
	Type         ServiceType
	PublishedSLA *float64
	Metadata     map[string]string
	Discovered   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewDiscoveredService builds a placeholder service for an edge endpoint
// that has never been explicitly registered. It starts with the
// source=auto_discovered metadata marker required by the data model.
func NewDiscoveredService(businessID string) *Service {
	return &Service{
		BusinessID:  businessID,
		Criticality: CriticalityMedium,
		Type:        ServiceTypeInternal,
		Metadata:    map[string]string{"source": autoDiscoveredMarker},
		Discovered:  true,
	}
}

// Validate checks the invariants from the data model: a non-empty business
// id, and a published SLA whenever the service is external.
func (s *Service) Validate() error {
	if s.BusinessID == "" {
		return apperror.NewWithField(apperror.CodeInvalidInput, "business id is required", "business_id")
	}
	if s.Type == ServiceTypeExternal && s.PublishedSLA == nil {
		return apperror.NewWithField(apperror.CodeInvalidInput, "external services require a published SLA", "published_sla")
	}
	if s.PublishedSLA != nil && (*s.PublishedSLA < 0 || *s.PublishedSLA > 1) {
		return apperror.NewWithField(apperror.CodeInvalidInput, "published SLA must be within [0,1]", "published_sla")
	}
	return nil
}

// ServiceDependency is a directed edge from a caller to a callee.
type ServiceDependency struct {
	ID                int64
	SourceID          int64
	TargetID          int64
	CommunicationMode CommunicationMode
	Criticality       EdgeCriticality
	Protocol          string
	TimeoutMs         *int
	RetryConfig       string
	DiscoverySource   DiscoverySource
	Confidence        float64
	LastObservedAt    time.Time
	IsStale           bool
}

// IsHardSync reports whether this edge is the kind that enters the
// composite availability calculation: hard criticality, synchronous call.
func (e *ServiceDependency) IsHardSync() bool {
	return e.Criticality == EdgeCriticalityHard && e.CommunicationMode == CommunicationSync
}

// Validate checks the no-self-loop invariant. Source/target ids are assigned
// by the store, so zero values are acceptable pre-insert; what matters is
// that they don't end up equal.
func (e *ServiceDependency) Validate() error {
	if e.SourceID != 0 && e.SourceID == e.TargetID {
		return apperror.New(apperror.CodeSelfLoop, "dependency edge cannot target its own source")
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return apperror.NewWithField(apperror.CodeInvalidInput, "confidence must be within [0,1]", "confidence")
	}
	return nil
}

// CircularDependencyAlert records a detected cycle pending operator triage.
type CircularDependencyAlert struct {
	ID             int64
	CyclePath      []string
	Status         AlertStatus
	Acknowledger   string
	ResolutionNote string
	DetectedAt     time.Time
}

// Acknowledge transitions an open alert to acknowledged. The acknowledger
// name is required.
func (a *CircularDependencyAlert) Acknowledge(by string) error {
	if by == "" {
		return apperror.NewWithField(apperror.CodeInvalidInput, "acknowledger is required", "acknowledger")
	}
	if a.Status != AlertStatusOpen {
		return apperror.New(apperror.CodeRecommendationConflict, "only an open alert can be acknowledged")
	}
	a.Status = AlertStatusAcknowledged
	a.Acknowledger = by
	return nil
}

// Resolve transitions an alert (from any non-resolved state) to resolved.
// A non-empty resolution note is required; a resolved alert cannot be
// re-acknowledged or re-resolved.
func (a *CircularDependencyAlert) Resolve(note string) error {
	if note == "" {
		return apperror.NewWithField(apperror.CodeInvalidInput, "resolution note is required", "resolution_note")
	}
	if a.Status == AlertStatusResolved {
		return apperror.New(apperror.CodeRecommendationConflict, "alert is already resolved")
	}
	a.Status = AlertStatusResolved
	a.ResolutionNote = note
	return nil
}

// EdgeKey identifies the conflict target for upsert_edges: (source, target,
// discovery_source). The same logical edge reported by multiple discovery
// mechanisms is merged, not duplicated.
type EdgeKey struct {
	SourceID        int64
	TargetID        int64
	DiscoverySource DiscoverySource
}

// AdjacencySnapshot maps a service's internal id to the internal ids it
// depends on directly, restricted to non-stale edges. This is the input
// shape the cycle detector (C2) consumes.
type AdjacencySnapshot map[int64][]int64

// TraverseResult is the subgraph reachable from a root within a bounded
// depth: deduplicated nodes and the edges that connect them.
type TraverseResult struct {
	Nodes []Service
	Edges []ServiceDependency
}
