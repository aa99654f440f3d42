package graph

import "context"

// Store is the Graph Store contract (C1): bulk upsert of services and
// edges, bounded directional traversal, an adjacency snapshot for the
// cycle detector, and staleness sweeping.
type Store interface {
	// UpsertServices inserts or updates services keyed by business id.
	// Mutable fields are updated and updated_at is bumped; the assigned
	// internal ids are returned in input order.
	UpsertServices(ctx context.Context, services []*Service) ([]int64, error)

	// UpsertEdges inserts or updates edges keyed by (source, target,
	// discovery_source). Mutable fields, last_observed_at are refreshed
	// and is_stale is cleared.
	UpsertEdges(ctx context.Context, edges []*ServiceDependency) ([]int64, error)

	// Traverse returns the subgraph reachable from root in the given
	// direction within maxDepth hops (1..10), cycle-safe. When
	// includeStale is false, stale edges are excluded from expansion.
	Traverse(ctx context.Context, root int64, direction Direction, maxDepth int, includeStale bool) (*TraverseResult, error)

	// AdjacencySnapshot returns source -> targets over non-stale edges
	// only, for the whole graph.
	AdjacencySnapshot(ctx context.Context) (AdjacencySnapshot, error)

	// MarkStale sets is_stale=true on edges not observed within
	// thresholdHours, returning the count newly marked. Idempotent.
	MarkStale(ctx context.Context, thresholdHours int) (int, error)

	// GetServiceByBusinessID looks up a service by its business identifier.
	// Returns (nil, nil) when not found.
	GetServiceByBusinessID(ctx context.Context, businessID string) (*Service, error)

	// ListServices returns up to limit services, optionally excluding
	// auto-discovered placeholders.
	ListServices(ctx context.Context, limit int, excludeDiscovered bool) ([]*Service, error)

	// ServicesByIDs resolves a set of internal ids to their Service rows,
	// used to map a detected cycle's internal ids back to business ids.
	ServicesByIDs(ctx context.Context, ids []int64) ([]Service, error)
}
