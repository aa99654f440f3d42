package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"sloengine/pkg/apperror"
	"sloengine/pkg/database"
)

// PostgresStore is the pgx-backed implementation of Store.
type PostgresStore struct {
	db database.DB
}

// NewPostgresStore wraps a database.DB connection as a graph Store.
func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertServices conflicts on business_id, updating mutable fields and
// updated_at, then returns the assigned internal ids in input order.
func (s *PostgresStore) UpsertServices(ctx context.Context, services []*Service) ([]int64, error) {
	if len(services) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(services))
	err := database.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		for i, svc := range services {
			if err := svc.Validate(); err != nil {
				return err
			}
			metadata, err := json.Marshal(svc.Metadata)
			if err != nil {
				return apperror.Wrap(err, apperror.CodeInvalidInput, "failed to encode service metadata")
			}
			var sla any
			if svc.PublishedSLA != nil {
				sla = *svc.PublishedSLA
			}
			row := tx.QueryRow(ctx, `
				INSERT INTO services (business_id, criticality, owning_team, type, published_sla, metadata, discovered, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
				ON CONFLICT (business_id) DO UPDATE SET
					criticality = EXCLUDED.criticality,
					owning_team = EXCLUDED.owning_team,
					type = EXCLUDED.type,
					published_sla = EXCLUDED.published_sla,
					metadata = EXCLUDED.metadata,
					updated_at = now()
				RETURNING id`,
				svc.BusinessID, string(svc.Criticality), nullString(svc.OwningTeam), string(svc.Type), sla, metadata, svc.Discovered,
			)
			var id int64
			if err := row.Scan(&id); err != nil {
				return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to upsert service")
			}
			svc.ID = id
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpsertEdges conflicts on (source_id, target_id, discovery_source),
// refreshing last_observed_at and clearing is_stale.
func (s *PostgresStore) UpsertEdges(ctx context.Context, edges []*ServiceDependency) ([]int64, error) {
	if len(edges) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(edges))
	err := database.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		for i, e := range edges {
			if err := e.Validate(); err != nil {
				return err
			}
			var timeout any
			if e.TimeoutMs != nil {
				timeout = *e.TimeoutMs
			}
			row := tx.QueryRow(ctx, `
				INSERT INTO service_dependencies
					(source_id, target_id, communication_mode, criticality, protocol, timeout_ms, retry_config, discovery_source, confidence, last_observed_at, is_stale)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), false)
				ON CONFLICT (source_id, target_id, discovery_source) DO UPDATE SET
					communication_mode = EXCLUDED.communication_mode,
					criticality = EXCLUDED.criticality,
					protocol = EXCLUDED.protocol,
					timeout_ms = EXCLUDED.timeout_ms,
					retry_config = EXCLUDED.retry_config,
					confidence = EXCLUDED.confidence,
					last_observed_at = now(),
					is_stale = false
				RETURNING id`,
				e.SourceID, e.TargetID, string(e.CommunicationMode), string(e.Criticality),
				nullString(e.Protocol), timeout, nullString(e.RetryConfig), string(e.DiscoverySource), e.Confidence,
			)
			var id int64
			if err := row.Scan(&id); err != nil {
				return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to upsert edge")
			}
			e.ID = id
			e.IsStale = false
			ids[i] = id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkStale flips is_stale=true on edges older than thresholdHours that
// are not already stale, and returns how many rows changed.
func (s *PostgresStore) MarkStale(ctx context.Context, thresholdHours int) (int, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE service_dependencies
		SET is_stale = true
		WHERE is_stale = false AND last_observed_at < now() - ($1 || ' hours')::interval`,
		thresholdHours,
	)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to mark edges stale")
	}
	return int(tag.RowsAffected()), nil
}

// AdjacencySnapshot loads every non-stale edge into a source -> targets map.
func (s *PostgresStore) AdjacencySnapshot(ctx context.Context) (AdjacencySnapshot, error) {
	rows, err := s.db.Query(ctx, `SELECT source_id, target_id FROM service_dependencies WHERE is_stale = false`)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to load adjacency snapshot")
	}
	defer rows.Close()

	snapshot := make(AdjacencySnapshot)
	for rows.Next() {
		var source, target int64
		if err := rows.Scan(&source, &target); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan adjacency row")
		}
		snapshot[source] = append(snapshot[source], target)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed reading adjacency rows")
	}
	return snapshot, nil
}

// GetServiceByBusinessID returns (nil, nil) when no such service exists.
func (s *PostgresStore) GetServiceByBusinessID(ctx context.Context, businessID string) (*Service, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, business_id, criticality, owning_team, type, published_sla, metadata, discovered, created_at, updated_at
		FROM services WHERE business_id = $1`, businessID)
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to load service")
	}
	return svc, nil
}

// ListServices returns up to limit services, most recently updated first.
func (s *PostgresStore) ListServices(ctx context.Context, limit int, excludeDiscovered bool) ([]*Service, error) {
	query := `SELECT id, business_id, criticality, owning_team, type, published_sla, metadata, discovered, created_at, updated_at FROM services`
	if excludeDiscovered {
		query += ` WHERE discovered = false`
	}
	query += ` ORDER BY updated_at DESC LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to list services")
	}
	defer rows.Close()

	var services []*Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan service row")
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanService(row rowScanner) (*Service, error) {
	var svc Service
	var owningTeam *string
	var sla *float64
	var metadata []byte
	var svcType string
	var criticality string

	if err := row.Scan(&svc.ID, &svc.BusinessID, &criticality, &owningTeam, &svcType, &sla, &metadata, &svc.Discovered, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return nil, err
	}
	svc.Criticality = Criticality(criticality)
	svc.Type = ServiceType(svcType)
	svc.PublishedSLA = sla
	if owningTeam != nil {
		svc.OwningTeam = *owningTeam
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &svc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding service metadata: %w", err)
		}
	}
	return &svc, nil
}

// Traverse loads the full edge set once, builds direction-aware adjacency
// indices in process, and runs a bounded-depth, cycle-safe breadth-first
// expansion from root.
func (s *PostgresStore) Traverse(ctx context.Context, root int64, direction Direction, maxDepth int, includeStale bool) (*TraverseResult, error) {
	if maxDepth < 1 || maxDepth > 10 {
		return nil, apperror.NewWithField(apperror.CodeInvalidInput, "max_depth must be within [1,10]", "max_depth")
	}

	edges, err := s.loadEdges(ctx, includeStale)
	if err != nil {
		return nil, err
	}

	outgoing := make(map[int64][]*ServiceDependency)
	incoming := make(map[int64][]*ServiceDependency)
	for _, e := range edges {
		outgoing[e.SourceID] = append(outgoing[e.SourceID], e)
		incoming[e.TargetID] = append(incoming[e.TargetID], e)
	}

	visited := map[int64]bool{root: true}
	var resultEdges []ServiceDependency
	seenEdge := map[int64]bool{}
	frontier := []int64{root}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, node := range frontier {
			var candidates []*ServiceDependency
			if direction == DirectionDownstream || direction == DirectionBoth {
				candidates = append(candidates, outgoing[node]...)
			}
			if direction == DirectionUpstream || direction == DirectionBoth {
				candidates = append(candidates, incoming[node]...)
			}
			for _, e := range candidates {
				neighbor := e.TargetID
				if e.TargetID == node {
					neighbor = e.SourceID
				}
				if !seenEdge[e.ID] {
					seenEdge[e.ID] = true
					resultEdges = append(resultEdges, *e)
				}
				if !visited[neighbor] {
					visited[neighbor] = true
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}

	nodeIDs := make([]int64, 0, len(visited))
	for id := range visited {
		nodeIDs = append(nodeIDs, id)
	}
	nodes, err := s.loadServicesByID(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}

	return &TraverseResult{Nodes: nodes, Edges: resultEdges}, nil
}

func (s *PostgresStore) loadEdges(ctx context.Context, includeStale bool) ([]*ServiceDependency, error) {
	query := `
		SELECT id, source_id, target_id, communication_mode, criticality, protocol, timeout_ms, retry_config, discovery_source, confidence, last_observed_at, is_stale
		FROM service_dependencies`
	if !includeStale {
		query += ` WHERE is_stale = false`
	}

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to load edges")
	}
	defer rows.Close()

	var edges []*ServiceDependency
	for rows.Next() {
		var e ServiceDependency
		var protocol, retryConfig *string
		var timeout *int
		var commMode, criticality, discovery string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &commMode, &criticality, &protocol, &timeout, &retryConfig, &discovery, &e.Confidence, &e.LastObservedAt, &e.IsStale); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan edge row")
		}
		e.CommunicationMode = CommunicationMode(commMode)
		e.Criticality = EdgeCriticality(criticality)
		e.DiscoverySource = DiscoverySource(discovery)
		e.TimeoutMs = timeout
		if protocol != nil {
			e.Protocol = *protocol
		}
		if retryConfig != nil {
			e.RetryConfig = *retryConfig
		}
		edges = append(edges, &e)
	}
	return edges, rows.Err()
}

// ServicesByIDs resolves a set of internal ids to their Service rows.
func (s *PostgresStore) ServicesByIDs(ctx context.Context, ids []int64) ([]Service, error) {
	return s.loadServicesByID(ctx, ids)
}

func (s *PostgresStore) loadServicesByID(ctx context.Context, ids []int64) ([]Service, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, business_id, criticality, owning_team, type, published_sla, metadata, discovered, created_at, updated_at
		FROM services WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to load services by id")
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan service row")
		}
		services = append(services, *svc)
	}
	return services, rows.Err()
}
