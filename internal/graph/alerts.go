package graph

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sloengine/pkg/apperror"
	"sloengine/pkg/database"
)

// AlertRepository persists CircularDependencyAlert rows. It is the
// Go-side counterpart of the original CircularDependencyAlertRepositoryInterface:
// create, dedupe-by-cycle-path, lifecycle update, and status-filtered listing.
type AlertRepository interface {
	// Create persists a new open alert and assigns its internal id.
	Create(ctx context.Context, alert *CircularDependencyAlert) error

	// ExistsForCycle reports whether an alert already exists for the exact
	// cycle path (no rotation normalization, matching the original's
	// JSONB-equality dedupe check).
	ExistsForCycle(ctx context.Context, cyclePath []string) (bool, error)

	// Update persists status/acknowledger/resolution-note changes made via
	// Acknowledge/Resolve.
	Update(ctx context.Context, alert *CircularDependencyAlert) error

	// ListByStatus returns up to limit alerts in a given status, most
	// recently detected first.
	ListByStatus(ctx context.Context, status AlertStatus, limit int) ([]*CircularDependencyAlert, error)
}

// PostgresAlertRepository is the pgx-backed implementation of AlertRepository.
type PostgresAlertRepository struct {
	db database.DB
}

// NewPostgresAlertRepository wraps a database.DB connection as an
// AlertRepository.
func NewPostgresAlertRepository(db database.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{db: db}
}

// Create inserts alert, relying on the cycle_path unique constraint to catch
// a concurrent detection pass racing to report the same cycle; a unique
// violation is surfaced as Conflict rather than Fatal so the use case can
// treat it the same way as an exists_for_cycle hit.
func (r *PostgresAlertRepository) Create(ctx context.Context, alert *CircularDependencyAlert) error {
	if len(alert.CyclePath) < 2 {
		return apperror.NewWithField(apperror.CodeInvalidInput, "cycle path must have at least 2 members", "cycle_path")
	}
	if alert.Status == "" {
		alert.Status = AlertStatusOpen
	}

	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO circular_dependency_alerts (cycle_path, status, acknowledger, resolution_note, detected_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING id, detected_at`,
			alert.CyclePath, string(alert.Status), nullString(alert.Acknowledger), nullString(alert.ResolutionNote),
		)
		var id int64
		detectedAt := alert.DetectedAt
		if err := row.Scan(&id, &detectedAt); err != nil {
			if isUniqueViolation(err) {
				return apperror.Wrap(err, apperror.CodeRecommendationConflict, "alert already exists for this cycle path")
			}
			return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to insert circular dependency alert")
		}
		alert.ID = id
		alert.DetectedAt = detectedAt
		return nil
	})
}

// ExistsForCycle checks for an exact cycle_path match.
func (r *PostgresAlertRepository) ExistsForCycle(ctx context.Context, cyclePath []string) (bool, error) {
	row := r.db.QueryRow(ctx, `SELECT 1 FROM circular_dependency_alerts WHERE cycle_path = $1`, cyclePath)
	var dummy int
	err := row.Scan(&dummy)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to check existing alert")
	}
	return true, nil
}

// Update persists the mutable lifecycle fields of an existing alert.
func (r *PostgresAlertRepository) Update(ctx context.Context, alert *CircularDependencyAlert) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE circular_dependency_alerts
		SET status = $2, acknowledger = $3, resolution_note = $4
		WHERE id = $1`,
		alert.ID, string(alert.Status), nullString(alert.Acknowledger), nullString(alert.ResolutionNote),
	)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to update circular dependency alert")
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.CodeServiceNotFound, "alert not found")
	}
	return nil
}

// ListByStatus returns alerts in a given status, most recently detected first.
func (r *PostgresAlertRepository) ListByStatus(ctx context.Context, status AlertStatus, limit int) ([]*CircularDependencyAlert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cycle_path, status, acknowledger, resolution_note, detected_at
		FROM circular_dependency_alerts
		WHERE status = $1
		ORDER BY detected_at DESC
		LIMIT $2`, string(status), limit,
	)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to list circular dependency alerts")
	}
	defer rows.Close()

	var alerts []*CircularDependencyAlert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan circular dependency alert row")
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*CircularDependencyAlert, error) {
	var alert CircularDependencyAlert
	var status string
	var acknowledger, resolutionNote *string

	if err := row.Scan(&alert.ID, &alert.CyclePath, &status, &acknowledger, &resolutionNote, &alert.DetectedAt); err != nil {
		return nil, err
	}
	alert.Status = AlertStatus(status)
	if acknowledger != nil {
		alert.Acknowledger = *acknowledger
	}
	if resolutionNote != nil {
		alert.ResolutionNote = *resolutionNote
	}
	return &alert, nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation
// (SQLSTATE 23505), the signal the original repository treats as "alert for
// this cycle already exists" rather than a generic storage failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
