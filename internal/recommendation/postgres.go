package recommendation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"sloengine/pkg/apperror"
	"sloengine/pkg/database"
)

// PostgresRepository is the pgx-backed implementation of Repository. Tiers,
// Explanation, and DataQuality are structured but rarely queried by their
// internal shape, so they're stored as jsonb columns, following the same
// metadata-as-jsonb convention the graph store uses for Service.Metadata.
type PostgresRepository struct {
	db database.DB
}

// NewPostgresRepository wraps a database.DB connection as a Repository.
func NewPostgresRepository(db database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type persistedTier struct {
	Target             float64  `json:"target"`
	ErrorBudgetMinutes *float64 `json:"error_budget_minutes,omitempty"`
	BreachProbability  float64  `json:"breach_probability"`
	CILower            *float64 `json:"ci_lower,omitempty"`
	CIUpper            *float64 `json:"ci_upper,omitempty"`
	PercentileLabel    string   `json:"percentile_label,omitempty"`
	TargetMs           *int     `json:"target_ms,omitempty"`
}

func marshalTiers(tiers map[TierLevel]Tier) ([]byte, error) {
	out := make(map[TierLevel]persistedTier, len(tiers))
	for level, t := range tiers {
		out[level] = persistedTier{
			Target:             t.Target,
			ErrorBudgetMinutes: t.ErrorBudgetMinutes,
			BreachProbability:  t.BreachProbability,
			CILower:            t.CILower,
			CIUpper:            t.CIUpper,
			PercentileLabel:    t.PercentileLabel,
			TargetMs:           t.TargetMs,
		}
	}
	return json.Marshal(out)
}

func unmarshalTiers(raw []byte) (map[TierLevel]Tier, error) {
	var in map[TierLevel]persistedTier
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make(map[TierLevel]Tier, len(in))
	for level, t := range in {
		out[level] = Tier{
			Level:              level,
			Target:             t.Target,
			ErrorBudgetMinutes: t.ErrorBudgetMinutes,
			BreachProbability:  t.BreachProbability,
			CILower:            t.CILower,
			CIUpper:            t.CIUpper,
			PercentileLabel:    t.PercentileLabel,
			TargetMs:           t.TargetMs,
		}
	}
	return out, nil
}

func (r *PostgresRepository) insert(ctx context.Context, tx pgx.Tx, rec *SloRecommendation) error {
	tiersJSON, err := marshalTiers(rec.Tiers)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidInput, "failed to encode tiers")
	}
	explanationJSON, err := json.Marshal(rec.Explanation)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidInput, "failed to encode explanation")
	}
	dataQualityJSON, err := json.Marshal(rec.DataQuality)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInvalidInput, "failed to encode data quality")
	}

	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = time.Now().UTC()
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.GeneratedAt.Add(DefaultExpiry)
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO slo_recommendations
			(service_id, sli_type, metric, tiers, explanation, data_quality, window_start, window_end, generated_at, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		rec.ServiceID, string(rec.SLIType), rec.Metric, tiersJSON, explanationJSON, dataQualityJSON,
		rec.WindowStart, rec.WindowEnd, rec.GeneratedAt, rec.ExpiresAt, string(rec.Status),
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to insert recommendation")
	}
	rec.ID = id
	return nil
}

// Save persists a single recommendation outside of any supersede logic.
func (r *PostgresRepository) Save(ctx context.Context, rec *SloRecommendation) error {
	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		return r.insert(ctx, tx, rec)
	})
}

// SaveBatch persists several recommendations in one transaction.
func (r *PostgresRepository) SaveBatch(ctx context.Context, recs []*SloRecommendation) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	err := database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := r.insert(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// SupersedeExisting flips every active row for (serviceID, sliType) to
// superseded.
func (r *PostgresRepository) SupersedeExisting(ctx context.Context, serviceID int64, sliType SLIType) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE slo_recommendations
		SET status = 'superseded'
		WHERE service_id = $1 AND sli_type = $2 AND status = 'active'`,
		serviceID, string(sliType),
	)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to supersede existing recommendations")
	}
	return int(tag.RowsAffected()), nil
}

// ExpireStale flips active rows past expires_at to expired.
func (r *PostgresRepository) ExpireStale(ctx context.Context) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE slo_recommendations
		SET status = 'expired'
		WHERE status = 'active' AND expires_at < now()`,
	)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to expire stale recommendations")
	}
	return int(tag.RowsAffected()), nil
}

// ReplaceActive supersedes any existing active row for (rec.ServiceID,
// rec.SLIType) and inserts rec as the new active one, inside one
// transaction: the atomicity contract behind "at most one active
// recommendation per (service, sli type)" (§4.8).
func (r *PostgresRepository) ReplaceActive(ctx context.Context, rec *SloRecommendation) error {
	return database.WithTransaction(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE slo_recommendations
			SET status = 'superseded'
			WHERE service_id = $1 AND sli_type = $2 AND status = 'active'`,
			rec.ServiceID, string(rec.SLIType),
		); err != nil {
			return apperror.Wrap(err, apperror.CodeTransientStorage, "failed to supersede existing recommendation")
		}
		return r.insert(ctx, tx, rec)
	})
}

// GetActive returns recommendations with status 'active' for a service,
// optionally restricted to one SLI type. It does not filter on expires_at;
// callers that need a guaranteed-unexpired result (such as the pipeline's
// cache lookup) re-check expiry themselves against the caller's clock.
func (r *PostgresRepository) GetActive(ctx context.Context, serviceID int64, sliType *SLIType) ([]*SloRecommendation, error) {
	query := `
		SELECT id, service_id, sli_type, metric, tiers, explanation, data_quality, window_start, window_end, generated_at, expires_at, status
		FROM slo_recommendations
		WHERE service_id = $1 AND status = 'active'`
	args := []any{serviceID}
	if sliType != nil {
		query += ` AND sli_type = $2`
		args = append(args, string(*sliType))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to load active recommendations")
	}
	defer rows.Close()

	var recs []*SloRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeTransientStorage, "failed to scan recommendation row")
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecommendation(row rowScanner) (*SloRecommendation, error) {
	var rec SloRecommendation
	var sliType, status string
	var tiersRaw, explanationRaw, dataQualityRaw []byte

	if err := row.Scan(&rec.ID, &rec.ServiceID, &sliType, &rec.Metric, &tiersRaw, &explanationRaw, &dataQualityRaw,
		&rec.WindowStart, &rec.WindowEnd, &rec.GeneratedAt, &rec.ExpiresAt, &status); err != nil {
		return nil, err
	}
	rec.SLIType = SLIType(sliType)
	rec.Status = Status(status)

	tiers, err := unmarshalTiers(tiersRaw)
	if err != nil {
		return nil, err
	}
	rec.Tiers = tiers

	if err := json.Unmarshal(explanationRaw, &rec.Explanation); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(dataQualityRaw, &rec.DataQuality); err != nil {
		return nil, err
	}
	return &rec, nil
}
