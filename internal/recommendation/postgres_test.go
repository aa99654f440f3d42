package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pgxMockAdapter struct {
	mock pgxmock.PgxPoolIface
}

func (a *pgxMockAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return a.mock.Exec(ctx, sql, args...)
}

func (a *pgxMockAdapter) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return a.mock.Query(ctx, sql, args...)
}

func (a *pgxMockAdapter) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return a.mock.QueryRow(ctx, sql, args...)
}

func (a *pgxMockAdapter) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return a.mock.BeginTx(ctx, txOptions)
}

func (a *pgxMockAdapter) Close() {
	a.mock.Close()
}

func (a *pgxMockAdapter) Ping(ctx context.Context) error {
	return a.mock.Ping(ctx)
}

func setupMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresRepository(&pgxMockAdapter{mock: mock})
}

func sampleRecommendation() *SloRecommendation {
	bound := 0.997
	return &SloRecommendation{
		ServiceID: 42,
		SLIType:   SLIAvailability,
		Metric:    "availability",
		Tiers: map[TierLevel]Tier{
			TierBalanced: {Level: TierBalanced, Target: 0.999, BreachProbability: 0.05},
		},
		Explanation: Explanation{
			Summary: "derived from 30 days of telemetry",
			DependencyImpact: &DependencyImpact{
				CompositeBound: bound,
				Bottleneck:     "payments-api",
			},
		},
		DataQuality: DataQuality{Completeness: 0.95, LookbackDaysActual: 30},
		WindowStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestPostgresRepository_Save(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO slo_recommendations`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	rec := sampleRecommendation()
	err := repo.Save(ctx, rec)

	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, StatusActive, rec.Status)
	assert.False(t, rec.ExpiresAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SaveBatch_Empty(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()

	n, err := repo.SaveBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostgresRepository_SaveBatch(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO slo_recommendations`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`INSERT INTO slo_recommendations`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
	mock.ExpectCommit()

	recs := []*SloRecommendation{sampleRecommendation(), sampleRecommendation()}
	n, err := repo.SaveBatch(ctx, recs)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SupersedeExisting(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectExec(`UPDATE slo_recommendations`).
		WithArgs(int64(42), "availability").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := repo.SupersedeExisting(ctx, 42, SLIAvailability)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ExpireStale(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectExec(`UPDATE slo_recommendations`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := repo.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceActive_SupersedesThenInserts(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE slo_recommendations`).
		WithArgs(int64(42), "availability").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO slo_recommendations`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	rec := sampleRecommendation()
	err := repo.ReplaceActive(ctx, rec)

	require.NoError(t, err)
	assert.Equal(t, int64(9), rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceActive_RollsBackOnInsertFailure(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE slo_recommendations`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO slo_recommendations`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceActive(ctx, sampleRecommendation())
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetActive_FiltersByServiceAndType(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	columns := []string{"id", "service_id", "sli_type", "metric", "tiers", "explanation", "data_quality", "window_start", "window_end", "generated_at", "expires_at", "status"}
	tiersJSON := []byte(`{"balanced":{"target":0.999,"breach_probability":0.05}}`)
	explanationJSON := []byte(`{"Summary":"derived","Attributions":null,"DependencyImpact":null}`)
	dataQualityJSON := []byte(`{"Completeness":0.95,"Gaps":null,"ConfidenceNote":"","ColdStart":false,"LookbackDaysActual":30}`)
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	sliType := SLIAvailability
	mock.ExpectQuery(`SELECT id, service_id`).
		WithArgs(int64(42), "availability").
		WillReturnRows(pgxmock.NewRows(columns).AddRow(
			int64(9), int64(42), "availability", "availability", tiersJSON, explanationJSON, dataQualityJSON,
			now, now, now, now.Add(24*time.Hour), "active",
		))

	recs, err := repo.GetActive(ctx, 42, &sliType)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(9), recs[0].ID)
	assert.Equal(t, StatusActive, recs[0].Status)
	assert.InDelta(t, 0.999, recs[0].Tiers[TierBalanced].Target, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetActive_NoFilter(t *testing.T) {
	mock, repo := setupMockRepo(t)
	defer mock.Close()
	ctx := context.Background()

	columns := []string{"id", "service_id", "sli_type", "metric", "tiers", "explanation", "data_quality", "window_start", "window_end", "generated_at", "expires_at", "status"}
	mock.ExpectQuery(`SELECT id, service_id`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(columns))

	recs, err := repo.GetActive(ctx, 42, nil)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}
