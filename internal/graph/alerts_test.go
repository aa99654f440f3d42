package graph

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sloengine/pkg/apperror"
)

func setupMockAlertRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresAlertRepository) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresAlertRepository(&pgxMockAdapter{mock: mock})
}

func TestPostgresAlertRepository_Create(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO circular_dependency_alerts`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "detected_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit()

	alert := &CircularDependencyAlert{CyclePath: []string{"checkout", "payments", "checkout"}}
	err := repo.Create(ctx, alert)

	require.NoError(t, err)
	assert.Equal(t, int64(1), alert.ID)
	assert.Equal(t, AlertStatusOpen, alert.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAlertRepository_Create_RejectsShortCycle(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()

	alert := &CircularDependencyAlert{CyclePath: []string{"checkout"}}
	err := repo.Create(context.Background(), alert)
	require.Error(t, err)
}

func TestPostgresAlertRepository_Create_UniqueViolationIsConflict(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO circular_dependency_alerts`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_circular_dependency_alerts_cycle_path"})
	mock.ExpectRollback()

	alert := &CircularDependencyAlert{CyclePath: []string{"a", "b", "a"}}
	err := repo.Create(ctx, alert)

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeRecommendationConflict))
}

func TestPostgresAlertRepository_ExistsForCycle(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT 1 FROM circular_dependency_alerts`).
		WithArgs([]string{"a", "b", "a"}).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsForCycle(ctx, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresAlertRepository_ExistsForCycle_NotFound(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT 1 FROM circular_dependency_alerts`).
		WithArgs([]string{"x", "y", "x"}).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsForCycle(ctx, []string{"x", "y", "x"})
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPostgresAlertRepository_Update(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectExec(`UPDATE circular_dependency_alerts`).
		WithArgs(int64(1), "acknowledged", "ops", nil).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	alert := &CircularDependencyAlert{ID: 1, Status: AlertStatusAcknowledged, Acknowledger: "ops"}
	err := repo.Update(ctx, alert)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAlertRepository_ListByStatus(t *testing.T) {
	mock, repo := setupMockAlertRepo(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, cycle_path, status, acknowledger, resolution_note, detected_at`).
		WithArgs("open", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "cycle_path", "status", "acknowledger", "resolution_note", "detected_at"}).
			AddRow(int64(1), []string{"a", "b", "a"}, "open", nil, nil, time.Now()))

	alerts, err := repo.ListByStatus(ctx, AlertStatusOpen, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{"a", "b", "a"}, alerts[0].CyclePath)
}
