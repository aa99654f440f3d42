package graph

import (
	"context"
	"testing"

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

func setupMockStore(t *testing.T) (pgxmock.PgxPoolIface, *PostgresStore) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return mock, NewPostgresStore(&pgxMockAdapter{mock: mock})
}

func TestPostgresStore_UpsertServices(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO services`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	svc := &Service{BusinessID: "checkout", Criticality: CriticalityHigh, Type: ServiceTypeInternal}
	ids, err := store.UpsertServices(ctx, []*Service{svc})

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
	assert.Equal(t, int64(1), svc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertServices_ExternalRequiresSLA(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()

	svc := &Service{BusinessID: "payments-api", Type: ServiceTypeExternal}
	_, err := store.UpsertServices(context.Background(), []*Service{svc})
	require.Error(t, err)
}

func TestPostgresStore_UpsertEdges_RejectsSelfLoop(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()

	edge := &ServiceDependency{SourceID: 1, TargetID: 1, CommunicationMode: CommunicationSync, Criticality: EdgeCriticalityHard}
	_, err := store.UpsertEdges(context.Background(), []*ServiceDependency{edge})
	require.Error(t, err)
}

func TestPostgresStore_MarkStale(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectExec(`UPDATE service_dependencies`).
		WithArgs(168).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := store.MarkStale(ctx, 168)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetServiceByBusinessID_NotFound(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, business_id`).
		WithArgs("ghost-service").
		WillReturnRows(pgxmock.NewRows([]string{"id", "business_id", "criticality", "owning_team", "type", "published_sla", "metadata", "discovered", "created_at", "updated_at"}))

	svc, err := store.GetServiceByBusinessID(ctx, "ghost-service")
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestPostgresStore_Traverse_RejectsOutOfRangeDepth(t *testing.T) {
	mock, store := setupMockStore(t)
	defer mock.Close()

	_, err := store.Traverse(context.Background(), 1, DirectionDownstream, 0, false)
	require.Error(t, err)

	_, err = store.Traverse(context.Background(), 1, DirectionDownstream, 11, false)
	require.Error(t, err)
}
