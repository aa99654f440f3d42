package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdjacencyStore struct {
	adjacency AdjacencySnapshot
	services  map[int64]Service
}

func (f *fakeAdjacencyStore) UpsertServices(context.Context, []*Service) ([]int64, error) { return nil, nil }
func (f *fakeAdjacencyStore) UpsertEdges(context.Context, []*ServiceDependency) ([]int64, error) {
	return nil, nil
}
func (f *fakeAdjacencyStore) Traverse(context.Context, int64, Direction, int, bool) (*TraverseResult, error) {
	return &TraverseResult{}, nil
}
func (f *fakeAdjacencyStore) AdjacencySnapshot(context.Context) (AdjacencySnapshot, error) {
	return f.adjacency, nil
}
func (f *fakeAdjacencyStore) MarkStale(context.Context, int) (int, error) { return 0, nil }
func (f *fakeAdjacencyStore) GetServiceByBusinessID(context.Context, string) (*Service, error) {
	return nil, nil
}
func (f *fakeAdjacencyStore) ListServices(context.Context, int, bool) ([]*Service, error) {
	return nil, nil
}
func (f *fakeAdjacencyStore) ServicesByIDs(_ context.Context, ids []int64) ([]Service, error) {
	out := make([]Service, 0, len(ids))
	for _, id := range ids {
		if svc, ok := f.services[id]; ok {
			out = append(out, svc)
		}
	}
	return out, nil
}

var _ Store = (*fakeAdjacencyStore)(nil)

type fakeAlertRepo struct {
	created []*CircularDependencyAlert
	known   map[string]bool
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{known: map[string]bool{}}
}

func cycleKey(path []string) string {
	key := ""
	for _, p := range path {
		key += p + ","
	}
	return key
}

func (f *fakeAlertRepo) Create(_ context.Context, alert *CircularDependencyAlert) error {
	alert.ID = int64(len(f.created) + 1)
	f.created = append(f.created, alert)
	f.known[cycleKey(alert.CyclePath)] = true
	return nil
}

func (f *fakeAlertRepo) ExistsForCycle(_ context.Context, cyclePath []string) (bool, error) {
	return f.known[cycleKey(cyclePath)], nil
}

func (f *fakeAlertRepo) Update(context.Context, *CircularDependencyAlert) error { return nil }

func (f *fakeAlertRepo) ListByStatus(context.Context, AlertStatus, int) ([]*CircularDependencyAlert, error) {
	return f.created, nil
}

var _ AlertRepository = (*fakeAlertRepo)(nil)

func TestCycleDetectionUseCase_CreatesAlertForNewCycle(t *testing.T) {
	store := &fakeAdjacencyStore{
		adjacency: AdjacencySnapshot{1: {2}, 2: {3}, 3: {1}, 4: {5}},
		services: map[int64]Service{
			1: {ID: 1, BusinessID: "checkout"},
			2: {ID: 2, BusinessID: "payments"},
			3: {ID: 3, BusinessID: "ledger"},
		},
	}
	alerts := newFakeAlertRepo()
	uc := NewCycleDetectionUseCase(store, alerts)

	run, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.CyclesFound)
	assert.Equal(t, 1, run.AlertsCreated)
	assert.Equal(t, 0, run.AlertsKnown)
	require.Len(t, alerts.created, 1)
	assert.ElementsMatch(t, []string{"checkout", "payments", "ledger"}, alerts.created[0].CyclePath)
}

func TestCycleDetectionUseCase_SkipsKnownCycle(t *testing.T) {
	store := &fakeAdjacencyStore{
		adjacency: AdjacencySnapshot{1: {2}, 2: {1}},
		services: map[int64]Service{
			1: {ID: 1, BusinessID: "a"},
			2: {ID: 2, BusinessID: "b"},
		},
	}
	alerts := newFakeAlertRepo()
	alerts.known[cycleKey([]string{"b", "a"})] = true
	uc := NewCycleDetectionUseCase(store, alerts)

	run, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, run.CyclesFound)
	assert.Equal(t, 0, run.AlertsCreated)
	assert.Equal(t, 1, run.AlertsKnown)
}

func TestCycleDetectionUseCase_NoCyclesInDAG(t *testing.T) {
	store := &fakeAdjacencyStore{adjacency: AdjacencySnapshot{1: {2, 3}, 2: {4}, 3: {4}}}
	alerts := newFakeAlertRepo()
	uc := NewCycleDetectionUseCase(store, alerts)

	run, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, run.CyclesFound)
	assert.Empty(t, alerts.created)
}
