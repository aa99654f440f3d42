package latency

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTiers_SingleSampleScenario(t *testing.T) {
	samples := []Sample{{P50Ms: 100, P95Ms: 200, P99Ms: 250, P999Ms: 300}}
	rng := rand.New(rand.NewSource(1))
	tiers, err := ComputeTiers(samples, rng, DefaultOptions(false))
	require.NoError(t, err)

	assert.InDelta(t, 315.0, tiers[TierConservative].TargetMs, 1e-9)
	assert.Equal(t, "p999", tiers[TierConservative].PercentileLabel)
	assert.InDelta(t, 262.5, tiers[TierBalanced].TargetMs, 1e-9)
	assert.Equal(t, "p99", tiers[TierBalanced].PercentileLabel)
	assert.InDelta(t, 200.0, tiers[TierAggressive].TargetMs, 1e-9)
	assert.Equal(t, "p95", tiers[TierAggressive].PercentileLabel)
}

func TestComputeTiers_SharedInfrastructureWidensMargin(t *testing.T) {
	samples := []Sample{{P50Ms: 100, P95Ms: 200, P99Ms: 250, P999Ms: 300}}
	rng := rand.New(rand.NewSource(1))
	tiers, err := ComputeTiers(samples, rng, DefaultOptions(true))
	require.NoError(t, err)

	assert.InDelta(t, 330.0, tiers[TierConservative].TargetMs, 1e-9)
	assert.InDelta(t, 275.0, tiers[TierBalanced].TargetMs, 1e-9)
}

func TestComputeTiers_RejectsUnorderedPercentiles(t *testing.T) {
	samples := []Sample{{P50Ms: 100, P95Ms: 50, P99Ms: 250, P999Ms: 300}}
	rng := rand.New(rand.NewSource(1))
	_, err := ComputeTiers(samples, rng, DefaultOptions(false))
	require.Error(t, err)
}

func TestComputeTiers_RejectsEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := ComputeTiers(nil, rng, DefaultOptions(false))
	require.Error(t, err)
}

func TestComputeTiers_MultiSampleMaxAndBreach(t *testing.T) {
	samples := []Sample{
		{P50Ms: 90, P95Ms: 180, P99Ms: 220, P999Ms: 280},
		{P50Ms: 110, P95Ms: 210, P99Ms: 260, P999Ms: 320},
	}
	rng := rand.New(rand.NewSource(2))
	tiers, err := ComputeTiers(samples, rng, DefaultOptions(false))
	require.NoError(t, err)

	assert.InDelta(t, 320*1.05, tiers[TierConservative].TargetMs, 1e-9)
	assert.InDelta(t, 210.0, tiers[TierAggressive].TargetMs, 1e-9)
}
