package telemetry

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"
)

// seedAvailability is the mock's baseline availability profile for a
// service: a base ratio, gaussian variance for bucket generation, and the
// raw good/total event counts a full `daysAvailable`-day window represents.
type seedAvailability struct {
	base         float64
	variance     float64
	goodEvents   int64
	totalEvents  int64
	sampleCount  int64
}

type seedLatency struct {
	p50, p95, p99, p999 float64
	sampleCount          int64
}

type seedCompleteness struct {
	at30Days float64
	at90Days float64
}

type seedEntry struct {
	availability  *seedAvailability
	latency       *seedLatency
	completeness  seedCompleteness
	daysAvailable int
}

// defaultSeedData mirrors a handful of representative fleet scenarios:
// a stable high-confidence service, a very reliable one, a noisy one, a
// moderate one, and a cold-start service with too little history.
var defaultSeedData = map[string]seedEntry{
	"payment-service": {
		availability:  &seedAvailability{base: 0.9950, variance: 0.003, goodEvents: 9_950_000, totalEvents: 10_000_000, sampleCount: 720},
		latency:       &seedLatency{p50: 45.0, p95: 120.0, p99: 250.0, p999: 500.0, sampleCount: 720},
		completeness:  seedCompleteness{at30Days: 0.98, at90Days: 0.96},
		daysAvailable: 30,
	},
	"auth-service": {
		availability:  &seedAvailability{base: 0.9990, variance: 0.001, goodEvents: 19_980_000, totalEvents: 20_000_000, sampleCount: 720},
		latency:       &seedLatency{p50: 25.0, p95: 80.0, p99: 150.0, p999: 300.0, sampleCount: 720},
		completeness:  seedCompleteness{at30Days: 0.99, at90Days: 0.98},
		daysAvailable: 30,
	},
	"notification-service": {
		availability:  &seedAvailability{base: 0.9900, variance: 0.010, goodEvents: 4_950_000, totalEvents: 5_000_000, sampleCount: 720},
		latency:       &seedLatency{p50: 100.0, p95: 350.0, p99: 800.0, p999: 1500.0, sampleCount: 720},
		completeness:  seedCompleteness{at30Days: 0.95, at90Days: 0.93},
		daysAvailable: 30,
	},
	"analytics-service": {
		availability:  &seedAvailability{base: 0.9800, variance: 0.008, goodEvents: 2_940_000, totalEvents: 3_000_000, sampleCount: 720},
		latency:       &seedLatency{p50: 200.0, p95: 600.0, p99: 1200.0, p999: 2500.0, sampleCount: 720},
		completeness:  seedCompleteness{at30Days: 0.90, at90Days: 0.88},
		daysAvailable: 30,
	},
	"reporting-service": {
		availability:  &seedAvailability{base: 0.9850, variance: 0.015, goodEvents: 985_000, totalEvents: 1_000_000, sampleCount: 144},
		latency:       &seedLatency{p50: 150.0, p95: 400.0, p99: 900.0, p999: 1800.0, sampleCount: 144},
		completeness:  seedCompleteness{at30Days: 0.65, at90Days: 0.70},
		daysAvailable: 6,
	},
}

// fallbackEntry is used for business ids that carry no seed profile, so the
// pipeline can still be exercised end to end against an unknown service.
var fallbackEntry = seedEntry{
	availability:  &seedAvailability{base: 0.9900, variance: 0.005, goodEvents: 990_000, totalEvents: 1_000_000, sampleCount: 720},
	latency:       &seedLatency{p50: 80.0, p95: 250.0, p99: 500.0, p999: 1000.0, sampleCount: 720},
	completeness:  seedCompleteness{at30Days: 0.92, at90Days: 0.91},
	daysAvailable: 30,
}

func lookup(serviceBusinessID string) seedEntry {
	if e, ok := defaultSeedData[serviceBusinessID]; ok {
		return e
	}
	return fallbackEntry
}

// serviceSeed derives a deterministic RNG seed from the business id so
// repeated queries for the same service reproduce the same bucket series.
func serviceSeed(serviceBusinessID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(serviceBusinessID))
	return int64(h.Sum64())
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// SeedPort is a deterministic, in-process mock of Port, driven by the
// fixed fleet scenarios in defaultSeedData. It exists for development and
// tests; a production deployment backs Port with a real metrics store.
type SeedPort struct{}

// NewSeedPort builds a seed-driven telemetry mock.
func NewSeedPort() *SeedPort {
	return &SeedPort{}
}

// Availability returns the seed's fixed baseline availability ratio, with a
// window ending now and starting windowDays earlier, or nil if the
// service's scenario has no availability profile. The ratio and event
// counts do not depend on windowDays or on the scenario's days of history.
func (p *SeedPort) Availability(_ context.Context, serviceBusinessID string, windowDays int) (*AvailabilitySliData, error) {
	entry := lookup(serviceBusinessID)
	if entry.availability == nil {
		return nil, nil
	}
	a := entry.availability
	now := time.Now().UTC()
	return &AvailabilitySliData{
		ServiceBusinessID: serviceBusinessID,
		GoodEvents:        a.goodEvents,
		TotalEvents:       a.totalEvents,
		Ratio:             float64(a.goodEvents) / float64(a.totalEvents),
		WindowStart:       now.AddDate(0, 0, -windowDays),
		WindowEnd:         now,
		SampleCount:       a.sampleCount,
	}, nil
}

// LatencyPercentiles returns the seed's fixed percentile profile.
func (p *SeedPort) LatencyPercentiles(_ context.Context, serviceBusinessID string, windowDays int) (*LatencySliData, error) {
	entry := lookup(serviceBusinessID)
	if entry.latency == nil {
		return nil, nil
	}
	l := entry.latency
	now := time.Now().UTC()
	return &LatencySliData{
		ServiceBusinessID: serviceBusinessID,
		P50Ms:             l.p50,
		P95Ms:             l.p95,
		P99Ms:             l.p99,
		P999Ms:            l.p999,
		WindowStart:       now.AddDate(0, 0, -windowDays),
		WindowEnd:         now,
		SampleCount:       l.sampleCount,
	}, nil
}

// RollingAvailability generates one ratio per 24h bucket over the window,
// gaussian-jittered around the seed's base ratio with a per-service
// deterministic RNG so repeated calls reproduce the same series.
func (p *SeedPort) RollingAvailability(_ context.Context, serviceBusinessID string, windowDays, bucketHours int) ([]float64, error) {
	entry := lookup(serviceBusinessID)
	if entry.availability == nil {
		return nil, nil
	}
	if bucketHours <= 0 {
		bucketHours = 24
	}
	numBuckets := windowDays * 24 / bucketHours
	if numBuckets < 1 {
		numBuckets = 1
	}

	rng := rand.New(rand.NewSource(serviceSeed(serviceBusinessID)))
	a := entry.availability
	buckets := make([]float64, numBuckets)
	for i := range buckets {
		buckets[i] = clamp01(a.base + rng.NormFloat64()*a.variance)
	}
	return buckets, nil
}

// DataCompleteness interpolates between the seed's known 30-day and 90-day
// completeness fractions for the requested window.
func (p *SeedPort) DataCompleteness(_ context.Context, serviceBusinessID string, windowDays int) (float64, error) {
	entry := lookup(serviceBusinessID)
	c := entry.completeness
	switch {
	case windowDays <= 30:
		return c.at30Days, nil
	case windowDays >= 90:
		return c.at90Days, nil
	default:
		frac := float64(windowDays-30) / 60.0
		return c.at30Days + frac*(c.at90Days-c.at30Days), nil
	}
}

var _ Port = (*SeedPort)(nil)
