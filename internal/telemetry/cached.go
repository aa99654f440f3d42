package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sloengine/pkg/cache"
	"sloengine/pkg/logger"
)

// CachedPort wraps a Port with a short-TTL read-through cache in front of
// DataCompleteness, the one call the pipeline makes once per SLI type per
// request and whose answer changes slowly relative to the request rate.
// Availability/latency/rolling queries are left uncached: they already carry
// the window's full payload and a stale copy would leak into the
// recommendation itself, whereas a stale completeness reading only delays a
// cold-start decision by one TTL.
type CachedPort struct {
	next Port
	c    cache.Cache
	ttl  time.Duration
}

// NewCachedPort returns a Port that serves DataCompleteness from c before
// falling through to next. A nil c disables caching and next is used
// directly.
func NewCachedPort(next Port, c cache.Cache, ttl time.Duration) *CachedPort {
	return &CachedPort{next: next, c: c, ttl: ttl}
}

func (p *CachedPort) Availability(ctx context.Context, serviceBusinessID string, windowDays int) (*AvailabilitySliData, error) {
	return p.next.Availability(ctx, serviceBusinessID, windowDays)
}

func (p *CachedPort) LatencyPercentiles(ctx context.Context, serviceBusinessID string, windowDays int) (*LatencySliData, error) {
	return p.next.LatencyPercentiles(ctx, serviceBusinessID, windowDays)
}

func (p *CachedPort) RollingAvailability(ctx context.Context, serviceBusinessID string, windowDays, bucketHours int) ([]float64, error) {
	return p.next.RollingAvailability(ctx, serviceBusinessID, windowDays, bucketHours)
}

func (p *CachedPort) DataCompleteness(ctx context.Context, serviceBusinessID string, windowDays int) (float64, error) {
	if p.c == nil {
		return p.next.DataCompleteness(ctx, serviceBusinessID, windowDays)
	}

	key := completenessKey(serviceBusinessID, windowDays)

	raw, err := p.c.Get(ctx, key)
	if err == nil {
		var completeness float64
		if jsonErr := json.Unmarshal(raw, &completeness); jsonErr == nil {
			return completeness, nil
		}
	} else if !errors.Is(err, cache.ErrKeyNotFound) {
		logger.Warn("telemetry completeness cache read failed, querying source", "error", err, "service", serviceBusinessID)
	}

	completeness, err := p.next.DataCompleteness(ctx, serviceBusinessID, windowDays)
	if err != nil {
		return 0, err
	}

	if raw, marshalErr := json.Marshal(completeness); marshalErr == nil {
		if setErr := p.c.Set(ctx, key, raw, p.ttl); setErr != nil {
			logger.Warn("telemetry completeness cache write failed", "error", setErr, "service", serviceBusinessID)
		}
	}

	return completeness, nil
}

func completenessKey(serviceBusinessID string, windowDays int) string {
	return fmt.Sprintf("sloengine:telemetry:completeness:%s:%d", serviceBusinessID, windowDays)
}
