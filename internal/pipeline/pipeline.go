package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"sloengine/internal/attribution"
	"sloengine/internal/availability"
	"sloengine/internal/graph"
	"sloengine/internal/latency"
	"sloengine/internal/recommendation"
	"sloengine/internal/telemetry"
	"sloengine/pkg/logger"
	"sloengine/pkg/metrics"
)

// Design constants: the 0.90 completeness floor and 90-day extended lookback
// are fixed per §4.9 step 2, as is the depth-3 downstream traversal of step
// 4c. Placeholder attribution features mirror the exact values step 4h/5
// specify for the parts the engine does not yet model independently.
const (
	coldStartCompletenessFloor = 0.90
	coldStartLookbackDays      = 90
	downstreamTraversalDepth   = 3

	availabilityDeploymentFrequencyPlaceholder = 0.5
	latencyCallChainDepthPlaceholder           = 3
	latencyNoisyNeighborMarginPlaceholder      = 0.05
	latencyTrafficSeasonalityPlaceholder       = 0.5
)

// Orchestrator is the Pipeline Orchestrator (C9): it wires the graph store,
// telemetry port, and recommendation repository together into a single
// per-service generate() call.
type Orchestrator struct {
	Graph       graph.Store
	Telemetry   telemetry.Port
	Repo        recommendation.Repository
	Metrics     *metrics.Metrics
	SharedInfra bool
}

// NewOrchestrator builds a pipeline orchestrator over its three
// collaborators.
func NewOrchestrator(store graph.Store, port telemetry.Port, repo recommendation.Repository, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{Graph: store, Telemetry: port, Repo: repo, Metrics: m}
}

func rngFor(serviceBusinessID string, sliType recommendation.SLIType) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(serviceBusinessID + ":" + string(sliType)))
	return rand.New(rand.NewSource(int64(h.Sum64()))) //nolint:gosec // reproducible bootstrap resampling, not cryptographic
}

// Generate runs the full §4.9 sequence for one service. A nil response with
// a nil error means the service was not found.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	svc, err := o.Graph.GetServiceByBusinessID(ctx, req.ServiceBusinessID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, nil
	}

	if !req.ForceRegenerate {
		if cached := o.cachedResponse(ctx, svc, req); cached != nil {
			return cached, nil
		}
	}

	lookbackDays := req.RequestedLookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 30
	}

	completeness, err := o.Telemetry.DataCompleteness(ctx, req.ServiceBusinessID, lookbackDays)
	if err != nil {
		return nil, err
	}

	coldStart := false
	if completeness < coldStartCompletenessFloor {
		coldStart = true
		lookbackDays = coldStartLookbackDays
		logger.Warn("cold-start lookback extension triggered",
			"service", req.ServiceBusinessID, "completeness", completeness, "extended_lookback_days", lookbackDays)
		if o.Metrics != nil {
			o.Metrics.RecordColdStart()
		}
	}

	now := time.Now().UTC()
	window := Window{Start: now.AddDate(0, 0, -lookbackDays), End: now}

	var recs []RecommendationDTO
	var warnings []string

	if req.SLITypeFilter.wantsAvailability() {
		dto, warn, err := o.generateAvailability(ctx, svc, lookbackDays, coldStart, window)
		if err != nil {
			return nil, err
		}
		if dto != nil {
			recs = append(recs, *dto)
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	if req.SLITypeFilter.wantsLatency() {
		dto, warn, err := o.generateLatency(ctx, svc, lookbackDays, coldStart, window)
		if err != nil {
			return nil, err
		}
		if dto != nil {
			recs = append(recs, *dto)
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
	}

	return &GenerateResponse{
		ServiceBusinessID: req.ServiceBusinessID,
		GeneratedAt:       now,
		LookbackWindow:    window,
		Recommendations:   recs,
		Warnings:          warnings,
	}, nil
}

// cachedResponse implements the "genuine cache-check" resolution for
// force_regenerate=false: if every requested SLI type already has an active,
// unexpired recommendation, it's returned without invoking any calculator.
// A partial cache hit (only some SLI types active) falls through to a full
// regeneration, since the response DTO has no way to represent a half-fresh
// generated_at.
func (o *Orchestrator) cachedResponse(ctx context.Context, svc *graph.Service, req GenerateRequest) *GenerateResponse {
	var want []recommendation.SLIType
	if req.SLITypeFilter.wantsAvailability() {
		want = append(want, recommendation.SLIAvailability)
	}
	if req.SLITypeFilter.wantsLatency() {
		want = append(want, recommendation.SLILatency)
	}

	now := time.Now().UTC()
	var hits []*recommendation.SloRecommendation
	for _, sliType := range want {
		active, err := o.Repo.GetActive(ctx, svc.ID, &sliType)
		if err != nil || len(active) == 0 {
			return nil
		}
		rec := active[0]
		if !rec.ExpiresAt.After(now) {
			return nil
		}
		hits = append(hits, rec)
	}
	if len(hits) != len(want) {
		return nil
	}

	resp := &GenerateResponse{ServiceBusinessID: req.ServiceBusinessID}
	for _, rec := range hits {
		resp.Recommendations = append(resp.Recommendations, RecommendationDTO{
			SLIType:     rec.SLIType,
			Metric:      rec.Metric,
			Tiers:       rec.Tiers,
			Explanation: rec.Explanation,
			DataQuality: rec.DataQuality,
			FromCache:   true,
		})
		if rec.GeneratedAt.After(resp.GeneratedAt) {
			resp.GeneratedAt = rec.GeneratedAt
		}
		if resp.LookbackWindow.Start.IsZero() || rec.WindowStart.Before(resp.LookbackWindow.Start) {
			resp.LookbackWindow.Start = rec.WindowStart
		}
		if rec.WindowEnd.After(resp.LookbackWindow.End) {
			resp.LookbackWindow.End = rec.WindowEnd
		}
	}
	return resp
}

func (o *Orchestrator) generateAvailability(ctx context.Context, svc *graph.Service, lookbackDays int, coldStart bool, window Window) (*RecommendationDTO, string, error) {
	sli, err := o.Telemetry.Availability(ctx, svc.BusinessID, lookbackDays)
	if err != nil {
		return nil, "", err
	}
	if sli == nil {
		warn := fmt.Sprintf("availability: no telemetry data for %s over %d days", svc.BusinessID, lookbackDays)
		logger.Warn(warn)
		return nil, warn, nil
	}

	buckets, err := o.Telemetry.RollingAvailability(ctx, svc.BusinessID, lookbackDays, 24)
	if err != nil {
		return nil, "", err
	}
	if len(buckets) == 0 {
		warn := fmt.Sprintf("availability: no rolling bucket data for %s over %d days", svc.BusinessID, lookbackDays)
		logger.Warn(warn)
		return nil, warn, nil
	}

	subgraph, err := o.Graph.Traverse(ctx, svc.ID, graph.DirectionDownstream, downstreamTraversalDepth, false)
	if err != nil {
		return nil, "", err
	}

	byID := make(map[int64]graph.Service, len(subgraph.Nodes))
	for _, n := range subgraph.Nodes {
		byID[n.ID] = n
	}

	var deps []availability.Dependency
	hardCount := 0
	softDegradedCount := 0
	for _, edge := range subgraph.Edges {
		if !edge.IsHardSync() {
			softDegradedCount++
			continue
		}
		target, ok := byID[edge.TargetID]
		if !ok {
			continue
		}
		hardCount++

		depAvailability := telemetry.DefaultDependencyAvailability
		depSLI, err := o.Telemetry.Availability(ctx, target.BusinessID, lookbackDays)
		if err != nil {
			return nil, "", err
		}
		if depSLI != nil {
			depAvailability = depSLI.Ratio
		}

		// The data model carries no per-edge group identifier, so every
		// hard-sync dependency is treated as serial (§9 open question
		// resolution: a single redundant group is never formed from edge
		// data alone).
		deps = append(deps, availability.Dependency{
			ServiceID:        target.ID,
			Availability:     depAvailability,
			IsHard:           true,
			IsRedundantGroup: false,
		})
	}

	composite, err := availability.Composite(sli.Ratio, deps)
	if err != nil {
		return nil, "", err
	}

	rng := rngFor(svc.BusinessID, recommendation.SLIAvailability)
	tiers, err := availability.ComputeTiers(buckets, composite.Composite, rng, availability.DefaultOptions())
	if err != nil {
		return nil, "", err
	}

	minDepAvailability := 1.0
	for _, d := range deps {
		if d.Availability < minDepAvailability {
			minDepAvailability = d.Availability
		}
	}

	contributions, err := attribution.Attribute(attribution.SLIAvailability, map[string]float64{
		"historical_availability_mean": sli.Ratio,
		"downstream_dependency_risk":   1 - composite.Composite,
		"external_api_reliability":     minDepAvailability,
		"deployment_frequency":         availabilityDeploymentFrequencyPlaceholder,
	})
	if err != nil {
		return nil, "", err
	}

	actualCompleteness, err := o.Telemetry.DataCompleteness(ctx, svc.BusinessID, lookbackDays)
	if err != nil {
		return nil, "", err
	}

	balanced := tiers[availability.TierBalanced]
	summary := fmt.Sprintf(
		"%s achieved %.4f%% availability over the last %d days; balanced target %.4f%%, composite dependency bound %.4f%% (%d hard, %d soft/degraded dependencies)",
		svc.BusinessID, sli.Ratio*100, lookbackDays, balanced.TargetPercent, composite.Composite*100, hardCount, softDegradedCount,
	)

	dto := &RecommendationDTO{
		SLIType: recommendation.SLIAvailability,
		Metric:  "error_rate",
		Tiers:   convertAvailabilityTiers(tiers),
		Explanation: recommendation.Explanation{
			Summary:      summary,
			Attributions: convertContributions(contributions),
			DependencyImpact: &recommendation.DependencyImpact{
				CompositeBound:      composite.Composite,
				Bottleneck:          composite.Bottleneck,
				HardDependencyCount: hardCount,
				SoftDependencyCount: softDegradedCount,
				Contributions:       composite.Contributions,
			},
		},
		DataQuality: recommendation.DataQuality{
			Completeness:       actualCompleteness,
			ConfidenceNote:      confidenceNote(actualCompleteness, coldStart),
			ColdStart:           coldStart,
			LookbackDaysActual: lookbackDays,
		},
	}

	if err := o.save(ctx, svc.ID, dto, window); err != nil {
		return nil, "", err
	}
	if o.Metrics != nil {
		o.Metrics.RecordRecommendation("availability", "generated")
	}
	return dto, "", nil
}

func (o *Orchestrator) generateLatency(ctx context.Context, svc *graph.Service, lookbackDays int, coldStart bool, window Window) (*RecommendationDTO, string, error) {
	sli, err := o.Telemetry.LatencyPercentiles(ctx, svc.BusinessID, lookbackDays)
	if err != nil {
		return nil, "", err
	}
	if sli == nil {
		warn := fmt.Sprintf("latency: no telemetry data for %s over %d days", svc.BusinessID, lookbackDays)
		logger.Warn(warn)
		return nil, warn, nil
	}

	samples := []latency.Sample{{P50Ms: sli.P50Ms, P95Ms: sli.P95Ms, P99Ms: sli.P99Ms, P999Ms: sli.P999Ms}}
	rng := rngFor(svc.BusinessID, recommendation.SLILatency)
	tiers, err := latency.ComputeTiers(samples, rng, latency.DefaultOptions(o.SharedInfra))
	if err != nil {
		return nil, "", err
	}

	contributions, err := attribution.Attribute(attribution.SLILatency, map[string]float64{
		"p99_latency_historical": sli.P99Ms,
		"call_chain_depth":       latencyCallChainDepthPlaceholder,
		"noisy_neighbor_margin":  latencyNoisyNeighborMarginPlaceholder,
		"traffic_seasonality":    latencyTrafficSeasonalityPlaceholder,
	})
	if err != nil {
		return nil, "", err
	}

	actualCompleteness, err := o.Telemetry.DataCompleteness(ctx, svc.BusinessID, lookbackDays)
	if err != nil {
		return nil, "", err
	}

	balanced := tiers[latency.TierBalanced]
	summary := fmt.Sprintf(
		"%s observed p99 latency %.2fms over the last %d days; balanced target %.2fms",
		svc.BusinessID, sli.P99Ms, lookbackDays, balanced.TargetMs,
	)

	dto := &RecommendationDTO{
		SLIType: recommendation.SLILatency,
		Metric:  "p99_response_time_ms",
		Tiers:   convertLatencyTiers(tiers),
		Explanation: recommendation.Explanation{
			Summary:      summary,
			Attributions: convertContributions(contributions),
		},
		DataQuality: recommendation.DataQuality{
			Completeness:       actualCompleteness,
			ConfidenceNote:      confidenceNote(actualCompleteness, coldStart),
			ColdStart:           coldStart,
			LookbackDaysActual: lookbackDays,
		},
	}

	if err := o.save(ctx, svc.ID, dto, window); err != nil {
		return nil, "", err
	}
	if o.Metrics != nil {
		o.Metrics.RecordRecommendation("latency", "generated")
	}
	return dto, "", nil
}

func (o *Orchestrator) save(ctx context.Context, serviceID int64, dto *RecommendationDTO, window Window) error {
	rec := &recommendation.SloRecommendation{
		ServiceID:   serviceID,
		SLIType:     dto.SLIType,
		Metric:      dto.Metric,
		Tiers:       dto.Tiers,
		Explanation: dto.Explanation,
		DataQuality: dto.DataQuality,
		WindowStart: window.Start,
		WindowEnd:   window.End,
	}
	return o.Repo.ReplaceActive(ctx, rec)
}

func confidenceNote(completeness float64, coldStart bool) string {
	if coldStart {
		return fmt.Sprintf("cold-start extended window, %.1f%% data completeness", completeness*100)
	}
	return fmt.Sprintf("%.1f%% data completeness", completeness*100)
}

func convertContributions(cs []attribution.Contribution) []recommendation.Attribution {
	out := make([]recommendation.Attribution, len(cs))
	for i, c := range cs {
		out[i] = recommendation.Attribution{Feature: c.Feature, Contribution: c.Contribution, Detail: c.Detail}
	}
	return out
}

func convertAvailabilityTiers(tiers map[availability.TierLevel]availability.Tier) map[recommendation.TierLevel]recommendation.Tier {
	out := make(map[recommendation.TierLevel]recommendation.Tier, len(tiers))
	for level, t := range tiers {
		budget := t.ErrorBudgetMinutes
		ciLower := t.CILowerPercent
		ciUpper := t.CIUpperPercent
		out[recommendation.TierLevel(level)] = recommendation.Tier{
			Level:             recommendation.TierLevel(level),
			Target:            t.TargetPercent,
			ErrorBudgetMinutes: &budget,
			BreachProbability: t.BreachProbability,
			CILower:           &ciLower,
			CIUpper:           &ciUpper,
		}
	}
	return out
}

func convertLatencyTiers(tiers map[latency.TierLevel]latency.Tier) map[recommendation.TierLevel]recommendation.Tier {
	out := make(map[recommendation.TierLevel]recommendation.Tier, len(tiers))
	for level, t := range tiers {
		ciLower := t.CILowerMs
		ciUpper := t.CIUpperMs
		targetMs := t.TargetMsRounded
		out[recommendation.TierLevel(level)] = recommendation.Tier{
			Level:             recommendation.TierLevel(level),
			Target:            t.TargetMs,
			BreachProbability: t.BreachProbability,
			CILower:           &ciLower,
			CIUpper:           &ciUpper,
			PercentileLabel:   t.PercentileLabel,
			TargetMs:          &targetMs,
		}
	}
	return out
}
