package recommendation

import "context"

// Repository is the Recommendation Repository contract (C8).
type Repository interface {
	// GetActive returns active recommendations for a service, optionally
	// restricted to one SLI type.
	GetActive(ctx context.Context, serviceID int64, sliType *SLIType) ([]*SloRecommendation, error)

	// Save persists a new recommendation, assigning its internal id.
	Save(ctx context.Context, rec *SloRecommendation) error

	// SaveBatch persists several recommendations and returns the count saved.
	SaveBatch(ctx context.Context, recs []*SloRecommendation) (int, error)

	// SupersedeExisting flips every active row for (serviceID, sliType) to
	// superseded, returning the count changed. Idempotent: a second call
	// with no active rows left returns 0.
	SupersedeExisting(ctx context.Context, serviceID int64, sliType SLIType) (int, error)

	// ExpireStale flips active rows whose expires_at has passed to expired,
	// returning the count changed.
	ExpireStale(ctx context.Context) (int, error)

	// ReplaceActive supersedes any existing active recommendation for
	// (rec.ServiceID, rec.SLIType) and saves rec as the new active one,
	// inside a single transaction. A crash partway through leaves either
	// the old recommendation active or the new one saved, never neither.
	ReplaceActive(ctx context.Context, rec *SloRecommendation) error
}
