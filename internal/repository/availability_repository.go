package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolab/agenda-api/internal/models"
)

// AvailabilityRepository answers presenter occupancy questions. Intervals
// are half-open, so an event ending exactly when another starts is not an
// overlap.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// BlockConflicts returns declared unavailability windows overlapping the
// candidate interval for any of the given presenters.
func (r *AvailabilityRepository) BlockConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time) ([]models.Conflict, error) {
	if len(presenterIDs) == 0 {
		return nil, nil
	}

	const query = `SELECT ab.presenter_id, p.full_name AS presenter_name, 'AVAILABILITY_BLOCK' AS source,
       ab.id AS source_id, ab.starts_at, ab.ends_at
	FROM availability_blocks ab
	JOIN presenters p ON p.id = ab.presenter_id
	WHERE ab.presenter_id = ANY($1) AND ab.starts_at < $3 AND $2 < ab.ends_at
	ORDER BY ab.starts_at ASC`

	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, pq.Array(presenterIDs), startsAt, endsAt); err != nil {
		return nil, fmt.Errorf("list availability block conflicts: %w", err)
	}
	return conflicts, nil
}

// RequestConflicts returns scheduled requests overlapping the candidate
// interval for any of the given presenters. Only requests holding calendar
// slots count; pending and terminal ones do not block.
func (r *AvailabilityRepository) RequestConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error) {
	if len(presenterIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT rp.presenter_id, p.full_name AS presenter_name, 'REQUEST' AS source,
       r.id AS source_id, r.starts_at, r.ends_at
	FROM requests r
	JOIN request_presenters rp ON rp.request_id = r.id
	JOIN presenters p ON p.id = rp.presenter_id
	WHERE rp.presenter_id = ANY($1) AND r.status IN ('%s', '%s')
	  AND r.starts_at < $3 AND $2 < r.ends_at AND r.id <> $4
	ORDER BY r.starts_at ASC`,
		models.RequestStatusPreSchedule, models.RequestStatusApproved)

	var conflicts []models.Conflict
	if err := r.db.SelectContext(ctx, &conflicts, query, pq.Array(presenterIDs), startsAt, endsAt, excludeRequestID); err != nil {
		return nil, fmt.Errorf("list request conflicts: %w", err)
	}
	return conflicts, nil
}
