package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/escolab/agenda-api/internal/models"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
)

type availabilityStore interface {
	BlockConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time) ([]models.Conflict, error)
	RequestConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error)
}

// AvailabilityService answers whether presenters are free for a time window.
type AvailabilityService struct {
	repo    availabilityStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(repo availabilityStore, metrics *MetricsService, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, metrics: metrics, logger: logger}
}

// FindConflicts returns every booking overlapping [startsAt, endsAt) for the
// given presenters: declared unavailability blocks plus requests already in
// PRE_SCHEDULE or APPROVED. Windows that merely touch do not overlap.
// excludeRequestID skips one request so it never conflicts with itself.
func (s *AvailabilityService) FindConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error) {
	if len(presenterIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one presenter is required")
	}
	if !startsAt.Before(endsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window start must be before its end")
	}

	start := time.Now()
	blocks, err := s.repo.BlockConflicts(ctx, presenterIDs, startsAt, endsAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability blocks")
	}
	booked, err := s.repo.RequestConflicts(ctx, presenterIDs, startsAt, endsAt, excludeRequestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check scheduled requests")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("availability_conflicts", time.Since(start))
	}

	conflicts := make([]models.Conflict, 0, len(blocks)+len(booked))
	conflicts = append(conflicts, blocks...)
	conflicts = append(conflicts, booked...)
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].StartsAt.Equal(conflicts[j].StartsAt) {
			return conflicts[i].PresenterID < conflicts[j].PresenterID
		}
		return conflicts[i].StartsAt.Before(conflicts[j].StartsAt)
	})
	return conflicts, nil
}
