package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/models"
	"github.com/escolab/agenda-api/internal/repository"
	"github.com/escolab/agenda-api/pkg/calendar"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/jobs"
)

// Job types consumed by the calendar queue.
const (
	JobTypeCalendarSync   = "calendar.sync"
	JobTypeCalendarUnsync = "calendar.unsync"
	JobTypeCalendarResync = "calendar.resync"
)

const sweepBatchSize = 50

type syncRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Request, error)
	MarkApproved(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type syncEventStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.CalendarEvent) error
	GetByRequestID(ctx context.Context, requestID string) (*models.CalendarEvent, error)
	GetByRequestIDForUpdate(ctx context.Context, tx *sqlx.Tx, requestID string) (*models.CalendarEvent, error)
	List(ctx context.Context, filter models.CalendarEventFilter) ([]models.CalendarEvent, int, error)
	MarkSynced(ctx context.Context, exec sqlx.ExtContext, params repository.SyncResultParams) error
	MarkRetryScheduled(ctx context.Context, exec sqlx.ExtContext, id, lastError string, retryCount int) error
	MarkSyncError(ctx context.Context, exec sqlx.ExtContext, id, lastError string, retryCount int) error
	MarkUnsynced(ctx context.Context, exec sqlx.ExtContext, id string) error
	ResetExternal(ctx context.Context, exec sqlx.ExtContext, id string) error
	ListRetryable(ctx context.Context, olderThan time.Time, maxRetries, limit int) ([]models.CalendarEvent, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.CalendarEvent, error)
	ListPendingDeletion(ctx context.Context, olderThan time.Time, limit int) ([]models.CalendarEvent, error)
	CountBySyncStatus(ctx context.Context) (map[models.SyncStatus]int, error)
}

type syncReferenceReader interface {
	GetEventType(ctx context.Context, id string) (*models.EventType, error)
	GetMunicipality(ctx context.Context, id string) (*models.Municipality, error)
}

type syncLocker interface {
	Acquire(ctx context.Context, requestID string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, requestID, token string) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type syncMetrics interface {
	ObserveSyncAttempt(operation, outcome string, duration time.Duration)
	AddSyncRetry(operation string)
	SetEventStatusCount(status string, count int)
}

// SyncServiceConfig governs retry behaviour and the sweeper.
type SyncServiceConfig struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	LockTTL       time.Duration
	RetryCooldown time.Duration
	SweepInterval time.Duration
}

// SyncService mirrors requests into the external calendar. One request maps
// to at most one remote event; attempts for the same request are serialized
// through a per-request lock while distinct requests run in parallel.
type SyncService struct {
	requests syncRequestStore
	events   syncEventStore
	refs     syncReferenceReader
	provider calendar.Provider
	locks    syncLocker
	queue    jobEnqueuer
	audit    auditRecorder
	notifier lifecycleNotifier
	metrics  syncMetrics
	tx       txProvider
	logger   *zap.Logger
	cfg      SyncServiceConfig

	flight keyedMutex
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// NewSyncService wires the sync engine dependencies.
func NewSyncService(
	requests syncRequestStore,
	events syncEventStore,
	refs syncReferenceReader,
	provider calendar.Provider,
	locks syncLocker,
	queue jobEnqueuer,
	audit auditRecorder,
	notifier lifecycleNotifier,
	metrics syncMetrics,
	tx txProvider,
	logger *zap.Logger,
	cfg SyncServiceConfig,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 60 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.RetryCooldown <= 0 {
		cfg.RetryCooldown = 10 * time.Minute
	}
	return &SyncService{
		requests: requests,
		events:   events,
		refs:     refs,
		provider: provider,
		locks:    locks,
		queue:    queue,
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		tx:       tx,
		logger:   logger,
		cfg:      cfg,
		sleep:    sleepContext,
		jitter:   jitterDelay,
	}
}

// AttachQueue sets the job queue once it exists. The queue's handler is
// HandleJob, so the two reference each other and cannot share a constructor.
func (s *SyncService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// EnqueueSync schedules a sync attempt for the request.
func (s *SyncService) EnqueueSync(requestID string) error {
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrInternal, "sync queue unavailable")
	}
	return s.queue.Enqueue(jobs.Job{ID: requestID, Type: JobTypeCalendarSync})
}

// EnqueueUnsync schedules remote deletion for the request's event.
func (s *SyncService) EnqueueUnsync(requestID string) error {
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrInternal, "sync queue unavailable")
	}
	return s.queue.Enqueue(jobs.Job{ID: requestID, Type: JobTypeCalendarUnsync})
}

// EnqueueResync schedules a full rebuild of the request's remote event.
func (s *SyncService) EnqueueResync(requestID string) error {
	if s.queue == nil {
		return appErrors.Clone(appErrors.ErrInternal, "sync queue unavailable")
	}
	return s.queue.Enqueue(jobs.Job{ID: requestID, Type: JobTypeCalendarResync})
}

// HandleJob dispatches queue jobs to the matching sync operation.
func (s *SyncService) HandleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeCalendarSync:
		return s.Sync(ctx, job.ID)
	case JobTypeCalendarUnsync:
		return s.Unsync(ctx, job.ID)
	case JobTypeCalendarResync:
		return s.resyncCycle(ctx, job.ID)
	default:
		return fmt.Errorf("unknown calendar job type: %s", job.Type)
	}
}

// Sync materializes a request as an external calendar event. An event row
// holding an external id is updated rather than recreated, which makes the
// call safe to repeat after a crash between remote call and local commit.
// On success the request moves from PRE_SCHEDULE to APPROVED.
func (s *SyncService) Sync(ctx context.Context, requestID string) error {
	unlock := s.flight.lock(requestID)
	defer unlock()
	token, release, err := s.acquireLock(ctx, requestID)
	if err != nil {
		return err
	}
	defer release(token)
	return s.syncLocked(ctx, requestID)
}

// syncLocked runs one mirror cycle. Callers hold the per-request locks.
func (s *SyncService) syncLocked(ctx context.Context, requestID string) error {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.RequestStatusPreSchedule && request.Status != models.RequestStatusApproved {
		return appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("request in status %s is not eligible for calendar sync", request.Status))
	}

	event, err := s.events.GetByRequestID(ctx, requestID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
		}
		event = &models.CalendarEvent{RequestID: requestID}
		if err := s.events.Create(ctx, nil, event); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar event record")
		}
	}
	if event.DeletedAt != nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "calendar event is marked deleted, resync to mirror again")
	}

	payload, err := s.buildPayload(ctx, request)
	if err != nil {
		return err
	}

	operation := "create"
	if event.ExternalID != nil && *event.ExternalID != "" {
		operation = "update"
	}
	var ref *calendar.EventRef
	retries, err := s.attemptProvider(ctx, event, operation, func() error {
		var callErr error
		if operation == "update" {
			ref, callErr = s.provider.UpdateEvent(ctx, *event.ExternalID, payload)
		} else {
			ref, callErr = s.provider.CreateEvent(ctx, payload)
		}
		return callErr
	})
	if err != nil {
		return err
	}

	if err := s.commitSyncResult(ctx, requestID, event.ID, ref, retries); err != nil {
		return err
	}

	s.logger.Sugar().Infow("calendar event synced",
		"request_id", requestID, "external_id", ref.ID, "retries", retries)
	s.emitAudit(ctx, models.AuditActionCalendarSync, requestID, map[string]interface{}{
		"external_id": ref.ID,
		"operation":   operation,
		"retries":     retries,
	})
	s.notify(ctx, "calendar.synced", map[string]interface{}{
		"request_id":  requestID,
		"external_id": ref.ID,
	})
	return nil
}

// commitSyncResult persists the provider outcome under row locks. The
// request is re-read inside the transaction so a cancellation that raced
// the provider call keeps the external id for the deletion path but never
// reaches APPROVED.
func (s *SyncService) commitSyncResult(ctx context.Context, requestID, eventID string, ref *calendar.EventRef, retries int) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.requests.GetByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock request")
		return err
	}
	if _, err = s.events.GetByRequestIDForUpdate(ctx, tx, requestID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock calendar event")
		return err
	}
	if err = s.events.MarkSynced(ctx, tx, repository.SyncResultParams{
		ID:           eventID,
		ExternalID:   ref.ID,
		ExternalLink: ref.Link,
		RetryCount:   retries,
	}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record sync result")
		return err
	}
	if current.Status == models.RequestStatusPreSchedule {
		if err = s.requests.MarkApproved(ctx, tx, requestID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sync result")
		return err
	}
	return nil
}

// Unsync deletes the request's external event after cancellation. A remote
// answer of "already gone" counts as success; the local row is only marked
// deleted once the remote side is confirmed clean.
func (s *SyncService) Unsync(ctx context.Context, requestID string) error {
	unlock := s.flight.lock(requestID)
	defer unlock()
	token, release, err := s.acquireLock(ctx, requestID)
	if err != nil {
		return err
	}
	defer release(token)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.RequestStatusCancelled {
		return appErrors.Clone(appErrors.ErrInvalidState, "only cancelled requests release their calendar event")
	}

	event, err := s.events.GetByRequestID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
	}
	if event.DeletedAt != nil && event.ExternalID == nil {
		return nil
	}

	var externalID string
	if event.ExternalID != nil && *event.ExternalID != "" {
		externalID = *event.ExternalID
		if _, err := s.attemptProvider(ctx, event, "delete", func() error {
			return s.provider.DeleteEvent(ctx, externalID)
		}); err != nil {
			return err
		}
	}

	if err := s.commitUnsync(ctx, requestID, event.ID); err != nil {
		return err
	}

	s.logger.Sugar().Infow("calendar event released", "request_id", requestID, "external_id", externalID)
	s.emitAudit(ctx, models.AuditActionCalendarUnsync, requestID, map[string]interface{}{
		"external_id": externalID,
	})
	s.notify(ctx, "calendar.unsynced", map[string]interface{}{
		"request_id": requestID,
	})
	return nil
}

func (s *SyncService) commitUnsync(ctx context.Context, requestID, eventID string) (err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.events.GetByRequestIDForUpdate(ctx, tx, requestID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock calendar event")
		return err
	}
	if err = s.events.MarkUnsynced(ctx, tx, eventID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark calendar event deleted")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit unsync")
		return err
	}
	return nil
}

// Resync is the operator entry for events stuck in ERROR or pointing at a
// vanished remote. The scheduled cycle deletes whatever remote copy still
// exists, clears the stored identifiers and mirrors the request afresh.
func (s *SyncService) Resync(ctx context.Context, requestID string, actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.HasCapability(models.CapabilityOperateSync) {
		return appErrors.Clone(appErrors.ErrForbidden, "sync operation capability required")
	}
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.RequestStatusPreSchedule && request.Status != models.RequestStatusApproved {
		return appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot resync a request in status %s", request.Status))
	}

	if err := s.EnqueueResync(requestID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue calendar resync")
	}
	s.emitAuditActor(ctx, &actor.UserID, models.AuditActionCalendarSync, requestID, map[string]interface{}{
		"operation": "resync",
	})
	return nil
}

// resyncCycle rebuilds the remote event from scratch. The stale remote
// copy is deleted first, tolerating an already-gone answer, so the fresh
// create cannot leave a duplicate behind.
func (s *SyncService) resyncCycle(ctx context.Context, requestID string) error {
	unlock := s.flight.lock(requestID)
	defer unlock()
	token, release, err := s.acquireLock(ctx, requestID)
	if err != nil {
		return err
	}
	defer release(token)

	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.Status != models.RequestStatusPreSchedule && request.Status != models.RequestStatusApproved {
		return appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot resync a request in status %s", request.Status))
	}

	event, err := s.events.GetByRequestID(ctx, requestID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar event")
	}
	if event != nil {
		if event.ExternalID != nil && *event.ExternalID != "" {
			externalID := *event.ExternalID
			if _, err := s.attemptProvider(ctx, event, "delete", func() error {
				return s.provider.DeleteEvent(ctx, externalID)
			}); err != nil {
				return err
			}
		}
		if err := s.events.ResetExternal(ctx, nil, event.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset calendar event")
		}
	}
	return s.syncLocked(ctx, requestID)
}

// ListEvents exposes sync state for operator monitoring.
func (s *SyncService) ListEvents(ctx context.Context, query dto.CalendarEventQuery, actor *models.JWTClaims) ([]models.CalendarEvent, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.HasCapability(models.CapabilityOperateSync) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "sync operation capability required")
	}
	page, pageSize := normalizePage(query.Page, query.PageSize)
	events, total, err := s.events.List(ctx, models.CalendarEventFilter{
		SyncStatus: query.SyncStatus,
		RequestID:  query.RequestID,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar events")
	}
	return events, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// RecoverPending replays syncs whose enqueue was lost to a restart.
func (s *SyncService) RecoverPending(ctx context.Context) {
	now := time.Now().UTC()
	stale, err := s.events.ListStalePending(ctx, now, sweepBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover pending calendar events", "error", err)
	} else {
		for _, event := range stale {
			if err := s.EnqueueSync(event.RequestID); err != nil {
				s.logger.Sugar().Warnw("failed to requeue calendar sync", "request_id", event.RequestID, "error", err)
			}
		}
	}
	deletions, err := s.events.ListPendingDeletion(ctx, now, sweepBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover pending deletions", "error", err)
		return
	}
	for _, event := range deletions {
		if err := s.EnqueueUnsync(event.RequestID); err != nil {
			s.logger.Sugar().Warnw("failed to requeue calendar unsync", "request_id", event.RequestID, "error", err)
		}
	}
}

// StartSweeper boots the periodic retry sweep. Errored events cooled down
// past the retry window get another cycle until the attempt ceiling; after
// that they stay ERROR until an operator resyncs.
func (s *SyncService) StartSweeper(ctx context.Context) {
	if s.cfg.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *SyncService) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.RetryCooldown)

	retryable, err := s.events.ListRetryable(ctx, cutoff, s.cfg.MaxAttempts, sweepBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("sweep list retryable failed", "error", err)
	} else {
		for _, event := range retryable {
			if err := s.EnqueueSync(event.RequestID); err != nil {
				s.logger.Sugar().Warnw("sweep enqueue sync failed", "request_id", event.RequestID, "error", err)
			}
		}
	}

	stale, err := s.events.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("sweep list stale pending failed", "error", err)
	} else {
		for _, event := range stale {
			if err := s.EnqueueSync(event.RequestID); err != nil {
				s.logger.Sugar().Warnw("sweep enqueue sync failed", "request_id", event.RequestID, "error", err)
			}
		}
	}

	deletions, err := s.events.ListPendingDeletion(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Sugar().Warnw("sweep list pending deletion failed", "error", err)
	} else {
		for _, event := range deletions {
			if err := s.EnqueueUnsync(event.RequestID); err != nil {
				s.logger.Sugar().Warnw("sweep enqueue unsync failed", "request_id", event.RequestID, "error", err)
			}
		}
	}

	if s.metrics != nil {
		counts, err := s.events.CountBySyncStatus(ctx)
		if err != nil {
			s.logger.Sugar().Warnw("sweep status count failed", "error", err)
			return
		}
		for _, status := range []models.SyncStatus{models.SyncStatusPending, models.SyncStatusSynced, models.SyncStatusError} {
			s.metrics.SetEventStatusCount(string(status), counts[status])
		}
	}
}

// attemptProvider runs one provider operation under the retry policy.
// Transient failures back off exponentially and keep the event PENDING;
// permanent failures and exhausted budgets turn it ERROR. Returns the
// accumulated retry count for the success write.
func (s *SyncService) attemptProvider(ctx context.Context, event *models.CalendarEvent, operation string, call func() error) (int, error) {
	retries := event.RetryCount
	for attempt := 1; ; attempt++ {
		started := time.Now()
		err := call()
		s.observe(operation, outcomeFor(err), time.Since(started))
		if err == nil {
			return retries, nil
		}

		retries++
		message := err.Error()
		if !calendar.IsTransient(err) {
			if markErr := s.events.MarkSyncError(ctx, nil, event.ID, message, retries); markErr != nil {
				s.logger.Sugar().Warnw("failed to record sync error", "event_id", event.ID, "error", markErr)
			}
			return retries, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("calendar provider rejected the %s call", operation))
		}
		if attempt >= s.cfg.MaxAttempts {
			if markErr := s.events.MarkSyncError(ctx, nil, event.ID, message, retries); markErr != nil {
				s.logger.Sugar().Warnw("failed to record sync error", "event_id", event.ID, "error", markErr)
			}
			return retries, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status,
				fmt.Sprintf("calendar %s attempts exhausted", operation))
		}
		if markErr := s.events.MarkRetryScheduled(ctx, nil, event.ID, message, retries); markErr != nil {
			s.logger.Sugar().Warnw("failed to record retry", "event_id", event.ID, "error", markErr)
		}
		if s.metrics != nil {
			s.metrics.AddSyncRetry(operation)
		}

		delay := s.jitter(backoffDelay(attempt, s.cfg.BackoffBase, s.cfg.BackoffCap))
		s.logger.Sugar().Infow("calendar call failed, backing off",
			"request_id", event.RequestID, "operation", operation, "attempt", attempt, "delay", delay, "error", message)
		if sleepErr := s.sleep(ctx, delay); sleepErr != nil {
			return retries, appErrors.Wrap(sleepErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "calendar sync interrupted")
		}
	}
}

// buildPayload assembles the provider event from the request. Dangling
// references degrade to defaults instead of blocking the sync.
func (s *SyncService) buildPayload(ctx context.Context, request *models.Request) (calendar.Event, error) {
	payload := calendar.Event{
		Title:       request.Title,
		Description: request.Description,
		StartsAt:    request.StartsAt,
		EndsAt:      request.EndsAt,
	}
	for _, presenter := range request.Presenters {
		if presenter.Email != "" {
			payload.Attendees = append(payload.Attendees, presenter.Email)
		}
	}

	eventType, err := s.refs.GetEventType(ctx, request.EventTypeID)
	switch {
	case err == nil:
		payload.Conference = eventType.IsOnline
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Sugar().Warnw("request references a missing event type", "request_id", request.ID, "event_type_id", request.EventTypeID)
	default:
		return calendar.Event{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event type")
	}

	municipality, err := s.refs.GetMunicipality(ctx, request.MunicipalityID)
	switch {
	case err == nil:
		payload.Location = municipality.Name
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Sugar().Warnw("request references a missing municipality", "request_id", request.ID, "municipality_id", request.MunicipalityID)
	default:
		return calendar.Event{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load municipality")
	}
	return payload, nil
}

func (s *SyncService) acquireLock(ctx context.Context, requestID string) (string, func(string), error) {
	token, ok, err := s.locks.Acquire(ctx, requestID, s.cfg.LockTTL)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire sync lock")
	}
	if !ok {
		return "", nil, appErrors.Clone(appErrors.ErrLockHeld, "sync already in flight for this request")
	}
	release := func(t string) {
		if err := s.locks.Release(ctx, requestID, t); err != nil {
			s.logger.Sugar().Warnw("failed to release sync lock", "request_id", requestID, "error", err)
		}
	}
	return token, release, nil
}

func (s *SyncService) loadRequest(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *SyncService) observe(operation, outcome string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSyncAttempt(operation, outcome, duration)
}

func (s *SyncService) emitAudit(ctx context.Context, action, requestID string, detail map[string]interface{}) {
	s.emitAuditActor(ctx, nil, action, requestID, detail)
}

func (s *SyncService) emitAuditActor(ctx context.Context, actorID *string, action, requestID string, detail map[string]interface{}) {
	if s.audit == nil {
		return
	}
	var encoded []byte
	if len(detail) > 0 {
		encoded, _ = json.Marshal(detail)
	}
	log := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		Resource:   "calendar_event",
		ResourceID: &requestID,
		Detail:     encoded,
		IPAddress:  "system",
		UserAgent:  "sync-service",
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *SyncService) notify(ctx context.Context, routingKey string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Sugar().Warnw("failed to publish lifecycle event", "routing_key", routingKey, "error", err)
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "success"
	case calendar.IsTransient(err):
		return "transient_error"
	default:
		return "permanent_error"
	}
}

// backoffDelay returns the exponential delay before the next attempt:
// base doubled per failed attempt, capped.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// jitterDelay spreads a delay by plus or minus twenty percent.
func jitterDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// keyedMutex serializes work per key inside one process. Entries are
// reference counted and removed once the last holder releases.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedMutexEntry)
	}
	entry := k.locks[key]
	if entry == nil {
		entry = &keyedMutexEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
