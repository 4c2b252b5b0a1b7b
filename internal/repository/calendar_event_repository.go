package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolab/agenda-api/internal/models"
)

const calendarEventColumns = `id, request_id, external_id, external_link, sync_status, last_error, retry_count, deleted_at, created_at, updated_at`

// CalendarEventRepository persists the mirroring state of requests in the
// external calendar.
type CalendarEventRepository struct {
	db *sqlx.DB
}

// NewCalendarEventRepository constructs the repository.
func NewCalendarEventRepository(db *sqlx.DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

func (r *CalendarEventRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts the tracking row for a request. The unique request_id
// constraint keeps at most one row per request.
func (r *CalendarEventRepository) Create(ctx context.Context, exec sqlx.ExtContext, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.SyncStatus == "" {
		event.SyncStatus = models.SyncStatusPending
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	const query = `INSERT INTO calendar_events
	(id, request_id, external_id, external_link, sync_status, last_error, retry_count, deleted_at, created_at, updated_at)
	VALUES (:id, :request_id, :external_id, :external_link, :sync_status, :last_error, :retry_count, :deleted_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// GetByRequestID fetches the tracking row for a request.
func (r *CalendarEventRepository) GetByRequestID(ctx context.Context, requestID string) (*models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE request_id = $1`, calendarEventColumns)
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, requestID); err != nil {
		return nil, err
	}
	return &event, nil
}

// GetByRequestIDForUpdate locks the tracking row inside the supplied transaction.
func (r *CalendarEventRepository) GetByRequestIDForUpdate(ctx context.Context, tx *sqlx.Tx, requestID string) (*models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE request_id = $1 FOR UPDATE`, calendarEventColumns)
	var event models.CalendarEvent
	if err := tx.GetContext(ctx, &event, query, requestID); err != nil {
		return nil, err
	}
	return &event, nil
}

// List returns tracking rows matching the filter (latest first) plus the total count.
func (r *CalendarEventRepository) List(ctx context.Context, filter models.CalendarEventFilter) ([]models.CalendarEvent, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if len(filter.SyncStatus) > 0 {
		placeholders := make([]string, len(filter.SyncStatus))
		for i, status := range filter.SyncStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("sync_status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequestID != "" {
		args = append(args, filter.RequestID)
		conditions = append(conditions, fmt.Sprintf("request_id = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM calendar_events"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendar events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM calendar_events%s ORDER BY updated_at DESC LIMIT %d OFFSET %d",
		calendarEventColumns, where, limit, offset)

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendar events: %w", err)
	}
	return events, total, nil
}

// SyncResultParams carries the outcome of a provider round trip.
type SyncResultParams struct {
	ID           string
	ExternalID   string
	ExternalLink string
	RetryCount   int
}

// MarkSynced records a successful provider call and clears error state.
func (r *CalendarEventRepository) MarkSynced(ctx context.Context, exec sqlx.ExtContext, params SyncResultParams) error {
	const query = `UPDATE calendar_events
	SET external_id = :external_id, external_link = :external_link, sync_status = :sync_status,
	    last_error = NULL, retry_count = :retry_count, deleted_at = NULL, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":            params.ID,
		"external_id":   params.ExternalID,
		"external_link": params.ExternalLink,
		"sync_status":   models.SyncStatusSynced,
		"retry_count":   params.RetryCount,
		"updated_at":    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mark calendar event synced: %w", err)
	}
	return requireRowsAffected(result, "mark calendar event synced")
}

// MarkRetryScheduled records a transient failure between attempts. The
// status stays PENDING so the row reads as awaiting retry, not stuck.
func (r *CalendarEventRepository) MarkRetryScheduled(ctx context.Context, exec sqlx.ExtContext, id, lastError string, retryCount int) error {
	const query = `UPDATE calendar_events
	SET sync_status = :sync_status, last_error = :last_error, retry_count = :retry_count, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":          id,
		"sync_status": models.SyncStatusPending,
		"last_error":  lastError,
		"retry_count": retryCount,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mark calendar event retry: %w", err)
	}
	return requireRowsAffected(result, "mark calendar event retry")
}

// MarkSyncError records a failed cycle for operator visibility.
func (r *CalendarEventRepository) MarkSyncError(ctx context.Context, exec sqlx.ExtContext, id, lastError string, retryCount int) error {
	const query = `UPDATE calendar_events
	SET sync_status = :sync_status, last_error = :last_error, retry_count = :retry_count, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":          id,
		"sync_status": models.SyncStatusError,
		"last_error":  lastError,
		"retry_count": retryCount,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("mark calendar event sync error: %w", err)
	}
	return requireRowsAffected(result, "mark calendar event sync error")
}

// MarkUnsynced clears external identifiers after a confirmed remote
// deletion and stamps the deletion marker. A later sync starts clean.
func (r *CalendarEventRepository) MarkUnsynced(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE calendar_events
	SET external_id = NULL, external_link = NULL, sync_status = :sync_status,
	    last_error = NULL, retry_count = 0, deleted_at = :deleted_at, updated_at = :updated_at
	WHERE id = :id`
	now := time.Now().UTC()
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":          id,
		"sync_status": models.SyncStatusPending,
		"deleted_at":  now,
		"updated_at":  now,
	})
	if err != nil {
		return fmt.Errorf("mark calendar event unsynced: %w", err)
	}
	return requireRowsAffected(result, "mark calendar event unsynced")
}

// ResetExternal wipes the remote identifiers, the error state and the
// deletion marker so the next sync creates a fresh remote event.
func (r *CalendarEventRepository) ResetExternal(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `UPDATE calendar_events
	SET external_id = NULL, external_link = NULL, sync_status = :sync_status,
	    last_error = NULL, retry_count = 0, deleted_at = NULL, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":          id,
		"sync_status": models.SyncStatusPending,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("reset calendar event: %w", err)
	}
	return requireRowsAffected(result, "reset calendar event")
}

// ListRetryable returns errored events cool enough to try again, capped by
// the attempt ceiling, whose request still wants mirroring.
func (r *CalendarEventRepository) ListRetryable(ctx context.Context, olderThan time.Time, maxRetries, limit int) ([]models.CalendarEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT ce.%s FROM calendar_events ce
	JOIN requests r ON r.id = ce.request_id
	WHERE ce.sync_status = $1 AND ce.updated_at < $2 AND ce.retry_count < $3
	  AND r.status IN ('%s', '%s')
	ORDER BY ce.updated_at ASC LIMIT %d`,
		strings.ReplaceAll(calendarEventColumns, ", ", ", ce."),
		models.RequestStatusPreSchedule, models.RequestStatusApproved, limit)

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, models.SyncStatusError, olderThan, maxRetries); err != nil {
		return nil, fmt.Errorf("list retryable calendar events: %w", err)
	}
	return events, nil
}

// ListStalePending returns events awaiting a sync whose request is still
// eligible. Picks up enqueues lost to a restart or crash.
func (r *CalendarEventRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.CalendarEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT ce.%s FROM calendar_events ce
	JOIN requests r ON r.id = ce.request_id
	WHERE ce.sync_status = $1 AND ce.deleted_at IS NULL AND ce.updated_at < $2
	  AND r.status = '%s'
	ORDER BY ce.updated_at ASC LIMIT %d`,
		strings.ReplaceAll(calendarEventColumns, ", ", ", ce."),
		models.RequestStatusPreSchedule, limit)

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, models.SyncStatusPending, olderThan); err != nil {
		return nil, fmt.Errorf("list stale pending calendar events: %w", err)
	}
	return events, nil
}

// ListPendingDeletion returns events still holding an external id for a
// cancelled request, so the sweeper can finish the remote deletion.
func (r *CalendarEventRepository) ListPendingDeletion(ctx context.Context, olderThan time.Time, limit int) ([]models.CalendarEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT ce.%s FROM calendar_events ce
	JOIN requests r ON r.id = ce.request_id
	WHERE ce.external_id IS NOT NULL AND ce.updated_at < $1 AND r.status = '%s'
	ORDER BY ce.updated_at ASC LIMIT %d`,
		strings.ReplaceAll(calendarEventColumns, ", ", ", ce."),
		models.RequestStatusCancelled, limit)

	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, olderThan); err != nil {
		return nil, fmt.Errorf("list calendar events pending deletion: %w", err)
	}
	return events, nil
}

// CountBySyncStatus aggregates live event rows per sync status.
func (r *CalendarEventRepository) CountBySyncStatus(ctx context.Context) (map[models.SyncStatus]int, error) {
	const query = `SELECT sync_status, COUNT(*) AS total FROM calendar_events WHERE deleted_at IS NULL GROUP BY sync_status`
	var rows []struct {
		SyncStatus models.SyncStatus `db:"sync_status"`
		Total      int               `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count calendar events by status: %w", err)
	}
	counts := make(map[models.SyncStatus]int, len(rows))
	for _, row := range rows {
		counts[row.SyncStatus] = row.Total
	}
	return counts, nil
}
