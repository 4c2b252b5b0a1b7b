package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolab/agenda-api/internal/models"
)

const requestColumns = `id, title, description, requester_id, project_id, municipality_id, event_type_id,
       starts_at, ends_at, status, approver_id, decided_at, rejection_reason, created_at, updated_at`

// RequestRepository persists event requests and their presenter links.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

func (r *RequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now

	const query = `INSERT INTO requests
	(id, title, description, requester_id, project_id, municipality_id, event_type_id, starts_at, ends_at, status, approver_id, decided_at, rejection_reason, created_at, updated_at)
	VALUES (:id, :title, :description, :requester_id, :project_id, :municipality_id, :event_type_id, :starts_at, :ends_at, :status, :approver_id, :decided_at, :rejection_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// ReplacePresenters rewrites the presenter links for a request.
func (r *RequestRepository) ReplacePresenters(ctx context.Context, exec sqlx.ExtContext, requestID string, presenterIDs []string) error {
	target := r.exec(exec)

	if _, err := target.ExecContext(ctx, `DELETE FROM request_presenters WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("clear request presenters: %w", err)
	}

	const query = `INSERT INTO request_presenters (request_id, presenter_id) VALUES ($1, $2)`
	for _, presenterID := range presenterIDs {
		if _, err := target.ExecContext(ctx, query, requestID, presenterID); err != nil {
			return fmt.Errorf("link request presenter: %w", err)
		}
	}
	return nil
}

// GetByID fetches a request with its presenters.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1`, requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}

	presenters, err := r.presentersFor(ctx, id)
	if err != nil {
		return nil, err
	}
	request.Presenters = presenters
	return &request, nil
}

// GetByIDForUpdate locks the request row inside the supplied transaction.
func (r *RequestRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE id = $1 FOR UPDATE`, requestColumns)
	var request models.Request
	if err := tx.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *RequestRepository) presentersFor(ctx context.Context, requestID string) ([]models.Presenter, error) {
	const query = `SELECT p.id, p.full_name, p.email, p.active
	FROM presenters p
	JOIN request_presenters rp ON rp.presenter_id = p.id
	WHERE rp.request_id = $1
	ORDER BY p.full_name ASC`
	var presenters []models.Presenter
	if err := r.db.SelectContext(ctx, &presenters, query, requestID); err != nil {
		return nil, fmt.Errorf("list request presenters: %w", err)
	}
	return presenters, nil
}

// List returns requests matching the filter (latest first) plus the total count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.SectorID != "" {
		args = append(args, filter.SectorID)
		conditions = append(conditions, fmt.Sprintf("project_id IN (SELECT id FROM projects WHERE sector_id = $%d)", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("ends_at > $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("starts_at < $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM requests%s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		requestColumns, where, limit, offset)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	return requests, total, nil
}

// SetDecisionParams groups mutable columns for the decision step.
type SetDecisionParams struct {
	ID              string
	Status          models.RequestStatus
	ApproverID      *string
	DecidedAt       time.Time
	RejectionReason *string
}

// SetDecision moves a pending request to its decided status. The status
// guard makes concurrent decisions lose with sql.ErrNoRows.
func (r *RequestRepository) SetDecision(ctx context.Context, exec sqlx.ExtContext, params SetDecisionParams) error {
	query := fmt.Sprintf(`UPDATE requests
	SET status = :status, approver_id = :approver_id, decided_at = :decided_at, rejection_reason = :rejection_reason, updated_at = :updated_at
	WHERE id = :id AND status = '%s'`, models.RequestStatusPending)

	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"approver_id":      params.ApproverID,
		"decided_at":       params.DecidedAt,
		"rejection_reason": params.RejectionReason,
		"updated_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("set request decision: %w", err)
	}
	return requireRowsAffected(result, "set request decision")
}

// MarkApproved finalises a pre-scheduled request after a successful sync.
func (r *RequestRepository) MarkApproved(ctx context.Context, exec sqlx.ExtContext, id string) error {
	query := fmt.Sprintf(`UPDATE requests SET status = '%s', updated_at = $1 WHERE id = $2 AND status = '%s'`,
		models.RequestStatusApproved, models.RequestStatusPreSchedule)

	result, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark request approved: %w", err)
	}
	return requireRowsAffected(result, "mark request approved")
}

// MarkCancelled terminates a request from any active status.
func (r *RequestRepository) MarkCancelled(ctx context.Context, exec sqlx.ExtContext, id string) error {
	query := fmt.Sprintf(`UPDATE requests SET status = '%s', updated_at = $1 WHERE id = $2 AND status = ANY($3)`,
		models.RequestStatusCancelled)

	active := pq.Array([]string{
		string(models.RequestStatusPending),
		string(models.RequestStatusPreSchedule),
		string(models.RequestStatusApproved),
	})
	result, err := r.exec(exec).ExecContext(ctx, query, time.Now().UTC(), id, active)
	if err != nil {
		return fmt.Errorf("mark request cancelled: %w", err)
	}
	return requireRowsAffected(result, "mark request cancelled")
}

func requireRowsAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
