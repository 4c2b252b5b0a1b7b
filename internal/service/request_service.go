package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/models"
	"github.com/escolab/agenda-api/internal/repository"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
)

// minEventDuration is the shortest window a request may book.
const minEventDuration = 30 * time.Minute

type requestStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error
	ReplacePresenters(ctx context.Context, exec sqlx.ExtContext, requestID string, presenterIDs []string) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	SetDecision(ctx context.Context, exec sqlx.ExtContext, params repository.SetDecisionParams) error
	MarkCancelled(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type calendarEventWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, event *models.CalendarEvent) error
	GetByRequestID(ctx context.Context, requestID string) (*models.CalendarEvent, error)
}

type referenceReader interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetSector(ctx context.Context, id string) (*models.Sector, error)
	GetEventType(ctx context.Context, id string) (*models.EventType, error)
	GetMunicipality(ctx context.Context, id string) (*models.Municipality, error)
	ListPresentersByIDs(ctx context.Context, ids []string) ([]models.Presenter, error)
}

type conflictFinder interface {
	FindConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error)
}

type syncDispatcher interface {
	EnqueueSync(requestID string) error
	EnqueueUnsync(requestID string) error
}

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type lifecycleNotifier interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// RequestService owns the event request workflow: submission with
// availability checking, approval routing, decisions and cancellation.
type RequestService struct {
	repo         requestStore
	events       calendarEventWriter
	refs         referenceReader
	availability conflictFinder
	sync         syncDispatcher
	audit        auditRecorder
	notifier     lifecycleNotifier
	tx           txProvider
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRequestService wires the request workflow dependencies.
func NewRequestService(
	repo requestStore,
	events calendarEventWriter,
	refs referenceReader,
	availability conflictFinder,
	sync syncDispatcher,
	audit auditRecorder,
	notifier lifecycleNotifier,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		repo:         repo,
		events:       events,
		refs:         refs,
		availability: availability,
		sync:         sync,
		audit:        audit,
		notifier:     notifier,
		tx:           tx,
		validator:    validate,
		logger:       logger,
	}
}

// Submit validates a new request, checks presenter availability, routes it
// through the approval gate and persists it. Requests exempt from the gate
// land directly in PRE_SCHEDULE and get their calendar sync scheduled.
func (s *RequestService) Submit(ctx context.Context, req dto.CreateRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.HasCapability(models.CapabilitySubmitRequests) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submit capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !req.StartsAt.Before(req.EndsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startsAt must be before endsAt")
	}
	if req.EndsAt.Sub(req.StartsAt) < minEventDuration {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event must last at least 30 minutes")
	}

	project, err := s.loadActiveProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req.EventTypeID, req.MunicipalityID); err != nil {
		return nil, err
	}
	presenters, err := s.loadPresenters(ctx, req.PresenterIDs)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.availability.FindConflicts(ctx, req.PresenterIDs, req.StartsAt, req.EndsAt, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrScheduleConflict,
			fmt.Sprintf("%d overlapping bookings found for the requested presenters", len(conflicts)))
	}

	gated, gateSource, err := s.resolveGate(ctx, project)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &models.Request{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		RequesterID:    actor.UserID,
		ProjectID:      req.ProjectID,
		MunicipalityID: req.MunicipalityID,
		EventTypeID:    req.EventTypeID,
		StartsAt:       req.StartsAt.UTC(),
		EndsAt:         req.EndsAt.UTC(),
		Status:         models.RequestStatusPending,
	}
	if !gated {
		// no approval gate: the submission itself is the decision
		request.Status = models.RequestStatusPreSchedule
		request.DecidedAt = &now
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.repo.Create(ctx, tx, request); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
		return nil, err
	}
	if err = s.repo.ReplacePresenters(ctx, tx, request.ID, req.PresenterIDs); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign presenters")
		return nil, err
	}
	if request.Status == models.RequestStatusPreSchedule {
		if err = s.events.Create(ctx, tx, &models.CalendarEvent{RequestID: request.ID}); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar event record")
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit request")
		return nil, err
	}

	request.Presenters = presenters
	if request.Status == models.RequestStatusPreSchedule {
		s.scheduleSync(request.ID)
	}
	s.emitAudit(ctx, &actor.UserID, models.AuditActionRequestSubmit, request.ID, map[string]interface{}{
		"status":      request.Status,
		"gated":       gated,
		"gate_source": gateSource,
	})
	s.notify(ctx, "request.submitted", request)
	return request, nil
}

// Decide applies an approver's verdict on a pending request. Approvals move
// it to PRE_SCHEDULE and schedule the calendar sync; rejections are terminal
// and must carry a justification.
func (s *RequestService) Decide(ctx context.Context, id string, req dto.DecideRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeDecision(ctx, request, actor); err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is already decided")
	}

	now := time.Now().UTC()
	approverID := actor.UserID

	switch req.Decision {
	case dto.DecisionApprove:
		tx, txErr := s.tx.BeginTxx(ctx, nil)
		if txErr != nil {
			return nil, appErrors.Wrap(txErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = s.repo.SetDecision(ctx, tx, repository.SetDecisionParams{
			ID:         id,
			Status:     models.RequestStatusPreSchedule,
			ApproverID: &approverID,
			DecidedAt:  now,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				err = appErrors.Clone(appErrors.ErrInvalidState, "request is already decided")
				return nil, err
			}
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
			return nil, err
		}
		if err = s.events.Create(ctx, tx, &models.CalendarEvent{RequestID: id}); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar event record")
			return nil, err
		}
		if err = tx.Commit(); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit decision")
			return nil, err
		}

		request.Status = models.RequestStatusPreSchedule
		request.ApproverID = &approverID
		request.DecidedAt = &now
		s.scheduleSync(id)
		s.emitAudit(ctx, &approverID, models.AuditActionRequestApprove, id, nil)
		s.notify(ctx, "request.approved", request)

	case dto.DecisionReject:
		justification := strings.TrimSpace(req.Justification)
		if justification == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "justification is required to reject a request")
		}
		if err := s.repo.SetDecision(ctx, nil, repository.SetDecisionParams{
			ID:              id,
			Status:          models.RequestStatusRejected,
			ApproverID:      &approverID,
			DecidedAt:       now,
			RejectionReason: &justification,
		}); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrInvalidState, "request is already decided")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
		}

		request.Status = models.RequestStatusRejected
		request.ApproverID = &approverID
		request.DecidedAt = &now
		request.RejectionReason = &justification
		s.emitAudit(ctx, &approverID, models.AuditActionRequestReject, id, map[string]interface{}{
			"justification": justification,
		})
		s.notify(ctx, "request.rejected", request)
	}

	return request, nil
}

// Cancel terminates an active request. When a calendar event exists its
// external counterpart is scheduled for deletion asynchronously.
func (s *RequestService) Cancel(ctx context.Context, id string, req dto.CancelRequestRequest, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		if !actor.Role.HasCapability(models.CapabilityCancelRequests) || request.RequesterID != actor.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester or an admin can cancel a request")
		}
	}
	if !models.CanTransition(request.Status, models.RequestStatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot cancel a request in status %s", request.Status))
	}

	if err := s.repo.MarkCancelled(ctx, nil, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "request status changed, reload and retry")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel request")
	}
	request.Status = models.RequestStatusCancelled

	if _, evErr := s.events.GetByRequestID(ctx, id); evErr == nil {
		s.scheduleUnsync(id)
	} else if !errors.Is(evErr, sql.ErrNoRows) {
		s.logger.Sugar().Warnw("failed to check calendar event on cancel", "request_id", id, "error", evErr)
	}

	detail := map[string]interface{}{}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		detail["reason"] = reason
	}
	s.emitAudit(ctx, &actor.UserID, models.AuditActionRequestCancel, id, detail)
	s.notify(ctx, "request.cancelled", request)
	return request, nil
}

// Get returns one request enforcing role scope.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.loadRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleCoordinator:
		if request.RequesterID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	case models.RoleApprover:
		if actor.SectorID != "" {
			project, err := s.refs.GetProject(ctx, request.ProjectID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request project")
			}
			if project.SectorID != nil && *project.SectorID != actor.SectorID {
				return nil, appErrors.ErrForbidden
			}
		}
	case models.RoleOperator, models.RoleAdmin:
		// unrestricted
	default:
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns accessible requests respecting actor scope.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, pageSize := normalizePage(query.Page, query.PageSize)
	filter := models.RequestFilter{
		Status:    query.Status,
		ProjectID: query.ProjectID,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}
	switch actor.Role {
	case models.RoleCoordinator:
		filter.RequesterID = actor.UserID
	case models.RoleApprover:
		filter.SectorID = actor.SectorID
	case models.RoleOperator, models.RoleAdmin:
		// unrestricted
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *RequestService) loadRequest(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) loadActiveProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.refs.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !project.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "project is not active")
	}
	return project, nil
}

func (s *RequestService) ensureReferences(ctx context.Context, eventTypeID, municipalityID string) error {
	if _, err := s.refs.GetEventType(ctx, eventTypeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event type not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event type")
	}
	if _, err := s.refs.GetMunicipality(ctx, municipalityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "municipality not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load municipality")
	}
	return nil
}

func (s *RequestService) loadPresenters(ctx context.Context, ids []string) ([]models.Presenter, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate presenter ids")
		}
		seen[id] = true
		unique = append(unique, id)
	}

	presenters, err := s.refs.ListPresentersByIDs(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load presenters")
	}
	if len(presenters) != len(unique) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "one or more presenters do not exist")
	}
	for _, presenter := range presenters {
		if !presenter.Active {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("presenter %s is inactive", presenter.ID))
		}
	}
	return presenters, nil
}

// resolveGate reads the approval flag from the project's sector, falling
// back to the project's own flag when no sector is linked. The fallback is
// legacy behaviour kept on purpose.
func (s *RequestService) resolveGate(ctx context.Context, project *models.Project) (bool, models.GateSource, error) {
	if project.SectorID != nil && *project.SectorID != "" {
		sector, err := s.refs.GetSector(ctx, *project.SectorID)
		if err == nil {
			return sector.RequiresGatedApproval, models.GateSourceSector, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return false, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sector")
		}
		s.logger.Sugar().Warnw("project references a missing sector, using project flag",
			"project_id", project.ID, "sector_id", *project.SectorID)
	}
	return project.RequiresGatedApproval, models.GateSourceProject, nil
}

func (s *RequestService) authorizeDecision(ctx context.Context, request *models.Request, actor *models.JWTClaims) error {
	if !actor.Role.HasCapability(models.CapabilityApproveRequests) {
		return appErrors.Clone(appErrors.ErrForbidden, "approval capability required")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	project, err := s.refs.GetProject(ctx, request.ProjectID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request project")
	}
	if project.SectorID != nil && *project.SectorID != actor.SectorID {
		return appErrors.Clone(appErrors.ErrForbidden, "request belongs to another sector")
	}
	return nil
}

func (s *RequestService) scheduleSync(requestID string) {
	if s.sync == nil {
		return
	}
	if err := s.sync.EnqueueSync(requestID); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue calendar sync", "request_id", requestID, "error", err)
	}
}

func (s *RequestService) scheduleUnsync(requestID string) {
	if s.sync == nil {
		return
	}
	if err := s.sync.EnqueueUnsync(requestID); err != nil {
		s.logger.Sugar().Warnw("failed to enqueue calendar unsync", "request_id", requestID, "error", err)
	}
}

func (s *RequestService) emitAudit(ctx context.Context, actorID *string, action, requestID string, detail map[string]interface{}) {
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
		Resource:   "request",
		ResourceID: &requestID,
		Detail:     encoded,
		IPAddress:  "system",
		UserAgent:  "request-service",
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func (s *RequestService) notify(ctx context.Context, routingKey string, payload interface{}) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Sugar().Warnw("failed to publish lifecycle event", "routing_key", routingKey, "error", err)
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
