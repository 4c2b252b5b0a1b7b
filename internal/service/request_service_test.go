package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/dto"
	"github.com/escolab/agenda-api/internal/models"
	"github.com/escolab/agenda-api/internal/repository"
	appErrors "github.com/escolab/agenda-api/pkg/errors"
)

type requestRepoStub struct {
	requests     map[string]*models.Request
	presenterIDs map[string][]string
	filter       models.RequestFilter
	decisionErr  error
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{
		requests:     make(map[string]*models.Request),
		presenterIDs: make(map[string][]string),
	}
}

func (m *requestRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, request *models.Request) error {
	if request.ID == "" {
		request.ID = fmt.Sprintf("request-%d", len(m.requests)+1)
	}
	stored := *request
	m.requests[request.ID] = &stored
	return nil
}

func (m *requestRepoStub) ReplacePresenters(ctx context.Context, exec sqlx.ExtContext, requestID string, presenterIDs []string) error {
	m.presenterIDs[requestID] = presenterIDs
	return nil
}

func (m *requestRepoStub) GetByID(ctx context.Context, id string) (*models.Request, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *request
	return &copy, nil
}

func (m *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error) {
	m.filter = filter
	result := make([]models.Request, 0, len(m.requests))
	for _, request := range m.requests {
		result = append(result, *request)
	}
	return result, len(result), nil
}

func (m *requestRepoStub) SetDecision(ctx context.Context, exec sqlx.ExtContext, params repository.SetDecisionParams) error {
	if m.decisionErr != nil {
		return m.decisionErr
	}
	request, ok := m.requests[params.ID]
	if !ok || request.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	decidedAt := params.DecidedAt
	request.Status = params.Status
	request.ApproverID = params.ApproverID
	request.DecidedAt = &decidedAt
	request.RejectionReason = params.RejectionReason
	return nil
}

func (m *requestRepoStub) MarkCancelled(ctx context.Context, exec sqlx.ExtContext, id string) error {
	request, ok := m.requests[id]
	if !ok || !models.CanTransition(request.Status, models.RequestStatusCancelled) {
		return sql.ErrNoRows
	}
	request.Status = models.RequestStatusCancelled
	return nil
}

type eventWriterStub struct {
	byRequest map[string]*models.CalendarEvent
}

func newEventWriterStub() *eventWriterStub {
	return &eventWriterStub{byRequest: make(map[string]*models.CalendarEvent)}
}

func (m *eventWriterStub) Create(ctx context.Context, exec sqlx.ExtContext, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = fmt.Sprintf("event-%d", len(m.byRequest)+1)
	}
	if event.SyncStatus == "" {
		event.SyncStatus = models.SyncStatusPending
	}
	stored := *event
	m.byRequest[event.RequestID] = &stored
	return nil
}

func (m *eventWriterStub) GetByRequestID(ctx context.Context, requestID string) (*models.CalendarEvent, error) {
	event, ok := m.byRequest[requestID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *event
	return &copy, nil
}

type referenceStub struct {
	projects       map[string]*models.Project
	sectors        map[string]*models.Sector
	eventTypes     map[string]*models.EventType
	municipalities map[string]*models.Municipality
	presenters     map[string]models.Presenter
	products       map[string]*models.Product
}

func newReferenceStub() *referenceStub {
	sectorID := "sector-1"
	return &referenceStub{
		projects: map[string]*models.Project{
			"project-1": {ID: "project-1", Name: "Reading Circles", SectorID: &sectorID, Active: true},
		},
		sectors: map[string]*models.Sector{
			"sector-1": {ID: "sector-1", Name: "Literacy", RequiresGatedApproval: true},
		},
		eventTypes: map[string]*models.EventType{
			"event-type-1": {ID: "event-type-1", Name: "Workshop"},
		},
		municipalities: map[string]*models.Municipality{
			"municipality-1": {ID: "municipality-1", Name: "Recife", UF: "PE"},
		},
		presenters: map[string]models.Presenter{
			"presenter-1": {ID: "presenter-1", FullName: "Ana Lima", Email: "ana@escolab.org", Active: true},
			"presenter-2": {ID: "presenter-2", FullName: "Bruno Costa", Email: "bruno@escolab.org", Active: true},
		},
		products: map[string]*models.Product{
			"product-student": {ID: "product-student", Name: "Reading Kit", MaterialClassification: "STUDENT"},
			"product-teacher": {ID: "product-teacher", Name: "Teaching Guide", MaterialClassification: "TEACHER"},
		},
	}
}

func (r *referenceStub) GetProject(ctx context.Context, id string) (*models.Project, error) {
	project, ok := r.projects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *project
	return &copy, nil
}

func (r *referenceStub) GetSector(ctx context.Context, id string) (*models.Sector, error) {
	sector, ok := r.sectors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *sector
	return &copy, nil
}

func (r *referenceStub) GetEventType(ctx context.Context, id string) (*models.EventType, error) {
	eventType, ok := r.eventTypes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *eventType
	return &copy, nil
}

func (r *referenceStub) GetMunicipality(ctx context.Context, id string) (*models.Municipality, error) {
	municipality, ok := r.municipalities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *municipality
	return &copy, nil
}

func (r *referenceStub) ListPresentersByIDs(ctx context.Context, ids []string) ([]models.Presenter, error) {
	result := make([]models.Presenter, 0, len(ids))
	for _, id := range ids {
		if presenter, ok := r.presenters[id]; ok {
			result = append(result, presenter)
		}
	}
	return result, nil
}

func (r *referenceStub) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *product
	return &copy, nil
}

type conflictFinderStub struct {
	conflicts []models.Conflict
	err       error
}

func (c *conflictFinderStub) FindConflicts(ctx context.Context, presenterIDs []string, startsAt, endsAt time.Time, excludeRequestID string) ([]models.Conflict, error) {
	return c.conflicts, c.err
}

type syncDispatcherStub struct {
	synced   []string
	unsynced []string
}

func (s *syncDispatcherStub) EnqueueSync(requestID string) error {
	s.synced = append(s.synced, requestID)
	return nil
}

func (s *syncDispatcherStub) EnqueueUnsync(requestID string) error {
	s.unsynced = append(s.unsynced, requestID)
	return nil
}

type auditTrailStub struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditTrailStub) Create(ctx context.Context, log *models.AuditLog) error {
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, log)
	return nil
}

type notifierStub struct {
	keys []string
	err  error
}

func (n *notifierStub) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	if n.err != nil {
		return n.err
	}
	n.keys = append(n.keys, routingKey)
	return nil
}

type txMock struct {
	db *sqlx.DB
}

func newTxMock(t *testing.T) (*txMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &txMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (m *txMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

type requestFixture struct {
	svc      *RequestService
	repo     *requestRepoStub
	events   *eventWriterStub
	refs     *referenceStub
	finder   *conflictFinderStub
	sync     *syncDispatcherStub
	audit    *auditTrailStub
	notifier *notifierStub
	mock     sqlmock.Sqlmock
}

func newRequestFixture(t *testing.T) *requestFixture {
	t.Helper()
	repo := newRequestRepoStub()
	events := newEventWriterStub()
	refs := newReferenceStub()
	finder := &conflictFinderStub{}
	dispatcher := &syncDispatcherStub{}
	audit := &auditTrailStub{}
	notifier := &notifierStub{}
	tx, mock := newTxMock(t)

	svc := NewRequestService(repo, events, refs, finder, dispatcher, audit, notifier, tx, nil, nil)
	return &requestFixture{
		svc:      svc,
		repo:     repo,
		events:   events,
		refs:     refs,
		finder:   finder,
		sync:     dispatcher,
		audit:    audit,
		notifier: notifier,
		mock:     mock,
	}
}

func coordinatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "coordinator-1", Role: models.RoleCoordinator}
}

func approverClaims(sectorID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "approver-1", Role: models.RoleApprover, SectorID: sectorID}
}

func operatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "operator-1", Role: models.RoleOperator}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func validSubmit() dto.CreateRequestRequest {
	starts := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	return dto.CreateRequestRequest{
		Title:          "Robotics workshop",
		Description:    "Intro session for new schools",
		ProjectID:      "project-1",
		MunicipalityID: "municipality-1",
		EventTypeID:    "event-type-1",
		StartsAt:       starts,
		EndsAt:         starts.Add(2 * time.Hour),
		PresenterIDs:   []string{"presenter-1"},
	}
}

func TestRequestServiceSubmitGatedSectorLandsPending(t *testing.T) {
	f := newRequestFixture(t)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Nil(t, request.DecidedAt)
	assert.Empty(t, f.sync.synced)
	assert.Empty(t, f.events.byRequest)
	require.Len(t, f.audit.logs, 1)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(f.audit.logs[0].Detail, &detail))
	assert.Equal(t, "SECTOR", detail["gate_source"])
	assert.Equal(t, []string{"request.submitted"}, f.notifier.keys)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRequestServiceSubmitUngatedSectorSkipsApproval(t *testing.T) {
	f := newRequestFixture(t)
	f.refs.sectors["sector-1"].RequiresGatedApproval = false
	// the project flag must lose against a resolvable sector
	f.refs.projects["project-1"].RequiresGatedApproval = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPreSchedule, request.Status)
	require.NotNil(t, request.DecidedAt)
	assert.Equal(t, []string{request.ID}, f.sync.synced)
	require.Contains(t, f.events.byRequest, request.ID)
	assert.Equal(t, models.SyncStatusPending, f.events.byRequest[request.ID].SyncStatus)
}

func TestRequestServiceSubmitUsesProjectFlagWithoutSector(t *testing.T) {
	f := newRequestFixture(t)
	f.refs.projects["project-1"].SectorID = nil
	f.refs.projects["project-1"].RequiresGatedApproval = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(f.audit.logs[0].Detail, &detail))
	assert.Equal(t, "PROJECT", detail["gate_source"])
}

func TestRequestServiceSubmitMissingSectorFallsBack(t *testing.T) {
	f := newRequestFixture(t)
	delete(f.refs.sectors, "sector-1")
	f.refs.projects["project-1"].RequiresGatedApproval = false
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPreSchedule, request.Status)
}

func TestRequestServiceSubmitRejectsShortEvents(t *testing.T) {
	f := newRequestFixture(t)
	req := validSubmit()
	req.EndsAt = req.StartsAt.Add(29 * time.Minute)

	_, err := f.svc.Submit(context.Background(), req, coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSubmitAcceptsThirtyMinuteEvents(t *testing.T) {
	f := newRequestFixture(t)
	req := validSubmit()
	req.EndsAt = req.StartsAt.Add(30 * time.Minute)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.Submit(context.Background(), req, coordinatorClaims())
	require.NoError(t, err)
}

func TestRequestServiceSubmitBlockedByConflicts(t *testing.T) {
	f := newRequestFixture(t)
	f.finder.conflicts = []models.Conflict{{PresenterID: "presenter-1", Source: models.ConflictSourceRequest}}

	_, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.requests)
}

func TestRequestServiceSubmitRequiresCapability(t *testing.T) {
	f := newRequestFixture(t)

	_, err := f.svc.Submit(context.Background(), validSubmit(), approverClaims("sector-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSubmitRejectsInactivePresenter(t *testing.T) {
	f := newRequestFixture(t)
	presenter := f.refs.presenters["presenter-2"]
	presenter.Active = false
	f.refs.presenters["presenter-2"] = presenter

	req := validSubmit()
	req.PresenterIDs = []string{"presenter-1", "presenter-2"}

	_, err := f.svc.Submit(context.Background(), req, coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSubmitRejectsUnknownPresenter(t *testing.T) {
	f := newRequestFixture(t)
	req := validSubmit()
	req.PresenterIDs = []string{"presenter-1", "presenter-missing"}

	_, err := f.svc.Submit(context.Background(), req, coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceSubmitSurvivesAuditFailure(t *testing.T) {
	f := newRequestFixture(t)
	f.audit.err = errors.New("audit store down")
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Empty(t, f.audit.logs)
}

func TestRequestServiceSubmitSurvivesPublishFailure(t *testing.T) {
	f := newRequestFixture(t)
	f.notifier.err = errors.New("broker unavailable")
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Submit(context.Background(), validSubmit(), coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	require.Len(t, f.audit.logs, 1)
}

func seedPendingRequest(f *requestFixture) *models.Request {
	request := &models.Request{
		ID:          "request-1",
		Title:       "Robotics workshop",
		RequesterID: "coordinator-1",
		ProjectID:   "project-1",
		Status:      models.RequestStatusPending,
	}
	f.repo.requests[request.ID] = request
	return request
}

func TestRequestServiceDecideApprove(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, approverClaims("sector-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPreSchedule, request.Status)
	require.NotNil(t, request.ApproverID)
	assert.Equal(t, "approver-1", *request.ApproverID)
	assert.NotNil(t, request.DecidedAt)
	assert.Equal(t, []string{"request-1"}, f.sync.synced)
	require.Contains(t, f.events.byRequest, "request-1")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRequestServiceDecideRejectRequiresJustification(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	_, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision:      dto.DecisionReject,
		Justification: "   ",
	}, approverClaims("sector-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	request, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision:      dto.DecisionReject,
		Justification: "presenter unavailable that week",
	}, approverClaims("sector-1"))
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, request.Status)
	require.NotNil(t, request.RejectionReason)
	assert.Empty(t, f.sync.synced)
	assert.Empty(t, f.events.byRequest)
}

func TestRequestServiceDecideAlreadyDecided(t *testing.T) {
	f := newRequestFixture(t)
	request := seedPendingRequest(f)
	request.Status = models.RequestStatusPreSchedule

	_, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, approverClaims("sector-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceDecideLostRaceSurfacesConflict(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)
	f.repo.decisionErr = sql.ErrNoRows
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, approverClaims("sector-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRequestServiceDecideEnforcesSectorScope(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	_, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, approverClaims("sector-other"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceDecideAdminBypassesSectorScope(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	request, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPreSchedule, request.Status)
}

func TestRequestServiceDecideRejectsCoordinator(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	_, err := f.svc.Decide(context.Background(), "request-1", dto.DecideRequestRequest{
		Decision: dto.DecisionApprove,
	}, coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceCancelByRequester(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	request, err := f.svc.Cancel(context.Background(), "request-1", dto.CancelRequestRequest{Reason: "school closed"}, coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, request.Status)
	assert.Empty(t, f.sync.unsynced)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestCancel, f.audit.logs[0].Action)
}

func TestRequestServiceCancelApprovedReleasesCalendar(t *testing.T) {
	f := newRequestFixture(t)
	request := seedPendingRequest(f)
	request.Status = models.RequestStatusApproved
	externalID := "ext-1"
	f.events.byRequest["request-1"] = &models.CalendarEvent{
		ID: "event-1", RequestID: "request-1", SyncStatus: models.SyncStatusSynced, ExternalID: &externalID,
	}

	result, err := f.svc.Cancel(context.Background(), "request-1", dto.CancelRequestRequest{}, coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, result.Status)
	assert.Equal(t, []string{"request-1"}, f.sync.unsynced)
}

func TestRequestServiceCancelForbiddenForStrangers(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)
	other := &models.JWTClaims{UserID: "coordinator-2", Role: models.RoleCoordinator}

	_, err := f.svc.Cancel(context.Background(), "request-1", dto.CancelRequestRequest{}, other)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Cancel(context.Background(), "request-1", dto.CancelRequestRequest{}, adminClaims())
	require.NoError(t, err)
}

func TestRequestServiceCancelRejectedRequestFails(t *testing.T) {
	f := newRequestFixture(t)
	request := seedPendingRequest(f)
	request.Status = models.RequestStatusRejected

	_, err := f.svc.Cancel(context.Background(), "request-1", dto.CancelRequestRequest{}, coordinatorClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestRequestServiceGetEnforcesScope(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	_, err := f.svc.Get(context.Background(), "request-1", &models.JWTClaims{UserID: "coordinator-2", Role: models.RoleCoordinator})
	require.Error(t, err)

	_, err = f.svc.Get(context.Background(), "request-1", approverClaims("sector-other"))
	require.Error(t, err)

	_, err = f.svc.Get(context.Background(), "request-1", approverClaims(""))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "request-1", operatorClaims())
	require.NoError(t, err)
}

func TestRequestServiceListScopesFilters(t *testing.T) {
	f := newRequestFixture(t)
	seedPendingRequest(f)

	_, _, err := f.svc.List(context.Background(), dto.RequestQuery{}, coordinatorClaims())
	require.NoError(t, err)
	assert.Equal(t, "coordinator-1", f.repo.filter.RequesterID)

	_, _, err = f.svc.List(context.Background(), dto.RequestQuery{}, approverClaims("sector-1"))
	require.NoError(t, err)
	assert.Equal(t, "sector-1", f.repo.filter.SectorID)

	_, page, err := f.svc.List(context.Background(), dto.RequestQuery{Page: 0, PageSize: 500}, adminClaims())
	require.NoError(t, err)
	assert.Empty(t, f.repo.filter.RequesterID)
	assert.Empty(t, f.repo.filter.SectorID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 100, page.PageSize)
}
