package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestRows(id string, status models.RequestStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "title", "description", "requester_id", "project_id", "municipality_id", "event_type_id",
		"starts_at", "ends_at", "status", "approver_id", "decided_at", "rejection_reason", "created_at", "updated_at",
	}).AddRow(id, "Education talk", "", "user-1", "proj-1", "mun-1", "type-1",
		now, now.Add(time.Hour), status, nil, nil, nil, now, now)
}

func TestRequestRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO requests")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.Request{
		Title:          "Education talk",
		RequesterID:    "user-1",
		ProjectID:      "proj-1",
		MunicipalityID: "mun-1",
		EventTypeID:    "type-1",
		StartsAt:       time.Now(),
		EndsAt:         time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), nil, request))
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusPending, request.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, requester_id")).
		WithArgs(request.ID).
		WillReturnRows(requestRows(request.ID, models.RequestStatusPending))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT p.id, p.full_name, p.email, p.active")).
		WithArgs(request.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "active"}).
			AddRow("pres-1", "Ana Lima", "ana@example.org", true))

	found, err := repo.GetByID(context.Background(), request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, found.ID)
	require.Len(t, found.Presenters, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests")).
		WithArgs("PENDING", "proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, description, requester_id")).
		WithArgs("PENDING", "proj-1").
		WillReturnRows(requestRows("req-1", models.RequestStatusPending))

	list, total, err := repo.List(context.Background(), models.RequestFilter{
		Status:    []models.RequestStatus{models.RequestStatusPending},
		ProjectID: "proj-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "req-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositorySetDecisionGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)
	approver := "approver-1"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.SetDecision(context.Background(), nil, SetDecisionParams{
		ID:         "req-1",
		Status:     models.RequestStatusPreSchedule,
		ApproverID: &approver,
		DecidedAt:  time.Now(),
	})
	require.NoError(t, err)

	// A request that already left PENDING matches no row.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.SetDecision(context.Background(), nil, SetDecisionParams{
		ID:         "req-1",
		Status:     models.RequestStatusRejected,
		ApproverID: &approver,
		DecidedAt:  time.Now(),
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMarkApprovedGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkApproved(context.Background(), nil, "req-1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.MarkApproved(context.Background(), nil, "req-1"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMarkCancelled(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkCancelled(context.Background(), nil, "req-1"))

	// Terminal requests cannot be cancelled again.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.MarkCancelled(context.Background(), nil, "req-1"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
