package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/escolab/agenda-api/internal/models"
)

func collectionRows(id, year string, material models.MaterialType) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "year", "material_type", "project_id", "name", "created_at"}).
		AddRow(id, year, material, nil, year+" - Student", time.Now())
}

func TestCollectionRepositoryGetOrCreateExisting(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCollectionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, year, material_type, project_id, name, created_at FROM collections")).
		WithArgs("2026", "STUDENT", nil).
		WillReturnRows(collectionRows("col-1", "2026", models.MaterialTypeStudent))

	collection, err := repo.GetOrCreate(context.Background(), nil, models.CollectionKey{
		Year:         "2026",
		MaterialType: models.MaterialTypeStudent,
	})
	require.NoError(t, err)
	require.Equal(t, "col-1", collection.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionRepositoryGetOrCreateInsertsOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCollectionRepository(db)

	// First read misses, the insert lands, the re-read returns the row
	// regardless of which racer won the unique constraint.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, year, material_type, project_id, name, created_at FROM collections")).
		WithArgs("2027", "TEACHER", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO collections")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, year, material_type, project_id, name, created_at FROM collections")).
		WithArgs("2027", "TEACHER", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "year", "material_type", "project_id", "name", "created_at"}).
			AddRow("col-2", "2027", "TEACHER", nil, "2027 - Teacher", time.Now()))

	collection, err := repo.GetOrCreate(context.Background(), nil, models.CollectionKey{
		Year:         "2027",
		MaterialType: models.MaterialTypeTeacher,
	})
	require.NoError(t, err)
	require.Equal(t, "col-2", collection.ID)
	require.Equal(t, "2027 - Teacher", collection.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCollectionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM collections")).
		WithArgs("2026").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, year, material_type, project_id, name, created_at FROM collections")).
		WithArgs("2026").
		WillReturnRows(collectionRows("col-1", "2026", models.MaterialTypeStudent).
			AddRow("col-3", "2026", "TEACHER", nil, "2026 - Teacher", time.Now()))

	collections, total, err := repo.List(context.Background(), models.CollectionFilter{Year: "2026"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, collections, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}
