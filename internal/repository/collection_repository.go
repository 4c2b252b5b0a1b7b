package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolab/agenda-api/internal/models"
)

const collectionColumns = `id, year, material_type, project_id, name, created_at`

// CollectionRepository persists material collections.
type CollectionRepository struct {
	db *sqlx.DB
}

// NewCollectionRepository constructs the repository.
func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// GetOrCreate resolves the collection for a classification key, creating it
// when absent. Concurrent resolvers of the same key race on the unique
// constraint; the loser picks up the winner's row on the re-read.
func (r *CollectionRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, key models.CollectionKey) (*models.Collection, error) {
	target := r.exec(exec)

	existing, err := r.getByKey(ctx, target, key)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("get collection by key: %w", err)
	}

	collection := &models.Collection{
		ID:           uuid.NewString(),
		Year:         key.Year,
		MaterialType: key.MaterialType,
		ProjectID:    key.ProjectID,
		Name:         key.DisplayName(),
		CreatedAt:    time.Now().UTC(),
	}
	const insert = `INSERT INTO collections (id, year, material_type, project_id, name, created_at)
	VALUES (:id, :year, :material_type, :project_id, :name, :created_at)
	ON CONFLICT DO NOTHING`
	if _, err := sqlx.NamedExecContext(ctx, target, insert, collection); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	resolved, err := r.getByKey(ctx, target, key)
	if err != nil {
		return nil, fmt.Errorf("reload collection after insert: %w", err)
	}
	return resolved, nil
}

func (r *CollectionRepository) getByKey(ctx context.Context, target sqlx.ExtContext, key models.CollectionKey) (*models.Collection, error) {
	query := fmt.Sprintf(`SELECT %s FROM collections
	WHERE year = $1 AND material_type = $2 AND project_id IS NOT DISTINCT FROM $3`, collectionColumns)
	var collection models.Collection
	if err := sqlx.GetContext(ctx, target, &collection, query, key.Year, key.MaterialType, key.ProjectID); err != nil {
		return nil, err
	}
	return &collection, nil
}

// List returns collections matching the filter (newest year first) plus the total count.
func (r *CollectionRepository) List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if filter.Year != "" {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)))
	}
	if filter.MaterialType != "" {
		args = append(args, filter.MaterialType)
		conditions = append(conditions, fmt.Sprintf("material_type = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM collections"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count collections: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM collections%s ORDER BY year DESC, material_type ASC LIMIT %d OFFSET %d",
		collectionColumns, where, limit, offset)

	var collections []models.Collection
	if err := r.db.SelectContext(ctx, &collections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list collections: %w", err)
	}
	return collections, total, nil
}
