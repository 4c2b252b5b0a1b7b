package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escolab/agenda-api/internal/models"
)

// ReferenceRepository reads the organisational entities consumed by the
// core flows. Their lifecycle is managed elsewhere; this side only reads.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetProject fetches a project by identifier.
func (r *ReferenceRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	const query = `SELECT id, name, sector_id, requires_gated_approval, active FROM projects WHERE id = $1`
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// GetSector fetches a sector by identifier.
func (r *ReferenceRepository) GetSector(ctx context.Context, id string) (*models.Sector, error) {
	const query = `SELECT id, name, requires_gated_approval FROM sectors WHERE id = $1`
	var sector models.Sector
	if err := r.db.GetContext(ctx, &sector, query, id); err != nil {
		return nil, err
	}
	return &sector, nil
}

// GetEventType fetches an event type by identifier.
func (r *ReferenceRepository) GetEventType(ctx context.Context, id string) (*models.EventType, error) {
	const query = `SELECT id, name, is_online FROM event_types WHERE id = $1`
	var eventType models.EventType
	if err := r.db.GetContext(ctx, &eventType, query, id); err != nil {
		return nil, err
	}
	return &eventType, nil
}

// GetMunicipality fetches a municipality by identifier.
func (r *ReferenceRepository) GetMunicipality(ctx context.Context, id string) (*models.Municipality, error) {
	const query = `SELECT id, name, uf FROM municipalities WHERE id = $1`
	var municipality models.Municipality
	if err := r.db.GetContext(ctx, &municipality, query, id); err != nil {
		return nil, err
	}
	return &municipality, nil
}

// GetProduct fetches a product by identifier.
func (r *ReferenceRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	const query = `SELECT id, name, material_classification FROM products WHERE id = $1`
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		return nil, err
	}
	return &product, nil
}

// ListPresentersByIDs returns the presenters matching the given identifiers.
// Callers compare the result length against the input to spot unknown ids.
func (r *ReferenceRepository) ListPresentersByIDs(ctx context.Context, ids []string) ([]models.Presenter, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `SELECT id, full_name, email, active FROM presenters WHERE id = ANY($1) ORDER BY full_name ASC`
	var presenters []models.Presenter
	if err := r.db.SelectContext(ctx, &presenters, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list presenters: %w", err)
	}
	return presenters, nil
}
