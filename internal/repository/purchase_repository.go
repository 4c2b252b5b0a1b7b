package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/escolab/agenda-api/internal/models"
)

const purchaseColumns = `id, product_id, municipality_id, quantity, purchased_on, will_use_in_year, used_in_year, collection_id, created_at, updated_at`

// PurchaseRepository persists material purchases.
type PurchaseRepository struct {
	db *sqlx.DB
}

// NewPurchaseRepository constructs the repository.
func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a new purchase row.
func (r *PurchaseRepository) Create(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error {
	if purchase.ID == "" {
		purchase.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = now
	}
	purchase.UpdatedAt = now

	const query = `INSERT INTO purchases
	(id, product_id, municipality_id, quantity, purchased_on, will_use_in_year, used_in_year, collection_id, created_at, updated_at)
	VALUES (:id, :product_id, :municipality_id, :quantity, :purchased_on, :will_use_in_year, :used_in_year, :collection_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, purchase); err != nil {
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

// Update rewrites the mutable purchase columns, including the recomputed
// collection link.
func (r *PurchaseRepository) Update(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error {
	purchase.UpdatedAt = time.Now().UTC()

	const query = `UPDATE purchases
	SET product_id = :product_id, municipality_id = :municipality_id, quantity = :quantity,
	    purchased_on = :purchased_on, will_use_in_year = :will_use_in_year, used_in_year = :used_in_year,
	    collection_id = :collection_id, updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, purchase)
	if err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}
	return requireRowsAffected(result, "update purchase")
}

// GetByID fetches a purchase by identifier.
func (r *PurchaseRepository) GetByID(ctx context.Context, id string) (*models.Purchase, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchases WHERE id = $1`, purchaseColumns)
	var purchase models.Purchase
	if err := r.db.GetContext(ctx, &purchase, query, id); err != nil {
		return nil, err
	}
	return &purchase, nil
}

// GetByIDForUpdate locks the purchase row inside the supplied transaction.
func (r *PurchaseRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Purchase, error) {
	query := fmt.Sprintf(`SELECT %s FROM purchases WHERE id = $1 FOR UPDATE`, purchaseColumns)
	var purchase models.Purchase
	if err := tx.GetContext(ctx, &purchase, query, id); err != nil {
		return nil, err
	}
	return &purchase, nil
}
