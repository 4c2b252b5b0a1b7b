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
	appErrors "github.com/escolab/agenda-api/pkg/errors"
	"github.com/escolab/agenda-api/pkg/export"
)

const purchaseDateLayout = "2006-01-02"

// collectionExportLimit matches the listing cap. Collections are one row
// per year and material type, so the cap is far above any real count.
const collectionExportLimit = 200

type purchaseStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error
	Update(ctx context.Context, exec sqlx.ExtContext, purchase *models.Purchase) error
	GetByID(ctx context.Context, id string) (*models.Purchase, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Purchase, error)
}

type collectionStore interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, key models.CollectionKey) (*models.Collection, error)
	List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, int, error)
}

type purchaseReferenceReader interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetMunicipality(ctx context.Context, id string) (*models.Municipality, error)
}

// PurchaseService registers purchased material and keeps each purchase
// linked to the collection its usage year and material type resolve to.
// Collections are created on demand; moving a purchase away never deletes
// the collection it leaves behind.
type PurchaseService struct {
	purchases   purchaseStore
	collections collectionStore
	refs        purchaseReferenceReader
	audit       auditRecorder
	tx          txProvider
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewPurchaseService wires the purchase workflow dependencies.
func NewPurchaseService(
	purchases purchaseStore,
	collections collectionStore,
	refs purchaseReferenceReader,
	audit auditRecorder,
	tx txProvider,
	validate *validator.Validate,
	logger *zap.Logger,
) *PurchaseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PurchaseService{
		purchases:   purchases,
		collections: collections,
		refs:        refs,
		audit:       audit,
		tx:          tx,
		validate:    validate,
		logger:      logger,
	}
}

// Create registers a purchase and links it to its collection in one
// transaction.
func (s *PurchaseService) Create(ctx context.Context, req dto.CreatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}
	purchasedOn, err := time.Parse(purchaseDateLayout, req.PurchasedOn)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purchasedOn must be a YYYY-MM-DD date")
	}
	product, err := s.loadProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMunicipality(ctx, req.MunicipalityID); err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		ProductID:      req.ProductID,
		MunicipalityID: req.MunicipalityID,
		Quantity:       req.Quantity,
		PurchasedOn:    purchasedOn,
		WillUseInYear:  normalizeYear(req.WillUseInYear),
		UsedInYear:     normalizeYear(req.UsedInYear),
	}

	collection, err := s.persist(ctx, purchase, product, func(ctx context.Context, tx *sqlx.Tx) error {
		return s.purchases.Create(ctx, tx, purchase)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionPurchaseCreate, purchase.ID, collection)
	return purchase, nil
}

// Update rewrites a purchase and re-resolves its collection link. The
// previous collection keeps existing even when this was its last member.
func (s *PurchaseService) Update(ctx context.Context, id string, req dto.UpdatePurchaseRequest, actor *models.JWTClaims) (*models.Purchase, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid purchase payload")
	}
	purchasedOn, err := time.Parse(purchaseDateLayout, req.PurchasedOn)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "purchasedOn must be a YYYY-MM-DD date")
	}
	product, err := s.loadProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureMunicipality(ctx, req.MunicipalityID); err != nil {
		return nil, err
	}

	var purchase *models.Purchase
	collection, err := s.persistUpdate(ctx, product, func(ctx context.Context, tx *sqlx.Tx) (*models.Purchase, error) {
		current, err := s.purchases.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "purchase not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock purchase")
		}
		current.ProductID = req.ProductID
		current.MunicipalityID = req.MunicipalityID
		current.Quantity = req.Quantity
		current.PurchasedOn = purchasedOn
		current.WillUseInYear = normalizeYear(req.WillUseInYear)
		current.UsedInYear = normalizeYear(req.UsedInYear)
		purchase = current
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, actor, models.AuditActionPurchaseUpdate, purchase.ID, collection)
	return purchase, nil
}

// Get fetches a single purchase.
func (s *PurchaseService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Purchase, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	purchase, err := s.purchases.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "purchase not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load purchase")
	}
	return purchase, nil
}

// ListCollections returns collections for reporting and pickers.
func (s *PurchaseService) ListCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]models.Collection, *models.Pagination, error) {
	if err := s.authorize(actor); err != nil {
		return nil, nil, err
	}
	page, pageSize := normalizePage(query.Page, query.PageSize)
	collections, total, err := s.collections.List(ctx, models.CollectionFilter{
		Year:         strings.TrimSpace(query.Year),
		MaterialType: models.MaterialType(strings.ToUpper(strings.TrimSpace(query.MaterialType))),
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list collections")
	}
	return collections, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ExportCollections renders the filtered collections as a CSV snapshot.
func (s *PurchaseService) ExportCollections(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]byte, string, error) {
	if err := s.authorize(actor); err != nil {
		return nil, "", err
	}
	collections, _, err := s.collections.List(ctx, models.CollectionFilter{
		Year:         strings.TrimSpace(query.Year),
		MaterialType: models.MaterialType(strings.ToUpper(strings.TrimSpace(query.MaterialType))),
		Limit:        collectionExportLimit,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list collections")
	}

	rows := make([]map[string]string, 0, len(collections))
	for _, collection := range collections {
		row := map[string]string{
			"Collection ID": collection.ID,
			"Name":          collection.Name,
			"Year":          collection.Year,
			"Material Type": string(collection.MaterialType),
			"Project ID":    "",
			"Created At":    collection.CreatedAt.UTC().Format(time.RFC3339),
		}
		if collection.ProjectID != nil {
			row["Project ID"] = *collection.ProjectID
		}
		rows = append(rows, row)
	}
	payload, err := export.CSV(export.Dataset{
		Headers: []string{"Collection ID", "Name", "Year", "Material Type", "Project ID", "Created At"},
		Rows:    rows,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render collections export")
	}
	filename := fmt.Sprintf("collections_%s.csv", time.Now().UTC().Format("20060102_150405"))
	return payload, filename, nil
}

// persist runs the write plus collection resolution in one transaction so
// a failed link never leaves an unclassified purchase behind.
func (s *PurchaseService) persist(ctx context.Context, purchase *models.Purchase, product *models.Product, write func(context.Context, *sqlx.Tx) error) (collection *models.Collection, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	collection, err = s.collections.GetOrCreate(ctx, tx, resolveCollectionKey(purchase, product))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve collection")
		return nil, err
	}
	purchase.CollectionID = &collection.ID
	if err = write(ctx, tx); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist purchase")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit purchase")
		return nil, err
	}
	return collection, nil
}

func (s *PurchaseService) persistUpdate(ctx context.Context, product *models.Product, load func(context.Context, *sqlx.Tx) (*models.Purchase, error)) (collection *models.Collection, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	purchase, err := load(ctx, tx)
	if err != nil {
		return nil, err
	}
	collection, err = s.collections.GetOrCreate(ctx, tx, resolveCollectionKey(purchase, product))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve collection")
		return nil, err
	}
	purchase.CollectionID = &collection.ID
	if err = s.purchases.Update(ctx, tx, purchase); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist purchase")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit purchase")
		return nil, err
	}
	return collection, nil
}

func (s *PurchaseService) authorize(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.HasCapability(models.CapabilityManagePurchases) {
		return appErrors.Clone(appErrors.ErrForbidden, "purchase management capability required")
	}
	return nil
}

func (s *PurchaseService) loadProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.refs.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	return product, nil
}

func (s *PurchaseService) ensureMunicipality(ctx context.Context, id string) error {
	if _, err := s.refs.GetMunicipality(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "municipality not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load municipality")
	}
	return nil
}

func (s *PurchaseService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, purchaseID string, collection *models.Collection) {
	if s.audit == nil {
		return
	}
	detail, _ := json.Marshal(map[string]interface{}{
		"collection_id":   collection.ID,
		"collection_name": collection.Name,
	})
	log := &models.AuditLog{
		ActorID:    &actor.UserID,
		Action:     action,
		Resource:   "purchase",
		ResourceID: &purchaseID,
		Detail:     detail,
		IPAddress:  "system",
		UserAgent:  "purchase-service",
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// resolveCollectionKey classifies a purchase. The usage year prefers the
// declared future year, then the recorded past year, then the purchase
// date. Material type follows the product classification, anything not
// explicitly teacher material counts as student material. Collections are
// not project-scoped yet, so the key leaves ProjectID unset.
func resolveCollectionKey(purchase *models.Purchase, product *models.Product) models.CollectionKey {
	key := models.CollectionKey{
		Year:         fmt.Sprintf("%04d", purchase.PurchasedOn.Year()),
		MaterialType: models.MaterialTypeStudent,
	}
	if year := normalizeYear(purchase.WillUseInYear); year != nil {
		key.Year = *year
	} else if year := normalizeYear(purchase.UsedInYear); year != nil {
		key.Year = *year
	}
	if product != nil && models.MaterialType(strings.ToUpper(product.MaterialClassification)) == models.MaterialTypeTeacher {
		key.MaterialType = models.MaterialTypeTeacher
	}
	return key
}

func normalizeYear(year *string) *string {
	if year == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*year)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
