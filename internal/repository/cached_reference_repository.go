package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/escolab/agenda-api/internal/models"
)

const refCachePrefix = "ref:"

type referenceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedReferenceRepository layers a read-through cache over reference
// lookups. Reference rows change rarely and are read on every submission
// and sync attempt. The TTL bounds how long a deactivation can lag; any
// cache failure falls through to the primary.
type CachedReferenceRepository struct {
	inner *ReferenceRepository
	cache referenceCache
	ttl   time.Duration
}

// NewCachedReferenceRepository constructs the decorator.
func NewCachedReferenceRepository(inner *ReferenceRepository, cache referenceCache, ttl time.Duration) *CachedReferenceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedReferenceRepository{inner: inner, cache: cache, ttl: ttl}
}

func refCacheKey(kind, id string) string {
	return fmt.Sprintf("%s%s:%s", refCachePrefix, kind, id)
}

// GetProject fetches a project, preferring the cache.
func (r *CachedReferenceRepository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	key := refCacheKey("project", id)
	var cached models.Project
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	project, err := r.inner.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, project, r.ttl)
	return project, nil
}

// GetSector fetches a sector, preferring the cache.
func (r *CachedReferenceRepository) GetSector(ctx context.Context, id string) (*models.Sector, error) {
	key := refCacheKey("sector", id)
	var cached models.Sector
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	sector, err := r.inner.GetSector(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, sector, r.ttl)
	return sector, nil
}

// GetEventType fetches an event type, preferring the cache.
func (r *CachedReferenceRepository) GetEventType(ctx context.Context, id string) (*models.EventType, error) {
	key := refCacheKey("event_type", id)
	var cached models.EventType
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	eventType, err := r.inner.GetEventType(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, eventType, r.ttl)
	return eventType, nil
}

// GetMunicipality fetches a municipality, preferring the cache.
func (r *CachedReferenceRepository) GetMunicipality(ctx context.Context, id string) (*models.Municipality, error) {
	key := refCacheKey("municipality", id)
	var cached models.Municipality
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	municipality, err := r.inner.GetMunicipality(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, municipality, r.ttl)
	return municipality, nil
}

// GetProduct fetches a product, preferring the cache.
func (r *CachedReferenceRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	key := refCacheKey("product", id)
	var cached models.Product
	if err := r.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}
	product, err := r.inner.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.cache.Set(ctx, key, product, r.ttl)
	return product, nil
}

// ListPresentersByIDs always hits the primary. Membership queries key on
// the whole id set and stale presenter state is worse than the read.
func (r *CachedReferenceRepository) ListPresentersByIDs(ctx context.Context, ids []string) ([]models.Presenter, error) {
	return r.inner.ListPresentersByIDs(ctx, ids)
}
