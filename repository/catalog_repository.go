package repository

import (
	"context"
	"encoding/json"
	"time"

	"delivery-core/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const menuItemCacheTTL = 5 * time.Minute

// CatalogRepository is the read side of the catalog collaborator: the
// restaurant and menu data the order engine consumes but never owns.
type CatalogRepository interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error)
	GetRegion(ctx context.Context, id uuid.UUID) (*models.Region, error)
	// GetRegionParent walks one step up the region tree; nil parent means
	// the region is a root.
	GetRegionParent(ctx context.Context, region *models.Region) (*models.Region, error)
}

// GormCatalogRepository implements CatalogRepository using GORM, with an
// optional Redis read-through cache for menu items on the hot place path.
type GormCatalogRepository struct {
	db     *gorm.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewGormCatalogRepository creates a new GormCatalogRepository. cache may
// be nil, in which case every read goes to Postgres.
func NewGormCatalogRepository(db *gorm.DB, cache *redis.Client, logger *zap.Logger) CatalogRepository {
	return &GormCatalogRepository{db: db, cache: cache, logger: logger}
}

// GetRestaurant retrieves an active restaurant.
func (r *GormCatalogRepository) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, translate(err)
	}
	return &restaurant, nil
}

// GetMenuItem retrieves a menu item, serving from cache when possible.
// Cache failures are logged and fall through to Postgres.
func (r *GormCatalogRepository) GetMenuItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	key := "menu_item:" + id.String()

	if r.cache != nil {
		if raw, err := r.cache.Get(ctx, key).Bytes(); err == nil {
			var item models.MenuItem
			if err := json.Unmarshal(raw, &item); err == nil {
				return &item, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("menu item cache read failed", zap.Error(err))
		}
	}

	var item models.MenuItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, translate(err)
	}

	if r.cache != nil {
		if raw, err := json.Marshal(&item); err == nil {
			if err := r.cache.Set(ctx, key, raw, menuItemCacheTTL).Err(); err != nil {
				r.logger.Warn("menu item cache write failed", zap.Error(err))
			}
		}
	}

	return &item, nil
}

// GetRegion retrieves a region node.
func (r *GormCatalogRepository) GetRegion(ctx context.Context, id uuid.UUID) (*models.Region, error) {
	var region models.Region
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&region).Error; err != nil {
		return nil, translate(err)
	}
	return &region, nil
}

// GetRegionParent resolves the back-reference to the parent node.
func (r *GormCatalogRepository) GetRegionParent(ctx context.Context, region *models.Region) (*models.Region, error) {
	if region.ParentID == nil {
		return nil, nil
	}
	return r.GetRegion(ctx, *region.ParentID)
}
