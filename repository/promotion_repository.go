package repository

import (
	"context"
	"strings"

	"delivery-core/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PromotionRepository defines the interface for promotion data access.
type PromotionRepository interface {
	Create(ctx context.Context, promo *models.Promotion) error
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	// ConsumeSlot atomically increments used_count, re-checking the usage
	// limit inside the same statement. Returns false when no slot was left.
	ConsumeSlot(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseSlot gives one consumed slot back, used as compensation when
	// the order that redeemed it fails to persist.
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, code string) error
}

// GormPromotionRepository implements PromotionRepository using GORM.
type GormPromotionRepository struct {
	db *gorm.DB
}

// NewGormPromotionRepository creates a new GormPromotionRepository.
func NewGormPromotionRepository(db *gorm.DB) PromotionRepository {
	return &GormPromotionRepository{db: db}
}

// Create inserts a new promotion. Returns ErrDuplicate when the code is
// already taken.
func (r *GormPromotionRepository) Create(ctx context.Context, promo *models.Promotion) error {
	return translate(r.db.WithContext(ctx).Create(promo).Error)
}

// FindByCode retrieves an active promotion by its code (case-insensitive).
func (r *GormPromotionRepository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promo models.Promotion
	err := r.db.WithContext(ctx).
		Where("LOWER(code) = ? AND is_active = ?", strings.ToLower(code), true).
		First(&promo).Error
	if err != nil {
		return nil, translate(err)
	}
	return &promo, nil
}

// FindByID retrieves a promotion by ID.
func (r *GormPromotionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promo models.Promotion
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&promo).Error; err != nil {
		return nil, translate(err)
	}
	return &promo, nil
}

// ConsumeSlot increments used_count only while a slot remains, closing the
// check-then-act race at the statement level.
func (r *GormPromotionRepository) ConsumeSlot(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("id = ? AND is_active = ? AND (usage_limit = 0 OR used_count < usage_limit)", id, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseSlot decrements used_count, never below zero.
func (r *GormPromotionRepository) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("id = ? AND used_count > 0", id).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).
		Error
}

// Deactivate soft-deactivates a promotion by code.
func (r *GormPromotionRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Promotion{}).
		Where("LOWER(code) = ?", strings.ToLower(code)).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
