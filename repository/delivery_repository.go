package repository

import (
	"context"
	"time"

	"delivery-core/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryRepository defines the interface for delivery tracking data access.
type DeliveryRepository interface {
	Create(ctx context.Context, tracking *models.DeliveryTracking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryTracking, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTracking, error)
	// AdvanceStatus applies a guarded status change with the worker's
	// location. Returns false when the row was no longer in from status.
	AdvanceStatus(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, lat, lng *float64) (bool, error)
}

// GormDeliveryRepository implements DeliveryRepository using GORM.
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository.
func NewGormDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// Create inserts a new tracking row. The unique index on order_id rejects
// a second active assignment for the same order with ErrDuplicate.
func (r *GormDeliveryRepository) Create(ctx context.Context, tracking *models.DeliveryTracking) error {
	return translate(r.db.WithContext(ctx).Create(tracking).Error)
}

// FindByID retrieves a tracking row.
func (r *GormDeliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryTracking, error) {
	var tracking models.DeliveryTracking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tracking).Error; err != nil {
		return nil, translate(err)
	}
	return &tracking, nil
}

// FindByOrderID retrieves the active tracking row for an order.
func (r *GormDeliveryRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.DeliveryTracking, error) {
	var tracking models.DeliveryTracking
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&tracking).Error; err != nil {
		return nil, translate(err)
	}
	return &tracking, nil
}

// AdvanceStatus performs the guarded status update, stamping updated_at
// and the last-known location in the same statement.
func (r *GormDeliveryRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, lat, lng *float64) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if lat != nil {
		updates["latitude"] = *lat
	}
	if lng != nil {
		updates["longitude"] = *lng
	}

	result := r.db.WithContext(ctx).
		Model(&models.DeliveryTracking{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
