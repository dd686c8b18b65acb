package repository

import (
	"context"
	"time"

	"delivery-core/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	// TransitionStatus applies a guarded status change: the row is updated
	// only if it is still in the expected from status. Returns false when
	// the guard did not match, meaning the order moved underneath us.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, extra map[string]interface{}) (bool, error)
	AssignWorker(ctx context.Context, orderID, workerID uuid.UUID) error
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts a new order together with its items in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	}))
}

// FindByID retrieves an order with its items.
func (r *GormOrderRepository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByCustomerID retrieves a customer's orders with pagination.
func (r *GormOrderRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("OrderItems").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// TransitionStatus performs the guarded status update, stamping updated_at
// in the same statement.
func (r *GormOrderRepository) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AssignWorker stamps the delivery worker onto the order.
func (r *GormOrderRepository) AssignWorker(ctx context.Context, orderID, workerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"delivery_worker_id": workerID,
			"updated_at":         time.Now(),
		}).Error
}
