package repository

import (
	"context"
	"time"

	"delivery-core/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewRepository defines the interface for review data access.
type ReviewRepository interface {
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error)
	// CreateWithRating inserts the review and writes the restaurant's new
	// running average and count in one transaction, so a review can never
	// land without its aggregate update.
	CreateWithRating(ctx context.Context, review *models.Review, averageRating float64, totalReviews int) error
}

// GormReviewRepository implements ReviewRepository using GORM.
type GormReviewRepository struct {
	db *gorm.DB
}

// NewGormReviewRepository creates a new GormReviewRepository.
func NewGormReviewRepository(db *gorm.DB) ReviewRepository {
	return &GormReviewRepository{db: db}
}

// FindByOrderID retrieves the review recorded for an order, if any.
func (r *GormReviewRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&review).Error; err != nil {
		return nil, translate(err)
	}
	return &review, nil
}

// CreateWithRating writes review and aggregate atomically.
func (r *GormReviewRepository) CreateWithRating(ctx context.Context, review *models.Review, averageRating float64, totalReviews int) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(review).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Restaurant{}).
			Where("id = ?", review.RestaurantID).
			Updates(map[string]interface{}{
				"average_rating": averageRating,
				"total_reviews":  totalReviews,
				"updated_at":     time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}
