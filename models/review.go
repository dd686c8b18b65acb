package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a customer's rating of a delivered order. At most one review
// exists per order.
type Review struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	CustomerID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	RestaurantID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"restaurant_id"`
	FoodRating     int            `gorm:"not null" json:"food_rating"`
	DeliveryRating int            `gorm:"not null" json:"delivery_rating"`
	OverallRating  int            `gorm:"not null" json:"overall_rating"`
	Comment        string         `gorm:"type:varchar(1024)" json:"comment"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// RecordReviewRequest is the payload for recording a review of a
// delivered order.
type RecordReviewRequest struct {
	FoodRating     int    `json:"food_rating" binding:"required,min=1,max=5"`
	DeliveryRating int    `json:"delivery_rating" binding:"required,min=1,max=5"`
	OverallRating  int    `json:"overall_rating" binding:"required,min=1,max=5"`
	Comment        string `json:"comment" binding:"max=1024"`
}
