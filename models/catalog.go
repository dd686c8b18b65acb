package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Restaurant is catalog data the order engine reads: delivery fee on the
// place path, rating fields written only by the review aggregation.
type Restaurant struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	RegionID      *uuid.UUID      `gorm:"type:uuid;index" json:"region_id,omitempty"`
	DeliveryFee   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"delivery_fee"`
	AverageRating float64         `gorm:"not null;default:0" json:"average_rating"`
	TotalReviews  int             `gorm:"not null;default:0" json:"total_reviews"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// MenuItem is a catalog item whose current price is snapshotted onto
// order items at place time.
type MenuItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RestaurantID uuid.UUID       `gorm:"type:uuid;not null;index" json:"restaurant_id"`
	Name         string          `gorm:"type:varchar(255);not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	IsAvailable  bool            `gorm:"not null;default:true" json:"is_available"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

// Region is flat reference data: a node knows its parent, never its
// children. Lookups walk child to parent on demand.
type Region struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string     `gorm:"type:varchar(255);not null" json:"name"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
