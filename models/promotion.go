package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DiscountType represents the kind of discount a promotion provides.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
	DiscountTypeBOGO       DiscountType = "buy_one_get_one"
)

// Promotion is a promotional code with a bounded number of redemption slots.
type Promotion struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code            string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountType    DiscountType    `gorm:"type:varchar(20);not null" json:"discount_type"`
	Value           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	MinimumOrder    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_order"`
	MaximumDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"maximum_discount"` // 0 = uncapped
	UsageLimit      int             `gorm:"not null;default:0" json:"usage_limit"`                         // 0 = unlimited
	UsedCount       int             `gorm:"not null;default:0" json:"used_count"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	IsActive        bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// CreatePromotionRequest is the payload for creating a new promotion.
type CreatePromotionRequest struct {
	Code            string          `json:"code" binding:"required,min=3,max=64"`
	DiscountType    DiscountType    `json:"discount_type" binding:"required,oneof=percentage fixed buy_one_get_one"`
	Value           decimal.Decimal `json:"value" binding:"required"`
	MinimumOrder    decimal.Decimal `json:"minimum_order"`
	MaximumDiscount decimal.Decimal `json:"maximum_discount"`
	UsageLimit      int             `json:"usage_limit" binding:"gte=0"`
	StartDate       time.Time       `json:"start_date" binding:"required"`
	EndDate         time.Time       `json:"end_date" binding:"required"`
}

// ValidatePromotionRequest is the payload for validating a code against an
// order subtotal. CheapestItemPrice is caller-supplied for buy_one_get_one.
type ValidatePromotionRequest struct {
	Code              string          `json:"code" binding:"required"`
	OrderSubtotal     decimal.Decimal `json:"order_subtotal" binding:"required"`
	CheapestItemPrice decimal.Decimal `json:"cheapest_item_price"`
}

// ValidatePromotionResponse carries the computed discount for a valid code.
type ValidatePromotionResponse struct {
	PromotionID    uuid.UUID       `json:"promotion_id"`
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}
