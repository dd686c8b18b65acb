package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the closed set of lifecycle states an order can be in.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// orderStatusRank orders the forward path. cancelled is terminal and
// reachable only from pending/confirmed/preparing, so it carries no rank.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusConfirmed:      1,
	OrderStatusPreparing:      2,
	OrderStatusReady:          3,
	OrderStatusOutForDelivery: 4,
	OrderStatusDelivered:      5,
}

// Rank returns the position of s on the forward delivery path and false
// for cancelled or unknown statuses.
func (s OrderStatus) Rank() (int, bool) {
	r, ok := orderStatusRank[s]
	return r, ok
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentMethod is how an order is paid for.
type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
)

// Order is a customer order against a restaurant.
// final_amount = total_amount + delivery_fee - discount_amount always holds.
type Order struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber      string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	RestaurantID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"restaurant_id"`
	DeliveryWorkerID *uuid.UUID      `gorm:"type:uuid;index" json:"delivery_worker_id,omitempty"`
	PromotionID      *uuid.UUID      `gorm:"type:uuid" json:"promotion_id,omitempty"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentMethod    PaymentMethod   `gorm:"type:varchar(20);not null" json:"payment_method"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DeliveryFee      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	FinalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"final_amount"`
	CancelReason     *string         `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	EstimatedAt      *time.Time      `json:"estimated_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
	OrderItems       []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items"`
}

// OrderItem is an immutable price snapshot of one menu item on an order.
type OrderItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	MenuItemID uuid.UUID       `gorm:"type:uuid;not null" json:"menu_item_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
}

// PlaceOrderRequest is the payload for placing a new order.
type PlaceOrderRequest struct {
	CustomerID    uuid.UUID     `json:"customer_id" binding:"required"`
	RestaurantID  uuid.UUID     `json:"restaurant_id" binding:"required"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required,oneof=wallet card cash"`
	PromoCode     string        `json:"promo_code"`
	Items         []struct {
		MenuItemID uuid.UUID `json:"menu_item_id" binding:"required"`
		Quantity   int       `json:"quantity" binding:"required,min=1"`
	} `json:"items" binding:"required,min=1,dive"`
}

// TransitionOrderRequest is the payload for advancing an order's status.
type TransitionOrderRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// CancelOrderRequest is the payload for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}
