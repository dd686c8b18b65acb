package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryStatus is the closed set of states a delivery assignment moves
// through. The sequence is monotonic; no state is revisited.
type DeliveryStatus string

const (
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusAssigned:  0,
	DeliveryStatusPickedUp:  1,
	DeliveryStatusOnTheWay:  2,
	DeliveryStatusDelivered: 3,
}

// Rank returns the position of s on the delivery path and false for
// unknown statuses.
func (s DeliveryStatus) Rank() (int, bool) {
	r, ok := deliveryStatusRank[s]
	return r, ok
}

// DeliveryTracking is the active assignment of a delivery worker to an
// order, carrying the worker's last known location. At most one active row
// exists per order.
type DeliveryTracking struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	WorkerID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"worker_id"`
	Status    DeliveryStatus `gorm:"type:varchar(20);not null;default:'assigned'" json:"status"`
	Latitude  *float64       `json:"latitude,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AssignDeliveryRequest is the payload for assigning a worker to an order.
type AssignDeliveryRequest struct {
	OrderID  uuid.UUID `json:"order_id" binding:"required"`
	WorkerID uuid.UUID `json:"worker_id" binding:"required"`
}

// AdvanceDeliveryRequest is the payload for advancing a delivery's status.
type AdvanceDeliveryRequest struct {
	Status    DeliveryStatus `json:"status" binding:"required,oneof=assigned picked_up on_the_way delivered"`
	Latitude  *float64       `json:"latitude"`
	Longitude *float64       `json:"longitude"`
}
