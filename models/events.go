package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is published after an order is persisted.
type OrderPlacedEvent struct {
	EventType    string          `json:"event_type"`
	OrderID      string          `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	CustomerID   string          `json:"customer_id"`
	RestaurantID string          `json:"restaurant_id"`
	FinalAmount  decimal.Decimal `json:"final_amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// OrderStatusChangedEvent is published after a status transition commits.
type OrderStatusChangedEvent struct {
	EventType  string      `json:"event_type"`
	OrderID    string      `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	Reason     string      `json:"reason,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// DeliveryUpdateEvent is published when a delivery assignment is created
// or advanced.
type DeliveryUpdateEvent struct {
	EventType string         `json:"event_type"`
	OrderID   string         `json:"order_id"`
	WorkerID  string         `json:"worker_id"`
	Status    DeliveryStatus `json:"status"`
	Latitude  *float64       `json:"latitude,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
