package models

import "time"

// Sources of a recorded notification.
const (
	SourceAPI   = "api"
	SourceEvent = "event"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type" binding:"required"`
}

// OrderEvent is the payload the order service publishes on order_events.
type OrderEvent struct {
	EventType     string    `json:"event_type"`
	OrderID       int64     `json:"order_id"`
	UserID        string    `json:"user_id"`
	SagaID        string    `json:"saga_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalAmount   float64   `json:"total_amount"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
