package models

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

type OrderItem struct {
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type ShippingAddress struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country" binding:"required"`
}

type PaymentDetails struct {
	TransactionID string    `json:"transactionId,omitempty"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	Success       bool      `json:"success"`
	Message       string    `json:"message"`
	ProcessedAt   time.Time `json:"processedAt"`
}

type TimelineEntry struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

type Order struct {
	ID                 int64           `json:"id"`
	UserID             string          `json:"userId"`
	Items              []OrderItem     `json:"items"`
	TotalAmount        float64         `json:"totalAmount"`
	TotalItems         int             `json:"totalItems"`
	Status             OrderStatus     `json:"status"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	ShippingAddress    ShippingAddress `json:"shippingAddress"`
	PaymentMethod      string          `json:"paymentMethod"`
	CancellationReason string          `json:"cancellationReason,omitempty"`
	PaymentDetails     *PaymentDetails `json:"paymentDetails,omitempty"`
	SagaID             string          `json:"sagaId"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Timeline           []TimelineEntry `json:"timeline"`
}

// Transition moves the order to status and appends the matching timeline entry.
func (o *Order) Transition(status OrderStatus, message string, at time.Time) {
	o.Status = status
	o.UpdatedAt = at
	o.Timeline = append(o.Timeline, TimelineEntry{
		Status:    status,
		Message:   message,
		Timestamp: at,
	})
}

// SetItems replaces the items and recomputes the totals.
func (o *Order) SetItems(items []OrderItem) {
	o.Items = items
	o.TotalAmount = 0
	o.TotalItems = 0
	for i := range o.Items {
		o.Items[i].Subtotal = roundCents(o.Items[i].UnitPrice * float64(o.Items[i].Quantity))
		o.TotalAmount += o.Items[i].Subtotal
		o.TotalItems += o.Items[i].Quantity
	}
	o.TotalAmount = roundCents(o.TotalAmount)
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	if o.PaymentDetails != nil {
		pd := *o.PaymentDetails
		c.PaymentDetails = &pd
	}
	return c
}

func roundCents(v float64) float64 {
	if v < 0 {
		return -roundCents(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}

type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress" binding:"required"`
	PaymentMethod   string          `json:"paymentMethod" binding:"required"`
}

type UpdateStatusRequest struct {
	Status  OrderStatus `json:"status" binding:"required"`
	Message string      `json:"message"`
}

type OrderFilter struct {
	Status OrderStatus
}

type Page struct {
	Page  int
	Limit int
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type OrderList struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

type OrderStats struct {
	TotalOrders       int                 `json:"totalOrders"`
	ByStatus          map[OrderStatus]int `json:"byStatus"`
	TotalRevenue      float64             `json:"totalRevenue"`
	AverageOrderValue float64             `json:"averageOrderValue"`
}

// OrderEvent is published to Kafka when a saga reaches a terminal state.
type OrderEvent struct {
	EventType   string        `json:"event_type"` // order_confirmed, order_cancelled
	OrderID     int64         `json:"order_id"`
	UserID      string        `json:"user_id"`
	SagaID      string        `json:"saga_id"`
	Status      OrderStatus   `json:"status"`
	Payment     PaymentStatus `json:"payment_status"`
	TotalAmount float64       `json:"total_amount"`
	Reason      string        `json:"reason,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
}
