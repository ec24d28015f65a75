package saga

import (
	"context"

	"mini-shop/order-service/clients"
	"mini-shop/order-service/models"
	"mini-shop/order-service/payment"

	"github.com/google/uuid"
)

type Step string

const (
	StepValidateCart     Step = "validate_cart"
	StepCreateOrder      Step = "create_order"
	StepReserveInventory Step = "reserve_inventory"
	StepChargePayment    Step = "charge_payment"
	StepConfirm          Step = "confirm"
	StepCompensate       Step = "compensate"
	StepDone             Step = "done"
)

type PlaceOrderRequest struct {
	UserID          string
	AuthToken       string
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
}

func (r PlaceOrderRequest) caller() clients.Caller {
	return clients.Caller{UserID: r.UserID, AuthToken: r.AuthToken}
}

// Reservation is one attempted stock decrement.
type Reservation struct {
	ProductID   int  `json:"productId"`
	Quantity    int  `json:"quantity"`
	Success     bool `json:"success"`
	Compensated bool `json:"compensated"`
}

// Workflow is the state of one order placement as it moves through its steps.
type Workflow struct {
	ID           uuid.UUID
	Step         Step
	Request      PlaceOrderRequest
	Cart         clients.Cart
	Order        models.Order
	Reservations []Reservation
	Payment      *payment.Result
	Reason       string
}

// Journal records workflow progress. Start is called once the order exists,
// Step on every later transition and Finish when the workflow is done.
type Journal interface {
	Start(ctx context.Context, wf *Workflow) error
	Step(ctx context.Context, wf *Workflow, detail string) error
	Finish(ctx context.Context, wf *Workflow) error
}

// EventPublisher announces terminal order outcomes.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type CartService interface {
	Validate(ctx context.Context, caller clients.Caller) (clients.CartValidation, error)
	Clear(ctx context.Context, caller clients.Caller) error
}

type InventoryService interface {
	DecreaseStock(ctx context.Context, productID, quantity int) (clients.StockUpdate, error)
	IncreaseStock(ctx context.Context, productID, quantity int) (clients.StockUpdate, error)
}

type Notifier interface {
	Send(ctx context.Context, n clients.Notification) error
}

type nopJournal struct{}

func (nopJournal) Start(context.Context, *Workflow) error        { return nil }
func (nopJournal) Step(context.Context, *Workflow, string) error { return nil }
func (nopJournal) Finish(context.Context, *Workflow) error       { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }
