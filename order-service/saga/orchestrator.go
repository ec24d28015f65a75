package saga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mini-shop/order-service/clients"
	"mini-shop/order-service/ledger"
	"mini-shop/order-service/models"
	"mini-shop/order-service/payment"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrOrderCancelled marks a placement that created an order and then unwound it.
var ErrOrderCancelled = errors.New("order cancelled")

type Orchestrator struct {
	cart      CartService
	inventory InventoryService
	notifier  Notifier
	payments  payment.Processor
	ledger    *ledger.Ledger
	journal   Journal
	events    EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithJournal(j Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func NewOrchestrator(
	cart CartService,
	inventory InventoryService,
	notifier Notifier,
	payments payment.Processor,
	orders *ledger.Ledger,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cart:      cart,
		inventory: inventory,
		notifier:  notifier,
		payments:  payments,
		ledger:    orders,
		journal:   nopJournal{},
		events:    nopPublisher{},
		logger:    logger,
		tracer:    otel.Tracer("order-service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PlaceOrder runs the placement workflow. It returns the confirmed order, or
// a cancelled order together with an error wrapping ErrOrderCancelled, or a
// zero order and an error when the request was rejected before an order
// existed.
func (o *Orchestrator) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (models.Order, error) {
	ctx, span := o.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	wf := &Workflow{
		ID:      uuid.New(),
		Step:    StepValidateCart,
		Request: req,
	}
	span.SetAttributes(
		attribute.String("saga.id", wf.ID.String()),
		attribute.String("user.id", req.UserID),
	)
	logger := o.logger.With(zap.String("saga_id", wf.ID.String()), zap.String("user_id", req.UserID))

	if err := o.validateCart(ctx, wf); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ordersPlacedTotal.WithLabelValues("rejected").Inc()
		logger.Info("Order rejected", zap.Error(err))
		return models.Order{}, err
	}

	o.createOrder(ctx, wf)
	span.SetAttributes(attribute.Int64("order.id", wf.Order.ID))
	logger = logger.With(zap.Int64("order_id", wf.Order.ID))

	// The order exists now; the caller going away must not strand it.
	ctx = context.WithoutCancel(ctx)

	if kind, ok := o.reserveInventory(ctx, wf, logger); !ok {
		return o.abort(ctx, wf, kind, logger)
	}

	if ok := o.chargePayment(ctx, wf, logger); !ok {
		return o.abort(ctx, wf, models.KindBusinessRule, logger)
	}

	o.confirm(ctx, wf, logger)
	return wf.Order.Clone(), nil
}

func (o *Orchestrator) advance(ctx context.Context, wf *Workflow, step Step, detail string) {
	wf.Step = step
	if wf.Order.ID == 0 {
		return
	}
	if err := o.journal.Step(ctx, wf, detail); err != nil {
		o.logger.Warn("Failed to journal saga step",
			zap.String("saga_id", wf.ID.String()),
			zap.String("step", string(step)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) validateCart(ctx context.Context, wf *Workflow) error {
	ctx, span := o.tracer.Start(ctx, "saga.validate_cart")
	defer span.End()

	result, err := o.cart.Validate(ctx, wf.Request.caller())
	if err != nil {
		span.RecordError(err)
		return dependencyError("cart", "validate cart", err)
	}
	wf.Cart = result.Cart

	if len(result.Cart.Items) == 0 {
		return models.NewError(models.KindBusinessRule, "cart is empty", nil)
	}
	if !result.Validation.AllAvailable {
		var unavailable []string
		for _, item := range result.Validation.Items {
			if item.Available {
				continue
			}
			unavailable = append(unavailable, fmt.Sprintf("%s (product %d: requested %d, available %d)",
				item.Name, item.ProductID, item.RequestedQuantity, item.AvailableStock))
		}
		return models.NewError(models.KindBusinessRule,
			"some cart items are unavailable: "+strings.Join(unavailable, ", "), nil)
	}
	return nil
}

func (o *Orchestrator) createOrder(ctx context.Context, wf *Workflow) {
	wf.Step = StepCreateOrder

	items := make([]models.OrderItem, 0, len(wf.Cart.Items))
	for _, item := range wf.Cart.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		})
	}

	now := o.now()
	order := models.Order{
		UserID:          wf.Request.UserID,
		PaymentStatus:   models.PaymentStatusPending,
		ShippingAddress: wf.Request.ShippingAddress,
		PaymentMethod:   wf.Request.PaymentMethod,
		SagaID:          wf.ID.String(),
		CreatedAt:       now,
	}
	order.SetItems(items)
	order.Transition(models.OrderStatusPending, "Order created", now)

	wf.Order = o.ledger.Append(order)

	if err := o.journal.Start(ctx, wf); err != nil {
		o.logger.Warn("Failed to journal saga start", zap.String("saga_id", wf.ID.String()), zap.Error(err))
	}
}

// reserveInventory decrements stock item by item, stopping at the first
// failure. On failure wf.Reason is set and the error kind for the caller is
// returned.
func (o *Orchestrator) reserveInventory(ctx context.Context, wf *Workflow, logger *zap.Logger) (models.ErrorKind, bool) {
	o.advance(ctx, wf, StepReserveInventory, "")
	ctx, span := o.tracer.Start(ctx, "saga.reserve_inventory")
	defer span.End()

	for _, item := range wf.Order.Items {
		_, err := o.inventory.DecreaseStock(ctx, item.ProductID, item.Quantity)
		wf.Reservations = append(wf.Reservations, Reservation{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Success:   err == nil,
		})
		if err == nil {
			continue
		}

		span.RecordError(err)
		wf.Reason = reservationFailure(item, err)
		logger.Warn("Stock reservation failed",
			zap.Int("product_id", item.ProductID),
			zap.Int("quantity", item.Quantity),
			zap.Error(err),
		)
		if isShortCircuit(err) {
			return models.KindDependencyShortCircuited, false
		}
		return models.KindBusinessRule, false
	}

	span.SetAttributes(attribute.Int("reservations", len(wf.Reservations)))
	return 0, true
}

func (o *Orchestrator) chargePayment(ctx context.Context, wf *Workflow, logger *zap.Logger) bool {
	order, err := o.ledger.Update(wf.Order.ID, func(ord *models.Order) error {
		ord.PaymentStatus = models.PaymentStatusProcessing
		ord.Transition(models.OrderStatusProcessing, "Inventory reserved, processing payment", o.now())
		return nil
	})
	if err == nil {
		wf.Order = order
	}
	o.advance(ctx, wf, StepChargePayment, "")

	ctx, span := o.tracer.Start(ctx, "saga.charge_payment")
	defer span.End()

	result, err := o.payments.Charge(ctx, payment.Charge{
		OrderID: wf.Order.ID,
		UserID:  wf.Order.UserID,
		Amount:  wf.Order.TotalAmount,
		Method:  wf.Order.PaymentMethod,
	})
	if err != nil {
		span.RecordError(err)
		logger.Error("Payment processing failed", zap.Error(err))
		wf.Payment = &payment.Result{Success: false, Message: err.Error(), ProcessedAt: o.now()}
		wf.Reason = "payment error: " + err.Error()
		return false
	}

	wf.Payment = &result
	span.SetAttributes(attribute.Bool("payment.success", result.Success))
	if !result.Success {
		logger.Info("Payment declined", zap.String("message", result.Message))
		wf.Reason = "payment declined"
		return false
	}
	return true
}

func (o *Orchestrator) confirm(ctx context.Context, wf *Workflow, logger *zap.Logger) {
	o.advance(ctx, wf, StepConfirm, wf.Payment.TransactionID)
	ctx, span := o.tracer.Start(ctx, "saga.confirm")
	defer span.End()

	order, err := o.ledger.Update(wf.Order.ID, func(ord *models.Order) error {
		ord.PaymentStatus = models.PaymentStatusCompleted
		ord.PaymentDetails = o.paymentDetails(wf)
		ord.Transition(models.OrderStatusConfirmed, "Payment completed, order confirmed", o.now())
		return nil
	})
	if err != nil {
		// The ledger never deletes orders, so this only fires on a programming error.
		span.RecordError(err)
		logger.Error("Failed to confirm order", zap.Error(err))
	} else {
		wf.Order = order
	}

	if err := o.cart.Clear(ctx, wf.Request.caller()); err != nil {
		logger.Warn("Failed to clear cart", zap.Error(err))
	}
	o.notify(ctx, wf, clients.NotificationOrderConfirmed,
		fmt.Sprintf("Your order #%d has been confirmed. Total: $%.2f", wf.Order.ID, wf.Order.TotalAmount), logger)
	o.publish(ctx, wf, "order_confirmed", logger)

	o.finish(ctx, wf)
	ordersPlacedTotal.WithLabelValues("confirmed").Inc()
	logger.Info("Order confirmed",
		zap.Float64("total_amount", wf.Order.TotalAmount),
		zap.String("transaction_id", wf.Payment.TransactionID),
	)
}

// abort compensates every successful reservation and cancels the order.
func (o *Orchestrator) abort(ctx context.Context, wf *Workflow, kind models.ErrorKind, logger *zap.Logger) (models.Order, error) {
	o.advance(ctx, wf, StepCompensate, wf.Reason)
	o.compensate(ctx, wf, logger)

	order, err := o.ledger.Update(wf.Order.ID, func(ord *models.Order) error {
		ord.PaymentStatus = models.PaymentStatusFailed
		ord.CancellationReason = wf.Reason
		if wf.Payment != nil {
			ord.PaymentDetails = o.paymentDetails(wf)
		}
		ord.Transition(models.OrderStatusCancelled, "Order cancelled: "+wf.Reason, o.now())
		return nil
	})
	if err != nil {
		logger.Error("Failed to cancel order", zap.Error(err))
	} else {
		wf.Order = order
	}

	o.notify(ctx, wf, clients.NotificationOrderFailed,
		fmt.Sprintf("Your order #%d could not be completed: %s", wf.Order.ID, wf.Reason), logger)
	o.publish(ctx, wf, "order_cancelled", logger)

	o.finish(ctx, wf)
	ordersPlacedTotal.WithLabelValues("cancelled").Inc()
	logger.Info("Order cancelled", zap.String("reason", wf.Reason))

	return wf.Order.Clone(), models.NewError(kind, wf.Reason, ErrOrderCancelled)
}

// compensate restores each successful reservation once, in reservation
// order. Failures are logged and counted but not retried.
func (o *Orchestrator) compensate(ctx context.Context, wf *Workflow, logger *zap.Logger) {
	ctx, span := o.tracer.Start(ctx, "saga.compensate")
	defer span.End()

	for i := range wf.Reservations {
		r := &wf.Reservations[i]
		if !r.Success || r.Compensated {
			continue
		}
		if _, err := o.inventory.IncreaseStock(ctx, r.ProductID, r.Quantity); err != nil {
			span.RecordError(err)
			sagaCompensationsTotal.WithLabelValues("failed").Inc()
			logger.Error("Stock compensation failed",
				zap.Int("product_id", r.ProductID),
				zap.Int("quantity", r.Quantity),
				zap.Error(err),
			)
			continue
		}
		r.Compensated = true
		sagaCompensationsTotal.WithLabelValues("succeeded").Inc()
	}
}

func (o *Orchestrator) finish(ctx context.Context, wf *Workflow) {
	wf.Step = StepDone
	if err := o.journal.Finish(ctx, wf); err != nil {
		o.logger.Warn("Failed to journal saga finish", zap.String("saga_id", wf.ID.String()), zap.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, wf *Workflow, kind, message string, logger *zap.Logger) {
	err := o.notifier.Send(ctx, clients.Notification{
		UserID:  wf.Order.UserID,
		Message: message,
		Type:    kind,
	})
	if err != nil {
		logger.Warn("Failed to send notification", zap.String("type", kind), zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, wf *Workflow, eventType string, logger *zap.Logger) {
	err := o.events.PublishOrderEvent(ctx, models.OrderEvent{
		EventType:   eventType,
		OrderID:     wf.Order.ID,
		UserID:      wf.Order.UserID,
		SagaID:      wf.ID.String(),
		Status:      wf.Order.Status,
		Payment:     wf.Order.PaymentStatus,
		TotalAmount: wf.Order.TotalAmount,
		Reason:      wf.Order.CancellationReason,
		OccurredAt:  o.now(),
	})
	if err != nil {
		logger.Warn("Failed to publish order event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (o *Orchestrator) paymentDetails(wf *Workflow) *models.PaymentDetails {
	return &models.PaymentDetails{
		TransactionID: wf.Payment.TransactionID,
		Amount:        wf.Order.TotalAmount,
		Method:        wf.Order.PaymentMethod,
		Success:       wf.Payment.Success,
		Message:       wf.Payment.Message,
		ProcessedAt:   wf.Payment.ProcessedAt,
	}
}

func isShortCircuit(err error) bool {
	var scErr *clients.ShortCircuitError
	return errors.As(err, &scErr)
}

func reservationFailure(item models.OrderItem, err error) string {
	if isShortCircuit(err) {
		return fmt.Sprintf("products service unavailable while reserving product %d (circuit open)", item.ProductID)
	}
	var depErr *clients.DependencyError
	if errors.As(err, &depErr) {
		if depErr.Rejected {
			return fmt.Sprintf("product %d could not be reserved: %s", item.ProductID, depErr.Message)
		}
		switch depErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Sprintf("product %d not found", item.ProductID)
		case http.StatusBadRequest, http.StatusConflict:
			return fmt.Sprintf("insufficient stock for product %d (%s)", item.ProductID, item.Name)
		}
	}
	return fmt.Sprintf("failed to reserve product %d: %v", item.ProductID, err)
}

func dependencyError(service, action string, err error) error {
	if isShortCircuit(err) {
		return models.NewError(models.KindDependencyShortCircuited, service+" service unavailable", err)
	}
	var depErr *clients.DependencyError
	if errors.As(err, &depErr) {
		switch {
		case depErr.StatusCode == http.StatusUnauthorized:
			return models.NewError(models.KindAuthRequired, "failed to "+action, err)
		case depErr.IsClientError():
			return models.NewError(models.KindBusinessRule, "failed to "+action+": "+depErr.Message, err)
		}
	}
	return models.NewError(models.KindInternal, "failed to "+action, err)
}
