package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"mini-shop/middleware"
	"mini-shop/order-service/idempotency"
	"mini-shop/order-service/ledger"
	"mini-shop/order-service/models"
	"mini-shop/order-service/saga"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req saga.PlaceOrderRequest) (models.Order, error)
}

type IdempotencyStore interface {
	Reserve(ctx context.Context, userID, key string) (idempotency.State, int64, error)
	Complete(ctx context.Context, userID, key string, orderID int64) error
	Release(ctx context.Context, userID, key string) error
}

type OrderHandler struct {
	placer OrderPlacer
	orders *ledger.Ledger
	keys   IdempotencyStore
	logger *zap.Logger
}

// NewOrderHandler builds the /orders handlers. keys may be nil, in which case
// the Idempotency-Key header is ignored.
func NewOrderHandler(placer OrderPlacer, orders *ledger.Ledger, keys IdempotencyStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		placer: placer,
		orders: orders,
		keys:   keys,
		logger: logger,
	}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	ctx, span := otel.Tracer("order-service").Start(c.Request.Context(), "PlaceOrder")
	defer span.End()

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	userID := c.GetString(middleware.ContextUserID)
	span.SetAttributes(attribute.String("user.id", userID))

	key := c.GetHeader(idempotencyHeader)
	if key != "" && h.keys != nil {
		state, orderID, err := h.keys.Reserve(ctx, userID, key)
		switch {
		case err != nil:
			h.logger.Warn("Idempotency store unavailable, placing without key",
				zap.String("user_id", userID), zap.Error(err))
			key = ""
		case state == idempotency.StateInFlight:
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "A request with this Idempotency-Key is still in progress"})
			return
		case state == idempotency.StateCompleted:
			h.replay(c, orderID)
			return
		}
	} else {
		key = ""
	}

	order, err := h.placer.PlaceOrder(ctx, saga.PlaceOrderRequest{
		UserID:          userID,
		AuthToken:       c.GetString(middleware.ContextAuthToken),
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})

	if key != "" {
		h.settleKey(context.WithoutCancel(ctx), userID, key, order.ID)
	}

	if err != nil {
		span.RecordError(err)
		if order.ID != 0 {
			span.SetAttributes(attribute.Int64("order.id", order.ID))
			c.JSON(models.KindOf(err).HTTPStatus(), gin.H{
				"success": false,
				"error":   errorMessage(err),
				"reason":  order.CancellationReason,
				"data":    order,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	h.logger.Info("Order placed", zap.Int64("order_id", order.ID), zap.String("user_id", userID))
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": order})
}

func (h *OrderHandler) replay(c *gin.Context, orderID int64) {
	order, err := h.orders.Get(orderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

// settleKey binds the key to the created order, or frees it when the request
// was rejected before an order existed.
func (h *OrderHandler) settleKey(ctx context.Context, userID, key string, orderID int64) {
	var err error
	if orderID != 0 {
		err = h.keys.Complete(ctx, userID, key, orderID)
	} else {
		err = h.keys.Release(ctx, userID, key)
	}
	if err != nil {
		h.logger.Warn("Failed to settle idempotency key",
			zap.String("user_id", userID), zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	_, span := otel.Tracer("order-service").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	order, ok := h.ownOrder(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := models.OrderFilter{Status: models.OrderStatus(c.Query("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid status filter"})
		return
	}

	page, err := queryInt(c, "page")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid page"})
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
		return
	}

	list := h.orders.ListByUser(c.GetString(middleware.ContextUserID), filter, models.Page{Page: page, Limit: limit})
	c.JSON(http.StatusOK, gin.H{"success": true, "data": list})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	current, ok := h.ownOrder(c)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	order, err := h.orders.UpdateStatus(current.ID, req.Status, req.Message)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Order status overridden",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(order.Status)),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": order})
}

func (h *OrderHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.orders.Stats()})
}

// ownOrder loads the :id order and answers 404 when it belongs to someone else.
func (h *OrderHandler) ownOrder(c *gin.Context) (models.Order, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid order ID"})
		return models.Order{}, false
	}

	order, err := h.orders.Get(orderID)
	if err != nil || order.UserID != c.GetString(middleware.ContextUserID) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Order not found"})
		return models.Order{}, false
	}
	return order, true
}

func (h *OrderHandler) respondError(c *gin.Context, err error) {
	if errors.Is(err, ledger.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Order not found"})
		return
	}

	kind := models.KindOf(err)
	if kind == models.KindInternal {
		h.logger.Error("Order request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(kind.HTTPStatus(), gin.H{"success": false, "error": errorMessage(err), "kind": kind.String()})
}

func errorMessage(err error) string {
	var e *models.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
