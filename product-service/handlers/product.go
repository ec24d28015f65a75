package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"mini-shop/product-service/cache"
	"mini-shop/product-service/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	selectProductQuery = "SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = $1"
	decreaseStockQuery = "UPDATE products SET stock = stock - $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND stock >= $1 RETURNING stock"
	increaseStockQuery = "UPDATE products SET stock = stock + $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 RETURNING stock"
	selectStockQuery   = "SELECT stock FROM products WHERE id = $1"
)

type ProductHandler struct {
	db     *sql.DB
	cache  *cache.ProductCache
	logger *zap.Logger
}

func NewProductHandler(db *sql.DB, productCache *cache.ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:     db,
		cache:  productCache,
		logger: logger,
	}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "product-service", "status": "healthy"})
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := productID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	// Try to get from cache first
	cached, hit, err := h.cache.Get(ctx, id)
	if err != nil {
		h.logger.Warn("Product cache read failed", zap.Int("product_id", id), zap.Error(err))
	}
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if hit {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": cached})
		return
	}

	var product models.Product
	err = h.db.QueryRowContext(ctx, selectProductQuery, id).
		Scan(&product.ID, &product.Name, &product.Price, &product.Stock, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Product not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch product", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}

	if err := h.cache.Set(ctx, product); err != nil {
		h.logger.Warn("Product cache write failed", zap.Int("product_id", id), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": product})
}

// UpdateStock applies a relative stock change. A decrease is a single
// conditional update, so concurrent reservations can never oversell.
func (h *ProductHandler) UpdateStock(c *gin.Context) {
	ctx, span := otel.Tracer("product-service").Start(c.Request.Context(), "UpdateStock")
	defer span.End()

	id, ok := productID(c)
	if !ok {
		return
	}

	var req models.UpdateStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("product.id", id),
		attribute.Int("quantity", req.Quantity),
		attribute.String("operation", req.Operation),
	)

	query := increaseStockQuery
	if req.Operation == models.StockDecrease {
		query = decreaseStockQuery
	}

	var newStock int
	err := h.db.QueryRowContext(ctx, query, req.Quantity, id).Scan(&newStock)
	if errors.Is(err, sql.ErrNoRows) {
		h.rejectStockUpdate(c, id, req)
		return
	}
	if err != nil {
		span.RecordError(err)
		stockUpdatesTotal.WithLabelValues(req.Operation, "error").Inc()
		h.logger.Error("Failed to update stock", zap.Int("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		return
	}

	// Invalidate cache
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("Product cache invalidation failed", zap.Int("product_id", id), zap.Error(err))
	}

	stockUpdatesTotal.WithLabelValues(req.Operation, "success").Inc()
	h.logger.Info("Stock updated",
		zap.Int("product_id", id),
		zap.String("operation", req.Operation),
		zap.Int("quantity", req.Quantity),
		zap.Int("new_stock", newStock),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": models.StockUpdate{
		ProductID: id,
		NewStock:  newStock,
		Available: newStock > 0,
	}})
}

// rejectStockUpdate explains why the update matched no row.
func (h *ProductHandler) rejectStockUpdate(c *gin.Context, id int, req models.UpdateStockRequest) {
	var available int
	err := h.db.QueryRowContext(c.Request.Context(), selectStockQuery, id).Scan(&available)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stockUpdatesTotal.WithLabelValues(req.Operation, "not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Product not found"})
	case err != nil:
		stockUpdatesTotal.WithLabelValues(req.Operation, "error").Inc()
		h.logger.Error("Failed to read stock", zap.Int("product_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
	default:
		stockUpdatesTotal.WithLabelValues(req.Operation, "insufficient").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"success":           false,
			"message":           "Insufficient stock",
			"availableStock":    available,
			"requestedQuantity": req.Quantity,
		})
	}
}

func productID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid product ID"})
		return 0, false
	}
	return id, true
}
