package handlers

import (
	"net/http"

	"mini-shop/notification-service/models"
	"mini-shop/notification-service/notifier"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

type NotificationHandler struct {
	notifier *notifier.Notifier
}

func NewNotificationHandler(n *notifier.Notifier) *NotificationHandler {
	return &NotificationHandler{notifier: n}
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"service": "notification-service", "status": "healthy"})
}

func (h *NotificationHandler) Send(c *gin.Context) {
	ctx, span := otel.Tracer("notification-service").Start(c.Request.Context(), "SendNotification")
	defer span.End()

	var req models.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user.id", req.UserID),
		attribute.String("notification.type", req.Type),
	)

	notification := h.notifier.Deliver(ctx, req.UserID, req.Type, req.Message, models.SourceAPI)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": notification})
}

func (h *NotificationHandler) ListByUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": h.notifier.ListByUser(c.Param("userId"))})
}
