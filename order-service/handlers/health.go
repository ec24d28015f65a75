package handlers

import (
	"net/http"

	"mini-shop/order-service/circuitbreaker"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	breakers []*circuitbreaker.CircuitBreaker
}

func NewHealthHandler(breakers ...*circuitbreaker.CircuitBreaker) *HealthHandler {
	return &HealthHandler{breakers: breakers}
}

// HealthCheck reports the service as healthy while listing every dependency
// breaker. An open breaker degrades the status but the service keeps serving.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := "healthy"
	breakers := make(map[string]circuitbreaker.Stats, len(h.breakers))
	for _, cb := range h.breakers {
		stats := cb.Stats()
		breakers[cb.Name()] = stats
		if cb.GetState() == circuitbreaker.StateOpen {
			status = "degraded"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"service":         "order-service",
		"status":          status,
		"circuitBreakers": breakers,
	})
}
