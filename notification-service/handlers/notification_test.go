package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mini-shop/notification-service/models"
	"mini-shop/notification-service/notifier"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupNotificationTest(t *testing.T) *gin.Engine {
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewNotificationHandler(notifier.New(logger))

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/notifications/send", handler.Send)
	router.GET("/notifications/:userId", handler.ListByUser)
	return router
}

func TestHealthCheck(t *testing.T) {
	router := setupNotificationTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
	expectedBody := `{"service":"notification-service","status":"healthy"}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}

func TestNotificationHandler_SendThenList(t *testing.T) {
	router := setupNotificationTest(t)

	body := `{"userId":"user-1","message":"Your order #1 has been confirmed","type":"order_confirmed"}`
	req := httptest.NewRequest(http.MethodPost, "/notifications/send", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/user-1", nil))

	var resp struct {
		Success bool                  `json:"success"`
		Data    []models.Notification `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success || len(resp.Data) != 1 {
		t.Fatalf("Expected one notification, got %+v", resp)
	}
	if resp.Data[0].Type != "order_confirmed" || resp.Data[0].Source != models.SourceAPI {
		t.Errorf("Unexpected notification %+v", resp.Data[0])
	}
}

func TestNotificationHandler_Send_Invalid(t *testing.T) {
	router := setupNotificationTest(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing user", `{"message":"hi","type":"order_confirmed"}`},
		{"missing message", `{"userId":"user-1","type":"order_confirmed"}`},
		{"missing type", `{"userId":"user-1","message":"hi"}`},
		{"malformed", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/notifications/send", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
		})
	}
}

func TestNotificationHandler_ListEmpty(t *testing.T) {
	router := setupNotificationTest(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications/nobody", nil))

	expectedBody := `{"data":[],"success":true}`
	if w.Body.String() != expectedBody {
		t.Errorf("Expected body %s, got %s", expectedBody, w.Body.String())
	}
}
