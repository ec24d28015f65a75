package clients

import (
	"context"
	"net/http"

	"mini-shop/order-service/circuitbreaker"
)

const (
	NotificationOrderConfirmed = "order_confirmed"
	NotificationOrderFailed    = "order_failed"
)

type Notification struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type NotificationsClient struct {
	remote
}

func NewNotificationsClient(baseURL string, transport *Transport, breaker *circuitbreaker.CircuitBreaker) *NotificationsClient {
	return &NotificationsClient{remote{
		service:   "notifications",
		baseURL:   baseURL,
		transport: transport,
		breaker:   breaker,
	}}
}

func (c *NotificationsClient) Send(ctx context.Context, n Notification) error {
	_, err := call[struct{}](ctx, &c.remote, "Send", Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/notifications/send",
		Body:   n,
	})
	return err
}
