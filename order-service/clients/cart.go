package clients

import (
	"context"
	"net/http"

	"mini-shop/order-service/circuitbreaker"
)

type CartItem struct {
	ProductID int     `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type Cart struct {
	Items       []CartItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
	TotalItems  int        `json:"totalItems"`
}

type ItemAvailability struct {
	ProductID         int    `json:"productId"`
	Name              string `json:"name"`
	Available         bool   `json:"available"`
	RequestedQuantity int    `json:"requestedQuantity"`
	AvailableStock    int    `json:"availableStock"`
}

type Validation struct {
	AllAvailable bool               `json:"allAvailable"`
	Items        []ItemAvailability `json:"items"`
}

type CartValidation struct {
	Cart       Cart       `json:"cart"`
	Validation Validation `json:"validation"`
}

// Caller identifies the end user on whose behalf a request is made.
type Caller struct {
	UserID    string
	AuthToken string
}

func (c Caller) headers() map[string]string {
	h := map[string]string{"X-User-ID": c.UserID}
	if c.AuthToken != "" {
		h["Authorization"] = "Bearer " + c.AuthToken
	}
	return h
}

type CartClient struct {
	remote
}

func NewCartClient(baseURL string, transport *Transport, breaker *circuitbreaker.CircuitBreaker) *CartClient {
	return &CartClient{remote{
		service:   "cart",
		baseURL:   baseURL,
		transport: transport,
		breaker:   breaker,
	}}
}

func (c *CartClient) Validate(ctx context.Context, caller Caller) (CartValidation, error) {
	return call[CartValidation](ctx, &c.remote, "Validate", Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/cart/validate",
		Headers: caller.headers(),
	})
}

func (c *CartClient) Clear(ctx context.Context, caller Caller) error {
	_, err := call[struct{}](ctx, &c.remote, "Clear", Request{
		Method:  http.MethodDelete,
		URL:     c.baseURL + "/cart",
		Headers: caller.headers(),
	})
	return err
}
