package clients

import (
	"context"
	"fmt"
	"net/http"

	"mini-shop/order-service/circuitbreaker"
)

const (
	StockDecrease = "decrease"
	StockIncrease = "increase"
)

type StockUpdate struct {
	ProductID int  `json:"productId"`
	NewStock  int  `json:"newStock"`
	Available bool `json:"available"`
}

type stockRequest struct {
	Quantity  int    `json:"quantity"`
	Operation string `json:"operation"`
}

type ProductsClient struct {
	remote
}

func NewProductsClient(baseURL string, transport *Transport, breaker *circuitbreaker.CircuitBreaker) *ProductsClient {
	return &ProductsClient{remote{
		service:   "products",
		baseURL:   baseURL,
		transport: transport,
		breaker:   breaker,
	}}
}

// DecreaseStock reserves quantity units. The products service applies the
// decrement only if enough stock remains.
func (c *ProductsClient) DecreaseStock(ctx context.Context, productID, quantity int) (StockUpdate, error) {
	return c.updateStock(ctx, "DecreaseStock", productID, quantity, StockDecrease)
}

func (c *ProductsClient) IncreaseStock(ctx context.Context, productID, quantity int) (StockUpdate, error) {
	return c.updateStock(ctx, "IncreaseStock", productID, quantity, StockIncrease)
}

func (c *ProductsClient) updateStock(ctx context.Context, operation string, productID, quantity int, direction string) (StockUpdate, error) {
	return call[StockUpdate](ctx, &c.remote, operation, Request{
		Method: http.MethodPut,
		URL:    fmt.Sprintf("%s/products/%d/stock", c.baseURL, productID),
		Body:   stockRequest{Quantity: quantity, Operation: direction},
	})
}
