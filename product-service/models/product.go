package models

import "time"

const (
	StockDecrease = "decrease"
	StockIncrease = "increase"
)

type Product struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateStockRequest struct {
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Operation string `json:"operation" binding:"required,oneof=decrease increase"`
}

// StockUpdate is the body returned after a successful stock change.
type StockUpdate struct {
	ProductID int  `json:"productId"`
	NewStock  int  `json:"newStock"`
	Available bool `json:"available"`
}
