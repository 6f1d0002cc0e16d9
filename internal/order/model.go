package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/shop-service-go/internal/user"
)

type Item struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type Order struct {
	ID          string          `json:"orderId"`
	UserID      string          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	Items       []Item          `json:"items"`
	User        *user.User      `json:"user,omitempty"`
}

// ProductSnapshot is the price and stock of one product as read under its
// row lock. The price captured here is the price the order is charged,
// regardless of later price changes.
type ProductSnapshot struct {
	ID    string
	Price decimal.Decimal
	Stock int
}
