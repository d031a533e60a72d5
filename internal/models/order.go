package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order status values. Transitions are monotonic: pending may move to paid or
// failed, both of which are terminal.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Order is a placed order with a frozen shipping address snapshot.
// Total is always Subtotal + ShippingFee.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	ShippingAddress string          `json:"shipping_address"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// OrderLine is a single item within an order. UnitPrice is snapshotted from
// Product.Price at order time so later catalog edits or deletions do not
// rewrite history.
type OrderLine struct {
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Purchase records that a user bought a product, created as a side effect of
// checkout. Reviews are gated on its existence.
type Purchase struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}
