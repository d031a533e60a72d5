package models

import "github.com/shopspring/decimal"

// CartLine holds at most one row per (user, product). Quantity is at least 1.
type CartLine struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// CartView is a cart line joined with its product for display.
type CartView struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
