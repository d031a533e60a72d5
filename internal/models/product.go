package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item. Price is a fixed-scale decimal; stock
// never goes negative.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name" validate:"min=1,max=200"`
	Description string          `json:"description" validate:"max=4096"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Review is an immutable product review. A review may only exist for a
// (user, product) pair with a prior purchase.
type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
