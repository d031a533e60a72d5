package models

import "time"

// Role classifies a caller for authorization purposes.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a registered account.
type User struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username" validate:"required,min=3,max=100"`
	PasswordHash     string    `json:"-"`
	Role             Role      `json:"role"`
	ShippingAddress  string    `json:"shipping_address"`
	PaymentReference string    `json:"-"`
	Subscribed       bool      `json:"subscribed"`
	CreatedAt        time.Time `json:"created_at"`
}

// Session is an opaque bearer row. The fingerprint digests stable client
// attributes captured at login; a mismatch on later use invalidates the row.
type Session struct {
	Token       string    `json:"-"`
	UserID      int64     `json:"user_id"`
	Fingerprint string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
