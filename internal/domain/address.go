package domain

import "time"

// Address is the delivery destination referenced by orders and
// subscriptions. Ownership is checked at checkout time.
type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Label      string    `json:"label,omitempty"`
	Line1      string    `json:"line1"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	CreatedAt  time.Time `json:"created_at"`
}
