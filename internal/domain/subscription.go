package domain

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Subscription places a recurring order for one product. Renewal runs are
// triggered explicitly (there is no in-process scheduler); each renewal
// resolves the current role price and goes through the same stock-validated
// order creation as checkout.
type Subscription struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Role          Role               `json:"role"`
	ProductID     string             `json:"product_id"`
	AddressID     string             `json:"address_id"`
	Quantity      int                `json:"quantity"`
	IntervalDays  int                `json:"interval_days"`
	NextRenewalAt time.Time          `json:"next_renewal_at"`
	Status        SubscriptionStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// AuditEntry is one row of the append-only audit trail. Entries are written
// by the worker from committed events, never by request handlers.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
