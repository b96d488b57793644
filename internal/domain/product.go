package domain

import (
	"fmt"
	"time"
)

// Role selects the pricing path for a request. Identity and role arrive on
// every request from the upstream auth layer; they are never persisted with
// the cart.
type Role string

const (
	RoleConsumer    Role = "consumer"
	RoleDistributor Role = "distributor"
	RoleOwner       Role = "owner"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleConsumer, RoleDistributor, RoleOwner:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Product is a sellable item with two list prices. All monetary values in
// this package are in minor currency units.
type Product struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	SKU              string    `json:"sku"`
	CategoryID       string    `json:"category_id,omitempty"`
	ConsumerPrice    int64     `json:"consumer_price"`
	DistributorPrice int64     `json:"distributor_price"`
	StockQuantity    int       `json:"stock_quantity"`
	Active           bool      `json:"active"`
	OwnerID          string    `json:"owner_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
