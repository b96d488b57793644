package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponKind string

const (
	CouponFixed   CouponKind = "fixed"
	CouponPercent CouponKind = "percent"
)

// Coupon is a redeemable discount definition. Codes are stored normalized
// (trimmed, lower-case). Fixed coupons use Amount, percent coupons use
// Percent; the unused field stays zero.
type Coupon struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Kind         CouponKind      `json:"kind"`
	Amount       int64           `json:"amount"`
	Percent      decimal.Decimal `json:"percent"`
	MinCartValue int64           `json:"min_cart_value"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// UsableAt reports whether the coupon can discount a cart with the given
// subtotal. The reason is empty when usable.
func (c *Coupon) UsableAt(now time.Time, subtotal int64) (bool, string) {
	if !c.Active {
		return false, "coupon is no longer active"
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false, "coupon has expired"
	}
	if subtotal < c.MinCartValue {
		return false, "cart value below coupon minimum"
	}
	return true, ""
}

// BulkDiscountRule unlocks a percentage discount when a line's quantity
// meets MinQuantity. Scope is exactly one of: a product, a category, or
// global (both references empty).
type BulkDiscountRule struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id,omitempty"`
	CategoryID      string          `json:"category_id,omitempty"`
	MinQuantity     int             `json:"min_quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
}
