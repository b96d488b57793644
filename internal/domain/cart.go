package domain

import "time"

// Cart holds one user's open cart. Subtotal, discount and total are
// denormalized and recomputed on every mutation so they are never stale.
type Cart struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CouponCode     string    `json:"coupon_code,omitempty"`
	Subtotal       int64     `json:"subtotal"`
	DiscountAmount int64     `json:"discount_amount"`
	TotalAmount    int64     `json:"total_amount"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CartItem is a cart line. UnitPrice is locked when the line is inserted and
// does not follow later catalog price changes.
type CartItem struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartView is the response shape for every cart operation.
type CartView struct {
	CartID     string         `json:"cart_id"`
	Items      []CartItemView `json:"items"`
	CouponCode string         `json:"coupon_code,omitempty"`
	Subtotal   int64          `json:"subtotal"`
	Discount   int64          `json:"discount"`
	Total      int64          `json:"total"`
}

type CartItemView struct {
	ItemID       string `json:"item_id"`
	ProductID    string `json:"product_id"`
	Title        string `json:"title"`
	SKU          string `json:"sku"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	LineSubtotal int64  `json:"line_subtotal"`
	LineDiscount int64  `json:"line_discount"`
}
