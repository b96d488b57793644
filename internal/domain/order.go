package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// orderFlow is the forward fulfilment path; cancelled and refunded are
// reachable from any non-terminal status.
var orderFlow = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusPacked,
	OrderStatusPacked:         OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPacked,
		OrderStatusOutForDelivery, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled || next == OrderStatusRefunded {
		return true
	}
	return orderFlow[s] == next
}

// PaymentStatus is tracked independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentPaid || next == PaymentFailed
	case PaymentPaid:
		return next == PaymentRefunded
	}
	return false
}

// Order is an immutable snapshot of a cart taken at checkout. Items,
// quantities and prices are copied, never referenced, so later catalog or
// cart changes cannot alter a placed order.
// Invariant: FinalAmount = TotalAmount - DiscountAmount.
type Order struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	AddressID      string        `json:"address_id"`
	Status         OrderStatus   `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	CouponCode     string        `json:"coupon_code,omitempty"`
	Items          []OrderItem   `json:"items"`
	TotalAmount    int64         `json:"total_amount"`
	DiscountAmount int64         `json:"discount_amount"`
	FinalAmount    int64         `json:"final_amount"`
	PlacedAt       time.Time     `json:"placed_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}
