package domain

import "time"

// Kafka topics shared by the API (producer side) and the worker (consumer
// side). Events are published after commit and are fire-and-forget: they
// never influence the outcome of the request that emitted them.
const (
	TopicOrderPlaced   = "order.placed"
	TopicStockAdjusted = "stock.adjusted"
)

type OrderPlacedEvent struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	Items          []OrderItem `json:"items"`
	TotalAmount    int64       `json:"total_amount"`
	DiscountAmount int64       `json:"discount_amount"`
	FinalAmount    int64       `json:"final_amount"`
	PlacedAt       time.Time   `json:"placed_at"`
}

type StockAdjustedEvent struct {
	ProductID  string    `json:"product_id"`
	Actor      string    `json:"actor"`
	Delta      int       `json:"delta"`
	NewStock   int       `json:"new_stock"`
	Reason     string    `json:"reason,omitempty"`
	AdjustedAt time.Time `json:"adjusted_at"`
}
