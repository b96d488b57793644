package orders

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// OrderRepository reads and transitions orders. Creation lives in the
// checkout package; nothing here ever inserts.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, address_id, status, payment_status, COALESCE(coupon_code, ''),
	total_amount, discount_amount, final_amount, placed_at, updated_at`

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id).Scan(&order.ID, &order.UserID, &order.AddressID, &order.Status, &order.PaymentStatus,
		&order.CouponCode, &order.TotalAmount, &order.DiscountAmount, &order.FinalAmount,
		&order.PlacedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, title, sku, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.SKU,
			&item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY placed_at DESC
	`, userID)
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY placed_at DESC
	`)
}

// list fetches orders and attaches their items in one batch query instead of
// one query per order.
func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.ID, &order.UserID, &order.AddressID, &order.Status,
			&order.PaymentStatus, &order.CouponCode, &order.TotalAmount, &order.DiscountAmount,
			&order.FinalAmount, &order.PlacedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, title, sku, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Title, &item.SKU,
			&item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		order := orderMap[item.OrderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// TransitionStatus writes the new fulfilment status only if the row still
// holds the status the caller validated against. A false return means the
// order changed under the caller or does not exist.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// TransitionPayment is TransitionStatus for the payment state machine.
func (r *OrderRepository) TransitionPayment(ctx context.Context, id string, from, to domain.PaymentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND payment_status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
