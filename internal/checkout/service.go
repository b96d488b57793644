// Package checkout converts a cart into an order in one transaction: stock
// is re-validated under row locks, decremented, the order snapshot is
// written and the cart is emptied. Either all of it happens or none of it.
package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/address"
	"github.com/joao-fontenele/storefront/internal/discount"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/pricing"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Service struct {
	db        *sql.DB
	addresses *address.Repository
	discounts *discount.Repository
	producer  *messaging.Producer
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// NewService wires the checkout script. producer and metrics may be nil.
func NewService(db *sql.DB, addresses *address.Repository, discounts *discount.Repository, producer *messaging.Producer, metrics *telemetry.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		addresses: addresses,
		discounts: discounts,
		producer:  producer,
		metrics:   metrics,
		logger:    logger,
	}
}

// orderLine is what the order snapshot needs from each cart line.
type orderLine struct {
	ProductID string
	Title     string
	SKU       string
	Quantity  int
	UnitPrice int64
}

// Place turns the caller's cart into an order. The cart's stored totals are
// authoritative; they were recomputed on the last mutation. The cart row is
// locked first so two checkouts for the same user serialize.
func (s *Service) Place(ctx context.Context, userID string, addressID string) (*domain.Order, error) {
	if _, err := uuid.Parse(addressID); err != nil {
		return nil, domain.Validationf("address_id must be a UUID")
	}

	addr, err := s.addresses.GetByIDForUser(ctx, addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}
	if addr == nil {
		return nil, fmt.Errorf("address %s: %w", addressID, domain.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		cartID         string
		couponCode     string
		subtotal       int64
		discountAmount int64
		totalAmount    int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, COALESCE(coupon_code, ''), subtotal, discount_amount, total_amount
		FROM carts
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&cartID, &couponCode, &subtotal, &discountAmount, &totalAmount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrEmptyCart
		}
		return nil, err
	}

	lines, err := loadCartLines(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	if err := reserveStock(ctx, tx, lines); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             uuid.New().String(),
		UserID:         userID,
		AddressID:      addressID,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentPending,
		CouponCode:     couponCode,
		TotalAmount:    subtotal,
		DiscountAmount: discountAmount,
		FinalAmount:    totalAmount,
		PlacedAt:       now,
		UpdatedAt:      now,
	}
	if err := insertOrder(ctx, tx, order, lines); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET coupon_code = NULL, subtotal = 0, discount_amount = 0, total_amount = 0, updated_at = NOW()
		WHERE id = $1
	`, cartID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.emitPlaced(ctx, order, "checkout")

	return order, nil
}

// PlaceSubscriptionOrder places a renewal order for one subscription at the
// product's current role price. Pricing matches the cart rules: distributors
// get the best applicable bulk rule, coupons never apply to renewals.
func (s *Service) PlaceSubscriptionOrder(ctx context.Context, sub *domain.Subscription) (*domain.Order, error) {
	var rules []domain.BulkDiscountRule
	if sub.Role == domain.RoleDistributor {
		var err error
		rules, err = s.discounts.ListRules(ctx, true)
		if err != nil {
			return nil, fmt.Errorf("load bulk rules: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	product := &domain.Product{}
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, sku, COALESCE(category_id::text, ''), consumer_price,
			distributor_price, stock_quantity, active
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, sub.ProductID).Scan(&product.ID, &product.Title, &product.SKU, &product.CategoryID,
		&product.ConsumerPrice, &product.DistributorPrice, &product.StockQuantity, &product.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("product %s: %w", sub.ProductID, domain.ErrNotFound)
		}
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("product %s: %w", sub.ProductID, domain.ErrNotFound)
	}
	if product.StockQuantity < sub.Quantity {
		return nil, &domain.OutOfStockError{
			ProductID: product.ID,
			Title:     product.Title,
			Requested: sub.Quantity,
			Available: product.StockQuantity,
		}
	}

	unitPrice := pricing.UnitPrice(product, sub.Role)
	breakdown := pricing.Compute([]pricing.Line{{
		ProductID:  product.ID,
		CategoryID: product.CategoryID,
		Quantity:   sub.Quantity,
		UnitPrice:  unitPrice,
	}}, sub.Role, rules, nil, time.Now().UTC())

	if _, err := tx.ExecContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1
	`, product.ID, sub.Quantity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:             uuid.New().String(),
		UserID:         sub.UserID,
		AddressID:      sub.AddressID,
		Status:         domain.OrderStatusPending,
		PaymentStatus:  domain.PaymentPending,
		TotalAmount:    breakdown.Subtotal,
		DiscountAmount: breakdown.Discount,
		FinalAmount:    breakdown.Total,
		PlacedAt:       now,
		UpdatedAt:      now,
	}
	lines := []orderLine{{
		ProductID: product.ID,
		Title:     product.Title,
		SKU:       product.SKU,
		Quantity:  sub.Quantity,
		UnitPrice: unitPrice,
	}}
	if err := insertOrder(ctx, tx, order, lines); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.emitPlaced(ctx, order, "subscription")

	return order, nil
}

func loadCartLines(ctx context.Context, tx *sql.Tx, cartID string) ([]orderLine, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT ci.product_id, p.title, p.sku, ci.quantity, ci.unit_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var lines []orderLine
	for rows.Next() {
		var l orderLine
		if err := rows.Scan(&l.ProductID, &l.Title, &l.SKU, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// reserveStock locks the product rows in id order, re-validates every line
// against live stock and decrements. Insufficient stock aborts the whole
// transaction with an error naming the first short product.
func reserveStock(ctx context.Context, tx *sql.Tx, lines []orderLine) error {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, title, stock_quantity
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	type stockRow struct {
		title string
		stock int
	}
	stocks := make(map[string]stockRow, len(lines))
	for rows.Next() {
		var id, title string
		var stock int
		if err := rows.Scan(&id, &title, &stock); err != nil {
			return err
		}
		stocks[id] = stockRow{title: title, stock: stock}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range lines {
		row, ok := stocks[l.ProductID]
		if !ok {
			return fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
		}
		if row.stock < l.Quantity {
			return &domain.OutOfStockError{
				ProductID: l.ProductID,
				Title:     row.title,
				Requested: l.Quantity,
				Available: row.stock,
			}
		}
	}

	for _, l := range lines {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1
		`, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}

	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, order *domain.Order, lines []orderLine) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, address_id, status, payment_status, coupon_code,
			total_amount, discount_amount, final_amount, placed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $10)
	`, order.ID, order.UserID, order.AddressID, order.Status, order.PaymentStatus,
		order.CouponCode, order.TotalAmount, order.DiscountAmount, order.FinalAmount, order.PlacedAt)
	if err != nil {
		return err
	}

	order.Items = make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		item := domain.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ProductID: l.ProductID,
			Title:     l.Title,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, title, sku, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, item.ID, item.OrderID, item.ProductID, item.Title, item.SKU, item.Quantity, item.UnitPrice); err != nil {
			return err
		}
		order.Items = append(order.Items, item)
	}

	return nil
}

// emitPlaced records metrics and publishes the event after commit. Publish
// failures are logged and swallowed; the order already exists.
func (s *Service) emitPlaced(ctx context.Context, order *domain.Order, source string) {
	s.metrics.OrderPlaced(ctx, source, order.FinalAmount)

	if s.producer == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Items:          order.Items,
		TotalAmount:    order.TotalAmount,
		DiscountAmount: order.DiscountAmount,
		FinalAmount:    order.FinalAmount,
		PlacedAt:       order.PlacedAt,
	}
	if err := s.producer.Publish(ctx, domain.TopicOrderPlaced, order.ID, event); err != nil {
		s.logger.Error("failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}
