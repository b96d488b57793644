package cart

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Totals is the denormalized money snapshot written back to the cart row on
// every mutation, inside the same transaction as the line change.
type Totals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// ItemDetail is a cart line joined with its product. CategoryID feeds bulk
// rule matching and stays inside the package.
type ItemDetail struct {
	ItemID     string
	ProductID  string
	CategoryID string
	Title      string
	SKU        string
	Quantity   int
	UnitPrice  int64
}

// GetOrCreateByUser returns the user's cart, creating it lazily on first
// use. Carts are never deleted, only emptied.
func (r *CartRepository) GetOrCreateByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := r.GetByUser(ctx, userID)
	if err != nil || cart != nil {
		return cart, err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New().String(), userID, now)
	if err != nil {
		return nil, err
	}

	return r.GetByUser(ctx, userID)
}

func (r *CartRepository) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	c := &domain.Cart{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(coupon_code, ''), subtotal, discount_amount,
			total_amount, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.CouponCode, &c.Subtotal, &c.DiscountAmount,
		&c.TotalAmount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

func (r *CartRepository) ListItemDetails(ctx context.Context, cartID string) ([]ItemDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.product_id, COALESCE(p.category_id::text, ''), p.title, p.sku,
			ci.quantity, ci.unit_price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var details []ItemDetail
	for rows.Next() {
		var d ItemDetail
		if err := rows.Scan(&d.ItemID, &d.ProductID, &d.CategoryID, &d.Title, &d.SKU,
			&d.Quantity, &d.UnitPrice); err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return details, nil
}

func (r *CartRepository) GetItem(ctx context.Context, cartID, itemID string) (*domain.CartItem, error) {
	item := &domain.CartItem{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, cart_id, product_id, quantity, unit_price, created_at, updated_at
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`, itemID, cartID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

func (r *CartRepository) GetItemByProduct(ctx context.Context, cartID, productID string) (*domain.CartItem, error) {
	item := &domain.CartItem{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, cart_id, product_id, quantity, unit_price, created_at, updated_at
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
		&item.UnitPrice, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return item, nil
}

// InsertItemWithTotals adds a line and writes the recomputed totals in one
// transaction. The caller locks the unit price; it is never read back from
// the catalog here.
func (r *CartRepository) InsertItemWithTotals(ctx context.Context, item *domain.CartItem, t Totals) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	item.ID = uuid.New().String()
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPrice, now)
	if err != nil {
		return err
	}

	if err := updateTotals(ctx, tx, item.CartID, t); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *CartRepository) UpdateItemQuantityWithTotals(ctx context.Context, cartID, itemID string, quantity int, t Totals) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE id = $2 AND cart_id = $1
	`, cartID, itemID, quantity)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := updateTotals(ctx, tx, cartID, t); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

func (r *CartRepository) DeleteItemWithTotals(ctx context.Context, cartID, itemID string, t Totals) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $2 AND cart_id = $1
	`, cartID, itemID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rowsAffected == 0 {
		return false, nil
	}

	if err := updateTotals(ctx, tx, cartID, t); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// SetCouponWithTotals stores the normalized code (empty clears it) together
// with the recomputed totals.
func (r *CartRepository) SetCouponWithTotals(ctx context.Context, cartID, code string, t Totals) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carts
		SET coupon_code = NULLIF($2, ''), subtotal = $3, discount_amount = $4,
			total_amount = $5, updated_at = NOW()
		WHERE id = $1
	`, cartID, code, t.Subtotal, t.Discount, t.Total)
	return err
}

func updateTotals(ctx context.Context, tx *sql.Tx, cartID string, t Totals) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET subtotal = $2, discount_amount = $3, total_amount = $4, updated_at = NOW()
		WHERE id = $1
	`, cartID, t.Subtotal, t.Discount, t.Total)
	return err
}
