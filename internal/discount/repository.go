// Package discount owns coupon and bulk-rule definitions. The cart service
// reads them through this package; evaluation lives in internal/pricing.
package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// NormalizeCode maps user input onto the stored coupon code form.
func NormalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	c.ID = uuid.New().String()
	c.Code = NormalizeCode(c.Code)
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, kind, amount, percent, min_cart_value, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.Code, c.Kind, c.Amount, c.Percent, c.MinCartValue, c.ExpiresAt, c.Active, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("coupon code %q: %w", c.Code, domain.ErrConflict)
		}
		return err
	}

	return nil
}

// GetCouponByCode expects an already-normalized code and returns nil, nil
// when no coupon carries it.
func (r *Repository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	c := &domain.Coupon{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, code, kind, amount, percent, min_cart_value, expires_at, active, created_at
		FROM coupons
		WHERE code = $1
	`, code).Scan(&c.ID, &c.Code, &c.Kind, &c.Amount, &c.Percent, &c.MinCartValue,
		&c.ExpiresAt, &c.Active, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return c, nil
}

func (r *Repository) ListCoupons(ctx context.Context) ([]domain.Coupon, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, kind, amount, percent, min_cart_value, expires_at, active, created_at
		FROM coupons
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var coupons []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.Kind, &c.Amount, &c.Percent, &c.MinCartValue,
			&c.ExpiresAt, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return coupons, nil
}

func (r *Repository) DeactivateCoupon(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE coupons SET active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *Repository) CreateRule(ctx context.Context, rule *domain.BulkDiscountRule) error {
	rule.ID = uuid.New().String()
	rule.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bulk_discount_rules (id, product_id, category_id, min_quantity, discount_percent, active, created_at)
		VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, $4, $5, $6, $7)
	`, rule.ID, rule.ProductID, rule.CategoryID, rule.MinQuantity, rule.DiscountPercent,
		rule.Active, rule.CreatedAt)
	return err
}

// ListRules returns every rule, or only the active ones. The cart service
// loads active rules on each recompute.
func (r *Repository) ListRules(ctx context.Context, activeOnly bool) ([]domain.BulkDiscountRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(product_id::text, ''), COALESCE(category_id::text, ''),
			min_quantity, discount_percent, active, created_at
		FROM bulk_discount_rules
		WHERE active OR NOT $1
		ORDER BY created_at DESC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rules []domain.BulkDiscountRule
	for rows.Next() {
		var rule domain.BulkDiscountRule
		if err := rows.Scan(&rule.ID, &rule.ProductID, &rule.CategoryID,
			&rule.MinQuantity, &rule.DiscountPercent, &rule.Active, &rule.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

func (r *Repository) DeactivateRule(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE bulk_discount_rules SET active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

func (r *Repository) ProductExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) CategoryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}
