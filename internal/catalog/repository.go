package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ErrNegativeStock rejects adjustments that would take stock below zero.
var ErrNegativeStock = errors.New("stock adjustment would drop below zero")

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, title, sku, category_id, consumer_price, distributor_price,
			stock_quantity, active, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9, $10, $10)
	`, p.ID, p.Title, p.SKU, p.CategoryID, p.ConsumerPrice, p.DistributorPrice,
		p.StockQuantity, p.Active, p.OwnerID, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("sku %q: %w", p.SKU, domain.ErrConflict)
		}
		return err
	}

	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET title = $2, category_id = NULLIF($3, '')::uuid, consumer_price = $4,
			distributor_price = $5, active = $6, updated_at = NOW()
		WHERE id = $1
	`, p.ID, p.Title, p.CategoryID, p.ConsumerPrice, p.DistributorPrice, p.Active)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}

	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, p.ID)
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p := &domain.Product{}
	var categoryID sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, sku, category_id::text, consumer_price, distributor_price,
			stock_quantity, active, owner_id, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.SKU, &categoryID, &p.ConsumerPrice,
		&p.DistributorPrice, &p.StockQuantity, &p.Active, &p.OwnerID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.CategoryID = categoryID.String
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, sku, category_id, consumer_price, distributor_price,
			stock_quantity, active, owner_id, created_at, updated_at
		FROM products
		WHERE active OR $1
		ORDER BY created_at DESC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		var categoryID sql.NullString
		if err := rows.Scan(&p.ID, &p.Title, &p.SKU, &categoryID, &p.ConsumerPrice,
			&p.DistributorPrice, &p.StockQuantity, &p.Active, &p.OwnerID,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CategoryID = categoryID.String
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// AdjustStock applies a signed delta and returns the resulting quantity. The
// guard in the WHERE clause keeps stock from going negative under concurrent
// adjustments; callers must verify the product exists to tell the two
// zero-row cases apart.
func (r *ProductRepository) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var newStock int
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING stock_quantity
	`, id, delta).Scan(&newStock)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNegativeStock
		}
		return 0, err
	}

	return newStock, nil
}

func (r *ProductRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, parent_id, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4)
	`, c.ID, c.Name, c.ParentID, c.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("category %q: %w", c.Name, domain.ErrConflict)
		}
		return err
	}

	return nil
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(parent_id::text, ''), created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return categories, nil
}

func (r *ProductRepository) CategoryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)
	`, id).Scan(&exists)
	return exists, err
}
