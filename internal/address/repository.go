// Package address stores delivery addresses. Orders and subscriptions
// reference them by id; ownership is enforced by scoping every query to the
// calling user.
package address

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, label, line1, city, postal_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.UserID, a.Label, a.Line1, a.City, a.PostalCode, a.CreatedAt)

	return err
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, label, line1, city, postal_code, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var addresses []domain.Address
	for rows.Next() {
		var a domain.Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &a.City, &a.PostalCode, &a.CreatedAt); err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return addresses, nil
}

// GetByIDForUser returns nil when the address does not exist or belongs to
// someone else; callers cannot tell the two apart.
func (r *Repository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Address, error) {
	a := &domain.Address{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, label, line1, city, postal_code, created_at
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &a.City, &a.PostalCode, &a.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return a, nil
}

func (r *Repository) Delete(ctx context.Context, id, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM addresses
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}
