package subscription

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

const subscriptionColumns = `id, user_id, role, product_id, address_id, quantity,
	interval_days, next_renewal_at, status, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, sub *domain.Subscription) error {
	sub.ID = uuid.New().String()
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, user_id, role, product_id, address_id, quantity,
			interval_days, next_renewal_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`, sub.ID, sub.UserID, sub.Role, sub.ProductID, sub.AddressID, sub.Quantity,
		sub.IntervalDays, sub.NextRenewalAt, sub.Status, now)

	return err
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Role, &s.ProductID, &s.AddressID, &s.Quantity,
			&s.IntervalDays, &s.NextRenewalAt, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *Repository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Subscription, error) {
	s := &domain.Subscription{}

	err := r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&s.ID, &s.UserID, &s.Role, &s.ProductID, &s.AddressID, &s.Quantity,
		&s.IntervalDays, &s.NextRenewalAt, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return s, nil
}

// ListDue returns active subscriptions whose renewal date has passed, oldest
// first. The partial index on next_renewal_at covers exactly this query.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'active' AND next_renewal_at <= $1
		ORDER BY next_renewal_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Role, &s.ProductID, &s.AddressID, &s.Quantity,
			&s.IntervalDays, &s.NextRenewalAt, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return subs, nil
}

// SetStatus writes the new status only if the row still holds the status the
// caller validated against.
func (r *Repository) SetStatus(ctx context.Context, id string, from, to domain.SubscriptionStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = $3, updated_at = NOW()
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

func (r *Repository) AdvanceRenewal(ctx context.Context, id string, next time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET next_renewal_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, next)
	return err
}
