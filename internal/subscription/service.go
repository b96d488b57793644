// Package subscription manages recurring orders. Renewal runs are triggered
// through an explicit endpoint rather than an in-process scheduler, so
// deployments decide the cadence with a cron job or manual call.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/address"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type Service struct {
	subs      *Repository
	products  *catalog.ProductRepository
	addresses *address.Repository
	checkout  *checkout.Service
	logger    *slog.Logger
}

func NewService(subs *Repository, products *catalog.ProductRepository, addresses *address.Repository, checkout *checkout.Service, logger *slog.Logger) *Service {
	return &Service{
		subs:      subs,
		products:  products,
		addresses: addresses,
		checkout:  checkout,
		logger:    logger,
	}
}

// Create registers a subscription. No order is placed here; the first one
// goes out on the first renewal run after interval_days have passed. The
// caller's role is recorded so renewals price against it even if the role
// assignment changes later.
func (s *Service) Create(ctx context.Context, userID string, role domain.Role, productID, addressID string, quantity, intervalDays int) (*domain.Subscription, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantity must be positive")
	}
	if intervalDays <= 0 {
		return nil, domain.Validationf("interval_days must be positive")
	}
	if _, err := uuid.Parse(productID); err != nil {
		return nil, domain.Validationf("product_id must be a UUID")
	}
	if _, err := uuid.Parse(addressID); err != nil {
		return nil, domain.Validationf("address_id must be a UUID")
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil || !product.Active {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	addr, err := s.addresses.GetByIDForUser(ctx, addressID, userID)
	if err != nil {
		return nil, fmt.Errorf("load address: %w", err)
	}
	if addr == nil {
		return nil, fmt.Errorf("address %s: %w", addressID, domain.ErrNotFound)
	}

	sub := &domain.Subscription{
		UserID:        userID,
		Role:          role,
		ProductID:     productID,
		AddressID:     addressID,
		Quantity:      quantity,
		IntervalDays:  intervalDays,
		NextRenewalAt: time.Now().UTC().AddDate(0, 0, intervalDays),
		Status:        domain.SubscriptionActive,
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	return sub, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]domain.Subscription, error) {
	return s.subs.ListByUser(ctx, userID)
}

func (s *Service) Pause(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	return s.transition(ctx, userID, id, domain.SubscriptionActive, domain.SubscriptionPaused)
}

func (s *Service) Resume(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	return s.transition(ctx, userID, id, domain.SubscriptionPaused, domain.SubscriptionActive)
}

// Cancel is terminal; a cancelled subscription can never be resumed.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*domain.Subscription, error) {
	sub, err := s.subs.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	if sub.Status == domain.SubscriptionCancelled {
		return nil, fmt.Errorf("subscription is already cancelled: %w", domain.ErrConflict)
	}

	changed, err := s.subs.SetStatus(ctx, id, sub.Status, domain.SubscriptionCancelled)
	if err != nil {
		return nil, fmt.Errorf("cancel subscription: %w", err)
	}
	if !changed {
		return nil, fmt.Errorf("subscription changed concurrently: %w", domain.ErrConflict)
	}

	sub.Status = domain.SubscriptionCancelled
	return sub, nil
}

func (s *Service) transition(ctx context.Context, userID, id string, from, to domain.SubscriptionStatus) (*domain.Subscription, error) {
	sub, err := s.subs.GetByIDForUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	if sub.Status != from {
		return nil, fmt.Errorf("subscription is %s, not %s: %w", sub.Status, from, domain.ErrConflict)
	}

	changed, err := s.subs.SetStatus(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	if !changed {
		return nil, fmt.Errorf("subscription changed concurrently: %w", domain.ErrConflict)
	}

	sub.Status = to
	return sub, nil
}

// RenewalResult summarizes one renewal run.
type RenewalResult struct {
	Renewed int `json:"renewed"`
	Paused  int `json:"paused"`
	Failed  int `json:"failed"`
}

// RunRenewals places an order for every due active subscription. Each
// subscription renews in its own transaction: one failing does not roll the
// others back. Out-of-stock and vanished products pause the subscription;
// transient errors leave it due so the next run retries it.
func (s *Service) RunRenewals(ctx context.Context) (RenewalResult, error) {
	var result RenewalResult

	due, err := s.subs.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return result, fmt.Errorf("list due subscriptions: %w", err)
	}

	for i := range due {
		sub := &due[i]

		order, err := s.checkout.PlaceSubscriptionOrder(ctx, sub)
		if err != nil {
			var oos *domain.OutOfStockError
			if errors.As(err, &oos) || errors.Is(err, domain.ErrNotFound) {
				if paused, pauseErr := s.subs.SetStatus(ctx, sub.ID, domain.SubscriptionActive, domain.SubscriptionPaused); pauseErr != nil {
					s.logger.Error("failed to pause subscription", "error", pauseErr, "subscription_id", sub.ID)
				} else if paused {
					result.Paused++
					s.logger.Warn("subscription paused", "subscription_id", sub.ID, "reason", err)
				}
				continue
			}

			result.Failed++
			s.logger.Error("subscription renewal failed", "error", err, "subscription_id", sub.ID)
			continue
		}

		next := time.Now().UTC().AddDate(0, 0, sub.IntervalDays)
		if err := s.subs.AdvanceRenewal(ctx, sub.ID, next); err != nil {
			s.logger.Error("failed to advance renewal date", "error", err, "subscription_id", sub.ID)
		}

		result.Renewed++
		s.logger.Info("subscription renewed",
			"subscription_id", sub.ID,
			"order_id", order.ID,
			"next_renewal_at", next,
		)
	}

	return result, nil
}
