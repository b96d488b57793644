// Package cart manages per-user carts. Every mutation recomputes the cart's
// totals through the pricing engine and persists them in the same
// transaction as the line change, so the stored totals are never stale.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/discount"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pricing"
)

type Service struct {
	carts     *CartRepository
	products  *catalog.ProductRepository
	discounts *discount.Repository
}

func NewService(carts *CartRepository, products *catalog.ProductRepository, discounts *discount.Repository) *Service {
	return &Service{carts: carts, products: products, discounts: discounts}
}

// Get returns the cart priced at this moment. Stored line prices stay locked,
// but rule and coupon changes since the last mutation show up here without
// being written back; the next mutation persists them.
func (s *Service) Get(ctx context.Context, userID string, role domain.Role) (*domain.CartView, error) {
	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}

	breakdown, err := s.compute(ctx, cart.CouponCode, role, details)
	if err != nil {
		return nil, err
	}

	return buildView(cart, details, breakdown), nil
}

// AddItem puts quantity units of a product in the cart, locking the unit
// price for the caller's role. Adding a product already in the cart merges
// into the existing line and keeps its original locked price.
func (s *Service) AddItem(ctx context.Context, userID string, role domain.Role, productID string, quantity int) (*domain.CartView, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantity must be positive")
	}
	if _, err := uuid.Parse(productID); err != nil {
		return nil, domain.Validationf("product_id must be a UUID")
	}

	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil || !product.Active {
		return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
	}

	existing, err := s.carts.GetItemByProduct(ctx, cart.ID, productID)
	if err != nil {
		return nil, fmt.Errorf("load cart line: %w", err)
	}

	combined := quantity
	if existing != nil {
		combined += existing.Quantity
	}
	if product.StockQuantity < combined {
		return nil, &domain.OutOfStockError{
			ProductID: product.ID,
			Title:     product.Title,
			Requested: combined,
			Available: product.StockQuantity,
		}
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}

	var inserted *domain.CartItem
	if existing != nil {
		for i := range details {
			if details[i].ItemID == existing.ID {
				details[i].Quantity = combined
			}
		}
	} else {
		inserted = &domain.CartItem{
			CartID:    cart.ID,
			ProductID: product.ID,
			Quantity:  quantity,
			UnitPrice: pricing.UnitPrice(product, role),
		}
		details = append(details, ItemDetail{
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			Title:      product.Title,
			SKU:        product.SKU,
			Quantity:   quantity,
			UnitPrice:  inserted.UnitPrice,
		})
	}

	breakdown, err := s.compute(ctx, cart.CouponCode, role, details)
	if err != nil {
		return nil, err
	}
	totals := totalsFrom(breakdown)

	if inserted != nil {
		if err := s.carts.InsertItemWithTotals(ctx, inserted, totals); err != nil {
			return nil, fmt.Errorf("insert cart line: %w", err)
		}
		details[len(details)-1].ItemID = inserted.ID
	} else {
		updated, err := s.carts.UpdateItemQuantityWithTotals(ctx, cart.ID, existing.ID, combined, totals)
		if err != nil {
			return nil, fmt.Errorf("update cart line: %w", err)
		}
		if !updated {
			return nil, fmt.Errorf("cart line %s: %w", existing.ID, domain.ErrNotFound)
		}
	}

	return buildView(cart, details, breakdown), nil
}

// UpdateItemQuantity replaces a line's quantity. The locked unit price is
// untouched.
func (s *Service) UpdateItemQuantity(ctx context.Context, userID string, role domain.Role, itemID string, quantity int) (*domain.CartView, error) {
	if quantity <= 0 {
		return nil, domain.Validationf("quantity must be positive")
	}

	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	item, err := s.carts.GetItem(ctx, cart.ID, itemID)
	if err != nil {
		return nil, fmt.Errorf("load cart line: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("cart line %s: %w", itemID, domain.ErrNotFound)
	}

	product, err := s.products.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrNotFound)
	}
	if product.StockQuantity < quantity {
		return nil, &domain.OutOfStockError{
			ProductID: product.ID,
			Title:     product.Title,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}
	for i := range details {
		if details[i].ItemID == itemID {
			details[i].Quantity = quantity
		}
	}

	breakdown, err := s.compute(ctx, cart.CouponCode, role, details)
	if err != nil {
		return nil, err
	}

	updated, err := s.carts.UpdateItemQuantityWithTotals(ctx, cart.ID, itemID, quantity, totalsFrom(breakdown))
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("cart line %s: %w", itemID, domain.ErrNotFound)
	}

	return buildView(cart, details, breakdown), nil
}

func (s *Service) RemoveItem(ctx context.Context, userID string, role domain.Role, itemID string) (*domain.CartView, error) {
	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}

	remaining := make([]ItemDetail, 0, len(details))
	found := false
	for _, d := range details {
		if d.ItemID == itemID {
			found = true
			continue
		}
		remaining = append(remaining, d)
	}
	if !found {
		return nil, fmt.Errorf("cart line %s: %w", itemID, domain.ErrNotFound)
	}

	breakdown, err := s.compute(ctx, cart.CouponCode, role, remaining)
	if err != nil {
		return nil, err
	}

	deleted, err := s.carts.DeleteItemWithTotals(ctx, cart.ID, itemID, totalsFrom(breakdown))
	if err != nil {
		return nil, fmt.Errorf("delete cart line: %w", err)
	}
	if !deleted {
		return nil, fmt.Errorf("cart line %s: %w", itemID, domain.ErrNotFound)
	}

	return buildView(cart, remaining, breakdown), nil
}

// ApplyCoupon validates the code against the cart's current subtotal and
// stores it. The code is normalized so "SAVE10" and " save10 " are the same
// coupon.
func (s *Service) ApplyCoupon(ctx context.Context, userID string, role domain.Role, code string) (*domain.CartView, error) {
	normalized := discount.NormalizeCode(code)
	if normalized == "" {
		return nil, domain.Validationf("code is required")
	}

	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}

	coupon, err := s.discounts.GetCouponByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("load coupon: %w", err)
	}
	if coupon == nil {
		return nil, &domain.InvalidCouponError{Code: normalized, Reason: "unknown code"}
	}

	var subtotal int64
	for _, d := range details {
		subtotal += int64(d.Quantity) * d.UnitPrice
	}
	if ok, reason := coupon.UsableAt(time.Now().UTC(), subtotal); !ok {
		return nil, &domain.InvalidCouponError{Code: normalized, Reason: reason}
	}

	cart.CouponCode = normalized
	breakdown, err := s.compute(ctx, normalized, role, details)
	if err != nil {
		return nil, err
	}

	if err := s.carts.SetCouponWithTotals(ctx, cart.ID, normalized, totalsFrom(breakdown)); err != nil {
		return nil, fmt.Errorf("set coupon: %w", err)
	}

	return buildView(cart, details, breakdown), nil
}

func (s *Service) RemoveCoupon(ctx context.Context, userID string, role domain.Role) (*domain.CartView, error) {
	cart, err := s.carts.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	details, err := s.carts.ListItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("load cart lines: %w", err)
	}

	cart.CouponCode = ""
	breakdown, err := s.compute(ctx, "", role, details)
	if err != nil {
		return nil, err
	}

	if err := s.carts.SetCouponWithTotals(ctx, cart.ID, "", totalsFrom(breakdown)); err != nil {
		return nil, fmt.Errorf("clear coupon: %w", err)
	}

	return buildView(cart, details, breakdown), nil
}

// compute prices the given lines. Bulk rules are only loaded for
// distributors since nobody else qualifies for them.
func (s *Service) compute(ctx context.Context, couponCode string, role domain.Role, details []ItemDetail) (pricing.Breakdown, error) {
	lines := make([]pricing.Line, 0, len(details))
	for _, d := range details {
		lines = append(lines, pricing.Line{
			ProductID:  d.ProductID,
			CategoryID: d.CategoryID,
			Quantity:   d.Quantity,
			UnitPrice:  d.UnitPrice,
		})
	}

	var rules []domain.BulkDiscountRule
	if role == domain.RoleDistributor && len(lines) > 0 {
		var err error
		rules, err = s.discounts.ListRules(ctx, true)
		if err != nil {
			return pricing.Breakdown{}, fmt.Errorf("load bulk rules: %w", err)
		}
	}

	var coupon *domain.Coupon
	if couponCode != "" {
		var err error
		coupon, err = s.discounts.GetCouponByCode(ctx, couponCode)
		if err != nil {
			return pricing.Breakdown{}, fmt.Errorf("load coupon: %w", err)
		}
	}

	return pricing.Compute(lines, role, rules, coupon, time.Now().UTC()), nil
}

func totalsFrom(b pricing.Breakdown) Totals {
	return Totals{Subtotal: b.Subtotal, Discount: b.Discount, Total: b.Total}
}

// buildView pairs the stored lines with the breakdown. Compute keeps one
// result per positive-quantity line in input order, and cart lines are always
// positive, so the two slices line up by index.
func buildView(c *domain.Cart, details []ItemDetail, b pricing.Breakdown) *domain.CartView {
	view := &domain.CartView{
		CartID:     c.ID,
		Items:      make([]domain.CartItemView, 0, len(details)),
		CouponCode: c.CouponCode,
		Subtotal:   b.Subtotal,
		Discount:   b.Discount,
		Total:      b.Total,
	}

	for i, d := range details {
		item := domain.CartItemView{
			ItemID:       d.ItemID,
			ProductID:    d.ProductID,
			Title:        d.Title,
			SKU:          d.SKU,
			Quantity:     d.Quantity,
			UnitPrice:    d.UnitPrice,
			LineSubtotal: int64(d.Quantity) * d.UnitPrice,
		}
		if i < len(b.Lines) {
			item.LineDiscount = b.Lines[i].Discount
		}
		view.Items = append(view.Items, item)
	}

	return view
}
