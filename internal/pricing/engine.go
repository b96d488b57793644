// Package pricing computes cart totals. It is pure: callers load the cart
// lines, the active bulk rules and the coupon, and the engine returns a
// breakdown without touching storage.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// Line is one cart line prepared for pricing. CategoryID is carried from the
// product so category-scoped rules can match; UnitPrice is the price locked
// on the cart item, not the current catalog price.
type Line struct {
	ProductID  string
	CategoryID string
	Quantity   int
	UnitPrice  int64
}

// LineResult reports the subtotal and bulk discount for a single line.
// RuleID names the matched bulk rule, empty when none applied.
type LineResult struct {
	ProductID string
	Subtotal  int64
	Discount  int64
	RuleID    string
}

// Breakdown aggregates computed cart totals. Discount is the sum of bulk and
// coupon discounts clamped to the subtotal, so Total is never negative.
type Breakdown struct {
	Lines          []LineResult
	Subtotal       int64
	BulkDiscount   int64
	CouponDiscount int64
	Discount       int64
	Total          int64
}

// UnitPrice returns the list price a role pays for a product. Owners browse
// at consumer prices.
func UnitPrice(p *domain.Product, role domain.Role) int64 {
	if role == domain.RoleDistributor {
		return p.DistributorPrice
	}
	return p.ConsumerPrice
}

// Compute prices the given lines. Bulk rules apply to distributors only. A
// coupon that is not usable against the computed subtotal contributes zero
// rather than failing, so a cart can drop below a coupon minimum and recover.
func Compute(lines []Line, role domain.Role, rules []domain.BulkDiscountRule, coupon *domain.Coupon, now time.Time) Breakdown {
	b := Breakdown{Lines: make([]LineResult, 0, len(lines))}
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			continue
		}
		lr := LineResult{
			ProductID: ln.ProductID,
			Subtotal:  int64(ln.Quantity) * ln.UnitPrice,
		}
		if role == domain.RoleDistributor {
			if r := BestRule(rules, ln); r != nil {
				lr.Discount = percentOf(lr.Subtotal, r.DiscountPercent)
				lr.RuleID = r.ID
			}
		}
		b.Subtotal += lr.Subtotal
		b.BulkDiscount += lr.Discount
		b.Lines = append(b.Lines, lr)
	}

	if coupon != nil {
		if ok, _ := coupon.UsableAt(now, b.Subtotal); ok {
			switch coupon.Kind {
			case domain.CouponFixed:
				b.CouponDiscount = coupon.Amount
			case domain.CouponPercent:
				b.CouponDiscount = percentOf(b.Subtotal, coupon.Percent)
			}
		}
	}

	b.Discount = b.BulkDiscount + b.CouponDiscount
	if b.Discount > b.Subtotal {
		b.Discount = b.Subtotal
	}
	b.Total = b.Subtotal - b.Discount
	return b
}

// BestRule picks the bulk rule for a line. Product-scoped rules beat
// category-scoped rules beat global ones; within a scope the highest
// satisfied MinQuantity wins, with the larger percent breaking ties.
func BestRule(rules []domain.BulkDiscountRule, line Line) *domain.BulkDiscountRule {
	var best *domain.BulkDiscountRule
	bestScope := -1
	for i := range rules {
		r := &rules[i]
		if !r.Active || line.Quantity < r.MinQuantity {
			continue
		}
		if r.ProductID != "" && r.ProductID != line.ProductID {
			continue
		}
		if r.ProductID == "" && r.CategoryID != "" && r.CategoryID != line.CategoryID {
			continue
		}
		s := ruleScope(r)
		switch {
		case s > bestScope:
			best, bestScope = r, s
		case s == bestScope && r.MinQuantity > best.MinQuantity:
			best = r
		case s == bestScope && r.MinQuantity == best.MinQuantity && r.DiscountPercent.GreaterThan(best.DiscountPercent):
			best = r
		}
	}
	return best
}

func ruleScope(r *domain.BulkDiscountRule) int {
	switch {
	case r.ProductID != "":
		return 2
	case r.CategoryID != "":
		return 1
	}
	return 0
}

// percentOf applies a percentage to a minor-unit amount, rounding half away
// from zero.
func percentOf(amount int64, pct decimal.Decimal) int64 {
	if amount <= 0 || pct.IsZero() {
		return 0
	}
	return decimal.NewFromInt(amount).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
