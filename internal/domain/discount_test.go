package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCouponUsableAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	t.Run("active coupon with no expiry is usable", func(t *testing.T) {
		c := Coupon{Code: "welcome", Kind: CouponFixed, Amount: 500, Active: true}
		ok, reason := c.UsableAt(now, 10000)
		if !ok {
			t.Errorf("expected usable, got reason %q", reason)
		}
	})

	t.Run("inactive coupon is rejected", func(t *testing.T) {
		c := Coupon{Code: "old", Kind: CouponFixed, Amount: 500}
		ok, reason := c.UsableAt(now, 10000)
		if ok {
			t.Error("expected inactive coupon to be rejected")
		}
		if reason != "coupon is no longer active" {
			t.Errorf("unexpected reason %q", reason)
		}
	})

	t.Run("expired coupon is rejected", func(t *testing.T) {
		c := Coupon{Code: "flash", Kind: CouponFixed, Amount: 500, Active: true, ExpiresAt: &past}
		ok, reason := c.UsableAt(now, 10000)
		if ok {
			t.Error("expected expired coupon to be rejected")
		}
		if reason != "coupon has expired" {
			t.Errorf("unexpected reason %q", reason)
		}
	})

	t.Run("expiry exactly now counts as expired", func(t *testing.T) {
		c := Coupon{Code: "flash", Kind: CouponFixed, Amount: 500, Active: true, ExpiresAt: &now}
		if ok, _ := c.UsableAt(now, 10000); ok {
			t.Error("expected coupon expiring now to be rejected")
		}
	})

	t.Run("future expiry is usable", func(t *testing.T) {
		c := Coupon{Code: "flash", Kind: CouponFixed, Amount: 500, Active: true, ExpiresAt: &future}
		if ok, reason := c.UsableAt(now, 10000); !ok {
			t.Errorf("expected usable, got reason %q", reason)
		}
	})

	t.Run("subtotal below minimum is rejected", func(t *testing.T) {
		c := Coupon{Code: "big", Kind: CouponPercent, Percent: decimal.NewFromInt(10), Active: true, MinCartValue: 5000}
		ok, reason := c.UsableAt(now, 4999)
		if ok {
			t.Error("expected coupon below minimum to be rejected")
		}
		if reason != "cart value below coupon minimum" {
			t.Errorf("unexpected reason %q", reason)
		}
	})

	t.Run("subtotal exactly at minimum is usable", func(t *testing.T) {
		c := Coupon{Code: "big", Kind: CouponPercent, Percent: decimal.NewFromInt(10), Active: true, MinCartValue: 5000}
		if ok, reason := c.UsableAt(now, 5000); !ok {
			t.Errorf("expected usable at exact minimum, got reason %q", reason)
		}
	})
}
