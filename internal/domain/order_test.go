package domain

import "testing"

func TestOrderStatusCanTransitionTo(t *testing.T) {
	t.Run("follows the fulfilment path", func(t *testing.T) {
		path := []OrderStatus{
			OrderStatusPending,
			OrderStatusConfirmed,
			OrderStatusPacked,
			OrderStatusOutForDelivery,
			OrderStatusDelivered,
		}
		for i := 0; i < len(path)-1; i++ {
			if !path[i].CanTransitionTo(path[i+1]) {
				t.Errorf("expected %s -> %s to be allowed", path[i], path[i+1])
			}
		}
	})

	t.Run("rejects skipping steps", func(t *testing.T) {
		if OrderStatusPending.CanTransitionTo(OrderStatusPacked) {
			t.Error("pending -> packed should not be allowed")
		}
		if OrderStatusConfirmed.CanTransitionTo(OrderStatusDelivered) {
			t.Error("confirmed -> delivered should not be allowed")
		}
	})

	t.Run("rejects moving backwards", func(t *testing.T) {
		if OrderStatusPacked.CanTransitionTo(OrderStatusConfirmed) {
			t.Error("packed -> confirmed should not be allowed")
		}
	})

	t.Run("cancel and refund reachable from any non-terminal status", func(t *testing.T) {
		for _, from := range []OrderStatus{
			OrderStatusPending, OrderStatusConfirmed,
			OrderStatusPacked, OrderStatusOutForDelivery,
		} {
			if !from.CanTransitionTo(OrderStatusCancelled) {
				t.Errorf("expected %s -> cancelled to be allowed", from)
			}
			if !from.CanTransitionTo(OrderStatusRefunded) {
				t.Errorf("expected %s -> refunded to be allowed", from)
			}
		}
	})

	t.Run("terminal statuses allow nothing", func(t *testing.T) {
		for _, from := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded} {
			for _, to := range []OrderStatus{
				OrderStatusPending, OrderStatusConfirmed, OrderStatusPacked,
				OrderStatusOutForDelivery, OrderStatusDelivered,
				OrderStatusCancelled, OrderStatusRefunded,
			} {
				if from.CanTransitionTo(to) {
					t.Errorf("expected %s -> %s to be rejected", from, to)
				}
			}
		}
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		if OrderStatusPending.CanTransitionTo("shipped") {
			t.Error("unknown target status should be rejected")
		}
	})
}

func TestPaymentStatusCanTransitionTo(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentRefunded, false},
		{PaymentPaid, PaymentRefunded, true},
		{PaymentPaid, PaymentFailed, false},
		{PaymentFailed, PaymentPaid, false},
		{PaymentRefunded, PaymentPending, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"consumer", "distributor", "owner"} {
		role, err := ParseRole(s)
		if err != nil {
			t.Errorf("unexpected error for %q: %v", s, err)
		}
		if string(role) != s {
			t.Errorf("expected role %q, got %q", s, role)
		}
	}

	if _, err := ParseRole("admin"); err == nil {
		t.Error("expected error for unknown role")
	}
}
