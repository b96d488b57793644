package domain

import (
	"errors"
	"fmt"
)

// Request-recoverable failures. Handlers map these to HTTP statuses; nothing
// in this taxonomy is fatal to the process.
var (
	ErrNotFound  = errors.New("not found")
	ErrEmptyCart = errors.New("cart is empty")
	ErrConflict  = errors.New("conflict")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// OutOfStockError names the product whose stock cannot cover the requested
// quantity.
type OutOfStockError struct {
	ProductID string
	Title     string
	Requested int
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d, available %d)",
		e.ProductID, e.Requested, e.Available)
}

// InvalidCouponError carries the normalized code and why it was rejected.
type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("invalid coupon %q: %s", e.Code, e.Reason)
}
